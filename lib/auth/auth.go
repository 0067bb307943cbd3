package auth

import (
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
)

// Claims represents the JWT claims extracted from the API Gateway authorizer context
type Claims struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	Subject string `json:"sub"`
	OrgID   string `json:"org_id"`
	IsAdmin bool   `json:"isAdmin"`
}

// ExtractClaimsFromRequest extracts and parses JWT claims from API Gateway request
func ExtractClaimsFromRequest(request events.APIGatewayProxyRequest) (*Claims, error) {
	// Get claims from authorizer context
	var claimsMap map[string]interface{}
	var ok bool

	// Try different possible claim locations in the authorizer context
	if authClaims, exists := request.RequestContext.Authorizer["claims"]; exists {
		claimsMap, ok = authClaims.(map[string]interface{})
	}

	// If claims not found, try direct access to authorizer (some API Gateway configurations)
	if !ok {
		claimsMap = request.RequestContext.Authorizer
		ok = (claimsMap != nil)
	}

	if !ok || claimsMap == nil {
		return nil, fmt.Errorf("claims not found in authorizer context")
	}

	userID, ok := claimsMap["user_id"].(string)
	if !ok || userID == "" {
		return nil, fmt.Errorf("user_id not found in claims")
	}

	email, ok := claimsMap["email"].(string)
	if !ok {
		return nil, fmt.Errorf("email not found or invalid in claims")
	}

	subject, ok := claimsMap["sub"].(string)
	if !ok {
		return nil, fmt.Errorf("sub not found or invalid in claims")
	}

	// Admin claims carry no org scoping; installer claims must
	orgID, _ := claimsMap["org_id"].(string)

	var isAdmin bool
	if adminValue, exists := claimsMap["isAdmin"]; exists {
		if isAdmin, ok = adminValue.(bool); !ok {
			// Try as string "true"/"false"
			if adminStr, ok := adminValue.(string); ok && adminStr == "true" {
				isAdmin = true
			}
		}
	}

	if !isAdmin && orgID == "" {
		return nil, fmt.Errorf("org_id not found in claims")
	}

	return &Claims{
		UserID:  userID,
		Email:   email,
		Subject: subject,
		OrgID:   orgID,
		IsAdmin: isAdmin,
	}, nil
}

// ToJSON converts claims to JSON string for logging
func (c *Claims) ToJSON() string {
	data, _ := json.Marshal(c)
	return string(data)
}
