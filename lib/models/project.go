package models

import "time"

// Credit approval statuses
const (
	CreditApprovalStatusApproved   = "approved"
	CreditApprovalStatusUnapproved = "unapproved"
)

// CreditApproval represents an upstream financing decision for a customer.
// Projects can only be created against an approved record.
type CreditApproval struct {
	ID              string     `json:"id"`
	OrganizationID  string     `json:"organization_id"`
	Status          string     `json:"status"`
	ApprovedAmount  float64    `json:"approved_amount"`
	CustomerName    string     `json:"customer_name"`
	CustomerAddress string     `json:"customer_address"`
	CustomerPhone   string     `json:"customer_phone,omitempty"`
	CustomerEmail   string     `json:"customer_email,omitempty"`
	SourceSystem    string     `json:"source_system,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
}

// Customer represents the homeowner a project is installed for
type Customer struct {
	ID               string            `json:"id"`
	OrganizationID   string            `json:"organization_id"`
	CreditApprovalID string            `json:"credit_approval_id"`
	Name             string            `json:"name"`
	Address          string            `json:"address"`
	ContactInfo      map[string]string `json:"contact_info,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	LastUpdatedAt    time.Time         `json:"last_updated_at"`
}

// Project represents one solar installation tracked through the workflow.
// ActiveStages is a derived cache written back after evaluation; it is always
// recomputed and never trusted as authoritative.
type Project struct {
	ID               string    `json:"id"`
	OrganizationID   string    `json:"organization_id"`
	CustomerID       string    `json:"customer_id"`
	CreditApprovalID string    `json:"credit_approval_id"`
	Status           string    `json:"status"`
	SystemSize       float64   `json:"system_size,omitempty"`
	ActiveStages     []string  `json:"active_stages"`
	CreatedAt        time.Time `json:"created_at"`
	LastUpdatedAt    time.Time `json:"last_updated_at"`
}

// CreateProjectRequest is the payload for creating a project from a credit approval
type CreateProjectRequest struct {
	CreditApprovalID string            `json:"credit_approval_id"`
	CustomerName     string            `json:"customer_name,omitempty"`
	CustomerAddress  string            `json:"customer_address,omitempty"`
	ContactInfo      map[string]string `json:"contact_info,omitempty"`
	SystemSize       float64           `json:"system_size,omitempty"`
}

// ProjectListResponse wraps a list of projects
type ProjectListResponse struct {
	Projects []Project `json:"projects"`
	Total    int       `json:"total"`
}
