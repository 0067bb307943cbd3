package engine

import (
	"strconv"
	"strings"

	"solarflow/lib/models"
)

// canonicalValue carries a resolved field value, or the unresolved sentinel
// when the field path points outside the supported scopes. Unresolved values
// compare false under every operator except not_equals against a concrete
// literal, keeping rule evaluation total.
type canonicalValue struct {
	value    interface{}
	resolved bool
}

// resolveCanonical maps a dotted field path onto a project or customer
// attribute. Any other prefix, including submission.*, resolves to the
// unresolved sentinel.
func resolveCanonical(field string, project *models.Project, customer *models.Customer) canonicalValue {
	switch {
	case strings.HasPrefix(field, "project."):
		return resolveProjectField(strings.TrimPrefix(field, "project."), project)
	case strings.HasPrefix(field, "customer."):
		return resolveCustomerField(strings.TrimPrefix(field, "customer."), customer)
	default:
		return canonicalValue{}
	}
}

func resolveProjectField(key string, project *models.Project) canonicalValue {
	switch key {
	case "id":
		return canonicalValue{project.ID, true}
	case "organization_id":
		return canonicalValue{project.OrganizationID, true}
	case "customer_id":
		return canonicalValue{project.CustomerID, true}
	case "credit_approval_id":
		return canonicalValue{project.CreditApprovalID, true}
	case "status":
		return canonicalValue{project.Status, true}
	case "system_size":
		return canonicalValue{project.SystemSize, true}
	default:
		return canonicalValue{}
	}
}

func resolveCustomerField(key string, customer *models.Customer) canonicalValue {
	switch key {
	case "id":
		return canonicalValue{customer.ID, true}
	case "organization_id":
		return canonicalValue{customer.OrganizationID, true}
	case "credit_approval_id":
		return canonicalValue{customer.CreditApprovalID, true}
	case "name":
		return canonicalValue{customer.Name, true}
	case "address":
		return canonicalValue{customer.Address, true}
	default:
		if v, ok := customer.ContactInfo[key]; ok {
			return canonicalValue{v, true}
		}
		return canonicalValue{}
	}
}

// checkRule evaluates a conditional visibility rule. An absent rule passes.
func checkRule(rule *models.ConditionalRule, project *models.Project, customer *models.Customer) bool {
	if rule == nil {
		return true
	}
	resolved := resolveCanonical(rule.Field, project, customer)

	switch rule.Operator {
	case models.OperatorEquals:
		return resolved.resolved && looseEqual(resolved.value, rule.Value)
	case models.OperatorNotEquals:
		if !resolved.resolved {
			return rule.Value != nil
		}
		return !looseEqual(resolved.value, rule.Value)
	case models.OperatorGreaterThan:
		return resolved.resolved && numericCompare(resolved.value, rule.Value, func(a, b float64) bool { return a > b })
	case models.OperatorLessThan:
		return resolved.resolved && numericCompare(resolved.value, rule.Value, func(a, b float64) bool { return a < b })
	case models.OperatorTrue:
		return resolved.resolved && resolved.value == true
	case models.OperatorFalse:
		return resolved.resolved && resolved.value == false
	default:
		return false
	}
}

// looseEqual compares two scalar values with numeric-string coercion, so
// "5" equals 5 and 5.0. Booleans and non-numeric strings compare strictly
// within their own type.
func looseEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	af, aNum := asFloat(a)
	bf, bNum := asFloat(b)
	if aNum && bNum {
		return af == bf
	}
	switch av := a.(type) {
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	}
	return false
}

func numericCompare(a, b interface{}, cmp func(a, b float64) bool) bool {
	af, aNum := asFloat(a)
	bf, bNum := asFloat(b)
	return aNum && bNum && cmp(af, bf)
}

// asFloat coerces numbers and numeric strings to float64. JSON decoding
// produces float64 for all numbers; the remaining cases cover values built
// in code.
func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
