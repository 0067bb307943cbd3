package engine

import (
	"testing"

	"solarflow/lib/models"

	"github.com/stretchr/testify/assert"
)

func ruleFixtures() (*models.Project, *models.Customer) {
	project := &models.Project{
		ID:             "proj_1",
		OrganizationID: "org_1",
		CustomerID:     "cust_1",
		Status:         "in_progress",
		SystemSize:     8.5,
	}
	customer := &models.Customer{
		ID:             "cust_1",
		OrganizationID: "org_1",
		Name:           "John Doe",
		Address:        "123 Solar Lane",
		ContactInfo:    map[string]string{"phone": "555-0100"},
	}
	return project, customer
}

func Test_ResolveCanonical(t *testing.T) {
	project, customer := ruleFixtures()

	tests := []struct {
		field    string
		value    interface{}
		resolved bool
	}{
		{"project.id", "proj_1", true},
		{"project.status", "in_progress", true},
		{"project.system_size", 8.5, true},
		{"customer.name", "John Doe", true},
		{"customer.phone", "555-0100", true},
		{"customer.fax", nil, false},
		{"project.nonexistent", nil, false},
		{"submission.q1", nil, false},
		{"bare_field", nil, false},
	}

	for _, tc := range tests {
		got := resolveCanonical(tc.field, project, customer)
		assert.Equal(t, tc.resolved, got.resolved, "field %s", tc.field)
		if tc.resolved {
			assert.Equal(t, tc.value, got.value, "field %s", tc.field)
		}
	}
}

func Test_CheckRule_NilRulePasses(t *testing.T) {
	project, customer := ruleFixtures()
	assert.True(t, checkRule(nil, project, customer))
}

func Test_CheckRule_Operators(t *testing.T) {
	project, customer := ruleFixtures()

	tests := []struct {
		name     string
		rule     models.ConditionalRule
		expected bool
	}{
		{"equals match", models.ConditionalRule{Field: "project.status", Operator: models.OperatorEquals, Value: "in_progress"}, true},
		{"equals mismatch", models.ConditionalRule{Field: "project.status", Operator: models.OperatorEquals, Value: "complete"}, false},
		{"equals numeric coercion", models.ConditionalRule{Field: "project.system_size", Operator: models.OperatorEquals, Value: "8.5"}, true},
		{"not_equals", models.ConditionalRule{Field: "project.status", Operator: models.OperatorNotEquals, Value: "complete"}, true},
		{"greater_than true", models.ConditionalRule{Field: "project.system_size", Operator: models.OperatorGreaterThan, Value: 5}, true},
		{"greater_than false", models.ConditionalRule{Field: "project.system_size", Operator: models.OperatorGreaterThan, Value: 10}, false},
		{"less_than", models.ConditionalRule{Field: "project.system_size", Operator: models.OperatorLessThan, Value: 10}, true},
		{"greater_than non-numeric", models.ConditionalRule{Field: "project.status", Operator: models.OperatorGreaterThan, Value: 1}, false},
		{"is_true on non-bool", models.ConditionalRule{Field: "project.status", Operator: models.OperatorTrue}, false},
		{"is_false on non-bool", models.ConditionalRule{Field: "project.status", Operator: models.OperatorFalse}, false},
		{"unknown operator", models.ConditionalRule{Field: "project.status", Operator: "between", Value: "x"}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, checkRule(&tc.rule, project, customer))
		})
	}
}

// Unresolved fields fail every operator except not_equals against a concrete
// literal. This keeps rules over submission.* paths total without ever
// consulting submissions.
func Test_CheckRule_UnresolvedSentinel(t *testing.T) {
	project, customer := ruleFixtures()

	tests := []struct {
		name     string
		rule     models.ConditionalRule
		expected bool
	}{
		{"equals", models.ConditionalRule{Field: "submission.q1", Operator: models.OperatorEquals, Value: "yes"}, false},
		{"equals nil", models.ConditionalRule{Field: "submission.q1", Operator: models.OperatorEquals, Value: nil}, false},
		{"not_equals literal", models.ConditionalRule{Field: "submission.q1", Operator: models.OperatorNotEquals, Value: "yes"}, true},
		{"not_equals nil", models.ConditionalRule{Field: "submission.q1", Operator: models.OperatorNotEquals, Value: nil}, false},
		{"greater_than", models.ConditionalRule{Field: "submission.q1", Operator: models.OperatorGreaterThan, Value: 1}, false},
		{"less_than", models.ConditionalRule{Field: "submission.q1", Operator: models.OperatorLessThan, Value: 1}, false},
		{"is_true", models.ConditionalRule{Field: "submission.q1", Operator: models.OperatorTrue}, false},
		{"is_false", models.ConditionalRule{Field: "submission.q1", Operator: models.OperatorFalse}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, checkRule(&tc.rule, project, customer))
		})
	}
}

func Test_LooseEqual(t *testing.T) {
	tests := []struct {
		name     string
		a, b     interface{}
		expected bool
	}{
		{"string numeric vs int", "5", 5, true},
		{"string numeric vs float", "5", 5.0, true},
		{"int vs float", 5, 5.0, true},
		{"string vs string", "solar", "solar", true},
		{"string mismatch", "solar", "wind", false},
		{"bool vs bool", true, true, true},
		{"bool vs string", true, "true", false},
		{"bool vs number", true, 1, false},
		{"both nil", nil, nil, true},
		{"nil vs value", nil, "x", false},
		{"non-numeric string vs number", "abc", 5, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, looseEqual(tc.a, tc.b))
			assert.Equal(t, tc.expected, looseEqual(tc.b, tc.a), "must be symmetric")
		})
	}
}
