package models

// Entity statuses shared by sections and stages
const (
	StatusActive = "active"
	StatusDraft  = "draft"
)

// SectionConditionalRule gates a section's visibility on a single question's
// answer. The operator set matches ConditionalRule.
type SectionConditionalRule struct {
	QuestionID string      `json:"question_id"`
	Operator   string      `json:"operator"`
	Value      interface{} `json:"value,omitempty"`
}

// Section represents a named group of questions
type Section struct {
	ID                  string                  `json:"id"`
	Name                string                  `json:"name"`
	Description         string                  `json:"description,omitempty"`
	RequiredQuestionIDs []string                `json:"required_question_ids"`
	OptionalQuestionIDs []string                `json:"optional_question_ids"`
	QuestionOrder       []string                `json:"question_order,omitempty"`
	DependsOnSectionIDs []string                `json:"depends_on_section_ids,omitempty"`
	ConditionalRule     *SectionConditionalRule `json:"conditional_question_rule,omitempty"`
	Status              string                  `json:"status"`
}

// SectionListResponse wraps a list of sections
type SectionListResponse struct {
	Sections []Section `json:"sections"`
	Total    int       `json:"total"`
}
