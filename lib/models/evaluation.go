package models

// Required action reasons
const (
	ReasonMissing          = "missing"
	ReasonRejected         = "rejected"
	ReasonAwaitingApproval = "awaiting_approval"
)

// StageContextDerived is the fallback stage context when no stage owns the
// section a required action originates from.
const StageContextDerived = "derived"

// EvaluationContext is the immutable input bundle for one evaluation: one
// project, its customer and credit approval, the global configuration, and
// all submissions for the project.
type EvaluationContext struct {
	Project        *Project        `json:"project"`
	Customer       *Customer       `json:"customer"`
	CreditApproval *CreditApproval `json:"credit_approval"`
	Stages         []Stage         `json:"stages"`
	Sections       []Section       `json:"sections"`
	Questions      []Question      `json:"questions"`
	Submissions    []Submission    `json:"submissions"`
}

// RequiredAction is a derived, non-persisted indicator of outstanding work
// blocking a section's completion.
type RequiredAction struct {
	ProjectID    string `json:"project_id"`
	QuestionID   string `json:"question_id"`
	Reason       string `json:"reason"`
	StageContext string `json:"stage_context"`
}

// EvaluationResult is the derived state of a project. Id lists follow the
// configuration order of the context they were derived from, so evaluating
// the same context twice yields identical output.
type EvaluationResult struct {
	IsEligible        bool             `json:"is_eligible"`
	ActiveStages      []string         `json:"active_stages"`
	CompletedSections []string         `json:"completed_sections"`
	VisibleSections   []string         `json:"visible_sections"`
	VisibleQuestions  []string         `json:"visible_questions"`
	RequiredActions   []RequiredAction `json:"required_actions"`
}
