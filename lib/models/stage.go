package models

// Stage types
const (
	StageTypeTerminal  = "terminal"
	StageTypeReentrant = "reentrant"
)

// ActivationRules declares which other stages must be complete before a stage
// activates. Stages depend only on stages; section gating is handled by the
// sections' own dependency chain.
type ActivationRules struct {
	RequiredStageIDs []string `json:"required_stage_ids,omitempty"`
}

// IsEmpty reports whether the rules place no constraint on activation
func (r *ActivationRules) IsEmpty() bool {
	return r == nil || len(r.RequiredStageIDs) == 0
}

// Stage represents a top-level phase of the project workflow
type Stage struct {
	ID                   string           `json:"id"`
	Name                 string           `json:"name"`
	Description          string           `json:"description,omitempty"`
	ActivationRules      *ActivationRules `json:"activation_rules,omitempty"`
	SectionIDs           []string         `json:"section_ids"`
	StageType            string           `json:"stage_type"`
	Status               string           `json:"status"`
	Order                int              `json:"order"`
	IsVisibleToInstaller bool             `json:"isVisibleToInstaller"`
}

// StageListResponse wraps a list of stages
type StageListResponse struct {
	Stages []Stage `json:"stages"`
	Total  int     `json:"total"`
}
