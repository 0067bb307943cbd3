// Package engine derives a project's workflow state from its configuration
// and accumulated submissions. Evaluation is a pure function over an
// in-memory snapshot: it performs no I/O, holds no state between calls, and
// is safe to invoke concurrently. The pipeline is a fixed sequence of passes
// over finite collections, so malformed cyclic configuration cannot make it
// loop; cycle prevention itself belongs to the validation package at
// configuration-write time.
package engine

import (
	"fmt"
	"sort"

	"solarflow/lib/models"
)

// Evaluate derives active stages, visible/completed sections, visible
// questions and outstanding required actions for one project snapshot.
// A non-approved credit approval short-circuits to an ineligible result;
// missing context entities are input errors.
func Evaluate(ctx *models.EvaluationContext) (*models.EvaluationResult, error) {
	if ctx == nil {
		return nil, fmt.Errorf("evaluation context is required")
	}
	if ctx.Project == nil {
		return nil, fmt.Errorf("evaluation context is missing project")
	}
	if ctx.Customer == nil {
		return nil, fmt.Errorf("evaluation context is missing customer")
	}
	if ctx.CreditApproval == nil {
		return nil, fmt.Errorf("evaluation context is missing credit approval")
	}

	// Eligibility gate: nothing is derived for an unapproved credit approval.
	if ctx.CreditApproval.Status != models.CreditApprovalStatusApproved {
		return emptyResult(false), nil
	}

	ev := newEvaluation(ctx)

	visibleQuestions := ev.evaluateQuestionVisibility()
	dataComplete := ev.evaluateSectionDataCompletion(visibleQuestions)
	visibleSections := ev.evaluateSectionVisibility(dataComplete)
	completedSections := ev.evaluateSectionCompletion(visibleSections, dataComplete)
	completedStages := ev.evaluateStageCompletion(completedSections)
	activeStages := ev.evaluateStageActivation(completedStages)
	requiredActions := ev.deriveRequiredActions(visibleQuestions, visibleSections, completedSections)

	result := emptyResult(true)
	result.VisibleQuestions = ev.questionOrder(visibleQuestions)
	result.VisibleSections = ev.sectionOrder(visibleSections)
	result.CompletedSections = ev.sectionOrder(completedSections)
	result.ActiveStages = ev.stageOrder(activeStages)
	result.RequiredActions = requiredActions
	return result, nil
}

func emptyResult(eligible bool) *models.EvaluationResult {
	return &models.EvaluationResult{
		IsEligible:        eligible,
		ActiveStages:      []string{},
		CompletedSections: []string{},
		VisibleSections:   []string{},
		VisibleQuestions:  []string{},
		RequiredActions:   []models.RequiredAction{},
	}
}

// evaluation carries the indexed snapshot through the pipeline steps. Each
// step takes prior steps' output as read-only input; nothing mutates the
// context.
type evaluation struct {
	ctx *models.EvaluationContext

	questionsByID   map[string]*models.Question
	submissionsByQ  map[string]*models.Submission
	activeSections  []*models.Section
	stageBySection  map[string]string
}

func newEvaluation(ctx *models.EvaluationContext) *evaluation {
	ev := &evaluation{
		ctx:            ctx,
		questionsByID:  make(map[string]*models.Question, len(ctx.Questions)),
		submissionsByQ: make(map[string]*models.Submission, len(ctx.Submissions)),
		stageBySection: make(map[string]string),
	}
	for i := range ctx.Questions {
		q := &ctx.Questions[i]
		ev.questionsByID[q.ID] = q
	}
	for i := range ctx.Submissions {
		s := &ctx.Submissions[i]
		if _, exists := ev.submissionsByQ[s.QuestionID]; !exists {
			ev.submissionsByQ[s.QuestionID] = s
		}
	}
	// Draft sections never participate in derivation.
	for i := range ctx.Sections {
		if ctx.Sections[i].Status != models.StatusDraft {
			ev.activeSections = append(ev.activeSections, &ctx.Sections[i])
		}
	}
	// Owning stage per section, lowest display order wins.
	ordered := make([]*models.Stage, 0, len(ctx.Stages))
	for i := range ctx.Stages {
		ordered = append(ordered, &ctx.Stages[i])
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })
	for _, stage := range ordered {
		for _, sectionID := range stage.SectionIDs {
			if _, claimed := ev.stageBySection[sectionID]; !claimed {
				ev.stageBySection[sectionID] = stage.ID
			}
		}
	}
	return ev
}

// evaluateQuestionVisibility applies conditional rules against canonical
// field values. Question visibility never depends on section or stage state.
func (ev *evaluation) evaluateQuestionVisibility() map[string]bool {
	visible := make(map[string]bool, len(ev.ctx.Questions))
	for i := range ev.ctx.Questions {
		q := &ev.ctx.Questions[i]
		if checkRule(q.ConditionalRule, ev.ctx.Project, ev.ctx.Customer) {
			visible[q.ID] = true
		}
	}
	return visible
}

// evaluateSectionDataCompletion computes data-completion for every non-draft
// section, independent of visibility, because later sections' visibility
// gates on earlier sections' completion. A section with no required visible
// questions is vacuously data-complete.
func (ev *evaluation) evaluateSectionDataCompletion(visibleQuestions map[string]bool) map[string]bool {
	complete := make(map[string]bool, len(ev.activeSections))
	for _, section := range ev.activeSections {
		if ev.isSectionDataComplete(section, visibleQuestions) {
			complete[section.ID] = true
		}
	}
	return complete
}

func (ev *evaluation) isSectionDataComplete(section *models.Section, visibleQuestions map[string]bool) bool {
	for _, questionID := range section.RequiredQuestionIDs {
		if !visibleQuestions[questionID] {
			continue
		}
		submission := ev.submissionsByQ[questionID]
		if submission == nil {
			return false
		}
		if submission.State == models.SubmissionStateEmpty || submission.State == models.SubmissionStateRejected {
			return false
		}
		if question := ev.questionsByID[questionID]; question != nil && question.RequiresApproval {
			if submission.State != models.SubmissionStateApproved {
				return false
			}
		}
	}
	return true
}

// evaluateSectionVisibility gates each section on the data-completion of its
// prerequisites and, where present, its conditional question rule.
func (ev *evaluation) evaluateSectionVisibility(dataComplete map[string]bool) map[string]bool {
	visible := make(map[string]bool, len(ev.activeSections))
	for _, section := range ev.activeSections {
		if !ev.sectionRulePasses(section) {
			continue
		}
		prerequisitesMet := true
		for _, depID := range section.DependsOnSectionIDs {
			if !dataComplete[depID] {
				prerequisitesMet = false
				break
			}
		}
		if prerequisitesMet {
			visible[section.ID] = true
		}
	}
	return visible
}

// sectionRulePasses evaluates a section's conditional question rule. The
// anchor question's answer resolves through its mapped canonical field;
// questions without a project/customer mapping resolve to the unresolved
// sentinel, same as submission-backed lookups in question rules.
func (ev *evaluation) sectionRulePasses(section *models.Section) bool {
	rule := section.ConditionalRule
	if rule == nil {
		return true
	}
	field := "submission." + rule.QuestionID
	if question := ev.questionsByID[rule.QuestionID]; question != nil && question.MappedField != nil && *question.MappedField != "" {
		field = *question.MappedField
	}
	return checkRule(&models.ConditionalRule{
		Field:    field,
		Operator: rule.Operator,
		Value:    rule.Value,
	}, ev.ctx.Project, ev.ctx.Customer)
}

// evaluateSectionCompletion intersects visibility with data-completion.
// A data-complete section hidden behind an incomplete prerequisite is not
// completed; hidden work cannot silently satisfy downstream gates.
func (ev *evaluation) evaluateSectionCompletion(visibleSections, dataComplete map[string]bool) map[string]bool {
	completed := make(map[string]bool, len(visibleSections))
	for sectionID := range visibleSections {
		if dataComplete[sectionID] {
			completed[sectionID] = true
		}
	}
	return completed
}

// evaluateStageCompletion marks a stage complete when it has at least one
// assigned section and all of them are completed. A stage with no sections
// is a container and never completes through this rule.
func (ev *evaluation) evaluateStageCompletion(completedSections map[string]bool) map[string]bool {
	completed := make(map[string]bool, len(ev.ctx.Stages))
	for i := range ev.ctx.Stages {
		stage := &ev.ctx.Stages[i]
		if len(stage.SectionIDs) == 0 {
			continue
		}
		allComplete := true
		for _, sectionID := range stage.SectionIDs {
			if !completedSections[sectionID] {
				allComplete = false
				break
			}
		}
		if allComplete {
			completed[stage.ID] = true
		}
	}
	return completed
}

// evaluateStageActivation activates a stage when it has no activation rules
// or every required stage is complete. Stages gate only on stages; section
// prerequisites reach here transitively through the owning stage.
func (ev *evaluation) evaluateStageActivation(completedStages map[string]bool) map[string]bool {
	active := make(map[string]bool, len(ev.ctx.Stages))
	for i := range ev.ctx.Stages {
		stage := &ev.ctx.Stages[i]
		if stage.ActivationRules.IsEmpty() {
			active[stage.ID] = true
			continue
		}
		rulesMet := true
		for _, requiredID := range stage.ActivationRules.RequiredStageIDs {
			if !completedStages[requiredID] {
				rulesMet = false
				break
			}
		}
		if rulesMet {
			active[stage.ID] = true
		}
	}
	return active
}

// deriveRequiredActions lists, for every visible incomplete section, the
// required visible questions still blocking it. Approved answers and
// completed sections produce no actions.
func (ev *evaluation) deriveRequiredActions(visibleQuestions, visibleSections, completedSections map[string]bool) []models.RequiredAction {
	actions := []models.RequiredAction{}
	for _, section := range ev.activeSections {
		if !visibleSections[section.ID] || completedSections[section.ID] {
			continue
		}
		stageContext := ev.stageBySection[section.ID]
		if stageContext == "" {
			stageContext = models.StageContextDerived
		}
		for _, questionID := range section.RequiredQuestionIDs {
			if !visibleQuestions[questionID] {
				continue
			}
			reason := ""
			submission := ev.submissionsByQ[questionID]
			switch {
			case submission == nil || submission.State == models.SubmissionStateEmpty:
				reason = models.ReasonMissing
			case submission.State == models.SubmissionStateRejected:
				reason = models.ReasonRejected
			case submission.State == models.SubmissionStateSubmitted:
				reason = models.ReasonAwaitingApproval
			default:
				continue
			}
			actions = append(actions, models.RequiredAction{
				ProjectID:    ev.ctx.Project.ID,
				QuestionID:   questionID,
				Reason:       reason,
				StageContext: stageContext,
			})
		}
	}
	return actions
}

// questionOrder returns visible question ids in configuration order.
func (ev *evaluation) questionOrder(visible map[string]bool) []string {
	ids := []string{}
	for i := range ev.ctx.Questions {
		if visible[ev.ctx.Questions[i].ID] {
			ids = append(ids, ev.ctx.Questions[i].ID)
		}
	}
	return ids
}

func (ev *evaluation) sectionOrder(members map[string]bool) []string {
	ids := []string{}
	for _, section := range ev.activeSections {
		if members[section.ID] {
			ids = append(ids, section.ID)
		}
	}
	return ids
}

func (ev *evaluation) stageOrder(members map[string]bool) []string {
	ids := []string{}
	for i := range ev.ctx.Stages {
		if members[ev.ctx.Stages[i].ID] {
			ids = append(ids, ev.ctx.Stages[i].ID)
		}
	}
	return ids
}
