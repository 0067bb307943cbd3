package engine

import (
	"encoding/json"
	"testing"

	"solarflow/lib/models"

	"github.com/stretchr/testify/assert"
)

func approvedContext() *models.EvaluationContext {
	return &models.EvaluationContext{
		Project:        &models.Project{ID: "proj_1", OrganizationID: "org_1", Status: "in_progress", SystemSize: 8.5},
		Customer:       &models.Customer{ID: "cust_1", OrganizationID: "org_1", Name: "John Doe", Address: "123 Solar Lane"},
		CreditApproval: &models.CreditApproval{ID: "ca_1", Status: models.CreditApprovalStatusApproved},
	}
}

// singleStageContext builds stage S1 containing section sec1 with required
// question q1, no conditional rules anywhere.
func singleStageContext() *models.EvaluationContext {
	ctx := approvedContext()
	ctx.Stages = []models.Stage{
		{ID: "S1", Name: "Site Survey", SectionIDs: []string{"sec1"}, StageType: models.StageTypeTerminal, Status: models.StatusActive},
	}
	ctx.Sections = []models.Section{
		{ID: "sec1", Name: "Basics", RequiredQuestionIDs: []string{"q1"}, OptionalQuestionIDs: []string{}, Status: models.StatusActive},
	}
	ctx.Questions = []models.Question{
		{ID: "q1", Label: "Roof type", QuestionType: models.QuestionTypeText, DataType: "string"},
	}
	return ctx
}

func Test_Evaluate_EligibilityGate(t *testing.T) {
	//Arrange
	ctx := singleStageContext()
	ctx.CreditApproval.Status = models.CreditApprovalStatusUnapproved
	ctx.Submissions = []models.Submission{{QuestionID: "q1", State: models.SubmissionStateSubmitted, Value: "x"}}

	//Act
	result, err := Evaluate(ctx)

	//Assert
	assert.NoError(t, err)
	assert.False(t, result.IsEligible)
	assert.Empty(t, result.ActiveStages)
	assert.Empty(t, result.CompletedSections)
	assert.Empty(t, result.VisibleSections)
	assert.Empty(t, result.VisibleQuestions)
	assert.Empty(t, result.RequiredActions)
}

func Test_Evaluate_MissingContextFields(t *testing.T) {
	_, err := Evaluate(nil)
	assert.Error(t, err)

	ctx := singleStageContext()
	ctx.CreditApproval = nil
	_, err = Evaluate(ctx)
	assert.Error(t, err)

	ctx = singleStageContext()
	ctx.Customer = nil
	_, err = Evaluate(ctx)
	assert.Error(t, err)

	ctx = singleStageContext()
	ctx.Project = nil
	_, err = Evaluate(ctx)
	assert.Error(t, err)
}

func Test_Evaluate_NoSubmissions(t *testing.T) {
	//Arrange
	ctx := singleStageContext()

	//Act
	result, err := Evaluate(ctx)

	//Assert
	assert.NoError(t, err)
	assert.True(t, result.IsEligible)
	assert.Equal(t, []string{"S1"}, result.ActiveStages)
	assert.Empty(t, result.CompletedSections)
	assert.Equal(t, []string{"q1"}, result.VisibleQuestions)
	assert.Equal(t, []string{"sec1"}, result.VisibleSections)
	assert.Equal(t, []models.RequiredAction{
		{ProjectID: "proj_1", QuestionID: "q1", Reason: models.ReasonMissing, StageContext: "S1"},
	}, result.RequiredActions)
}

func Test_Evaluate_SubmittedAnswerCompletesSection(t *testing.T) {
	//Arrange
	ctx := singleStageContext()
	ctx.Submissions = []models.Submission{{QuestionID: "q1", State: models.SubmissionStateSubmitted, Value: "x"}}

	//Act
	result, err := Evaluate(ctx)

	//Assert
	assert.NoError(t, err)
	assert.Equal(t, []string{"sec1"}, result.CompletedSections)
	assert.Empty(t, result.RequiredActions)
}

func Test_Evaluate_ApprovalGating(t *testing.T) {
	//Arrange
	ctx := singleStageContext()
	ctx.Questions[0].RequiresApproval = true
	ctx.Submissions = []models.Submission{{QuestionID: "q1", State: models.SubmissionStateSubmitted, Value: "x"}}

	//Act
	result, err := Evaluate(ctx)

	//Assert: submitted-but-unapproved keeps the section open
	assert.NoError(t, err)
	assert.Empty(t, result.CompletedSections)
	assert.Equal(t, []models.RequiredAction{
		{ProjectID: "proj_1", QuestionID: "q1", Reason: models.ReasonAwaitingApproval, StageContext: "S1"},
	}, result.RequiredActions)

	//Act: approval flips the section to complete
	ctx.Submissions[0].State = models.SubmissionStateApproved
	result, err = Evaluate(ctx)

	//Assert
	assert.NoError(t, err)
	assert.Equal(t, []string{"sec1"}, result.CompletedSections)
	assert.Empty(t, result.RequiredActions)
}

func Test_Evaluate_RejectedAnswer(t *testing.T) {
	//Arrange
	ctx := singleStageContext()
	ctx.Submissions = []models.Submission{{QuestionID: "q1", State: models.SubmissionStateRejected, Value: "x"}}

	//Act
	result, err := Evaluate(ctx)

	//Assert
	assert.NoError(t, err)
	assert.Empty(t, result.CompletedSections)
	assert.Equal(t, []models.RequiredAction{
		{ProjectID: "proj_1", QuestionID: "q1", Reason: models.ReasonRejected, StageContext: "S1"},
	}, result.RequiredActions)
}

func Test_Evaluate_VacuousCompletion(t *testing.T) {
	//Arrange: a section with no required questions is complete when visible
	ctx := approvedContext()
	ctx.Sections = []models.Section{
		{ID: "sec_empty", Name: "Empty", RequiredQuestionIDs: []string{}, OptionalQuestionIDs: []string{}, Status: models.StatusActive},
	}

	//Act
	result, err := Evaluate(ctx)

	//Assert
	assert.NoError(t, err)
	assert.Equal(t, []string{"sec_empty"}, result.VisibleSections)
	assert.Equal(t, []string{"sec_empty"}, result.CompletedSections)
}

func Test_Evaluate_HiddenButCompleteIsNotCompleted(t *testing.T) {
	//Arrange: sec2 has all its data but its prerequisite sec1 does not
	ctx := approvedContext()
	ctx.Sections = []models.Section{
		{ID: "sec1", Name: "First", RequiredQuestionIDs: []string{"q1"}, OptionalQuestionIDs: []string{}, Status: models.StatusActive},
		{ID: "sec2", Name: "Second", RequiredQuestionIDs: []string{"q2"}, OptionalQuestionIDs: []string{}, DependsOnSectionIDs: []string{"sec1"}, Status: models.StatusActive},
	}
	ctx.Questions = []models.Question{
		{ID: "q1", Label: "One", QuestionType: models.QuestionTypeText},
		{ID: "q2", Label: "Two", QuestionType: models.QuestionTypeText},
	}
	ctx.Submissions = []models.Submission{{QuestionID: "q2", State: models.SubmissionStateSubmitted, Value: "done"}}

	//Act
	result, err := Evaluate(ctx)

	//Assert
	assert.NoError(t, err)
	assert.Equal(t, []string{"sec1"}, result.VisibleSections)
	assert.Empty(t, result.CompletedSections)
	assert.NotContains(t, result.VisibleSections, "sec2")
}

func Test_Evaluate_SectionVisibilityUnlocksDownstream(t *testing.T) {
	//Arrange
	ctx := approvedContext()
	ctx.Sections = []models.Section{
		{ID: "sec1", Name: "First", RequiredQuestionIDs: []string{"q1"}, OptionalQuestionIDs: []string{}, Status: models.StatusActive},
		{ID: "sec2", Name: "Second", RequiredQuestionIDs: []string{"q2"}, OptionalQuestionIDs: []string{}, DependsOnSectionIDs: []string{"sec1"}, Status: models.StatusActive},
	}
	ctx.Questions = []models.Question{
		{ID: "q1", Label: "One", QuestionType: models.QuestionTypeText},
		{ID: "q2", Label: "Two", QuestionType: models.QuestionTypeText},
	}
	ctx.Submissions = []models.Submission{{QuestionID: "q1", State: models.SubmissionStateSubmitted, Value: "ok"}}

	//Act
	result, err := Evaluate(ctx)

	//Assert: sec1 complete, sec2 now visible and awaiting q2
	assert.NoError(t, err)
	assert.Equal(t, []string{"sec1", "sec2"}, result.VisibleSections)
	assert.Equal(t, []string{"sec1"}, result.CompletedSections)
	assert.Len(t, result.RequiredActions, 1)
	assert.Equal(t, "q2", result.RequiredActions[0].QuestionID)
	assert.Equal(t, models.ReasonMissing, result.RequiredActions[0].Reason)
}

func Test_Evaluate_StageGatingIsStageOnly(t *testing.T) {
	//Arrange: S2 requires S1; S2 has no sections of its own
	ctx := approvedContext()
	ctx.Stages = []models.Stage{
		{ID: "S1", Name: "Survey", SectionIDs: []string{"sec1"}, Status: models.StatusActive},
		{ID: "S2", Name: "Design", SectionIDs: []string{}, Status: models.StatusActive,
			ActivationRules: &models.ActivationRules{RequiredStageIDs: []string{"S1"}}},
	}
	ctx.Sections = []models.Section{
		{ID: "sec1", Name: "Basics", RequiredQuestionIDs: []string{"q1"}, OptionalQuestionIDs: []string{}, Status: models.StatusActive},
	}
	ctx.Questions = []models.Question{{ID: "q1", Label: "One", QuestionType: models.QuestionTypeText}}

	//Act: q1 unanswered, S1 incomplete
	result, err := Evaluate(ctx)

	//Assert
	assert.NoError(t, err)
	assert.Equal(t, []string{"S1"}, result.ActiveStages)

	//Act: answering q1 completes sec1, hence S1, activating S2
	ctx.Submissions = []models.Submission{{QuestionID: "q1", State: models.SubmissionStateSubmitted, Value: "x"}}
	result, err = Evaluate(ctx)

	//Assert
	assert.NoError(t, err)
	assert.Equal(t, []string{"S1", "S2"}, result.ActiveStages)
}

func Test_Evaluate_StageWithoutSectionsNeverCompletes(t *testing.T) {
	//Arrange: S2 gates on the empty container S1
	ctx := approvedContext()
	ctx.Stages = []models.Stage{
		{ID: "S1", Name: "Container", SectionIDs: []string{}, Status: models.StatusActive},
		{ID: "S2", Name: "Blocked", SectionIDs: []string{}, Status: models.StatusActive,
			ActivationRules: &models.ActivationRules{RequiredStageIDs: []string{"S1"}}},
	}

	//Act
	result, err := Evaluate(ctx)

	//Assert: S1 activates (no rules) but never completes, so S2 stays inactive
	assert.NoError(t, err)
	assert.Equal(t, []string{"S1"}, result.ActiveStages)
}

func Test_Evaluate_ConditionalQuestionVisibility(t *testing.T) {
	//Arrange: q2 only appears for systems above 10 kW
	ctx := singleStageContext()
	ctx.Sections[0].RequiredQuestionIDs = []string{"q1", "q2"}
	ctx.Questions = append(ctx.Questions, models.Question{
		ID: "q2", Label: "Utility interconnect", QuestionType: models.QuestionTypeText,
		ConditionalRule: &models.ConditionalRule{Field: "project.system_size", Operator: models.OperatorGreaterThan, Value: 10},
	})
	ctx.Submissions = []models.Submission{{QuestionID: "q1", State: models.SubmissionStateSubmitted, Value: "x"}}

	//Act: system_size is 8.5, q2 hidden and not required
	result, err := Evaluate(ctx)

	//Assert
	assert.NoError(t, err)
	assert.Equal(t, []string{"q1"}, result.VisibleQuestions)
	assert.Equal(t, []string{"sec1"}, result.CompletedSections)

	//Act: a bigger system reveals q2 and reopens the section
	ctx.Project.SystemSize = 12
	result, err = Evaluate(ctx)

	//Assert
	assert.NoError(t, err)
	assert.Equal(t, []string{"q1", "q2"}, result.VisibleQuestions)
	assert.Empty(t, result.CompletedSections)
	assert.Len(t, result.RequiredActions, 1)
	assert.Equal(t, "q2", result.RequiredActions[0].QuestionID)
}

func Test_Evaluate_DraftSectionsExcluded(t *testing.T) {
	//Arrange: a draft section neither shows up nor gates its stage
	ctx := singleStageContext()
	ctx.Sections = append(ctx.Sections, models.Section{
		ID: "sec_draft", Name: "Draft", RequiredQuestionIDs: []string{"q1"}, OptionalQuestionIDs: []string{}, Status: models.StatusDraft,
	})
	ctx.Submissions = []models.Submission{{QuestionID: "q1", State: models.SubmissionStateSubmitted, Value: "x"}}

	//Act
	result, err := Evaluate(ctx)

	//Assert
	assert.NoError(t, err)
	assert.Equal(t, []string{"sec1"}, result.VisibleSections)
	assert.Equal(t, []string{"sec1"}, result.CompletedSections)
	assert.NotContains(t, result.VisibleSections, "sec_draft")
}

func Test_Evaluate_SectionConditionalRuleOnMappedQuestion(t *testing.T) {
	//Arrange: sec2 appears only when the battery question (mapped to
	// project.status) equals "battery_ready"
	ctx := singleStageContext()
	mapped := "project.status"
	ctx.Questions = append(ctx.Questions, models.Question{
		ID: "q_battery", Label: "Battery", QuestionType: models.QuestionTypeText, MappedField: &mapped,
	})
	ctx.Sections = append(ctx.Sections, models.Section{
		ID: "sec2", Name: "Battery install", RequiredQuestionIDs: []string{}, OptionalQuestionIDs: []string{},
		ConditionalRule: &models.SectionConditionalRule{QuestionID: "q_battery", Operator: models.OperatorEquals, Value: "battery_ready"},
		Status:          models.StatusActive,
	})

	//Act
	result, err := Evaluate(ctx)

	//Assert: project.status is "in_progress", rule fails
	assert.NoError(t, err)
	assert.NotContains(t, result.VisibleSections, "sec2")

	//Act
	ctx.Project.Status = "battery_ready"
	result, err = Evaluate(ctx)

	//Assert
	assert.NoError(t, err)
	assert.Contains(t, result.VisibleSections, "sec2")
}

func Test_Evaluate_SectionConditionalRuleOnUnmappedQuestion(t *testing.T) {
	//Arrange: the anchor question has no canonical mapping, so the rule
	// resolves to the unresolved sentinel and equals never passes
	ctx := singleStageContext()
	ctx.Sections = append(ctx.Sections, models.Section{
		ID: "sec2", Name: "Conditional", RequiredQuestionIDs: []string{}, OptionalQuestionIDs: []string{},
		ConditionalRule: &models.SectionConditionalRule{QuestionID: "q1", Operator: models.OperatorEquals, Value: "yes"},
		Status:          models.StatusActive,
	})
	ctx.Submissions = []models.Submission{{QuestionID: "q1", State: models.SubmissionStateSubmitted, Value: "yes"}}

	//Act
	result, err := Evaluate(ctx)

	//Assert: submission-backed lookups stay unresolved by design
	assert.NoError(t, err)
	assert.NotContains(t, result.VisibleSections, "sec2")
}

func Test_Evaluate_StageContextFallback(t *testing.T) {
	//Arrange: no stage owns sec1
	ctx := singleStageContext()
	ctx.Stages = nil

	//Act
	result, err := Evaluate(ctx)

	//Assert
	assert.NoError(t, err)
	assert.Len(t, result.RequiredActions, 1)
	assert.Equal(t, models.StageContextDerived, result.RequiredActions[0].StageContext)
}

func Test_Evaluate_Idempotence(t *testing.T) {
	//Arrange
	ctx := singleStageContext()
	ctx.Submissions = []models.Submission{{QuestionID: "q1", State: models.SubmissionStateSubmitted, Value: "x"}}

	//Act
	first, err1 := Evaluate(ctx)
	second, err2 := Evaluate(ctx)

	//Assert: byte-identical serialization
	assert.NoError(t, err1)
	assert.NoError(t, err2)
	firstJSON, _ := json.Marshal(first)
	secondJSON, _ := json.Marshal(second)
	assert.Equal(t, string(firstJSON), string(secondJSON))
}

func Test_Evaluate_ContextRoundTripsAsJSON(t *testing.T) {
	//Arrange: the debugger serializes a context and evaluates the decoded copy
	ctx := singleStageContext()
	ctx.Submissions = []models.Submission{{QuestionID: "q1", State: models.SubmissionStateSubmitted, Value: "x"}}
	encoded, err := json.Marshal(ctx)
	assert.NoError(t, err)

	var decoded models.EvaluationContext
	assert.NoError(t, json.Unmarshal(encoded, &decoded))

	//Act
	original, err1 := Evaluate(ctx)
	roundTripped, err2 := Evaluate(&decoded)

	//Assert
	assert.NoError(t, err1)
	assert.NoError(t, err2)
	assert.Equal(t, original, roundTripped)
}
