package data

import (
	"context"
	"fmt"

	"solarflow/lib/models"
)

// SnapshotLoader assembles the full evaluation input for one project from
// the configuration and submission stores. The engine itself never touches
// a store; it only sees the snapshot produced here.
type SnapshotLoader struct {
	Config      ConfigRepository
	Projects    ProjectRepository
	Submissions SubmissionRepository
}

// GetEvaluationContext loads one project's snapshot: the project, its
// customer and credit approval, the global configuration, and all
// submissions for the project.
func (loader *SnapshotLoader) GetEvaluationContext(ctx context.Context, projectID, orgID string) (*models.EvaluationContext, error) {
	project, err := loader.Projects.GetProjectByID(ctx, projectID, orgID)
	if err != nil {
		return nil, err
	}
	customer, err := loader.Projects.GetCustomerByID(ctx, project.CustomerID)
	if err != nil {
		return nil, err
	}
	approval, err := loader.Projects.GetCreditApprovalByID(ctx, project.CreditApprovalID)
	if err != nil {
		return nil, err
	}
	stages, err := loader.Config.GetStages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stages: %w", err)
	}
	sections, err := loader.Config.GetSections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load sections: %w", err)
	}
	questions, err := loader.Config.GetQuestions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}
	submissions, err := loader.Submissions.GetSubmissionsByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	return &models.EvaluationContext{
		Project:        project,
		Customer:       customer,
		CreditApproval: approval,
		Stages:         stages,
		Sections:       sections,
		Questions:      questions,
		Submissions:    submissions,
	}, nil
}
