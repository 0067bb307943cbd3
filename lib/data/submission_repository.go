package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"solarflow/lib/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SubmissionRepository defines the interface for submission persistence.
// One row exists per (project, question) pair; writes overwrite in place.
type SubmissionRepository interface {
	GetSubmissionsByProject(ctx context.Context, projectID string) ([]models.Submission, error)
	GetPendingSubmissions(ctx context.Context, projectID string) ([]models.Submission, error)
	SubmitAnswer(ctx context.Context, projectID, installerID string, req *models.SubmitAnswerRequest) (*models.Submission, error)
	ReviewSubmission(ctx context.Context, projectID, questionID, adminID string, req *models.ReviewSubmissionRequest) (*models.Submission, error)
}

// SubmissionDao implements SubmissionRepository using PostgreSQL
type SubmissionDao struct {
	DB     *sql.DB
	Logger *logrus.Logger
}

// NewSubmissionRepository creates a new SubmissionRepository instance
func NewSubmissionRepository(db *sql.DB, logger *logrus.Logger) SubmissionRepository {
	return &SubmissionDao{
		DB:     db,
		Logger: logger,
	}
}

const submissionColumns = `
	id, project_id, question_id, value, file_reference, state,
	submitted_by, submitted_at, reviewed_by, reviewed_at, review_feedback`

// GetSubmissionsByProject returns every submission recorded for a project
func (dao *SubmissionDao) GetSubmissionsByProject(ctx context.Context, projectID string) ([]models.Submission, error) {
	query := `SELECT` + submissionColumns + `
		FROM workflow.submissions
		WHERE project_id = $1
		ORDER BY question_id`

	rows, err := dao.DB.QueryContext(ctx, query, projectID)
	if err != nil {
		dao.Logger.WithError(err).Error("Failed to query submissions")
		return nil, fmt.Errorf("failed to get submissions for project %s: %w", projectID, err)
	}
	defer rows.Close()

	return scanSubmissions(rows)
}

// GetPendingSubmissions returns submissions awaiting an admin decision,
// feeding the review dashboard.
func (dao *SubmissionDao) GetPendingSubmissions(ctx context.Context, projectID string) ([]models.Submission, error) {
	query := `SELECT` + submissionColumns + `
		FROM workflow.submissions
		WHERE project_id = $1 AND state = $2
		ORDER BY submitted_at`

	rows, err := dao.DB.QueryContext(ctx, query, projectID, models.SubmissionStateSubmitted)
	if err != nil {
		dao.Logger.WithError(err).Error("Failed to query pending submissions")
		return nil, fmt.Errorf("failed to get pending submissions for project %s: %w", projectID, err)
	}
	defer rows.Close()

	return scanSubmissions(rows)
}

// SubmitAnswer writes an installer's answer, overwriting any existing row
// for the same question. A previously rejected answer returns to the
// submitted state and the old review is cleared.
func (dao *SubmissionDao) SubmitAnswer(ctx context.Context, projectID, installerID string, req *models.SubmitAnswerRequest) (*models.Submission, error) {
	valueJSON, err := json.Marshal(req.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode answer value: %w", err)
	}
	var fileJSON []byte
	if req.File != nil {
		if fileJSON, err = json.Marshal(req.File); err != nil {
			return nil, fmt.Errorf("failed to encode file reference: %w", err)
		}
	}

	now := time.Now().UTC()
	submission := &models.Submission{
		ID:         "sub_" + uuid.NewString(),
		ProjectID:  projectID,
		QuestionID: req.QuestionID,
	}
	submission.Submit(installerID, req.Value, req.File, now)

	query := `
		INSERT INTO workflow.submissions (
			id, project_id, question_id, value, file_reference, state,
			submitted_by, submitted_at, reviewed_by, reviewed_at, review_feedback
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULL, NULL, NULL)
		ON CONFLICT (project_id, question_id) DO UPDATE SET
			value = EXCLUDED.value,
			file_reference = EXCLUDED.file_reference,
			state = EXCLUDED.state,
			submitted_by = EXCLUDED.submitted_by,
			submitted_at = EXCLUDED.submitted_at,
			reviewed_by = NULL,
			reviewed_at = NULL,
			review_feedback = NULL
		RETURNING id`

	err = dao.DB.QueryRowContext(ctx, query,
		submission.ID, projectID, req.QuestionID, string(valueJSON), nullableJSON(fileJSON),
		submission.State, installerID, now).Scan(&submission.ID)
	if err != nil {
		dao.Logger.WithFields(logrus.Fields{
			"project_id":  projectID,
			"question_id": req.QuestionID,
			"error":       err.Error(),
		}).Error("Failed to submit answer")
		return nil, fmt.Errorf("failed to submit answer for question %s: %w", req.QuestionID, err)
	}
	return submission, nil
}

// ReviewSubmission applies an admin decision to a submitted answer
func (dao *SubmissionDao) ReviewSubmission(ctx context.Context, projectID, questionID, adminID string, req *models.ReviewSubmissionRequest) (*models.Submission, error) {
	if req.Decision != models.DecisionApproved && req.Decision != models.DecisionRejected {
		return nil, fmt.Errorf("unknown review decision %q", req.Decision)
	}

	state := models.SubmissionStateApproved
	if req.Decision == models.DecisionRejected {
		state = models.SubmissionStateRejected
	}

	query := `
		UPDATE workflow.submissions
		SET state = $1, reviewed_by = $2, reviewed_at = $3, review_feedback = $4
		WHERE project_id = $5 AND question_id = $6 AND state = $7
		RETURNING` + submissionColumns

	now := time.Now().UTC()
	row := dao.DB.QueryRowContext(ctx, query,
		state, adminID, now, req.Feedback, projectID, questionID, models.SubmissionStateSubmitted)

	submission, err := scanSubmission(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no submitted answer for question %s awaiting review", questionID)
	}
	if err != nil {
		dao.Logger.WithFields(logrus.Fields{
			"project_id":  projectID,
			"question_id": questionID,
			"error":       err.Error(),
		}).Error("Failed to review submission")
		return nil, fmt.Errorf("failed to review submission for question %s: %w", questionID, err)
	}
	return submission, nil
}

func nullableJSON(data []byte) interface{} {
	if len(data) == 0 {
		return nil
	}
	return string(data)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSubmission(row rowScanner) (*models.Submission, error) {
	var submission models.Submission
	var valueJSON []byte
	var fileJSON sql.NullString
	var submittedBy, reviewedBy, feedback sql.NullString
	var submittedAt, reviewedAt sql.NullTime

	err := row.Scan(&submission.ID, &submission.ProjectID, &submission.QuestionID,
		&valueJSON, &fileJSON, &submission.State,
		&submittedBy, &submittedAt, &reviewedBy, &reviewedAt, &feedback)
	if err != nil {
		return nil, err
	}

	if len(valueJSON) > 0 {
		if err := json.Unmarshal(valueJSON, &submission.Value); err != nil {
			return nil, fmt.Errorf("failed to decode value for submission %s: %w", submission.ID, err)
		}
	}
	if fileJSON.Valid && fileJSON.String != "" {
		if err := json.Unmarshal([]byte(fileJSON.String), &submission.File); err != nil {
			return nil, fmt.Errorf("failed to decode file reference for submission %s: %w", submission.ID, err)
		}
	}
	submission.SubmittedBy = submittedBy.String
	submission.ReviewedBy = reviewedBy.String
	submission.ReviewFeedback = feedback.String
	if submittedAt.Valid {
		t := submittedAt.Time
		submission.SubmittedAt = &t
	}
	if reviewedAt.Valid {
		t := reviewedAt.Time
		submission.ReviewedAt = &t
	}
	return &submission, nil
}

func scanSubmissions(rows *sql.Rows) ([]models.Submission, error) {
	var submissions []models.Submission
	for rows.Next() {
		submission, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		submissions = append(submissions, *submission)
	}
	return submissions, rows.Err()
}
