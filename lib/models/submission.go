package models

import (
	"fmt"
	"time"
)

// Submission states
const (
	SubmissionStateEmpty     = "empty"
	SubmissionStateSubmitted = "submitted"
	SubmissionStateApproved  = "approved"
	SubmissionStateRejected  = "rejected"
)

// Review decisions
const (
	DecisionApproved = "approved"
	DecisionRejected = "rejected"
)

// FileReference points at an uploaded file backing a file-upload answer
type FileReference struct {
	StoragePath string `json:"storage_path"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	DownloadURL string `json:"download_url,omitempty"`
}

// Submission is the record of one installer answer to one question within one
// project. At most one submission exists per (project, question) pair;
// re-submission overwrites in place.
type Submission struct {
	ID         string         `json:"id"`
	ProjectID  string         `json:"project_id"`
	QuestionID string         `json:"question_id"`
	Value      interface{}    `json:"value,omitempty"`
	File       *FileReference `json:"file,omitempty"`
	State      string         `json:"state"`

	SubmittedBy    string     `json:"submitted_by_installer_id,omitempty"`
	SubmittedAt    *time.Time `json:"submitted_at,omitempty"`
	ReviewedBy     string     `json:"reviewed_by_admin_id,omitempty"`
	ReviewedAt     *time.Time `json:"reviewed_at,omitempty"`
	ReviewFeedback string     `json:"review_feedback,omitempty"`
}

// HasAnswer reports whether the submission carries a value or file reference.
// The engine treats scalar values and file references identically.
func (s *Submission) HasAnswer() bool {
	return s.Value != nil || s.File != nil
}

// Submit records a new answer, overwriting any previous one. A rejected
// submission transitions back to submitted and the prior review is cleared.
func (s *Submission) Submit(installerID string, value interface{}, file *FileReference, now time.Time) {
	s.Value = value
	s.File = file
	s.State = SubmissionStateSubmitted
	s.SubmittedBy = installerID
	s.SubmittedAt = &now
	s.ReviewedBy = ""
	s.ReviewedAt = nil
	s.ReviewFeedback = ""
}

// Review applies an admin decision to a submitted answer
func (s *Submission) Review(adminID, decision, feedback string, now time.Time) error {
	if s.State != SubmissionStateSubmitted {
		return fmt.Errorf("submission %s is %s, only submitted answers can be reviewed", s.ID, s.State)
	}
	switch decision {
	case DecisionApproved:
		s.State = SubmissionStateApproved
	case DecisionRejected:
		s.State = SubmissionStateRejected
	default:
		return fmt.Errorf("unknown review decision %q", decision)
	}
	s.ReviewedBy = adminID
	s.ReviewedAt = &now
	s.ReviewFeedback = feedback
	return nil
}

// SubmitAnswerRequest is the installer-facing payload for writing an answer
type SubmitAnswerRequest struct {
	QuestionID string         `json:"question_id"`
	Value      interface{}    `json:"value,omitempty"`
	File       *FileReference `json:"file,omitempty"`
}

// ReviewSubmissionRequest is the admin-facing payload for a review decision
type ReviewSubmissionRequest struct {
	Decision string `json:"decision"`
	Feedback string `json:"feedback,omitempty"`
}

// SubmissionListResponse wraps a list of submissions
type SubmissionListResponse struct {
	Submissions []Submission `json:"submissions"`
	Total       int          `json:"total"`
}
