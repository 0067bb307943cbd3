package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_Submission_Submit(t *testing.T) {
	//Arrange
	submission := Submission{ID: "sub_1", ProjectID: "proj_1", QuestionID: "q1", State: SubmissionStateEmpty}
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	//Act
	submission.Submit("inst_1", "metal roof", nil, now)

	//Assert
	assert.Equal(t, SubmissionStateSubmitted, submission.State)
	assert.Equal(t, "metal roof", submission.Value)
	assert.Equal(t, "inst_1", submission.SubmittedBy)
	assert.Equal(t, now, *submission.SubmittedAt)
	assert.True(t, submission.HasAnswer())
}

func Test_Submission_ResubmitClearsReview(t *testing.T) {
	//Arrange: a rejected answer carries review metadata
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)
	submission := Submission{ID: "sub_1", QuestionID: "q1", State: SubmissionStateRejected,
		Value: "old", ReviewedBy: "admin_1", ReviewedAt: &now, ReviewFeedback: "Photo is blurry"}

	//Act
	submission.Submit("inst_1", "new", nil, later)

	//Assert
	assert.Equal(t, SubmissionStateSubmitted, submission.State)
	assert.Equal(t, "new", submission.Value)
	assert.Empty(t, submission.ReviewedBy)
	assert.Nil(t, submission.ReviewedAt)
	assert.Empty(t, submission.ReviewFeedback)
}

func Test_Submission_Review(t *testing.T) {
	//Arrange
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	submission := Submission{ID: "sub_1", QuestionID: "q1", State: SubmissionStateSubmitted, Value: "x"}

	//Act
	err := submission.Review("admin_1", DecisionApproved, "", now)

	//Assert
	assert.NoError(t, err)
	assert.Equal(t, SubmissionStateApproved, submission.State)
	assert.Equal(t, "admin_1", submission.ReviewedBy)
	assert.Equal(t, now, *submission.ReviewedAt)
}

func Test_Submission_ReviewRejection(t *testing.T) {
	//Arrange
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	submission := Submission{ID: "sub_1", QuestionID: "q1", State: SubmissionStateSubmitted, Value: "x"}

	//Act
	err := submission.Review("admin_1", DecisionRejected, "Photo is blurry", now)

	//Assert
	assert.NoError(t, err)
	assert.Equal(t, SubmissionStateRejected, submission.State)
	assert.Equal(t, "Photo is blurry", submission.ReviewFeedback)
}

func Test_Submission_ReviewRequiresSubmittedState(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	for _, state := range []string{SubmissionStateEmpty, SubmissionStateApproved, SubmissionStateRejected} {
		submission := Submission{ID: "sub_1", State: state}
		err := submission.Review("admin_1", DecisionApproved, "", now)
		assert.Error(t, err, "state %s", state)
	}
}

func Test_Submission_ReviewRejectsUnknownDecision(t *testing.T) {
	//Arrange
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	submission := Submission{ID: "sub_1", State: SubmissionStateSubmitted}

	//Act
	err := submission.Review("admin_1", "maybe", "", now)

	//Assert
	assert.Error(t, err)
	assert.Equal(t, SubmissionStateSubmitted, submission.State)
}

func Test_Submission_HasAnswer(t *testing.T) {
	assert.False(t, (&Submission{}).HasAnswer())
	assert.True(t, (&Submission{Value: "x"}).HasAnswer())
	assert.True(t, (&Submission{File: &FileReference{StoragePath: "projects/p/q/f.jpg"}}).HasAnswer())
}
