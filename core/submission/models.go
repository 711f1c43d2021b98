package submission

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/zuberi/fizikia/core"
)

type (
	Submission struct {
		ID           string     `json:"id" db:"id"`
		AssignmentID string     `json:"assignment_id" db:"assignment_id"`
		UserID       string     `json:"user_id" db:"user_id"`
		Final        bool       `json:"final" db:"final"`
		Score        *float64   `json:"score" db:"score"`
		SubmittedAt  *time.Time `json:"submitted_at" db:"submitted_at"`
		GradedAt     *time.Time `json:"graded_at" db:"graded_at"`
		GradedBy     string     `json:"graded_by,omitempty" db:"graded_by"`
		CreatedAt    time.Time  `json:"created_at" db:"created_at"` // UTC
		UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"` // UTC
		Answers      []Answer   `json:"answers,omitempty" db:"-"`
	}

	Answer struct {
		ID           string   `json:"id" db:"id"`
		SubmissionID string   `json:"submission_id" db:"submission_id"`
		QuestionID   string   `json:"question_id" db:"question_id"`
		Value        string   `json:"value" db:"value"`
		Score        *float64 `json:"score" db:"score"`
		Feedback     string   `json:"feedback,omitempty" db:"feedback"`
		AutoGraded   bool     `json:"auto_graded" db:"auto_graded"`
	}
)

// IsGraded reports whether every answer has been scored.
func (s *Submission) IsGraded() bool {
	if len(s.Answers) == 0 {
		return false
	}
	for _, ans := range s.Answers {
		if ans.Score == nil {
			return false
		}
	}
	return true
}

// AnswersTotal sums the scored answers.
func (s *Submission) AnswersTotal() float64 {
	var total float64
	for _, ans := range s.Answers {
		if ans.Score != nil {
			total += *ans.Score
		}
	}
	return total
}

// NewAnswer is a single question response within a submission payload.
type NewAnswer struct {
	QuestionID string `json:"question_id" validate:"required"`
	Value      string `json:"value"`
}

// SubmissionInput is the payload for draft saves and final submits.
type SubmissionInput struct {
	Answers []NewAnswer `json:"answers" validate:"required,min=1,dive"`
}

func (si *SubmissionInput) Validate(validate *validator.Validate) error {
	for i := range si.Answers {
		si.Answers[i].Value = core.CleanString(si.Answers[i].Value)
	}
	return validate.Struct(si)
}

// GradeAnswerInput carries a manual score for one answer.
type GradeAnswerInput struct {
	Score    *float64 `json:"score" validate:"required"`
	Feedback string   `json:"feedback"`
}

func (ga *GradeAnswerInput) Validate(validate *validator.Validate) error {
	ga.Feedback = core.CleanString(ga.Feedback)
	return validate.Struct(ga)
}

type QueryFilter struct {
	AssignmentID string `query:"-"`
	UserID       string `query:"user_id"`
	Final        *bool  `query:"final"`
	Graded       *bool  `query:"graded"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.AssignmentID == "" && qf.UserID == "" && qf.Final == nil && qf.Graded == nil
}

// GetFilter selects a single Submission; ID wins over the composite key.
type GetFilter struct {
	ID           string
	AssignmentID string
	UserID       string
	Final        *bool
}
