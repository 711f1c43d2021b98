package assignment

import (
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/zuberi/fizikia/core"
)

// Assignment kinds
const (
	KindHomework = "HOMEWORK"
	KindQuiz     = "QUIZ"
	KindExam     = "EXAM"
	KindPractice = "PRACTICE"
)

// Question kinds
const (
	QuestionMultipleChoice = "MULTIPLE_CHOICE"
	QuestionNumeric        = "NUMERIC"
	QuestionText           = "TEXT"
)

var (
	AllKinds         = []string{KindHomework, KindQuiz, KindExam, KindPractice}
	AllQuestionKinds = []string{QuestionMultipleChoice, QuestionNumeric, QuestionText}
)

type (
	Assignment struct {
		ID          string     `json:"id" db:"id"`
		Title       string     `json:"title" db:"title"`
		Description string     `json:"description" db:"description"`
		Kind        string     `json:"kind" db:"kind"`
		Points      float64    `json:"points" db:"points"`
		OpensAt     *time.Time `json:"opens_at" db:"opens_at"`
		DueAt       *time.Time `json:"due_at" db:"due_at"`
		Published   bool       `json:"published" db:"published"`
		CreatedBy   string     `json:"created_by" db:"created_by"`
		CreatedAt   time.Time  `json:"created_at" db:"created_at"` // UTC
		UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"` // UTC
		DeletedAt   *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
		Questions   []Question `json:"questions,omitempty" db:"-"`
	}

	Question struct {
		ID            string   `json:"id" db:"id"`
		AssignmentID  string   `json:"assignment_id" db:"assignment_id"`
		Position      int      `json:"position" db:"position"`
		Text          string   `json:"text" db:"text"`
		Kind          string   `json:"kind" db:"kind"`
		Options       []string `json:"options,omitempty" db:"-"`
		CorrectAnswer string   `json:"correct_answer,omitempty" db:"correct_answer"`
		Tolerance     float64  `json:"tolerance,omitempty" db:"tolerance"`
		Points        float64  `json:"points" db:"points"`
	}
)

// IsDeleted reports whether the assignment has been soft deleted.
func (a *Assignment) IsDeleted() bool {
	return a.DeletedAt != nil
}

// IsOpen reports whether submissions are currently accepted.
func (a *Assignment) IsOpen(now time.Time) bool {
	if !a.Published || a.IsDeleted() {
		return false
	}
	if a.OpensAt != nil && now.Before(*a.OpensAt) {
		return false
	}
	if a.DueAt != nil && now.After(*a.DueAt) {
		return false
	}
	return true
}

// TotalPoints sums the question points.
func (a *Assignment) TotalPoints() float64 {
	var total float64
	for _, q := range a.Questions {
		total += q.Points
	}
	return total
}

// HideAnswers strips grading keys before an assignment is shown to students.
func (a *Assignment) HideAnswers() {
	for i := range a.Questions {
		a.Questions[i].CorrectAnswer = ""
		a.Questions[i].Tolerance = 0
	}
}

// NewQuestion contains information needed to create a Question. Position is
// assigned from the slice order, 1..N.
type NewQuestion struct {
	Text          string   `json:"text" validate:"required"`
	Kind          string   `json:"kind" validate:"required,oneof=MULTIPLE_CHOICE NUMERIC TEXT"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Tolerance     float64  `json:"tolerance" validate:"gte=0"`
	Points        float64  `json:"points" validate:"gte=0"`
}

// NewAssignment contains information needed to create a new Assignment.
type NewAssignment struct {
	Title       string        `json:"title" validate:"required"`
	Description string        `json:"description"`
	Kind        string        `json:"kind" validate:"required,oneof=HOMEWORK QUIZ EXAM PRACTICE"`
	OpensAt     *time.Time    `json:"opens_at"`
	DueAt       *time.Time    `json:"due_at"`
	Published   bool          `json:"published"`
	Questions   []NewQuestion `json:"questions" validate:"required,min=1,dive"`
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	for i := range na.Questions {
		na.Questions[i].Text = core.CleanString(na.Questions[i].Text)
	}
	return validate.Struct(na)
}

// UpdateAssignment defines what may be modified on an existing Assignment.
// Nil/empty fields keep their current value; a non-nil Questions slice
// replaces the whole question set.
type UpdateAssignment struct {
	Title       string        `json:"title"`
	Description *string       `json:"description"`
	Kind        string        `json:"kind" validate:"omitempty,oneof=HOMEWORK QUIZ EXAM PRACTICE"`
	OpensAt     *time.Time    `json:"opens_at"`
	DueAt       *time.Time    `json:"due_at"`
	Published   *bool         `json:"published"`
	Questions   []NewQuestion `json:"questions" validate:"omitempty,min=1,dive"`
}

func (ua *UpdateAssignment) Validate(validate *validator.Validate) error {
	ua.Title = core.CleanString(ua.Title)
	for i := range ua.Questions {
		ua.Questions[i].Text = core.CleanString(ua.Questions[i].Text)
	}
	return validate.Struct(ua)
}

type QueryFilter struct {
	Search         string    `query:"search"`
	Kind           string    `query:"kind"`
	Published      *bool     `query:"published"`
	IncludeDeleted bool      `query:"include_deleted"`
	DueFrom        time.Time `query:"due_from"`
	DueTo          time.Time `query:"due_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Kind == "" && qf.Published == nil &&
		!qf.IncludeDeleted && qf.DueFrom.IsZero() && qf.DueTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Kind = strings.ToUpper(core.CleanString(qf.Kind))
}

// questionKindRules validates the cross-field constraints of a NewQuestion.
func questionKindRules(q NewQuestion) (field, tag string) {
	switch q.Kind {
	case QuestionMultipleChoice:
		if len(q.Options) < 2 {
			return "options", minOptionsTag
		}
		var found bool
		for _, opt := range q.Options {
			if opt == q.CorrectAnswer {
				found = true
				break
			}
		}
		if !found {
			return "correct_answer", answerInOptionsTag
		}
	case QuestionNumeric:
		if _, err := strconv.ParseFloat(q.CorrectAnswer, 64); err != nil {
			return "correct_answer", numericAnswerTag
		}
	case QuestionText:
		if len(q.Options) > 0 {
			return "options", noOptionsTag
		}
		if q.CorrectAnswer != "" {
			return "correct_answer", noAnswerTag
		}
	}
	return "", ""
}
