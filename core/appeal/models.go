package appeal

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/zuberi/fizikia/core"
)

// appeal statuses
const (
	StatusOpen     = "OPEN"
	StatusResolved = "RESOLVED"
)

var AllStatuses = []string{StatusOpen, StatusResolved}

type (
	// GradeAppeal is a student's dispute over one answer's score. It carries a
	// message thread and stays open until staff resolves it.
	GradeAppeal struct {
		ID         string          `json:"id" db:"id"`
		AnswerID   string          `json:"answer_id" db:"answer_id"`
		AppealerID string          `json:"appealer_id" db:"appealer_id"`
		Status     string          `json:"status" db:"status"`
		Reason     string          `json:"reason" db:"reason"`
		Resolution string          `json:"resolution,omitempty" db:"resolution"`
		ResolvedBy string          `json:"resolved_by,omitempty" db:"resolved_by"`
		ResolvedAt *time.Time      `json:"resolved_at" db:"resolved_at"`
		CreatedAt  time.Time       `json:"created_at" db:"created_at"` // UTC
		UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"` // UTC
		Messages   []AppealMessage `json:"messages,omitempty" db:"-"`
	}

	AppealMessage struct {
		ID        string    `json:"id" db:"id"`
		AppealID  string    `json:"appeal_id" db:"appeal_id"`
		AuthorID  string    `json:"author_id" db:"author_id"`
		Body      string    `json:"body" db:"body"`
		CreatedAt time.Time `json:"created_at" db:"created_at"` // UTC
	}
)

func (a *GradeAppeal) IsOpen() bool     { return a.Status == StatusOpen }
func (a *GradeAppeal) IsResolved() bool { return a.Status == StatusResolved }

// IsParticipant reports whether usrID took part in this appeal.
func (a *GradeAppeal) IsParticipant(usrID string) bool {
	if a.AppealerID == usrID {
		return true
	}
	for _, msg := range a.Messages {
		if msg.AuthorID == usrID {
			return true
		}
	}
	return false
}

// NewAppeal is the payload for opening an appeal.
type NewAppeal struct {
	AnswerID string `json:"answer_id" validate:"required"`
	Reason   string `json:"reason" validate:"required"`
}

func (na *NewAppeal) Validate(validate *validator.Validate) error {
	na.AnswerID = core.CleanString(na.AnswerID)
	na.Reason = core.CleanString(na.Reason)
	return validate.Struct(na)
}

// NewMessage is the payload for a thread message.
type NewMessage struct {
	Body string `json:"body" validate:"required"`
}

func (nm *NewMessage) Validate(validate *validator.Validate) error {
	nm.Body = core.CleanString(nm.Body)
	return validate.Struct(nm)
}

// ResolveInput closes an appeal; Score optionally re-grades the disputed answer.
type ResolveInput struct {
	Resolution string   `json:"resolution" validate:"required"`
	Score      *float64 `json:"score" validate:"omitempty,gte=0"`
	Feedback   string   `json:"feedback"`
}

func (ri *ResolveInput) Validate(validate *validator.Validate) error {
	ri.Resolution = core.CleanString(ri.Resolution)
	ri.Feedback = core.CleanString(ri.Feedback)
	return validate.Struct(ri)
}

type QueryFilter struct {
	AppealerID string `query:"-"`
	AnswerID   string `query:"answer_id"`
	Status     string `query:"status"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.AppealerID == "" && qf.AnswerID == "" && qf.Status == ""
}

func (qf *QueryFilter) Clean() {
	qf.AnswerID = core.CleanString(qf.AnswerID)
	qf.Status = strings.ToUpper(core.CleanString(qf.Status))
}

// GetFilter selects a single GradeAppeal.
type GetFilter struct {
	ID       string
	AnswerID string
	Status   string
}
