package schedmail

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/zuberi/fizikia/core"
)

// lifecycle statuses. PENDING is the only mutable state; the others are final.
const (
	StatusPending   = "PENDING"
	StatusSent      = "SENT"
	StatusCancelled = "CANCELLED"
	StatusFailed    = "FAILED"
)

var AllStatuses = []string{StatusPending, StatusSent, StatusCancelled, StatusFailed}

// ScheduledEmail is a staff-authored announcement queued for later delivery.
type ScheduledEmail struct {
	ID         string     `json:"id" db:"id"`
	Subject    string     `json:"subject" db:"subject"`
	Message    string     `json:"message" db:"message"`
	Recipients []string   `json:"recipients" db:"-"`
	SendAt     time.Time  `json:"send_at" db:"send_at"`
	Status     string     `json:"status" db:"status"`
	Attempts   int        `json:"attempts" db:"attempts"`
	LastError  string     `json:"last_error,omitempty" db:"last_error"`
	SentAt     *time.Time `json:"sent_at" db:"sent_at"`
	CreatedBy  string     `json:"created_by" db:"created_by"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"` // UTC
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"` // UTC
}

func (se *ScheduledEmail) IsPending() bool { return se.Status == StatusPending }

// IsDue reports whether the email should go out now.
func (se *ScheduledEmail) IsDue(now time.Time) bool {
	return se.IsPending() && !se.SendAt.After(now)
}

// NewScheduledEmail is the payload for scheduling an email.
type NewScheduledEmail struct {
	Subject    string    `json:"subject" validate:"required"`
	Message    string    `json:"message" validate:"required"`
	Recipients []string  `json:"recipients" validate:"required,min=1,dive,required,email"`
	SendAt     time.Time `json:"send_at" validate:"required"`
}

func (ne *NewScheduledEmail) Validate(validate *validator.Validate) error {
	ne.Subject = core.CleanString(ne.Subject)
	ne.Message = core.CleanString(ne.Message)
	cleanRecipients(ne.Recipients)
	return validate.Struct(ne)
}

// UpdateScheduledEmail edits a pending email; empty fields keep their current value.
type UpdateScheduledEmail struct {
	Subject    string     `json:"subject"`
	Message    string     `json:"message"`
	Recipients []string   `json:"recipients" validate:"omitempty,min=1,dive,required,email"`
	SendAt     *time.Time `json:"send_at"`
}

func (ue *UpdateScheduledEmail) Validate(validate *validator.Validate) error {
	ue.Subject = core.CleanString(ue.Subject)
	ue.Message = core.CleanString(ue.Message)
	cleanRecipients(ue.Recipients)
	return validate.Struct(ue)
}

func cleanRecipients(recipients []string) {
	for i, addr := range recipients {
		recipients[i] = strings.ToLower(core.CleanString(addr))
	}
}

type QueryFilter struct {
	Status    string    `query:"status"`
	CreatedBy string    `query:"-"`
	SendFrom  time.Time `query:"send_from"`
	SendTo    time.Time `query:"send_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Status == "" && qf.CreatedBy == "" && qf.SendFrom.IsZero() && qf.SendTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Status = strings.ToUpper(core.CleanString(qf.Status))
}
