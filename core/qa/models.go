package qa

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/zuberi/fizikia/core"
)

// Record is one question/answer exchange kept for review. Username is
// denormalized so the admin listing survives user deletion.
type Record struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Username  string    `json:"username" db:"username"`
	Question  string    `json:"question" db:"question"`
	Answer    string    `json:"answer" db:"answer"`
	Context   string    `json:"context,omitempty" db:"context"`
	CreatedAt time.Time `json:"created_at" db:"created_at"` // UTC
}

// NewRecord is the payload for logging an exchange.
type NewRecord struct {
	Question string `json:"question" validate:"required"`
	Answer   string `json:"answer" validate:"required"`
	Context  string `json:"context"`
}

func (nr *NewRecord) Validate(validate *validator.Validate) error {
	nr.Question = core.CleanString(nr.Question)
	nr.Answer = core.CleanString(nr.Answer)
	nr.Context = core.CleanString(nr.Context)
	return validate.Struct(nr)
}

type QueryFilter struct {
	Search      string    `query:"search"`
	UserID      string    `query:"user_id"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.UserID == "" && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.UserID = core.CleanString(qf.UserID)
}
