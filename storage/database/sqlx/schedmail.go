package sqlxrepos

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/zuberi/fizikia/core"
	"github.com/zuberi/fizikia/core/schedmail"
)

var scheduledEmailColumns = []string{"id", "subject", "message", "recipients", "send_at", "status", "attempts", "last_error", "sent_at", "created_by", "created_at", "updated_at"}

type scheduledEmailRow struct {
	ID         string         `db:"id"`
	Subject    null.String    `db:"subject"`
	Message    null.String    `db:"message"`
	Recipients pq.StringArray `db:"recipients"`
	SendAt     null.Time      `db:"send_at"`
	Status     null.String    `db:"status"`
	Attempts   int            `db:"attempts"`
	LastError  null.String    `db:"last_error"`
	SentAt     null.Time      `db:"sent_at"`
	CreatedBy  null.String    `db:"created_by"`
	CreatedAt  null.Time      `db:"created_at"`
	UpdatedAt  null.Time      `db:"updated_at"`
}

type scheduledEmailRepository struct {
	exec core.DBExecutor
}

var _ schedmail.Repository = (*scheduledEmailRepository)(nil) // interface compliance check

func NewScheduledEmailRepository(exec core.DBExecutor) *scheduledEmailRepository {
	return &scheduledEmailRepository{exec: exec}
}

func (repo scheduledEmailRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

func (repo scheduledEmailRepository) toRow(em schedmail.ScheduledEmail) scheduledEmailRow {
	return scheduledEmailRow{
		ID:         em.ID,
		Subject:    null.NewString(em.Subject, em.Subject != ""),
		Message:    null.NewString(em.Message, em.Message != ""),
		Recipients: em.Recipients,
		SendAt:     null.NewTime(em.SendAt.UTC(), !em.SendAt.IsZero()),
		Status:     null.NewString(em.Status, em.Status != ""),
		Attempts:   em.Attempts,
		LastError:  null.NewString(em.LastError, em.LastError != ""),
		SentAt:     null.TimeFromPtr(em.SentAt),
		CreatedBy:  null.NewString(em.CreatedBy, em.CreatedBy != ""),
		CreatedAt:  null.NewTime(em.CreatedAt.UTC(), !em.CreatedAt.IsZero()),
		UpdatedAt:  null.NewTime(em.UpdatedAt.UTC(), !em.UpdatedAt.IsZero()),
	}
}

func (repo scheduledEmailRepository) fromRow(row scheduledEmailRow) schedmail.ScheduledEmail {
	return schedmail.ScheduledEmail{
		ID:         row.ID,
		Subject:    row.Subject.String,
		Message:    row.Message.String,
		Recipients: row.Recipients,
		SendAt:     row.SendAt.Time,
		Status:     row.Status.String,
		Attempts:   row.Attempts,
		LastError:  row.LastError.String,
		SentAt:     row.SentAt.Ptr(),
		CreatedBy:  row.CreatedBy.String,
		CreatedAt:  row.CreatedAt.Time,
		UpdatedAt:  row.UpdatedAt.Time,
	}
}

func (repo scheduledEmailRepository) CreateEmail(ctx context.Context, em schedmail.ScheduledEmail, exec ...core.DBExecutor) (schedmail.ScheduledEmail, error) {
	exe := repo.getExec(exec)

	em.ID = uuid.New().String()
	row := repo.toRow(em)

	stmt, args, err := psql.Insert("scheduled_emails").Columns(scheduledEmailColumns...).
		Values(row.ID, row.Subject, row.Message, row.Recipients, row.SendAt, row.Status, row.Attempts, row.LastError, row.SentAt, row.CreatedBy, row.CreatedAt, row.UpdatedAt).
		ToSql()
	if err != nil {
		return schedmail.ScheduledEmail{}, errors.Wrap(err, "building query")
	}
	if _, err = exe.ExecContext(ctx, stmt, args...); err != nil {
		return schedmail.ScheduledEmail{}, errors.Wrap(err, "inserting scheduled email")
	}
	return em, nil
}

func (repo scheduledEmailRepository) GetEmail(ctx context.Context, id string, exec ...core.DBExecutor) (schedmail.ScheduledEmail, error) {
	exe := repo.getExec(exec)

	if _, err := uuid.Parse(id); err != nil {
		return schedmail.ScheduledEmail{}, schedmail.ErrNotFound
	}

	stmt, args, err := psql.Select(scheduledEmailColumns...).From("scheduled_emails").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return schedmail.ScheduledEmail{}, errors.Wrap(err, "building query")
	}
	var row scheduledEmailRow
	if err = exe.GetContext(ctx, &row, stmt, args...); err != nil {
		return schedmail.ScheduledEmail{}, trapNoRowsErr(err, schedmail.ErrNotFound, "finding scheduled email")
	}
	return repo.fromRow(row), nil
}

func (repo scheduledEmailRepository) QueryEmails(ctx context.Context, filter *schedmail.QueryFilter, ordering []core.DBOrdering, page core.Pagination, exec ...core.DBExecutor) ([]schedmail.ScheduledEmail, int64, error) {
	exe := repo.getExec(exec)

	conds := make([]sq.Sqlizer, 0, 4)
	if filter != nil {
		if filter.Status != "" {
			conds = append(conds, sq.Eq{"status": filter.Status})
		}
		if filter.CreatedBy != "" {
			conds = append(conds, sq.Eq{"created_by": filter.CreatedBy})
		}
		if !filter.SendFrom.IsZero() {
			conds = append(conds, sq.GtOrEq{"send_at": filter.SendFrom.UTC()})
		}
		if !filter.SendTo.IsZero() {
			conds = append(conds, sq.LtOrEq{"send_at": filter.SendTo.UTC()})
		}
	}

	countQ := psql.Select("COUNT(*)").From("scheduled_emails")
	dataQ := psql.Select(scheduledEmailColumns...).From("scheduled_emails")
	for _, cond := range conds {
		countQ = countQ.Where(cond)
		dataQ = dataQ.Where(cond)
	}

	stmt, args, err := countQ.ToSql()
	if err != nil {
		return nil, 0, errors.Wrap(err, "building query")
	}
	var total int64
	if err = exe.GetContext(ctx, &total, stmt, args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting scheduled emails")
	}

	stmt, args, err = dataQ.
		OrderBy(orderBy(ordering, "send_at ASC")).
		Offset(uint64(page.Offset())).
		Limit(uint64(page.Limit())).
		ToSql()
	if err != nil {
		return nil, 0, errors.Wrap(err, "building query")
	}
	var rows []scheduledEmailRow
	if err = exe.SelectContext(ctx, &rows, stmt, args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying scheduled emails")
	}

	emails := make([]schedmail.ScheduledEmail, 0, len(rows))
	for _, row := range rows {
		emails = append(emails, repo.fromRow(row))
	}
	return emails, total, nil
}

func (repo scheduledEmailRepository) UpdateEmail(ctx context.Context, em schedmail.ScheduledEmail, exec ...core.DBExecutor) (schedmail.ScheduledEmail, error) {
	exe := repo.getExec(exec)
	row := repo.toRow(em)

	stmt, args, err := psql.Update("scheduled_emails").
		Set("subject", row.Subject).
		Set("message", row.Message).
		Set("recipients", row.Recipients).
		Set("send_at", row.SendAt).
		Set("status", row.Status).
		Set("attempts", row.Attempts).
		Set("last_error", row.LastError).
		Set("sent_at", row.SentAt).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": em.ID}).
		Suffix("RETURNING updated_at").
		ToSql()
	if err != nil {
		return schedmail.ScheduledEmail{}, errors.Wrap(err, "building query")
	}
	var updatedAt time.Time
	if err = exe.GetContext(ctx, &updatedAt, stmt, args...); err != nil {
		return schedmail.ScheduledEmail{}, trapNoRowsErr(err, schedmail.ErrNotFound, "updating scheduled email")
	}
	em.UpdatedAt = updatedAt
	return em, nil
}

// ClaimDueEmails flips due PENDING rows to SENT and returns them. SKIP LOCKED
// keeps concurrent dispatchers from claiming the same rows.
func (repo scheduledEmailRepository) ClaimDueEmails(ctx context.Context, now time.Time, limit int, exec ...core.DBExecutor) ([]schedmail.ScheduledEmail, error) {
	exe := repo.getExec(exec)

	stmt, args, err := psql.Update("scheduled_emails").
		Set("status", schedmail.StatusSent).
		Set("updated_at", now.UTC()).
		Where(sq.Expr(
			"id IN (SELECT id FROM scheduled_emails WHERE status = ? AND send_at <= ? ORDER BY send_at ASC LIMIT ? FOR UPDATE SKIP LOCKED)",
			schedmail.StatusPending, now.UTC(), limit,
		)).
		Suffix("RETURNING " + strings.Join(scheduledEmailColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}

	var rows []scheduledEmailRow
	if err = exe.SelectContext(ctx, &rows, stmt, args...); err != nil {
		return nil, errors.Wrap(err, "claiming due emails")
	}

	emails := make([]schedmail.ScheduledEmail, 0, len(rows))
	for _, row := range rows {
		emails = append(emails, repo.fromRow(row))
	}
	return emails, nil
}
