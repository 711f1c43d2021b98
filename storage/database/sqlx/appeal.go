package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/zuberi/fizikia/core"
	"github.com/zuberi/fizikia/core/appeal"
)

var (
	appealColumns        = []string{"id", "answer_id", "appealer_id", "status", "reason", "resolution", "resolved_by", "resolved_at", "created_at", "updated_at"}
	appealMessageColumns = []string{"id", "appeal_id", "author_id", "body", "created_at"}
)

type appealRow struct {
	ID         string      `db:"id"`
	AnswerID   string      `db:"answer_id"`
	AppealerID string      `db:"appealer_id"`
	Status     null.String `db:"status"`
	Reason     null.String `db:"reason"`
	Resolution null.String `db:"resolution"`
	ResolvedBy null.String `db:"resolved_by"`
	ResolvedAt null.Time   `db:"resolved_at"`
	CreatedAt  null.Time   `db:"created_at"`
	UpdatedAt  null.Time   `db:"updated_at"`
}

type appealMessageRow struct {
	ID        string      `db:"id"`
	AppealID  string      `db:"appeal_id"`
	AuthorID  string      `db:"author_id"`
	Body      null.String `db:"body"`
	CreatedAt null.Time   `db:"created_at"`
}

type appealRepository struct {
	exec core.DBExecutor
}

var _ appeal.Repository = (*appealRepository)(nil) // interface compliance check

func NewAppealRepository(exec core.DBExecutor) *appealRepository {
	return &appealRepository{exec: exec}
}

func (repo appealRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

func (repo appealRepository) toRow(ap appeal.GradeAppeal) appealRow {
	return appealRow{
		ID:         ap.ID,
		AnswerID:   ap.AnswerID,
		AppealerID: ap.AppealerID,
		Status:     null.NewString(ap.Status, ap.Status != ""),
		Reason:     null.NewString(ap.Reason, ap.Reason != ""),
		Resolution: null.NewString(ap.Resolution, ap.Resolution != ""),
		ResolvedBy: null.NewString(ap.ResolvedBy, ap.ResolvedBy != ""),
		ResolvedAt: null.TimeFromPtr(ap.ResolvedAt),
		CreatedAt:  null.NewTime(ap.CreatedAt.UTC(), !ap.CreatedAt.IsZero()),
		UpdatedAt:  null.NewTime(ap.UpdatedAt.UTC(), !ap.UpdatedAt.IsZero()),
	}
}

func (repo appealRepository) fromRow(row appealRow) appeal.GradeAppeal {
	return appeal.GradeAppeal{
		ID:         row.ID,
		AnswerID:   row.AnswerID,
		AppealerID: row.AppealerID,
		Status:     row.Status.String,
		Reason:     row.Reason.String,
		Resolution: row.Resolution.String,
		ResolvedBy: row.ResolvedBy.String,
		ResolvedAt: row.ResolvedAt.Ptr(),
		CreatedAt:  row.CreatedAt.Time,
		UpdatedAt:  row.UpdatedAt.Time,
	}
}

func (repo appealRepository) messageFromRow(row appealMessageRow) appeal.AppealMessage {
	return appeal.AppealMessage{
		ID:        row.ID,
		AppealID:  row.AppealID,
		AuthorID:  row.AuthorID,
		Body:      row.Body.String,
		CreatedAt: row.CreatedAt.Time,
	}
}

func (repo appealRepository) CreateAppeal(ctx context.Context, ap appeal.GradeAppeal, exec ...core.DBExecutor) (appeal.GradeAppeal, error) {
	exe := repo.getExec(exec)

	ap.ID = uuid.New().String()
	row := repo.toRow(ap)

	stmt, args, err := psql.Insert("grade_appeals").Columns(appealColumns...).
		Values(row.ID, row.AnswerID, row.AppealerID, row.Status, row.Reason, row.Resolution, row.ResolvedBy, row.ResolvedAt, row.CreatedAt, row.UpdatedAt).
		ToSql()
	if err != nil {
		return appeal.GradeAppeal{}, errors.Wrap(err, "building query")
	}
	if _, err = exe.ExecContext(ctx, stmt, args...); err != nil {
		return appeal.GradeAppeal{}, errors.Wrap(err, "inserting appeal")
	}
	return ap, nil
}

func (repo appealRepository) getMessages(ctx context.Context, exe core.DBExecutor, appealID string) ([]appeal.AppealMessage, error) {
	stmt, args, err := psql.Select(appealMessageColumns...).From("appeal_messages").
		Where(sq.Eq{"appeal_id": appealID}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []appealMessageRow
	if err = exe.SelectContext(ctx, &rows, stmt, args...); err != nil {
		return nil, errors.Wrap(err, "querying messages")
	}
	msgs := make([]appeal.AppealMessage, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, repo.messageFromRow(row))
	}
	return msgs, nil
}

func (repo appealRepository) GetAppeal(ctx context.Context, filter appeal.GetFilter, exec ...core.DBExecutor) (appeal.GradeAppeal, error) {
	exe := repo.getExec(exec)

	q := psql.Select(appealColumns...).From("grade_appeals")
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return appeal.GradeAppeal{}, appeal.ErrNotFound
		}
		q = q.Where(sq.Eq{"id": filter.ID})
	case filter.AnswerID != "":
		q = q.Where(sq.Eq{"answer_id": filter.AnswerID})
		if filter.Status != "" {
			q = q.Where(sq.Eq{"status": filter.Status})
		}
		q = q.OrderBy("created_at DESC").Limit(1)
	default:
		return appeal.GradeAppeal{}, appeal.ErrNotFound
	}

	stmt, args, err := q.ToSql()
	if err != nil {
		return appeal.GradeAppeal{}, errors.Wrap(err, "building query")
	}
	var row appealRow
	if err = exe.GetContext(ctx, &row, stmt, args...); err != nil {
		return appeal.GradeAppeal{}, trapNoRowsErr(err, appeal.ErrNotFound, "finding appeal")
	}

	ap := repo.fromRow(row)
	if ap.Messages, err = repo.getMessages(ctx, exe, ap.ID); err != nil {
		return appeal.GradeAppeal{}, err
	}
	return ap, nil
}

// QueryAppeals lists matching appeals without their message threads;
// GetAppeal loads the full record.
func (repo appealRepository) QueryAppeals(ctx context.Context, filter *appeal.QueryFilter, ordering []core.DBOrdering, page core.Pagination, exec ...core.DBExecutor) ([]appeal.GradeAppeal, int64, error) {
	exe := repo.getExec(exec)

	conds := make([]sq.Sqlizer, 0, 3)
	if filter != nil {
		if filter.AppealerID != "" {
			conds = append(conds, sq.Eq{"appealer_id": filter.AppealerID})
		}
		if filter.AnswerID != "" {
			conds = append(conds, sq.Eq{"answer_id": filter.AnswerID})
		}
		if filter.Status != "" {
			conds = append(conds, sq.Eq{"status": filter.Status})
		}
	}

	countQ := psql.Select("COUNT(*)").From("grade_appeals")
	dataQ := psql.Select(appealColumns...).From("grade_appeals")
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
		return nil, 0, errors.Wrap(err, "counting appeals")
	}

	stmt, args, err = dataQ.
		OrderBy(orderBy(ordering, "created_at DESC")).
		Offset(uint64(page.Offset())).
		Limit(uint64(page.Limit())).
		ToSql()
	if err != nil {
		return nil, 0, errors.Wrap(err, "building query")
	}
	var rows []appealRow
	if err = exe.SelectContext(ctx, &rows, stmt, args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying appeals")
	}

	appeals := make([]appeal.GradeAppeal, 0, len(rows))
	for _, row := range rows {
		appeals = append(appeals, repo.fromRow(row))
	}
	return appeals, total, nil
}

func (repo appealRepository) UpdateAppeal(ctx context.Context, ap appeal.GradeAppeal, exec ...core.DBExecutor) (appeal.GradeAppeal, error) {
	exe := repo.getExec(exec)
	row := repo.toRow(ap)

	stmt, args, err := psql.Update("grade_appeals").
		Set("status", row.Status).
		Set("resolution", row.Resolution).
		Set("resolved_by", row.ResolvedBy).
		Set("resolved_at", row.ResolvedAt).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": ap.ID}).
		Suffix("RETURNING updated_at").
		ToSql()
	if err != nil {
		return appeal.GradeAppeal{}, errors.Wrap(err, "building query")
	}
	var updatedAt time.Time
	if err = exe.GetContext(ctx, &updatedAt, stmt, args...); err != nil {
		return appeal.GradeAppeal{}, trapNoRowsErr(err, appeal.ErrNotFound, "updating appeal")
	}
	ap.UpdatedAt = updatedAt
	return ap, nil
}

func (repo appealRepository) CreateMessage(ctx context.Context, msg appeal.AppealMessage, exec ...core.DBExecutor) (appeal.AppealMessage, error) {
	exe := repo.getExec(exec)

	msg.ID = uuid.New().String()
	stmt, args, err := psql.Insert("appeal_messages").Columns(appealMessageColumns...).
		Values(msg.ID, msg.AppealID, msg.AuthorID, null.NewString(msg.Body, msg.Body != ""), msg.CreatedAt.UTC()).
		ToSql()
	if err != nil {
		return appeal.AppealMessage{}, errors.Wrap(err, "building query")
	}
	if _, err = exe.ExecContext(ctx, stmt, args...); err != nil {
		return appeal.AppealMessage{}, errors.Wrap(err, "inserting message")
	}
	return msg, nil
}
