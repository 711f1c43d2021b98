package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/zuberi/fizikia/core"
	"github.com/zuberi/fizikia/core/qa"
)

var qaRecordColumns = []string{"id", "user_id", "username", "question", "answer", "context", "created_at"}

type qaRecordRow struct {
	ID        string      `db:"id"`
	UserID    string      `db:"user_id"`
	Username  null.String `db:"username"`
	Question  null.String `db:"question"`
	Answer    null.String `db:"answer"`
	Context   null.String `db:"context"`
	CreatedAt null.Time   `db:"created_at"`
}

type qaRepository struct {
	exec core.DBExecutor
}

var _ qa.Repository = (*qaRepository)(nil) // interface compliance check

func NewQARepository(exec core.DBExecutor) *qaRepository {
	return &qaRepository{exec: exec}
}

func (repo qaRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

func (repo qaRepository) fromRow(row qaRecordRow) qa.Record {
	return qa.Record{
		ID:        row.ID,
		UserID:    row.UserID,
		Username:  row.Username.String,
		Question:  row.Question.String,
		Answer:    row.Answer.String,
		Context:   row.Context.String,
		CreatedAt: row.CreatedAt.Time,
	}
}

func (repo qaRepository) CreateRecord(ctx context.Context, rec qa.Record, exec ...core.DBExecutor) (qa.Record, error) {
	exe := repo.getExec(exec)

	rec.ID = uuid.New().String()
	stmt, args, err := psql.Insert("qa_records").Columns(qaRecordColumns...).
		Values(
			rec.ID,
			rec.UserID,
			null.NewString(rec.Username, rec.Username != ""),
			null.NewString(rec.Question, rec.Question != ""),
			null.NewString(rec.Answer, rec.Answer != ""),
			null.NewString(rec.Context, rec.Context != ""),
			rec.CreatedAt.UTC(),
		).
		ToSql()
	if err != nil {
		return qa.Record{}, errors.Wrap(err, "building query")
	}
	if _, err = exe.ExecContext(ctx, stmt, args...); err != nil {
		return qa.Record{}, errors.Wrap(err, "inserting record")
	}
	return rec, nil
}

func (repo qaRepository) QueryRecords(ctx context.Context, filter *qa.QueryFilter, ordering []core.DBOrdering, page core.Pagination, exec ...core.DBExecutor) ([]qa.Record, int64, error) {
	exe := repo.getExec(exec)

	conds := make([]sq.Sqlizer, 0, 4)
	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			conds = append(conds, sq.Expr("(question ILIKE ? OR answer ILIKE ?)", val, val))
		}
		if filter.UserID != "" {
			conds = append(conds, sq.Eq{"user_id": filter.UserID})
		}
		if !filter.CreatedFrom.IsZero() {
			conds = append(conds, sq.GtOrEq{"created_at": filter.CreatedFrom.UTC()})
		}
		if !filter.CreatedTo.IsZero() {
			conds = append(conds, sq.LtOrEq{"created_at": filter.CreatedTo.UTC()})
		}
	}

	countQ := psql.Select("COUNT(*)").From("qa_records")
	dataQ := psql.Select(qaRecordColumns...).From("qa_records")
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
		return nil, 0, errors.Wrap(err, "counting records")
	}

	stmt, args, err = dataQ.
		OrderBy(orderBy(ordering, "created_at DESC")).
		Offset(uint64(page.Offset())).
		Limit(uint64(page.Limit())).
		ToSql()
	if err != nil {
		return nil, 0, errors.Wrap(err, "building query")
	}
	var rows []qaRecordRow
	if err = exe.SelectContext(ctx, &rows, stmt, args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying records")
	}

	records := make([]qa.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, repo.fromRow(row))
	}
	return records, total, nil
}

func (repo qaRepository) DeleteRecordsBefore(ctx context.Context, cutoff time.Time, exec ...core.DBExecutor) (int64, error) {
	exe := repo.getExec(exec)

	stmt, args, err := psql.Delete("qa_records").
		Where(sq.Lt{"created_at": cutoff.UTC()}).
		ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	res, err := exe.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting records")
	}
	deleted, err := res.RowsAffected()
	return deleted, errors.Wrap(err, "counting deleted records")
}
