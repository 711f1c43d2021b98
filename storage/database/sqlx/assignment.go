package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/zuberi/fizikia/core"
	"github.com/zuberi/fizikia/core/assignment"
)

var (
	assignmentColumns = []string{"id", "title", "description", "kind", "points", "opens_at", "due_at", "published", "created_by", "created_at", "updated_at", "deleted_at"}
	questionColumns   = []string{"id", "assignment_id", "position", "text", "kind", "options", "correct_answer", "tolerance", "points"}
)

type assignmentRow struct {
	ID          string      `db:"id"`
	Title       null.String `db:"title"`
	Description null.String `db:"description"`
	Kind        null.String `db:"kind"`
	Points      float64     `db:"points"`
	OpensAt     null.Time   `db:"opens_at"`
	DueAt       null.Time   `db:"due_at"`
	Published   bool        `db:"published"`
	CreatedBy   null.String `db:"created_by"`
	CreatedAt   null.Time   `db:"created_at"`
	UpdatedAt   null.Time   `db:"updated_at"`
	DeletedAt   null.Time   `db:"deleted_at"`
}

type questionRow struct {
	ID            string         `db:"id"`
	AssignmentID  string         `db:"assignment_id"`
	Position      int            `db:"position"`
	Text          null.String    `db:"text"`
	Kind          null.String    `db:"kind"`
	Options       pq.StringArray `db:"options"`
	CorrectAnswer null.String    `db:"correct_answer"`
	Tolerance     float64        `db:"tolerance"`
	Points        float64        `db:"points"`
}

type assignmentRepository struct {
	exec core.DBExecutor
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(exec core.DBExecutor) *assignmentRepository {
	return &assignmentRepository{exec: exec}
}

func (repo assignmentRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

func (repo assignmentRepository) toRow(asg assignment.Assignment) assignmentRow {
	return assignmentRow{
		ID:          asg.ID,
		Title:       null.NewString(asg.Title, asg.Title != ""),
		Description: null.NewString(asg.Description, asg.Description != ""),
		Kind:        null.NewString(asg.Kind, asg.Kind != ""),
		Points:      asg.Points,
		OpensAt:     null.TimeFromPtr(asg.OpensAt),
		DueAt:       null.TimeFromPtr(asg.DueAt),
		Published:   asg.Published,
		CreatedBy:   null.NewString(asg.CreatedBy, asg.CreatedBy != ""),
		CreatedAt:   null.NewTime(asg.CreatedAt.UTC(), !asg.CreatedAt.IsZero()),
		UpdatedAt:   null.NewTime(asg.UpdatedAt.UTC(), !asg.UpdatedAt.IsZero()),
		DeletedAt:   null.TimeFromPtr(asg.DeletedAt),
	}
}

func (repo assignmentRepository) fromRow(row assignmentRow) assignment.Assignment {
	return assignment.Assignment{
		ID:          row.ID,
		Title:       row.Title.String,
		Description: row.Description.String,
		Kind:        row.Kind.String,
		Points:      row.Points,
		OpensAt:     row.OpensAt.Ptr(),
		DueAt:       row.DueAt.Ptr(),
		Published:   row.Published,
		CreatedBy:   row.CreatedBy.String,
		CreatedAt:   row.CreatedAt.Time,
		UpdatedAt:   row.UpdatedAt.Time,
		DeletedAt:   row.DeletedAt.Ptr(),
	}
}

func (repo assignmentRepository) questionToRow(q assignment.Question) questionRow {
	return questionRow{
		ID:            q.ID,
		AssignmentID:  q.AssignmentID,
		Position:      q.Position,
		Text:          null.NewString(q.Text, q.Text != ""),
		Kind:          null.NewString(q.Kind, q.Kind != ""),
		Options:       q.Options,
		CorrectAnswer: null.NewString(q.CorrectAnswer, q.CorrectAnswer != ""),
		Tolerance:     q.Tolerance,
		Points:        q.Points,
	}
}

func (repo assignmentRepository) questionFromRow(row questionRow) assignment.Question {
	return assignment.Question{
		ID:            row.ID,
		AssignmentID:  row.AssignmentID,
		Position:      row.Position,
		Text:          row.Text.String,
		Kind:          row.Kind.String,
		Options:       row.Options,
		CorrectAnswer: row.CorrectAnswer.String,
		Tolerance:     row.Tolerance,
		Points:        row.Points,
	}
}

func (repo assignmentRepository) CreateAssignment(ctx context.Context, asg assignment.Assignment, exec ...core.DBExecutor) (assignment.Assignment, error) {
	exe := repo.getExec(exec)

	asg.ID = uuid.New().String()
	row := repo.toRow(asg)

	stmt, args, err := psql.Insert("assignments").Columns(assignmentColumns...).
		Values(row.ID, row.Title, row.Description, row.Kind, row.Points, row.OpensAt, row.DueAt, row.Published, row.CreatedBy, row.CreatedAt, row.UpdatedAt, row.DeletedAt).
		ToSql()
	if err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "building query")
	}
	if _, err = exe.ExecContext(ctx, stmt, args...); err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "inserting assignment")
	}

	questions, err := repo.insertQuestions(ctx, exe, asg.ID, asg.Questions)
	if err != nil {
		return assignment.Assignment{}, err
	}
	asg.Questions = questions
	return asg, nil
}

func (repo assignmentRepository) insertQuestions(ctx context.Context, exe core.DBExecutor, assignmentID string, questions []assignment.Question) ([]assignment.Question, error) {
	if len(questions) == 0 {
		return nil, nil
	}

	q := psql.Insert("assignment_questions").Columns(questionColumns...)
	for i := range questions {
		questions[i].ID = uuid.New().String()
		questions[i].AssignmentID = assignmentID
		row := repo.questionToRow(questions[i])
		q = q.Values(row.ID, row.AssignmentID, row.Position, row.Text, row.Kind, row.Options, row.CorrectAnswer, row.Tolerance, row.Points)
	}

	stmt, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	if _, err = exe.ExecContext(ctx, stmt, args...); err != nil {
		return nil, errors.Wrap(err, "inserting questions")
	}
	return questions, nil
}

func (repo assignmentRepository) getQuestions(ctx context.Context, exe core.DBExecutor, assignmentID string) ([]assignment.Question, error) {
	stmt, args, err := psql.Select(questionColumns...).From("assignment_questions").
		Where(sq.Eq{"assignment_id": assignmentID}).
		OrderBy("position ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []questionRow
	if err = exe.SelectContext(ctx, &rows, stmt, args...); err != nil {
		return nil, errors.Wrap(err, "querying questions")
	}
	questions := make([]assignment.Question, 0, len(rows))
	for _, row := range rows {
		questions = append(questions, repo.questionFromRow(row))
	}
	return questions, nil
}

// QueryAssignments lists matching assignments without their question sets;
// GetAssignment loads the full record.
func (repo assignmentRepository) QueryAssignments(ctx context.Context, filter *assignment.QueryFilter, ordering []core.DBOrdering, page core.Pagination, exec ...core.DBExecutor) ([]assignment.Assignment, int64, error) {
	exe := repo.getExec(exec)

	conds := make([]sq.Sqlizer, 0, 4)
	if filter == nil || !filter.IncludeDeleted {
		conds = append(conds, sq.Expr("deleted_at IS NULL"))
	}
	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			conds = append(conds, sq.Expr("(title ILIKE ? OR description ILIKE ?)", val, val))
		}
		if filter.Kind != "" {
			conds = append(conds, sq.Eq{"kind": filter.Kind})
		}
		if filter.Published != nil {
			conds = append(conds, sq.Eq{"published": *filter.Published})
		}
		if !filter.DueFrom.IsZero() {
			conds = append(conds, sq.GtOrEq{"due_at": filter.DueFrom.UTC()})
		}
		if !filter.DueTo.IsZero() {
			conds = append(conds, sq.LtOrEq{"due_at": filter.DueTo.UTC()})
		}
	}

	countQ := psql.Select("COUNT(*)").From("assignments")
	dataQ := psql.Select(assignmentColumns...).From("assignments")
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
		return nil, 0, errors.Wrap(err, "counting assignments")
	}

	stmt, args, err = dataQ.
		OrderBy(orderBy(ordering, "created_at DESC")).
		Offset(uint64(page.Offset())).
		Limit(uint64(page.Limit())).
		ToSql()
	if err != nil {
		return nil, 0, errors.Wrap(err, "building query")
	}
	var rows []assignmentRow
	if err = exe.SelectContext(ctx, &rows, stmt, args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying assignments")
	}

	assignments := make([]assignment.Assignment, 0, len(rows))
	for _, row := range rows {
		assignments = append(assignments, repo.fromRow(row))
	}
	return assignments, total, nil
}

func (repo assignmentRepository) GetAssignment(ctx context.Context, id string, includeDeleted bool, exec ...core.DBExecutor) (assignment.Assignment, error) {
	exe := repo.getExec(exec)

	if _, err := uuid.Parse(id); err != nil {
		return assignment.Assignment{}, assignment.ErrNotFound
	}

	q := psql.Select(assignmentColumns...).From("assignments").Where(sq.Eq{"id": id})
	if !includeDeleted {
		q = q.Where(sq.Expr("deleted_at IS NULL"))
	}
	stmt, args, err := q.ToSql()
	if err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "building query")
	}

	var row assignmentRow
	if err = exe.GetContext(ctx, &row, stmt, args...); err != nil {
		return assignment.Assignment{}, trapNoRowsErr(err, assignment.ErrNotFound, "finding assignment")
	}

	asg := repo.fromRow(row)
	if asg.Questions, err = repo.getQuestions(ctx, exe, id); err != nil {
		return assignment.Assignment{}, err
	}
	return asg, nil
}

func (repo assignmentRepository) UpdateAssignment(ctx context.Context, asg assignment.Assignment, replaceQuestions bool, exec ...core.DBExecutor) (assignment.Assignment, error) {
	exe := repo.getExec(exec)
	row := repo.toRow(asg)

	stmt, args, err := psql.Update("assignments").
		Set("title", row.Title).
		Set("description", row.Description).
		Set("kind", row.Kind).
		Set("points", row.Points).
		Set("opens_at", row.OpensAt).
		Set("due_at", row.DueAt).
		Set("published", row.Published).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": asg.ID}).
		Suffix("RETURNING updated_at").
		ToSql()
	if err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "building query")
	}
	var updatedAt time.Time
	if err = exe.GetContext(ctx, &updatedAt, stmt, args...); err != nil {
		return assignment.Assignment{}, trapNoRowsErr(err, assignment.ErrNotFound, "updating assignment")
	}
	asg.UpdatedAt = updatedAt

	if replaceQuestions {
		stmt, args, err = psql.Delete("assignment_questions").Where(sq.Eq{"assignment_id": asg.ID}).ToSql()
		if err != nil {
			return assignment.Assignment{}, errors.Wrap(err, "building query")
		}
		if _, err = exe.ExecContext(ctx, stmt, args...); err != nil {
			return assignment.Assignment{}, errors.Wrap(err, "deleting questions")
		}
		if asg.Questions, err = repo.insertQuestions(ctx, exe, asg.ID, asg.Questions); err != nil {
			return assignment.Assignment{}, err
		}
	}
	return asg, nil
}

func (repo assignmentRepository) SetAssignmentDeleted(ctx context.Context, id string, deletedAt *time.Time, exec ...core.DBExecutor) (assignment.Assignment, error) {
	exe := repo.getExec(exec)

	if _, err := uuid.Parse(id); err != nil {
		return assignment.Assignment{}, assignment.ErrNotFound
	}

	stmt, args, err := psql.Update("assignments").
		Set("deleted_at", null.TimeFromPtr(deletedAt)).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "building query")
	}
	var updatedID string
	if err = exe.GetContext(ctx, &updatedID, stmt, args...); err != nil {
		return assignment.Assignment{}, trapNoRowsErr(err, assignment.ErrNotFound, "updating assignment")
	}
	return repo.GetAssignment(ctx, id, true, exec...)
}

func (repo assignmentRepository) HasFinalSubmissions(ctx context.Context, assignmentID string, exec ...core.DBExecutor) (bool, error) {
	stmt, args, err := psql.Select("1").From("submissions").
		Where(sq.Eq{"assignment_id": assignmentID, "final": true}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, errors.Wrap(err, "building query")
	}
	var one int
	if err = repo.getExec(exec).GetContext(ctx, &one, stmt, args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, errors.Wrap(err, "checking final submissions")
	}
	return true, nil
}
