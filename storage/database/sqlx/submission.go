package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/zuberi/fizikia/core"
	"github.com/zuberi/fizikia/core/submission"
)

var (
	submissionColumns = []string{"id", "assignment_id", "user_id", "final", "score", "submitted_at", "graded_at", "graded_by", "created_at", "updated_at"}
	answerColumns     = []string{"id", "submission_id", "question_id", "value", "score", "feedback", "auto_graded"}
)

type submissionRow struct {
	ID           string       `db:"id"`
	AssignmentID string       `db:"assignment_id"`
	UserID       string       `db:"user_id"`
	Final        bool         `db:"final"`
	Score        null.Float64 `db:"score"`
	SubmittedAt  null.Time    `db:"submitted_at"`
	GradedAt     null.Time    `db:"graded_at"`
	GradedBy     null.String  `db:"graded_by"`
	CreatedAt    null.Time    `db:"created_at"`
	UpdatedAt    null.Time    `db:"updated_at"`
}

type answerRow struct {
	ID           string       `db:"id"`
	SubmissionID string       `db:"submission_id"`
	QuestionID   string       `db:"question_id"`
	Value        null.String  `db:"value"`
	Score        null.Float64 `db:"score"`
	Feedback     null.String  `db:"feedback"`
	AutoGraded   bool         `db:"auto_graded"`
}

type submissionRepository struct {
	exec core.DBExecutor
}

var _ submission.Repository = (*submissionRepository)(nil) // interface compliance check

func NewSubmissionRepository(exec core.DBExecutor) *submissionRepository {
	return &submissionRepository{exec: exec}
}

func (repo submissionRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

func (repo submissionRepository) toRow(sub submission.Submission) submissionRow {
	return submissionRow{
		ID:           sub.ID,
		AssignmentID: sub.AssignmentID,
		UserID:       sub.UserID,
		Final:        sub.Final,
		Score:        null.Float64FromPtr(sub.Score),
		SubmittedAt:  null.TimeFromPtr(sub.SubmittedAt),
		GradedAt:     null.TimeFromPtr(sub.GradedAt),
		GradedBy:     null.NewString(sub.GradedBy, sub.GradedBy != ""),
		CreatedAt:    null.NewTime(sub.CreatedAt.UTC(), !sub.CreatedAt.IsZero()),
		UpdatedAt:    null.NewTime(sub.UpdatedAt.UTC(), !sub.UpdatedAt.IsZero()),
	}
}

func (repo submissionRepository) fromRow(row submissionRow) submission.Submission {
	return submission.Submission{
		ID:           row.ID,
		AssignmentID: row.AssignmentID,
		UserID:       row.UserID,
		Final:        row.Final,
		Score:        row.Score.Ptr(),
		SubmittedAt:  row.SubmittedAt.Ptr(),
		GradedAt:     row.GradedAt.Ptr(),
		GradedBy:     row.GradedBy.String,
		CreatedAt:    row.CreatedAt.Time,
		UpdatedAt:    row.UpdatedAt.Time,
	}
}

func (repo submissionRepository) answerToRow(ans submission.Answer) answerRow {
	return answerRow{
		ID:           ans.ID,
		SubmissionID: ans.SubmissionID,
		QuestionID:   ans.QuestionID,
		Value:        null.NewString(ans.Value, ans.Value != ""),
		Score:        null.Float64FromPtr(ans.Score),
		Feedback:     null.NewString(ans.Feedback, ans.Feedback != ""),
		AutoGraded:   ans.AutoGraded,
	}
}

func (repo submissionRepository) answerFromRow(row answerRow) submission.Answer {
	return submission.Answer{
		ID:           row.ID,
		SubmissionID: row.SubmissionID,
		QuestionID:   row.QuestionID,
		Value:        row.Value.String,
		Score:        row.Score.Ptr(),
		Feedback:     row.Feedback.String,
		AutoGraded:   row.AutoGraded,
	}
}

func (repo submissionRepository) CreateSubmission(ctx context.Context, sub submission.Submission, exec ...core.DBExecutor) (submission.Submission, error) {
	exe := repo.getExec(exec)

	sub.ID = uuid.New().String()
	row := repo.toRow(sub)

	stmt, args, err := psql.Insert("submissions").Columns(submissionColumns...).
		Values(row.ID, row.AssignmentID, row.UserID, row.Final, row.Score, row.SubmittedAt, row.GradedAt, row.GradedBy, row.CreatedAt, row.UpdatedAt).
		ToSql()
	if err != nil {
		return submission.Submission{}, errors.Wrap(err, "building query")
	}
	if _, err = exe.ExecContext(ctx, stmt, args...); err != nil {
		return submission.Submission{}, errors.Wrap(err, "inserting submission")
	}

	answers, err := repo.insertAnswers(ctx, exe, sub.ID, sub.Answers)
	if err != nil {
		return submission.Submission{}, err
	}
	sub.Answers = answers
	return sub, nil
}

func (repo submissionRepository) insertAnswers(ctx context.Context, exe core.DBExecutor, submissionID string, answers []submission.Answer) ([]submission.Answer, error) {
	if len(answers) == 0 {
		return nil, nil
	}

	q := psql.Insert("submission_answers").Columns(answerColumns...)
	for i := range answers {
		answers[i].ID = uuid.New().String()
		answers[i].SubmissionID = submissionID
		row := repo.answerToRow(answers[i])
		q = q.Values(row.ID, row.SubmissionID, row.QuestionID, row.Value, row.Score, row.Feedback, row.AutoGraded)
	}

	stmt, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	if _, err = exe.ExecContext(ctx, stmt, args...); err != nil {
		return nil, errors.Wrap(err, "inserting answers")
	}
	return answers, nil
}

// getAnswers loads a submission's answers in question order.
func (repo submissionRepository) getAnswers(ctx context.Context, exe core.DBExecutor, submissionID string) ([]submission.Answer, error) {
	stmt, args, err := psql.Select(
		"a.id", "a.submission_id", "a.question_id", "a.value", "a.score", "a.feedback", "a.auto_graded",
	).
		From("submission_answers a").
		Join("assignment_questions q ON q.id = a.question_id").
		Where(sq.Eq{"a.submission_id": submissionID}).
		OrderBy("q.position ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []answerRow
	if err = exe.SelectContext(ctx, &rows, stmt, args...); err != nil {
		return nil, errors.Wrap(err, "querying answers")
	}
	answers := make([]submission.Answer, 0, len(rows))
	for _, row := range rows {
		answers = append(answers, repo.answerFromRow(row))
	}
	return answers, nil
}

func (repo submissionRepository) GetSubmission(ctx context.Context, filter submission.GetFilter, exec ...core.DBExecutor) (submission.Submission, error) {
	exe := repo.getExec(exec)

	q := psql.Select(submissionColumns...).From("submissions")
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return submission.Submission{}, submission.ErrNotFound
		}
		q = q.Where(sq.Eq{"id": filter.ID})
	case filter.AssignmentID != "" && filter.UserID != "":
		q = q.Where(sq.Eq{"assignment_id": filter.AssignmentID, "user_id": filter.UserID})
		if filter.Final != nil {
			q = q.Where(sq.Eq{"final": *filter.Final})
		}
	default:
		return submission.Submission{}, submission.ErrNotFound
	}

	stmt, args, err := q.ToSql()
	if err != nil {
		return submission.Submission{}, errors.Wrap(err, "building query")
	}
	var row submissionRow
	if err = exe.GetContext(ctx, &row, stmt, args...); err != nil {
		return submission.Submission{}, trapNoRowsErr(err, submission.ErrNotFound, "finding submission")
	}

	sub := repo.fromRow(row)
	if sub.Answers, err = repo.getAnswers(ctx, exe, sub.ID); err != nil {
		return submission.Submission{}, err
	}
	return sub, nil
}

// QuerySubmissions lists matching submissions without their answers;
// GetSubmission loads the full record.
func (repo submissionRepository) QuerySubmissions(ctx context.Context, filter *submission.QueryFilter, ordering []core.DBOrdering, page core.Pagination, exec ...core.DBExecutor) ([]submission.Submission, int64, error) {
	exe := repo.getExec(exec)

	conds := make([]sq.Sqlizer, 0, 4)
	if filter != nil {
		if filter.AssignmentID != "" {
			conds = append(conds, sq.Eq{"assignment_id": filter.AssignmentID})
		}
		if filter.UserID != "" {
			conds = append(conds, sq.Eq{"user_id": filter.UserID})
		}
		if filter.Final != nil {
			conds = append(conds, sq.Eq{"final": *filter.Final})
		}
		if filter.Graded != nil {
			if *filter.Graded {
				conds = append(conds, sq.Expr("graded_at IS NOT NULL"))
			} else {
				conds = append(conds, sq.Expr("graded_at IS NULL"))
			}
		}
	}

	countQ := psql.Select("COUNT(*)").From("submissions")
	dataQ := psql.Select(submissionColumns...).From("submissions")
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
		return nil, 0, errors.Wrap(err, "counting submissions")
	}

	stmt, args, err = dataQ.
		OrderBy(orderBy(ordering, "created_at DESC")).
		Offset(uint64(page.Offset())).
		Limit(uint64(page.Limit())).
		ToSql()
	if err != nil {
		return nil, 0, errors.Wrap(err, "building query")
	}
	var rows []submissionRow
	if err = exe.SelectContext(ctx, &rows, stmt, args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying submissions")
	}

	subs := make([]submission.Submission, 0, len(rows))
	for _, row := range rows {
		subs = append(subs, repo.fromRow(row))
	}
	return subs, total, nil
}

func (repo submissionRepository) UpdateSubmission(ctx context.Context, sub submission.Submission, replaceAnswers bool, exec ...core.DBExecutor) (submission.Submission, error) {
	exe := repo.getExec(exec)
	row := repo.toRow(sub)

	stmt, args, err := psql.Update("submissions").
		Set("final", row.Final).
		Set("score", row.Score).
		Set("submitted_at", row.SubmittedAt).
		Set("graded_at", row.GradedAt).
		Set("graded_by", row.GradedBy).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": sub.ID}).
		Suffix("RETURNING updated_at").
		ToSql()
	if err != nil {
		return submission.Submission{}, errors.Wrap(err, "building query")
	}
	var updatedAt time.Time
	if err = exe.GetContext(ctx, &updatedAt, stmt, args...); err != nil {
		return submission.Submission{}, trapNoRowsErr(err, submission.ErrNotFound, "updating submission")
	}
	sub.UpdatedAt = updatedAt

	if replaceAnswers {
		stmt, args, err = psql.Delete("submission_answers").Where(sq.Eq{"submission_id": sub.ID}).ToSql()
		if err != nil {
			return submission.Submission{}, errors.Wrap(err, "building query")
		}
		if _, err = exe.ExecContext(ctx, stmt, args...); err != nil {
			return submission.Submission{}, errors.Wrap(err, "deleting answers")
		}
		if sub.Answers, err = repo.insertAnswers(ctx, exe, sub.ID, sub.Answers); err != nil {
			return submission.Submission{}, err
		}
	}
	return sub, nil
}

func (repo submissionRepository) GetAnswer(ctx context.Context, id string, exec ...core.DBExecutor) (submission.Answer, error) {
	exe := repo.getExec(exec)

	if _, err := uuid.Parse(id); err != nil {
		return submission.Answer{}, submission.ErrAnswerNotFound
	}

	stmt, args, err := psql.Select(answerColumns...).From("submission_answers").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return submission.Answer{}, errors.Wrap(err, "building query")
	}
	var row answerRow
	if err = exe.GetContext(ctx, &row, stmt, args...); err != nil {
		return submission.Answer{}, trapNoRowsErr(err, submission.ErrAnswerNotFound, "finding answer")
	}
	return repo.answerFromRow(row), nil
}

func (repo submissionRepository) UpdateAnswer(ctx context.Context, ans submission.Answer, exec ...core.DBExecutor) (submission.Answer, error) {
	exe := repo.getExec(exec)
	row := repo.answerToRow(ans)

	stmt, args, err := psql.Update("submission_answers").
		Set("value", row.Value).
		Set("score", row.Score).
		Set("feedback", row.Feedback).
		Set("auto_graded", row.AutoGraded).
		Where(sq.Eq{"id": ans.ID}).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return submission.Answer{}, errors.Wrap(err, "building query")
	}
	var updatedID string
	if err = exe.GetContext(ctx, &updatedID, stmt, args...); err != nil {
		return submission.Answer{}, trapNoRowsErr(err, submission.ErrAnswerNotFound, "updating answer")
	}
	return ans, nil
}
