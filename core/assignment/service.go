package assignment

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/zuberi/fizikia/core"
)

var (
	// errors
	ErrNotFound            = errors.New("assignment not found")
	ErrHasFinalSubmissions = errors.New("assignment already has final submissions")
)

type (
	Repository interface {
		CreateAssignment(ctx context.Context, asg Assignment, exec ...core.DBExecutor) (Assignment, error)
		QueryAssignments(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Pagination, exec ...core.DBExecutor) ([]Assignment, int64, error)
		// GetAssignment loads an assignment and its questions ordered by position.
		GetAssignment(ctx context.Context, id string, includeDeleted bool, exec ...core.DBExecutor) (Assignment, error)
		UpdateAssignment(ctx context.Context, asg Assignment, replaceQuestions bool, exec ...core.DBExecutor) (Assignment, error)
		SetAssignmentDeleted(ctx context.Context, id string, deletedAt *time.Time, exec ...core.DBExecutor) (Assignment, error)
		HasFinalSubmissions(ctx context.Context, assignmentID string, exec ...core.DBExecutor) (bool, error)
	}

	ServiceInterface interface {
		Create(na NewAssignment, createdBy string) (Assignment, error)
		Query(filter *QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]Assignment, int64, error)
		GetByID(id string, includeDeleted bool) (Assignment, error)
		Update(id string, ua UpdateAssignment) (Assignment, error)
		SoftDelete(id string) error
		Restore(id string) (Assignment, error)
	}

	Service struct {
		db   core.DB
		repo Repository
	}
)

var _ ServiceInterface = (*Service)(nil) // interface compliance check

func NewService(db core.DB, repo Repository) *Service {
	return &Service{db: db, repo: repo}
}

// Create stores the assignment and its question set atomically.
func (svc *Service) Create(na NewAssignment, createdBy string) (Assignment, error) {
	ctx := context.Background()
	now := time.Now().UTC()

	asg := Assignment{
		Title:       na.Title,
		Description: na.Description,
		Kind:        na.Kind,
		OpensAt:     na.OpensAt,
		DueAt:       na.DueAt,
		Published:   na.Published,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
		Questions:   buildQuestions(na.Questions),
	}
	asg.Points = asg.TotalPoints()

	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return Assignment{}, errors.Wrap(err, "beginning transaction")
	}
	asg, err = svc.repo.CreateAssignment(ctx, asg, tx)
	if err != nil {
		_ = tx.Rollback()
		return Assignment{}, err
	}
	if err = tx.Commit(); err != nil {
		return Assignment{}, errors.Wrap(err, "committing transaction")
	}
	return asg, nil
}

func (svc *Service) Query(filter *QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]Assignment, int64, error) {
	return svc.repo.QueryAssignments(context.Background(), filter, ordering, page)
}

func (svc *Service) GetByID(id string, includeDeleted bool) (Assignment, error) {
	return svc.repo.GetAssignment(context.Background(), id, includeDeleted)
}

// Update applies ua to the stored Assignment; empty fields keep their current
// value. Replacing the question set is refused once a final submission exists
// so persisted answers stay consistent.
func (svc *Service) Update(id string, ua UpdateAssignment) (Assignment, error) {
	ctx := context.Background()

	asg, err := svc.repo.GetAssignment(ctx, id, true /* includeDeleted */)
	if err != nil {
		return Assignment{}, err
	}

	if ua.Title != "" {
		asg.Title = ua.Title
	}
	if ua.Description != nil {
		asg.Description = core.CleanString(*ua.Description)
	}
	if ua.Kind != "" {
		asg.Kind = ua.Kind
	}
	if ua.OpensAt != nil {
		asg.OpensAt = ua.OpensAt
	}
	if ua.DueAt != nil {
		asg.DueAt = ua.DueAt
	}
	if ua.Published != nil {
		asg.Published = *ua.Published
	}

	replaceQuestions := ua.Questions != nil
	if replaceQuestions {
		hasFinal, err := svc.repo.HasFinalSubmissions(ctx, id)
		if err != nil {
			return Assignment{}, errors.Wrap(err, "checking final submissions")
		}
		if hasFinal {
			return Assignment{}, core.NewConflictError(ErrHasFinalSubmissions)
		}
		asg.Questions = buildQuestions(ua.Questions)
		asg.Points = asg.TotalPoints()
	}
	asg.UpdatedAt = time.Now().UTC()

	if !replaceQuestions {
		return svc.repo.UpdateAssignment(ctx, asg, false)
	}

	// swap the question set atomically
	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return Assignment{}, errors.Wrap(err, "beginning transaction")
	}
	asg, err = svc.repo.UpdateAssignment(ctx, asg, true, tx)
	if err != nil {
		_ = tx.Rollback()
		return Assignment{}, err
	}
	if err = tx.Commit(); err != nil {
		return Assignment{}, errors.Wrap(err, "committing transaction")
	}
	return asg, nil
}

func (svc *Service) SoftDelete(id string) error {
	now := time.Now().UTC()
	_, err := svc.repo.SetAssignmentDeleted(context.Background(), id, &now)
	return err
}

func (svc *Service) Restore(id string) (Assignment, error) {
	return svc.repo.SetAssignmentDeleted(context.Background(), id, nil)
}

// buildQuestions assigns dense 1..N positions from the input order.
func buildQuestions(qs []NewQuestion) []Question {
	questions := make([]Question, 0, len(qs))
	for i, q := range qs {
		questions = append(questions, Question{
			Position:      i + 1,
			Text:          q.Text,
			Kind:          q.Kind,
			Options:       q.Options,
			CorrectAnswer: q.CorrectAnswer,
			Tolerance:     q.Tolerance,
			Points:        q.Points,
		})
	}
	return questions
}
