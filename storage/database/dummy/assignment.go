package dummydb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zuberi/fizikia/core"
	"github.com/zuberi/fizikia/core/assignment"
)

type assignmentRepository struct {
	db  *assignmentTable
	sub *submissionTable
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *DB) assignment.Repository {
	return &assignmentRepository{db: db.assignment, sub: db.submission}
}

// copy returns a detached copy so callers cannot mutate the stored record.
func (repo *assignmentRepository) copy(asg *assignment.Assignment, withQuestions bool) assignment.Assignment {
	out := *asg
	out.Questions = nil
	if withQuestions {
		out.Questions = make([]assignment.Question, len(asg.Questions))
		copy(out.Questions, asg.Questions)
		sort.Slice(out.Questions, func(i, j int) bool { return out.Questions[i].Position < out.Questions[j].Position })
	}
	return out
}

func (repo *assignmentRepository) query() []assignment.Assignment {
	asgs := make([]assignment.Assignment, 0, len(repo.db.table))
	for _, asg := range repo.db.table {
		asgs = append(asgs, repo.copy(asg, false))
	}
	sort.Slice(asgs, func(i, j int) bool {
		if asgs[i].CreatedAt.Equal(asgs[j].CreatedAt) {
			return asgs[i].ID < asgs[j].ID
		}
		return asgs[i].CreatedAt.After(asgs[j].CreatedAt)
	})
	return asgs
}

func (repo *assignmentRepository) CreateAssignment(ctx context.Context, asg assignment.Assignment, exec ...core.DBExecutor) (assignment.Assignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	asg.ID = uuid.New().String()
	for i := range asg.Questions {
		asg.Questions[i].ID = uuid.New().String()
		asg.Questions[i].AssignmentID = asg.ID
	}
	stored := repo.copy(&asg, true)
	repo.db.table[asg.ID] = &stored
	return asg, nil
}

func (repo *assignmentRepository) QueryAssignments(ctx context.Context, filter *assignment.QueryFilter, ordering []core.DBOrdering, page core.Pagination, exec ...core.DBExecutor) ([]assignment.Assignment, int64, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	asgs := make([]assignment.Assignment, 0)
	for _, asg := range repo.query() {
		if (filter == nil || !filter.IncludeDeleted) && asg.IsDeleted() {
			continue
		}
		if filter != nil {
			if filter.Search != "" {
				search := strings.ToLower(filter.Search)
				if !strings.Contains(strings.ToLower(asg.Title), search) &&
					!strings.Contains(strings.ToLower(asg.Description), search) {
					continue
				}
			}
			if filter.Kind != "" && asg.Kind != filter.Kind {
				continue
			}
			if filter.Published != nil && asg.Published != *filter.Published {
				continue
			}
			if !filter.DueFrom.IsZero() && (asg.DueAt == nil || asg.DueAt.Before(filter.DueFrom.UTC())) {
				continue
			}
			if !filter.DueTo.IsZero() && (asg.DueAt == nil || asg.DueAt.After(filter.DueTo.UTC())) {
				continue
			}
		}
		asgs = append(asgs, asg)
	}

	total := int64(len(asgs))
	lo, hi := paginate(len(asgs), page)
	return asgs[lo:hi], total, nil
}

func (repo *assignmentRepository) GetAssignment(ctx context.Context, id string, includeDeleted bool, exec ...core.DBExecutor) (assignment.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	asg, ok := repo.db.table[id]
	if !ok || (!includeDeleted && asg.IsDeleted()) {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	return repo.copy(asg, true), nil
}

func (repo *assignmentRepository) UpdateAssignment(ctx context.Context, asg assignment.Assignment, replaceQuestions bool, exec ...core.DBExecutor) (assignment.Assignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[asg.ID]
	if !ok {
		return assignment.Assignment{}, assignment.ErrNotFound
	}

	if replaceQuestions {
		for i := range asg.Questions {
			asg.Questions[i].ID = uuid.New().String()
			asg.Questions[i].AssignmentID = asg.ID
		}
	} else {
		asg.Questions = orig.Questions
	}
	asg.CreatedAt = orig.CreatedAt
	asg.UpdatedAt = time.Now().UTC()

	stored := repo.copy(&asg, true)
	repo.db.table[asg.ID] = &stored
	return asg, nil
}

func (repo *assignmentRepository) SetAssignmentDeleted(ctx context.Context, id string, deletedAt *time.Time, exec ...core.DBExecutor) (assignment.Assignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	asg, ok := repo.db.table[id]
	if !ok {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	asg.DeletedAt = deletedAt
	asg.UpdatedAt = time.Now().UTC()
	return repo.copy(asg, true), nil
}

func (repo *assignmentRepository) HasFinalSubmissions(ctx context.Context, assignmentID string, exec ...core.DBExecutor) (bool, error) {
	repo.sub.RLock()
	defer repo.sub.RUnlock()

	for _, sub := range repo.sub.table {
		if sub.AssignmentID == assignmentID && sub.Final {
			return true, nil
		}
	}
	return false, nil
}
