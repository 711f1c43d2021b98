package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/zuberi/fizikia/core"
	"github.com/zuberi/fizikia/core/submission"
)

type submissionRepository struct {
	db *submissionTable
}

var _ submission.Repository = (*submissionRepository)(nil) // interface compliance check

func NewSubmissionRepository(db *DB) submission.Repository {
	return &submissionRepository{db: db.submission}
}

func (repo *submissionRepository) copy(sub *submission.Submission, withAnswers bool) submission.Submission {
	out := *sub
	out.Answers = nil
	if withAnswers {
		out.Answers = make([]submission.Answer, len(sub.Answers))
		copy(out.Answers, sub.Answers)
	}
	return out
}

func (repo *submissionRepository) query() []submission.Submission {
	subs := make([]submission.Submission, 0, len(repo.db.table))
	for _, sub := range repo.db.table {
		subs = append(subs, repo.copy(sub, false))
	}
	sort.Slice(subs, func(i, j int) bool {
		if subs[i].CreatedAt.Equal(subs[j].CreatedAt) {
			return subs[i].ID < subs[j].ID
		}
		return subs[i].CreatedAt.After(subs[j].CreatedAt)
	})
	return subs
}

func (repo *submissionRepository) CreateSubmission(ctx context.Context, sub submission.Submission, exec ...core.DBExecutor) (submission.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	sub.ID = uuid.New().String()
	for i := range sub.Answers {
		sub.Answers[i].ID = uuid.New().String()
		sub.Answers[i].SubmissionID = sub.ID
	}
	stored := repo.copy(&sub, true)
	repo.db.table[sub.ID] = &stored
	return sub, nil
}

func (repo *submissionRepository) GetSubmission(ctx context.Context, filter submission.GetFilter, exec ...core.DBExecutor) (submission.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if sub, ok := repo.db.table[filter.ID]; ok {
			return repo.copy(sub, true), nil
		}
		return submission.Submission{}, submission.ErrNotFound
	}

	if filter.AssignmentID != "" && filter.UserID != "" {
		for _, sub := range repo.db.table {
			if sub.AssignmentID != filter.AssignmentID || sub.UserID != filter.UserID {
				continue
			}
			if filter.Final != nil && sub.Final != *filter.Final {
				continue
			}
			return repo.copy(sub, true), nil
		}
	}
	return submission.Submission{}, submission.ErrNotFound
}

func (repo *submissionRepository) QuerySubmissions(ctx context.Context, filter *submission.QueryFilter, ordering []core.DBOrdering, page core.Pagination, exec ...core.DBExecutor) ([]submission.Submission, int64, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	subs := make([]submission.Submission, 0)
	for _, sub := range repo.query() {
		if filter != nil {
			if filter.AssignmentID != "" && sub.AssignmentID != filter.AssignmentID {
				continue
			}
			if filter.UserID != "" && sub.UserID != filter.UserID {
				continue
			}
			if filter.Final != nil && sub.Final != *filter.Final {
				continue
			}
			if filter.Graded != nil && (sub.GradedAt != nil) != *filter.Graded {
				continue
			}
		}
		subs = append(subs, sub)
	}

	total := int64(len(subs))
	lo, hi := paginate(len(subs), page)
	return subs[lo:hi], total, nil
}

func (repo *submissionRepository) UpdateSubmission(ctx context.Context, sub submission.Submission, replaceAnswers bool, exec ...core.DBExecutor) (submission.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[sub.ID]
	if !ok {
		return submission.Submission{}, submission.ErrNotFound
	}

	if replaceAnswers {
		for i := range sub.Answers {
			sub.Answers[i].ID = uuid.New().String()
			sub.Answers[i].SubmissionID = sub.ID
		}
	} else {
		sub.Answers = orig.Answers
	}
	sub.CreatedAt = orig.CreatedAt
	sub.UpdatedAt = time.Now().UTC()

	stored := repo.copy(&sub, true)
	repo.db.table[sub.ID] = &stored
	return sub, nil
}

func (repo *submissionRepository) GetAnswer(ctx context.Context, id string, exec ...core.DBExecutor) (submission.Answer, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, sub := range repo.db.table {
		for _, ans := range sub.Answers {
			if ans.ID == id {
				return ans, nil
			}
		}
	}
	return submission.Answer{}, submission.ErrAnswerNotFound
}

func (repo *submissionRepository) UpdateAnswer(ctx context.Context, ans submission.Answer, exec ...core.DBExecutor) (submission.Answer, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, sub := range repo.db.table {
		for i := range sub.Answers {
			if sub.Answers[i].ID == ans.ID {
				sub.Answers[i].Value = ans.Value
				sub.Answers[i].Score = ans.Score
				sub.Answers[i].Feedback = ans.Feedback
				sub.Answers[i].AutoGraded = ans.AutoGraded
				return sub.Answers[i], nil
			}
		}
	}
	return submission.Answer{}, submission.ErrAnswerNotFound
}
