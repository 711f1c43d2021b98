package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/zuberi/fizikia/core"
	"github.com/zuberi/fizikia/core/appeal"
)

type appealRepository struct {
	db *appealTable
}

var _ appeal.Repository = (*appealRepository)(nil) // interface compliance check

func NewAppealRepository(db *DB) appeal.Repository {
	return &appealRepository{db: db.appeal}
}

func (repo *appealRepository) messages(appealID string) []appeal.AppealMessage {
	msgs := make([]appeal.AppealMessage, 0)
	for _, msg := range repo.db.messages {
		if msg.AppealID == appealID {
			msgs = append(msgs, *msg)
		}
	}
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return msgs
}

func (repo *appealRepository) query() []appeal.GradeAppeal {
	appeals := make([]appeal.GradeAppeal, 0, len(repo.db.table))
	for _, ap := range repo.db.table {
		out := *ap
		out.Messages = nil
		appeals = append(appeals, out)
	}
	sort.Slice(appeals, func(i, j int) bool {
		if appeals[i].CreatedAt.Equal(appeals[j].CreatedAt) {
			return appeals[i].ID < appeals[j].ID
		}
		return appeals[i].CreatedAt.After(appeals[j].CreatedAt)
	})
	return appeals
}

func (repo *appealRepository) CreateAppeal(ctx context.Context, ap appeal.GradeAppeal, exec ...core.DBExecutor) (appeal.GradeAppeal, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	ap.ID = uuid.New().String()
	stored := ap
	stored.Messages = nil
	repo.db.table[ap.ID] = &stored
	return ap, nil
}

func (repo *appealRepository) GetAppeal(ctx context.Context, filter appeal.GetFilter, exec ...core.DBExecutor) (appeal.GradeAppeal, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if ap, ok := repo.db.table[filter.ID]; ok {
			out := *ap
			out.Messages = repo.messages(ap.ID)
			return out, nil
		}
		return appeal.GradeAppeal{}, appeal.ErrNotFound
	}

	if filter.AnswerID != "" {
		// newest matching appeal wins
		for _, ap := range repo.query() {
			if ap.AnswerID != filter.AnswerID {
				continue
			}
			if filter.Status != "" && ap.Status != filter.Status {
				continue
			}
			ap.Messages = repo.messages(ap.ID)
			return ap, nil
		}
	}
	return appeal.GradeAppeal{}, appeal.ErrNotFound
}

func (repo *appealRepository) QueryAppeals(ctx context.Context, filter *appeal.QueryFilter, ordering []core.DBOrdering, page core.Pagination, exec ...core.DBExecutor) ([]appeal.GradeAppeal, int64, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	appeals := make([]appeal.GradeAppeal, 0)
	for _, ap := range repo.query() {
		if filter != nil {
			if filter.AppealerID != "" && ap.AppealerID != filter.AppealerID {
				continue
			}
			if filter.AnswerID != "" && ap.AnswerID != filter.AnswerID {
				continue
			}
			if filter.Status != "" && ap.Status != filter.Status {
				continue
			}
		}
		appeals = append(appeals, ap)
	}

	total := int64(len(appeals))
	lo, hi := paginate(len(appeals), page)
	return appeals[lo:hi], total, nil
}

func (repo *appealRepository) UpdateAppeal(ctx context.Context, ap appeal.GradeAppeal, exec ...core.DBExecutor) (appeal.GradeAppeal, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[ap.ID]
	if !ok {
		return appeal.GradeAppeal{}, appeal.ErrNotFound
	}
	orig.Status = ap.Status
	orig.Resolution = ap.Resolution
	orig.ResolvedBy = ap.ResolvedBy
	orig.ResolvedAt = ap.ResolvedAt
	orig.UpdatedAt = time.Now().UTC()

	ap.UpdatedAt = orig.UpdatedAt
	return ap, nil
}

func (repo *appealRepository) CreateMessage(ctx context.Context, msg appeal.AppealMessage, exec ...core.DBExecutor) (appeal.AppealMessage, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	msg.ID = uuid.New().String()
	repo.db.messages[msg.ID] = &msg
	return msg, nil
}
