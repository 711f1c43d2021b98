package qa

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/zuberi/fizikia/core"
)

var ErrNotFound = errors.New("record not found")

type (
	Repository interface {
		CreateRecord(ctx context.Context, rec Record, exec ...core.DBExecutor) (Record, error)
		QueryRecords(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Pagination, exec ...core.DBExecutor) ([]Record, int64, error)
		DeleteRecordsBefore(ctx context.Context, cutoff time.Time, exec ...core.DBExecutor) (int64, error)
	}

	ServiceInterface interface {
		Log(userID, username string, in NewRecord) (Record, error)
		Query(filter *QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]Record, int64, error)
		PurgeOlderThan(age time.Duration) (int64, error)
	}

	Service struct {
		repo Repository
	}
)

var _ ServiceInterface = (*Service)(nil) // interface compliance check

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Log appends an exchange to the history. Records are never edited.
func (svc *Service) Log(userID, username string, in NewRecord) (Record, error) {
	rec := Record{
		UserID:    userID,
		Username:  username,
		Question:  in.Question,
		Answer:    in.Answer,
		Context:   in.Context,
		CreatedAt: time.Now().UTC(),
	}
	return svc.repo.CreateRecord(context.Background(), rec)
}

func (svc *Service) Query(filter *QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]Record, int64, error) {
	return svc.repo.QueryRecords(context.Background(), filter, ordering, page)
}

// PurgeOlderThan drops records older than age and reports how many went.
func (svc *Service) PurgeOlderThan(age time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-age)
	return svc.repo.DeleteRecordsBefore(context.Background(), cutoff)
}
