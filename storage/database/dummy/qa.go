package dummydb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zuberi/fizikia/core"
	"github.com/zuberi/fizikia/core/qa"
)

type qaRepository struct {
	db *qaTable
}

var _ qa.Repository = (*qaRepository)(nil) // interface compliance check

func NewQARepository(db *DB) qa.Repository {
	return &qaRepository{db: db.qa}
}

func (repo *qaRepository) query() []qa.Record {
	records := make([]qa.Record, 0, len(repo.db.table))
	for _, rec := range repo.db.table {
		records = append(records, *rec)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records
}

func (repo *qaRepository) CreateRecord(ctx context.Context, rec qa.Record, exec ...core.DBExecutor) (qa.Record, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	rec.ID = uuid.New().String()
	repo.db.table[rec.ID] = &rec
	return rec, nil
}

func (repo *qaRepository) QueryRecords(ctx context.Context, filter *qa.QueryFilter, ordering []core.DBOrdering, page core.Pagination, exec ...core.DBExecutor) ([]qa.Record, int64, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	records := make([]qa.Record, 0)
	for _, rec := range repo.query() {
		if filter != nil {
			if filter.Search != "" {
				search := strings.ToLower(filter.Search)
				if !strings.Contains(strings.ToLower(rec.Question), search) &&
					!strings.Contains(strings.ToLower(rec.Answer), search) {
					continue
				}
			}
			if filter.UserID != "" && rec.UserID != filter.UserID {
				continue
			}
			if !filter.CreatedFrom.IsZero() && rec.CreatedAt.Before(filter.CreatedFrom.UTC()) {
				continue
			}
			if !filter.CreatedTo.IsZero() && rec.CreatedAt.After(filter.CreatedTo.UTC()) {
				continue
			}
		}
		records = append(records, rec)
	}

	total := int64(len(records))
	lo, hi := paginate(len(records), page)
	return records[lo:hi], total, nil
}

func (repo *qaRepository) DeleteRecordsBefore(ctx context.Context, cutoff time.Time, exec ...core.DBExecutor) (int64, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var deleted int64
	for id, rec := range repo.db.table {
		if rec.CreatedAt.Before(cutoff) {
			delete(repo.db.table, id)
			deleted++
		}
	}
	return deleted, nil
}
