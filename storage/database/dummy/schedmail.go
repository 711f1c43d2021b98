package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/zuberi/fizikia/core"
	"github.com/zuberi/fizikia/core/schedmail"
)

type scheduledEmailRepository struct {
	db *emailTable
}

var _ schedmail.Repository = (*scheduledEmailRepository)(nil) // interface compliance check

func NewScheduledEmailRepository(db *DB) schedmail.Repository {
	return &scheduledEmailRepository{db: db.email}
}

func (repo *scheduledEmailRepository) copy(em *schedmail.ScheduledEmail) schedmail.ScheduledEmail {
	out := *em
	out.Recipients = make([]string, len(em.Recipients))
	copy(out.Recipients, em.Recipients)
	return out
}

// query returns all emails ordered by send time, soonest first.
func (repo *scheduledEmailRepository) query() []schedmail.ScheduledEmail {
	emails := make([]schedmail.ScheduledEmail, 0, len(repo.db.table))
	for _, em := range repo.db.table {
		emails = append(emails, repo.copy(em))
	}
	sort.Slice(emails, func(i, j int) bool {
		if emails[i].SendAt.Equal(emails[j].SendAt) {
			return emails[i].ID < emails[j].ID
		}
		return emails[i].SendAt.Before(emails[j].SendAt)
	})
	return emails
}

func (repo *scheduledEmailRepository) CreateEmail(ctx context.Context, em schedmail.ScheduledEmail, exec ...core.DBExecutor) (schedmail.ScheduledEmail, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	em.ID = uuid.New().String()
	stored := repo.copy(&em)
	repo.db.table[em.ID] = &stored
	return em, nil
}

func (repo *scheduledEmailRepository) GetEmail(ctx context.Context, id string, exec ...core.DBExecutor) (schedmail.ScheduledEmail, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if em, ok := repo.db.table[id]; ok {
		return repo.copy(em), nil
	}
	return schedmail.ScheduledEmail{}, schedmail.ErrNotFound
}

func (repo *scheduledEmailRepository) QueryEmails(ctx context.Context, filter *schedmail.QueryFilter, ordering []core.DBOrdering, page core.Pagination, exec ...core.DBExecutor) ([]schedmail.ScheduledEmail, int64, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	emails := make([]schedmail.ScheduledEmail, 0)
	for _, em := range repo.query() {
		if filter != nil {
			if filter.Status != "" && em.Status != filter.Status {
				continue
			}
			if filter.CreatedBy != "" && em.CreatedBy != filter.CreatedBy {
				continue
			}
			if !filter.SendFrom.IsZero() && em.SendAt.Before(filter.SendFrom.UTC()) {
				continue
			}
			if !filter.SendTo.IsZero() && em.SendAt.After(filter.SendTo.UTC()) {
				continue
			}
		}
		emails = append(emails, em)
	}

	total := int64(len(emails))
	lo, hi := paginate(len(emails), page)
	return emails[lo:hi], total, nil
}

func (repo *scheduledEmailRepository) UpdateEmail(ctx context.Context, em schedmail.ScheduledEmail, exec ...core.DBExecutor) (schedmail.ScheduledEmail, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[em.ID]
	if !ok {
		return schedmail.ScheduledEmail{}, schedmail.ErrNotFound
	}
	em.CreatedAt = orig.CreatedAt
	em.UpdatedAt = time.Now().UTC()

	stored := repo.copy(&em)
	repo.db.table[em.ID] = &stored
	return em, nil
}

func (repo *scheduledEmailRepository) ClaimDueEmails(ctx context.Context, now time.Time, limit int, exec ...core.DBExecutor) ([]schedmail.ScheduledEmail, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	due := make([]schedmail.ScheduledEmail, 0)
	for _, em := range repo.query() {
		if len(due) >= limit {
			break
		}
		if !em.IsDue(now) {
			continue
		}
		stored := repo.db.table[em.ID]
		stored.Status = schedmail.StatusSent
		stored.UpdatedAt = now.UTC()
		due = append(due, repo.copy(stored))
	}
	return due, nil
}
