package schedmail

import (
	"context"
	"net/mail"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"

	"github.com/zuberi/fizikia/core"
)

var (
	// errors
	ErrNotFound   = errors.New("scheduled email not found")
	ErrNotPending = errors.New("only pending emails can be modified")

	// pause between send attempts of a claimed email
	sendRetryDelay = 2 * time.Second
)

type (
	Repository interface {
		CreateEmail(ctx context.Context, em ScheduledEmail, exec ...core.DBExecutor) (ScheduledEmail, error)
		GetEmail(ctx context.Context, id string, exec ...core.DBExecutor) (ScheduledEmail, error)
		QueryEmails(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Pagination, exec ...core.DBExecutor) ([]ScheduledEmail, int64, error)
		UpdateEmail(ctx context.Context, em ScheduledEmail, exec ...core.DBExecutor) (ScheduledEmail, error)
		// ClaimDueEmails atomically flips due PENDING rows to SENT and returns
		// them, so no two dispatchers pick up the same email.
		ClaimDueEmails(ctx context.Context, now time.Time, limit int, exec ...core.DBExecutor) ([]ScheduledEmail, error)
	}

	ServiceInterface interface {
		Schedule(in NewScheduledEmail, createdBy string) (ScheduledEmail, error)
		Query(filter *QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]ScheduledEmail, int64, error)
		GetByID(id string) (ScheduledEmail, error)
		Update(id string, in UpdateScheduledEmail) (ScheduledEmail, error)
		Cancel(id string) (ScheduledEmail, error)
		DispatchDue() (sent, failed int, err error)
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		conf    *core.Config
	}
)

var _ ServiceInterface = (*Service)(nil) // interface compliance check

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{
		repo:    repo,
		mailSvc: mailSvc,
		conf:    conf,
	}
}

func (svc *Service) Schedule(in NewScheduledEmail, createdBy string) (ScheduledEmail, error) {
	now := time.Now().UTC()
	em := ScheduledEmail{
		Subject:    in.Subject,
		Message:    in.Message,
		Recipients: in.Recipients,
		SendAt:     in.SendAt.UTC(),
		Status:     StatusPending,
		CreatedBy:  createdBy,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return svc.repo.CreateEmail(context.Background(), em)
}

func (svc *Service) Query(filter *QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]ScheduledEmail, int64, error) {
	return svc.repo.QueryEmails(context.Background(), filter, ordering, page)
}

func (svc *Service) GetByID(id string) (ScheduledEmail, error) {
	return svc.repo.GetEmail(context.Background(), id)
}

// Update edits a pending email; empty fields keep their current value.
// Editing an email that already left PENDING is a conflict.
func (svc *Service) Update(id string, in UpdateScheduledEmail) (ScheduledEmail, error) {
	ctx := context.Background()

	em, err := svc.repo.GetEmail(ctx, id)
	if err != nil {
		return ScheduledEmail{}, err
	}
	if !em.IsPending() {
		return ScheduledEmail{}, core.NewConflictError(ErrNotPending)
	}

	if in.Subject != "" {
		em.Subject = in.Subject
	}
	if in.Message != "" {
		em.Message = in.Message
	}
	if in.Recipients != nil {
		em.Recipients = in.Recipients
	}
	if in.SendAt != nil {
		em.SendAt = in.SendAt.UTC()
	}
	em.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateEmail(ctx, em)
}

// Cancel takes a pending email out of the queue for good.
func (svc *Service) Cancel(id string) (ScheduledEmail, error) {
	ctx := context.Background()

	em, err := svc.repo.GetEmail(ctx, id)
	if err != nil {
		return ScheduledEmail{}, err
	}
	if !em.IsPending() {
		return ScheduledEmail{}, core.NewConflictError(ErrNotPending)
	}

	em.Status = StatusCancelled
	em.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateEmail(ctx, em)
}

// DispatchDue claims the emails due now and delivers them, marking each row
// SENT or FAILED. Claiming happens before sending so a crash mid-batch never
// double-sends; the returned error reports bookkeeping failures only.
func (svc *Service) DispatchDue() (sent, failed int, err error) {
	ctx := context.Background()
	now := time.Now().UTC()

	claimed, err := svc.repo.ClaimDueEmails(ctx, now, svc.conf.Dispatch.BatchSize)
	if err != nil {
		return 0, 0, errors.Wrap(err, "claiming due emails")
	}

	for _, em := range claimed {
		if sendErr := svc.send(&em); sendErr != nil {
			em.Status = StatusFailed
			em.LastError = sendErr.Error()
			failed++
		} else {
			em.SentAt = &now
			em.LastError = ""
			sent++
		}
		em.UpdatedAt = time.Now().UTC()
		if _, uErr := svc.repo.UpdateEmail(ctx, em); uErr != nil && err == nil {
			err = errors.Wrap(uErr, "updating dispatched email")
		}
	}
	return sent, failed, err
}

// send delivers one claimed email, retrying transient failures.
func (svc *Service) send(em *ScheduledEmail) error {
	to := make([]mail.Address, 0, len(em.Recipients))
	for _, addr := range em.Recipients {
		to = append(to, mail.Address{Address: addr})
	}
	msg := &core.EmailMessage{
		To:      to,
		Subject: em.Subject,
		BodyStr: em.Message,
	}

	attempts := svc.conf.Dispatch.MaxSendAttempts
	if attempts < 1 {
		attempts = 1
	}
	return retry.Do(
		func() error {
			em.Attempts++
			return svc.mailSvc.SendMessage(msg)
		},
		retry.Attempts(uint(attempts)),
		retry.Delay(sendRetryDelay),
		retry.LastErrorOnly(true),
	)
}
