package appeal

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/zuberi/fizikia/core"
	"github.com/zuberi/fizikia/core/assignment"
	"github.com/zuberi/fizikia/core/submission"
	"github.com/zuberi/fizikia/core/user"
)

var (
	// errors
	ErrNotFound       = errors.New("appeal not found")
	ErrAppealExists   = errors.New("an open appeal already exists for this answer")
	ErrAppealClosed   = errors.New("appeal has been resolved")
	ErrAppealNotDone  = errors.New("appeal is still open")
	ErrNotAnswerOwner = errors.New("answer belongs to another user")
	ErrNotGraded      = errors.New("answer has not been graded")
)

type (
	Repository interface {
		CreateAppeal(ctx context.Context, ap GradeAppeal, exec ...core.DBExecutor) (GradeAppeal, error)
		// GetAppeal loads an appeal and its message thread.
		GetAppeal(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (GradeAppeal, error)
		QueryAppeals(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Pagination, exec ...core.DBExecutor) ([]GradeAppeal, int64, error)
		UpdateAppeal(ctx context.Context, ap GradeAppeal, exec ...core.DBExecutor) (GradeAppeal, error)
		CreateMessage(ctx context.Context, msg AppealMessage, exec ...core.DBExecutor) (AppealMessage, error)
	}

	ServiceInterface interface {
		Open(appealerID string, in NewAppeal) (GradeAppeal, error)
		AddMessage(appealID, authorID string, in NewMessage) (AppealMessage, error)
		Resolve(appealID, resolverID string, in ResolveInput) (GradeAppeal, error)
		Reopen(appealID string) (GradeAppeal, error)
		Query(filter *QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]GradeAppeal, int64, error)
		GetByID(id string) (GradeAppeal, error)
	}

	Service struct {
		repo    Repository
		subSvc  submission.ServiceInterface
		asgSvc  assignment.ServiceInterface
		usrSvc  user.ServiceInterface
		mailSvc core.EmailService
		conf    *core.Config
	}
)

var _ ServiceInterface = (*Service)(nil) // interface compliance check

func NewService(
	repo Repository,
	subSvc submission.ServiceInterface,
	asgSvc assignment.ServiceInterface,
	usrSvc user.ServiceInterface,
	mailSvc core.EmailService,
	conf *core.Config,
) *Service {
	return &Service{
		repo:    repo,
		subSvc:  subSvc,
		asgSvc:  asgSvc,
		usrSvc:  usrSvc,
		mailSvc: mailSvc,
		conf:    conf,
	}
}

// Open files an appeal against a graded answer owned by the appealer.
// A second open appeal on the same answer is a conflict.
func (svc *Service) Open(appealerID string, in NewAppeal) (GradeAppeal, error) {
	ctx := context.Background()
	now := time.Now().UTC()

	ans, err := svc.subSvc.GetAnswerByID(in.AnswerID)
	if err != nil {
		return GradeAppeal{}, err
	}
	if ans.Score == nil {
		return GradeAppeal{}, core.NewValidationError(ErrNotGraded)
	}
	sub, err := svc.subSvc.GetByID(ans.SubmissionID)
	if err != nil {
		return GradeAppeal{}, errors.Wrap(err, "finding submission")
	}
	if sub.UserID != appealerID {
		return GradeAppeal{}, ErrNotAnswerOwner
	}

	if _, err = svc.repo.GetAppeal(ctx, GetFilter{AnswerID: in.AnswerID, Status: StatusOpen}); err == nil {
		return GradeAppeal{}, core.NewConflictError(ErrAppealExists)
	} else if errors.Cause(err) != ErrNotFound {
		return GradeAppeal{}, errors.Wrap(err, "finding open appeal")
	}

	ap := GradeAppeal{
		AnswerID:   in.AnswerID,
		AppealerID: appealerID,
		Status:     StatusOpen,
		Reason:     in.Reason,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return svc.repo.CreateAppeal(ctx, ap)
}

// AddMessage appends to the thread of an open appeal.
func (svc *Service) AddMessage(appealID, authorID string, in NewMessage) (AppealMessage, error) {
	ctx := context.Background()

	ap, err := svc.repo.GetAppeal(ctx, GetFilter{ID: appealID})
	if err != nil {
		return AppealMessage{}, err
	}
	if !ap.IsOpen() {
		return AppealMessage{}, core.NewConflictError(ErrAppealClosed)
	}

	msg := AppealMessage{
		AppealID:  appealID,
		AuthorID:  authorID,
		Body:      in.Body,
		CreatedAt: time.Now().UTC(),
	}
	return svc.repo.CreateMessage(ctx, msg)
}

// Resolve closes an open appeal with a resolution note. When a score is
// given the disputed answer is re-graded first, then the appealer is notified.
func (svc *Service) Resolve(appealID, resolverID string, in ResolveInput) (GradeAppeal, error) {
	ctx := context.Background()
	now := time.Now().UTC()

	ap, err := svc.repo.GetAppeal(ctx, GetFilter{ID: appealID})
	if err != nil {
		return GradeAppeal{}, err
	}
	if !ap.IsOpen() {
		return GradeAppeal{}, core.NewConflictError(ErrAppealClosed)
	}

	if in.Score != nil {
		ga := submission.GradeAnswerInput{Score: in.Score, Feedback: in.Feedback}
		if _, err = svc.subSvc.GradeAnswer(ap.AnswerID, resolverID, ga); err != nil {
			return GradeAppeal{}, errors.Wrap(err, "re-grading answer")
		}
	}

	ap.Status = StatusResolved
	ap.Resolution = in.Resolution
	ap.ResolvedBy = resolverID
	ap.ResolvedAt = &now
	ap.UpdatedAt = now

	ap, err = svc.repo.UpdateAppeal(ctx, ap)
	if err != nil {
		return GradeAppeal{}, err
	}

	svc.sendUpdateEmail(ap)
	return ap, nil
}

// Reopen puts a resolved appeal back in front of staff, clearing the
// previous resolution. The one-open-appeal-per-answer rule still holds.
func (svc *Service) Reopen(appealID string) (GradeAppeal, error) {
	ctx := context.Background()

	ap, err := svc.repo.GetAppeal(ctx, GetFilter{ID: appealID})
	if err != nil {
		return GradeAppeal{}, err
	}
	if !ap.IsResolved() {
		return GradeAppeal{}, core.NewConflictError(ErrAppealNotDone)
	}
	if _, err = svc.repo.GetAppeal(ctx, GetFilter{AnswerID: ap.AnswerID, Status: StatusOpen}); err == nil {
		return GradeAppeal{}, core.NewConflictError(ErrAppealExists)
	} else if errors.Cause(err) != ErrNotFound {
		return GradeAppeal{}, errors.Wrap(err, "finding open appeal")
	}

	ap.Status = StatusOpen
	ap.Resolution = ""
	ap.ResolvedBy = ""
	ap.ResolvedAt = nil
	ap.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateAppeal(ctx, ap)
}

func (svc *Service) Query(filter *QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]GradeAppeal, int64, error) {
	return svc.repo.QueryAppeals(context.Background(), filter, ordering, page)
}

func (svc *Service) GetByID(id string) (GradeAppeal, error) {
	return svc.repo.GetAppeal(context.Background(), GetFilter{ID: id})
}

func (svc *Service) sendUpdateEmail(ap GradeAppeal) {
	usr, err := svc.usrSvc.GetByID(ap.AppealerID)
	if err != nil || usr.Email == "" {
		return
	}

	title := "your assignment"
	if ans, err := svc.subSvc.GetAnswerByID(ap.AnswerID); err == nil {
		if sub, err := svc.subSvc.GetByID(ans.SubmissionID); err == nil {
			if asg, err := svc.asgSvc.GetByID(sub.AssignmentID, true); err == nil {
				title = asg.Title
			}
		}
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      fmt.Sprintf("Update on your grade appeal for %q", title),
		TemplateName: "appeal-update",
		TemplateData: updateEmailData{
			Username:        usr.Username,
			AssignmentTitle: title,
			Status:          ap.Status,
			Resolution:      ap.Resolution,
			AppealID:        ap.ID,
		},
	})
}

type updateEmailData struct {
	Username        string
	AssignmentTitle string
	Status          string
	Resolution      string
	AppealID        string
}
