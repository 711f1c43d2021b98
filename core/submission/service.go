package submission

import (
	"context"
	"fmt"
	"math"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/zuberi/fizikia/core"
	"github.com/zuberi/fizikia/core/assignment"
	"github.com/zuberi/fizikia/core/user"
)

var (
	// errors
	ErrNotFound         = errors.New("submission not found")
	ErrAnswerNotFound   = errors.New("answer not found")
	ErrAlreadySubmitted = errors.New("a final submission already exists for this assignment")
	ErrAssignmentClosed = errors.New("assignment is not open for submissions")
	ErrUnknownQuestion  = errors.New("answer references an unknown question")
	ErrDuplicateAnswer  = errors.New("duplicate answer for the same question")
	ErrDraftNotGradable = errors.New("drafts cannot be graded")
)

type (
	Repository interface {
		CreateSubmission(ctx context.Context, sub Submission, exec ...core.DBExecutor) (Submission, error)
		// GetSubmission loads a submission and its answers.
		GetSubmission(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Submission, error)
		QuerySubmissions(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Pagination, exec ...core.DBExecutor) ([]Submission, int64, error)
		UpdateSubmission(ctx context.Context, sub Submission, replaceAnswers bool, exec ...core.DBExecutor) (Submission, error)
		GetAnswer(ctx context.Context, id string, exec ...core.DBExecutor) (Answer, error)
		UpdateAnswer(ctx context.Context, ans Answer, exec ...core.DBExecutor) (Answer, error)
	}

	ServiceInterface interface {
		SaveDraft(assignmentID, userID string, in SubmissionInput) (Submission, error)
		SubmitFinal(assignmentID, userID string, in SubmissionInput) (Submission, error)
		GradeAnswer(answerID, graderID string, in GradeAnswerInput) (Submission, error)
		Query(filter *QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]Submission, int64, error)
		GetByID(id string) (Submission, error)
		GetAnswerByID(id string) (Answer, error)
		GetMine(assignmentID, userID string) ([]Submission, error)
	}

	Service struct {
		db      core.DB
		repo    Repository
		asgSvc  assignment.ServiceInterface
		usrSvc  user.ServiceInterface
		mailSvc core.EmailService
		conf    *core.Config
	}
)

var _ ServiceInterface = (*Service)(nil) // interface compliance check

func NewService(
	db core.DB,
	repo Repository,
	asgSvc assignment.ServiceInterface,
	usrSvc user.ServiceInterface,
	mailSvc core.EmailService,
	conf *core.Config,
) *Service {
	return &Service{
		db:      db,
		repo:    repo,
		asgSvc:  asgSvc,
		usrSvc:  usrSvc,
		mailSvc: mailSvc,
		conf:    conf,
	}
}

// SaveDraft upserts the single draft a user keeps per assignment.
func (svc *Service) SaveDraft(assignmentID, userID string, in SubmissionInput) (Submission, error) {
	ctx := context.Background()
	now := time.Now().UTC()

	asg, err := svc.openAssignment(assignmentID, now)
	if err != nil {
		return Submission{}, err
	}
	answers, err := buildAnswers(asg, in, false /* fill */)
	if err != nil {
		return Submission{}, err
	}

	final := false
	draft, err := svc.repo.GetSubmission(ctx, GetFilter{AssignmentID: assignmentID, UserID: userID, Final: &final})
	if err != nil {
		if errors.Cause(err) != ErrNotFound {
			return Submission{}, errors.Wrap(err, "finding draft")
		}
		draft = Submission{
			AssignmentID: assignmentID,
			UserID:       userID,
			CreatedAt:    now,
			UpdatedAt:    now,
			Answers:      answers,
		}
		err = svc.inTx(ctx, func(tx core.Tx) error {
			var txErr error
			draft, txErr = svc.repo.CreateSubmission(ctx, draft, tx)
			return txErr
		})
		return draft, err
	}

	draft.Answers = answers
	draft.UpdatedAt = now
	err = svc.inTx(ctx, func(tx core.Tx) error {
		var txErr error
		draft, txErr = svc.repo.UpdateSubmission(ctx, draft, true /* replaceAnswers */, tx)
		return txErr
	})
	return draft, err
}

// SubmitFinal promotes the draft (or creates a new record) into the single
// final submission, auto-grading what can be auto-graded. A second final
// submit is a conflict.
func (svc *Service) SubmitFinal(assignmentID, userID string, in SubmissionInput) (Submission, error) {
	ctx := context.Background()
	now := time.Now().UTC()

	asg, err := svc.openAssignment(assignmentID, now)
	if err != nil {
		return Submission{}, err
	}

	final := true
	if _, err = svc.repo.GetSubmission(ctx, GetFilter{AssignmentID: assignmentID, UserID: userID, Final: &final}); err == nil {
		return Submission{}, core.NewConflictError(ErrAlreadySubmitted)
	} else if errors.Cause(err) != ErrNotFound {
		return Submission{}, errors.Wrap(err, "finding final submission")
	}

	answers, err := buildAnswers(asg, in, true /* fill */)
	if err != nil {
		return Submission{}, err
	}
	for i := range answers {
		autoGrade(asg, &answers[i])
	}

	// promote the draft when one exists
	notFinal := false
	sub, err := svc.repo.GetSubmission(ctx, GetFilter{AssignmentID: assignmentID, UserID: userID, Final: &notFinal})
	if err != nil {
		if errors.Cause(err) != ErrNotFound {
			return Submission{}, errors.Wrap(err, "finding draft")
		}
		sub = Submission{
			AssignmentID: assignmentID,
			UserID:       userID,
			CreatedAt:    now,
		}
	}

	sub.Final = true
	sub.SubmittedAt = &now
	sub.UpdatedAt = now
	sub.Answers = answers
	finalizeScore(&sub, "", now)

	err = svc.inTx(ctx, func(tx core.Tx) error {
		var txErr error
		if sub.ID == "" {
			sub, txErr = svc.repo.CreateSubmission(ctx, sub, tx)
		} else {
			sub, txErr = svc.repo.UpdateSubmission(ctx, sub, true /* replaceAnswers */, tx)
		}
		return txErr
	})
	return sub, err
}

// GradeAnswer records a manual score, clamped to [0, question points]. Once
// every answer is scored the submission total is derived and the student is
// notified.
func (svc *Service) GradeAnswer(answerID, graderID string, in GradeAnswerInput) (Submission, error) {
	ctx := context.Background()
	now := time.Now().UTC()

	ans, err := svc.repo.GetAnswer(ctx, answerID)
	if err != nil {
		return Submission{}, err
	}
	sub, err := svc.repo.GetSubmission(ctx, GetFilter{ID: ans.SubmissionID})
	if err != nil {
		return Submission{}, errors.Wrap(err, "finding submission")
	}
	if !sub.Final {
		return Submission{}, core.NewValidationError(ErrDraftNotGradable)
	}

	asg, err := svc.asgSvc.GetByID(sub.AssignmentID, true /* includeDeleted */)
	if err != nil {
		return Submission{}, errors.Wrap(err, "finding assignment")
	}
	var maxPoints float64
	for _, q := range asg.Questions {
		if q.ID == ans.QuestionID {
			maxPoints = q.Points
			break
		}
	}

	score := math.Max(0, math.Min(*in.Score, maxPoints))
	ans.Score = &score
	ans.Feedback = in.Feedback
	ans.AutoGraded = false

	for i := range sub.Answers {
		if sub.Answers[i].ID == ans.ID {
			sub.Answers[i] = ans
			break
		}
	}
	wasGraded := sub.GradedAt != nil
	finalizeScore(&sub, graderID, now)
	sub.UpdatedAt = now

	// apply the answer and the derived total atomically
	err = svc.inTx(ctx, func(tx core.Tx) error {
		if _, txErr := svc.repo.UpdateAnswer(ctx, ans, tx); txErr != nil {
			return errors.Wrap(txErr, "updating answer")
		}
		var txErr error
		sub, txErr = svc.repo.UpdateSubmission(ctx, sub, false, tx)
		return errors.Wrap(txErr, "updating submission")
	})
	if err != nil {
		return Submission{}, err
	}

	if !wasGraded && sub.GradedAt != nil {
		svc.sendGradedEmail(sub, asg)
	}
	return sub, nil
}

func (svc *Service) Query(filter *QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]Submission, int64, error) {
	return svc.repo.QuerySubmissions(context.Background(), filter, ordering, page)
}

func (svc *Service) GetByID(id string) (Submission, error) {
	return svc.repo.GetSubmission(context.Background(), GetFilter{ID: id})
}

func (svc *Service) GetAnswerByID(id string) (Answer, error) {
	return svc.repo.GetAnswer(context.Background(), id)
}

// GetMine returns the user's draft and/or final submission for an assignment.
func (svc *Service) GetMine(assignmentID, userID string) ([]Submission, error) {
	ctx := context.Background()
	subs := make([]Submission, 0, 2)
	for _, final := range []bool{false, true} {
		final := final
		sub, err := svc.repo.GetSubmission(ctx, GetFilter{AssignmentID: assignmentID, UserID: userID, Final: &final})
		if err != nil {
			if errors.Cause(err) == ErrNotFound {
				continue
			}
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// inTx runs fn inside a transaction.
func (svc *Service) inTx(ctx context.Context, fn func(tx core.Tx) error) error {
	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

func (svc *Service) openAssignment(assignmentID string, now time.Time) (assignment.Assignment, error) {
	asg, err := svc.asgSvc.GetByID(assignmentID, false /* includeDeleted */)
	if err != nil {
		return assignment.Assignment{}, err
	}
	if !asg.IsOpen(now) {
		return assignment.Assignment{}, core.NewValidationError(ErrAssignmentClosed)
	}
	return asg, nil
}

func (svc *Service) sendGradedEmail(sub Submission, asg assignment.Assignment) {
	usr, err := svc.usrSvc.GetByID(sub.UserID)
	if err != nil || usr.Email == "" {
		return
	}
	var score float64
	if sub.Score != nil {
		score = *sub.Score
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      fmt.Sprintf("Your submission for %q has been graded", asg.Title),
		TemplateName: "submission-graded",
		TemplateData: gradedEmailData{
			Username:        usr.Username,
			AssignmentTitle: asg.Title,
			AssignmentID:    asg.ID,
			SubmissionID:    sub.ID,
			Score:           score,
			MaxScore:        asg.Points,
		},
	})
}

type gradedEmailData struct {
	Username        string
	AssignmentTitle string
	AssignmentID    string
	SubmissionID    string
	Score           float64
	MaxScore        float64
}

// buildAnswers maps the input onto the assignment's questions. With fill set,
// unanswered questions are materialized with empty values so the final record
// always carries one answer per question.
func buildAnswers(asg assignment.Assignment, in SubmissionInput, fill bool) ([]Answer, error) {
	byQuestion := make(map[string]string, len(in.Answers))
	for _, na := range in.Answers {
		if _, ok := byQuestion[na.QuestionID]; ok {
			return nil, core.NewValidationError(ErrDuplicateAnswer, core.FieldError{Field: "answers", Error: ErrDuplicateAnswer.Error()})
		}
		byQuestion[na.QuestionID] = na.Value
	}

	known := make(map[string]bool, len(asg.Questions))
	for _, q := range asg.Questions {
		known[q.ID] = true
	}
	for qid := range byQuestion {
		if !known[qid] {
			return nil, core.NewValidationError(ErrUnknownQuestion, core.FieldError{Field: "answers", Error: ErrUnknownQuestion.Error()})
		}
	}

	answers := make([]Answer, 0, len(asg.Questions))
	for _, q := range asg.Questions {
		value, answered := byQuestion[q.ID]
		if !answered && !fill {
			continue
		}
		answers = append(answers, Answer{QuestionID: q.ID, Value: value})
	}
	return answers, nil
}

// autoGrade scores MULTIPLE_CHOICE by exact match and NUMERIC within the
// question's tolerance. TEXT answers are left for manual grading.
func autoGrade(asg assignment.Assignment, ans *Answer) {
	var q assignment.Question
	for _, question := range asg.Questions {
		if question.ID == ans.QuestionID {
			q = question
			break
		}
	}

	switch q.Kind {
	case assignment.QuestionMultipleChoice:
		var score float64
		if ans.Value == q.CorrectAnswer {
			score = q.Points
		}
		ans.Score = &score
		ans.AutoGraded = true
	case assignment.QuestionNumeric:
		want, err := strconv.ParseFloat(q.CorrectAnswer, 64)
		if err != nil {
			return
		}
		var score float64
		if got, err := strconv.ParseFloat(strings.TrimSpace(ans.Value), 64); err == nil && math.Abs(got-want) <= q.Tolerance {
			score = q.Points
		}
		ans.Score = &score
		ans.AutoGraded = true
	}
}

// finalizeScore derives the submission total once every answer is scored.
func finalizeScore(sub *Submission, gradedBy string, now time.Time) {
	if !sub.IsGraded() {
		return
	}
	total := sub.AnswersTotal()
	sub.Score = &total
	sub.GradedAt = &now
	sub.GradedBy = gradedBy
}
