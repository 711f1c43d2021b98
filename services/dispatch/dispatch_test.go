package dispatchsvc

import (
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/zuberi/fizikia/core"
	"github.com/zuberi/fizikia/core/schedmail"
	emailsvc "github.com/zuberi/fizikia/services/email"
	dummydb "github.com/zuberi/fizikia/storage/database/dummy"
)

type testLogger struct{}

func (testLogger) Enable(bool)                  {}
func (testLogger) Debug(string, ...interface{}) {}
func (testLogger) Info(string, ...interface{})  {}
func (testLogger) Warn(string, ...interface{})  {}
func (testLogger) Error(string, ...interface{}) {}
func (testLogger) Fatal(string, ...interface{}) {}

type failingMailService struct{}

func (failingMailService) SendMessages(...*core.EmailMessage) {}
func (failingMailService) SendMessage(*core.EmailMessage) error {
	return errors.New("smtp is down")
}

func schedule(t *testing.T, svc schedmail.ServiceInterface, subject string, sendAt time.Time) schedmail.ScheduledEmail {
	t.Helper()
	em, err := svc.Schedule(schedmail.NewScheduledEmail{
		Subject:    subject,
		Message:    "Lab 3 grades are posted.",
		Recipients: []string{"class@fizikia.test"},
		SendAt:     sendAt,
	}, "prof-1")
	if err != nil {
		t.Fatalf("Schedule(): %v", err)
	}
	return em
}

func TestWorker_dispatchesDueEmails(t *testing.T) {
	emailsvc.SentMessages = nil // reset

	conf := core.NewConfig()
	conf.Dispatch.Interval = 25 * time.Millisecond
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open(): %v", err)
	}
	svc := schedmail.NewService(dummydb.NewScheduledEmailRepository(db), emailsvc.NewConsoleServiceMock(conf), conf)

	due := schedule(t, svc, "due", time.Now().Add(-time.Minute))
	future := schedule(t, svc, "future", time.Now().Add(time.Hour))

	w := NewWorker(svc, testLogger{}, conf)
	go w.Start()

	deadline := time.Now().Add(2 * time.Second)
	for {
		em, err := svc.GetByID(due.ID)
		if err != nil {
			t.Fatalf("GetByID(): %v", err)
		}
		if em.Status == schedmail.StatusSent {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("due email never sent; status = %v", em.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
	w.Stop()

	if len(emailsvc.SentMessages) != 1 {
		t.Errorf("len(SentMessages) = %d; want 1", len(emailsvc.SentMessages))
	}
	em, err := svc.GetByID(future.ID)
	if err != nil {
		t.Fatalf("GetByID(): %v", err)
	}
	if em.Status != schedmail.StatusPending {
		t.Errorf("future email status = %v; want %v", em.Status, schedmail.StatusPending)
	}

	sent, _ := svc.GetByID(due.ID)
	if sent.SentAt == nil {
		t.Error("sent email has no SentAt")
	}
	if sent.Attempts != 1 {
		t.Errorf("Attempts = %d; want 1", sent.Attempts)
	}
}

func TestWorker_marksFailures(t *testing.T) {
	conf := core.NewConfig()
	conf.Dispatch.MaxSendAttempts = 1 // no retry pauses
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open(): %v", err)
	}
	svc := schedmail.NewService(dummydb.NewScheduledEmailRepository(db), failingMailService{}, conf)

	em := schedule(t, svc, "doomed", time.Now().Add(-time.Minute))

	w := NewWorker(svc, testLogger{}, conf)
	w.dispatch()

	em, err = svc.GetByID(em.ID)
	if err != nil {
		t.Fatalf("GetByID(): %v", err)
	}
	if em.Status != schedmail.StatusFailed {
		t.Errorf("status = %v; want %v", em.Status, schedmail.StatusFailed)
	}
	if em.Attempts != 1 {
		t.Errorf("Attempts = %d; want 1", em.Attempts)
	}
	if em.LastError == "" {
		t.Error("LastError is empty")
	}
	if em.SentAt != nil {
		t.Errorf("SentAt = %v; want nil", em.SentAt)
	}
}
