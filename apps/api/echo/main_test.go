package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/zuberi/fizikia/core"
	"github.com/zuberi/fizikia/core/appeal"
	"github.com/zuberi/fizikia/core/assignment"
	"github.com/zuberi/fizikia/core/qa"
	"github.com/zuberi/fizikia/core/schedmail"
	"github.com/zuberi/fizikia/core/simulation"
	"github.com/zuberi/fizikia/core/submission"
	"github.com/zuberi/fizikia/core/user"
	emailsvc "github.com/zuberi/fizikia/services/email"
	dummydb "github.com/zuberi/fizikia/storage/database/dummy"
)

var (
	testConf       *core.Config
	testValidate   *validator.Validate
	testTranslator ut.Translator

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
	errNotFound     = httpErr{Error: "not found"}
)

type testLogger struct{}

func (testLogger) Enable(bool)                  {}
func (testLogger) Debug(string, ...interface{}) {}
func (testLogger) Info(string, ...interface{})  {}
func (testLogger) Warn(string, ...interface{})  {}
func (testLogger) Error(string, ...interface{}) {}
func (testLogger) Fatal(string, ...interface{}) {}

func TestMain(m *testing.M) {
	testConf = core.NewConfig()
	testConf.Debug = false
	testConf.TestMode = true

	_en := en.New()
	uni := ut.New(_en, _en)
	testTranslator, _ = uni.GetTranslator("en")

	testValidate = validator.New()
	core.InitValidators(testValidate, testTranslator)
	user.InitValidators(testValidate, testTranslator)
	assignment.InitValidators(testValidate, testTranslator)
	schedmail.InitValidators(testValidate, testTranslator)

	core.ParseEmailTemplates(testConf, testLogger{})
	user.LoadCommonPasswords(testLogger{})

	os.Exit(m.Run())
}

type testServer struct {
	app Server

	usrRepo      user.Repository
	usrSvc       *user.Service
	asgSvc       *assignment.Service
	subSvc       *submission.Service
	appealSvc    *appeal.Service
	schedmailSvc *schedmail.Service
	qaSvc        *qa.Service
}

// setup builds a full API server against fresh in-memory repositories.
func setup(t *testing.T) *testServer {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup(): %v", err)
	}
	mailSvc := emailsvc.NewConsoleServiceMock(testConf)

	s := &testServer{usrRepo: dummydb.NewUserRepository(db)}
	s.usrSvc = user.NewService(s.usrRepo, mailSvc, testConf)
	s.asgSvc = assignment.NewService(db, dummydb.NewAssignmentRepository(db))
	s.subSvc = submission.NewService(db, dummydb.NewSubmissionRepository(db), s.asgSvc, s.usrSvc, mailSvc, testConf)
	s.appealSvc = appeal.NewService(dummydb.NewAppealRepository(db), s.subSvc, s.asgSvc, s.usrSvc, mailSvc, testConf)
	s.schedmailSvc = schedmail.NewService(dummydb.NewScheduledEmailRepository(db), mailSvc, testConf)
	s.qaSvc = qa.NewService(dummydb.NewQARepository(db))

	s.app = NewServer(
		"",  /* addr */
		nil, /* shutdown */
		&Deps{
			Conf:          testConf,
			Logger:        testLogger{},
			Validate:      testValidate,
			Translator:    testTranslator,
			UserSvc:       s.usrSvc,
			AssignmentSvc: s.asgSvc,
			SubmissionSvc: s.subSvc,
			AppealSvc:     s.appealSvc,
			SchedmailSvc:  s.schedmailSvc,
			QASvc:         s.qaSvc,
			SimRegistry:   simulation.DefaultRegistry(),
		},
	)
	return s
}

func (s *testServer) exec(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.app.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) *http.Request {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func getToken(t *testing.T, usr user.User) string {
	t.Helper()
	claims := GetUserClaims(usr)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func createUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
) user.User {
	t.Helper()

	now := time.Now().UTC()
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		IsActive:  &isActive,
		Roles:     roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser(): %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser(): %v", err)
	}
	return usr
}

func createAssignment(t *testing.T, svc assignment.ServiceInterface, na assignment.NewAssignment, createdBy string) assignment.Assignment {
	t.Helper()
	asg, err := svc.Create(na, createdBy)
	if err != nil {
		t.Fatalf("createAssignment(): %v", err)
	}
	return asg
}

// physicsQuestions returns one auto-gradable question per kind plus a manual one.
func physicsQuestions() []assignment.NewQuestion {
	return []assignment.NewQuestion{
		{
			Text:          "A ball is dropped from 20 m. How long until it lands (in s)?",
			Kind:          assignment.QuestionNumeric,
			CorrectAnswer: "2.02",
			Tolerance:     0.05,
			Points:        5,
		},
		{
			Text:          "Which quantity is conserved in an elastic collision?",
			Kind:          assignment.QuestionMultipleChoice,
			Options:       []string{"Momentum only", "Kinetic energy only", "Both"},
			CorrectAnswer: "Both",
			Points:        3,
		},
		{
			Text:   "Explain why the sky is blue.",
			Kind:   assignment.QuestionText,
			Points: 2,
		},
	}
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList(): %v", err)
	}
	return data
}

// marchallPage wraps data in the envelope returned by list endpoints,
// assuming default pagination.
func marchallPage(t *testing.T, data interface{}, total int64) []byte {
	t.Helper()
	page := core.Pagination{}
	page.Clean()
	return marchallObj(t, core.NewPaginatedData(data, total, page))
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
