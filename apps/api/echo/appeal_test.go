package echoapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/zuberi/fizikia/core/appeal"
	"github.com/zuberi/fizikia/core/submission"
	"github.com/zuberi/fizikia/core/user"
)

// submitGraded files a final submission for usr and returns it; the numeric
// and choice questions come back auto-graded.
func submitGraded(t *testing.T, s *testServer, asgID, usrID string, questionIDs []string) submission.Submission {
	t.Helper()
	sub, err := s.subSvc.SubmitFinal(asgID, usrID, submission.SubmissionInput{
		Answers: []submission.NewAnswer{
			{QuestionID: questionIDs[0], Value: "3.5"}, // off; graded 0
			{QuestionID: questionIDs[1], Value: "Momentum only"},
		},
	})
	if err != nil {
		t.Fatalf("SubmitFinal(): %v", err)
	}
	return sub
}

func Test_appealApi_open(t *testing.T) {
	s, _, student, asg := setupCoursework(t)
	other := createUser(t, s.usrRepo, "Kito Juma", "kitoj", "kito@fizikia.test", "", []string{user.RoleStudent}, true)
	studentToken := getToken(t, student)

	qIDs := []string{asg.Questions[0].ID, asg.Questions[1].ID}
	sub := submitGraded(t, s, asg.ID, student.ID, qIDs)
	gradedAnswer := sub.Answers[0]
	ungradedAnswer := sub.Answers[2] // text question

	tests := []httpTest{
		{
			name:     "no token",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "unknown answer",
			token:    studentToken,
			body:     marchallObj(t, appeal.NewAppeal{AnswerID: "deadbeef", Reason: "That was right."}),
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, errNotFound),
		},
		{
			name:     "ungraded answer",
			token:    studentToken,
			body:     marchallObj(t, appeal.NewAppeal{AnswerID: ungradedAnswer.ID, Reason: "That was right."}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: appeal.ErrNotGraded.Error()}),
		},
		{
			name:     "someone else's answer",
			token:    getToken(t, other),
			body:     marchallObj(t, appeal.NewAppeal{AnswerID: gradedAnswer.ID, Reason: "That was right."}),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "open appeal",
			token:    studentToken,
			body:     marchallObj(t, appeal.NewAppeal{AnswerID: gradedAnswer.ID, Reason: "2.0 is within tolerance of the book's value."}),
			wantCode: http.StatusCreated,
		},
		{
			name:     "second open appeal conflicts",
			token:    studentToken,
			body:     marchallObj(t, appeal.NewAppeal{AnswerID: gradedAnswer.ID, Reason: "Still wrong."}),
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: appeal.ErrAppealExists.Error()}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.exec(newAuthRequest(http.MethodPost, "/api/appeals", tt.token, tt.body))
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusCreated {
				var ap appeal.GradeAppeal
				if err := json.Unmarshal(rec.Body.Bytes(), &ap); err != nil {
					t.Fatalf("unmarshalling response: %v", err)
				}
				if ap.Status != appeal.StatusOpen {
					t.Errorf("status = %v; want %v", ap.Status, appeal.StatusOpen)
				}
				if ap.AppealerID != student.ID {
					t.Errorf("appealer_id = %v; want %v", ap.AppealerID, student.ID)
				}
			}
		})
	}
}

func Test_appealApi_messages(t *testing.T) {
	s, prof, student, asg := setupCoursework(t)
	other := createUser(t, s.usrRepo, "Kito Juma", "kitoj", "kito@fizikia.test", "", []string{user.RoleStudent}, true)

	sub := submitGraded(t, s, asg.ID, student.ID, []string{asg.Questions[0].ID, asg.Questions[1].ID})
	ap, err := s.appealSvc.Open(student.ID, appeal.NewAppeal{AnswerID: sub.Answers[0].ID, Reason: "Check my rounding."})
	if err != nil {
		t.Fatalf("Open(): %v", err)
	}
	path := "/api/appeals/" + ap.ID + "/messages"

	t.Run("appealer posts to the thread", func(t *testing.T) {
		body := marchallObj(t, appeal.NewMessage{Body: "I used g = 9.8, the book uses 9.81."})
		rec := s.exec(newAuthRequest(http.MethodPost, path, getToken(t, student), body))
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; wantCode %v: %v", rec.Code, http.StatusCreated, rec.Body.String())
		}
		var msg appeal.AppealMessage
		if err := json.Unmarshal(rec.Body.Bytes(), &msg); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if msg.AuthorID != student.ID {
			t.Errorf("author_id = %v; want %v", msg.AuthorID, student.ID)
		}
	})

	t.Run("staff post to the thread", func(t *testing.T) {
		body := marchallObj(t, appeal.NewMessage{Body: "Looking into it."})
		rec := s.exec(newAuthRequest(http.MethodPost, path, getToken(t, prof), body))
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; wantCode %v: %v", rec.Code, http.StatusCreated, rec.Body.String())
		}
	})

	t.Run("bystanders get a 404", func(t *testing.T) {
		body := marchallObj(t, appeal.NewMessage{Body: "lol"})
		rec := s.exec(newAuthRequest(http.MethodPost, path, getToken(t, other), body))
		tt := httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("resolved appeals are read-only", func(t *testing.T) {
		if _, err := s.appealSvc.Resolve(ap.ID, prof.ID, appeal.ResolveInput{Resolution: "Grade stands."}); err != nil {
			t.Fatalf("Resolve(): %v", err)
		}
		body := marchallObj(t, appeal.NewMessage{Body: "One more thing..."})
		rec := s.exec(newAuthRequest(http.MethodPost, path, getToken(t, student), body))
		tt := httpTest{
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: appeal.ErrAppealClosed.Error()}),
		}
		checkCodeAndData(t, tt, rec)
	})
}

func Test_appealApi_resolveAndReopen(t *testing.T) {
	s, prof, student, asg := setupCoursework(t)
	profToken := getToken(t, prof)

	sub := submitGraded(t, s, asg.ID, student.ID, []string{asg.Questions[0].ID, asg.Questions[1].ID})
	disputed := sub.Answers[0] // numeric question, 5 points, auto-graded 0
	ap, err := s.appealSvc.Open(student.ID, appeal.NewAppeal{AnswerID: disputed.ID, Reason: "Check my rounding."})
	if err != nil {
		t.Fatalf("Open(): %v", err)
	}

	t.Run("students cannot resolve", func(t *testing.T) {
		body := marchallObj(t, appeal.ResolveInput{Resolution: "I forgive myself."})
		rec := s.exec(newAuthRequest(http.MethodPost, "/api/appeals/"+ap.ID+"/resolve", getToken(t, student), body))
		tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("resolving with a score re-grades the answer", func(t *testing.T) {
		body := marchallObj(t, appeal.ResolveInput{
			Resolution: "Partial credit for method.",
			Score:      floatPtr(3),
			Feedback:   "Right approach, wrong rounding.",
		})
		rec := s.exec(newAuthRequest(http.MethodPost, "/api/appeals/"+ap.ID+"/resolve", profToken, body))
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; wantCode %v: %v", rec.Code, http.StatusOK, rec.Body.String())
		}
		var resolved appeal.GradeAppeal
		if err := json.Unmarshal(rec.Body.Bytes(), &resolved); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if resolved.Status != appeal.StatusResolved {
			t.Errorf("status = %v; want %v", resolved.Status, appeal.StatusResolved)
		}
		if resolved.ResolvedBy != prof.ID {
			t.Errorf("resolved_by = %v; want %v", resolved.ResolvedBy, prof.ID)
		}
		if resolved.ResolvedAt == nil {
			t.Error("resolved_at not set")
		}

		ans, err := s.subSvc.GetAnswerByID(disputed.ID)
		if err != nil {
			t.Fatalf("GetAnswerByID(): %v", err)
		}
		if ans.Score == nil || *ans.Score != 3 {
			t.Errorf("answer score = %v; want 3", ans.Score)
		}
	})

	t.Run("resolving twice conflicts", func(t *testing.T) {
		body := marchallObj(t, appeal.ResolveInput{Resolution: "Again."})
		rec := s.exec(newAuthRequest(http.MethodPost, "/api/appeals/"+ap.ID+"/resolve", profToken, body))
		tt := httpTest{
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: appeal.ErrAppealClosed.Error()}),
		}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("reopen", func(t *testing.T) {
		rec := s.exec(newAuthRequest(http.MethodPost, "/api/appeals/"+ap.ID+"/reopen", profToken))
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; wantCode %v: %v", rec.Code, http.StatusOK, rec.Body.String())
		}
		var reopened appeal.GradeAppeal
		if err := json.Unmarshal(rec.Body.Bytes(), &reopened); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if reopened.Status != appeal.StatusOpen {
			t.Errorf("status = %v; want %v", reopened.Status, appeal.StatusOpen)
		}
		if reopened.Resolution != "" || reopened.ResolvedBy != "" || reopened.ResolvedAt != nil {
			t.Error("previous resolution not cleared")
		}
	})

	t.Run("reopening an open appeal conflicts", func(t *testing.T) {
		rec := s.exec(newAuthRequest(http.MethodPost, "/api/appeals/"+ap.ID+"/reopen", profToken))
		tt := httpTest{
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: appeal.ErrAppealNotDone.Error()}),
		}
		checkCodeAndData(t, tt, rec)
	})
}

func Test_appealApi_queryAndRetrieve(t *testing.T) {
	s, prof, student, asg := setupCoursework(t)
	other := createUser(t, s.usrRepo, "Kito Juma", "kitoj", "kito@fizikia.test", "", []string{user.RoleStudent}, true)

	mySub := submitGraded(t, s, asg.ID, student.ID, []string{asg.Questions[0].ID, asg.Questions[1].ID})
	otherSub := submitGraded(t, s, asg.ID, other.ID, []string{asg.Questions[0].ID, asg.Questions[1].ID})

	mine, err := s.appealSvc.Open(student.ID, appeal.NewAppeal{AnswerID: mySub.Answers[0].ID, Reason: "Check mine."})
	if err != nil {
		t.Fatalf("Open(): %v", err)
	}
	theirs, err := s.appealSvc.Open(other.ID, appeal.NewAppeal{AnswerID: otherSub.Answers[0].ID, Reason: "Check theirs."})
	if err != nil {
		t.Fatalf("Open(): %v", err)
	}

	tests := []httpTest{
		{
			name:     "students see their own appeals only",
			path:     "/api/appeals",
			token:    getToken(t, student),
			wantCode: http.StatusOK,
			wantData: marchallPage(t, []appeal.GradeAppeal{mine}, 1),
		},
		{
			name:     "staff see everything",
			path:     "/api/appeals",
			token:    getToken(t, prof),
			wantCode: http.StatusOK,
			wantData: marchallPage(t, []appeal.GradeAppeal{theirs, mine}, 2), // latest first
		},
		{
			name:     "filter by answer",
			path:     "/api/appeals?answer_id=" + mySub.Answers[0].ID,
			token:    getToken(t, prof),
			wantCode: http.StatusOK,
			wantData: marchallPage(t, []appeal.GradeAppeal{mine}, 1),
		},
		{
			name:     "participants read the thread",
			path:     "/api/appeals/" + mine.ID,
			token:    getToken(t, student),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, mine),
		},
		{
			name:     "bystanders get a 404",
			path:     "/api/appeals/" + theirs.ID,
			token:    getToken(t, student),
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, errNotFound),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.exec(newAuthRequest(http.MethodGet, tt.path, tt.token))
			checkCodeAndData(t, tt, rec)
		})
	}
}
