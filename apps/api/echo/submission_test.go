package echoapi

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/zuberi/fizikia/core/assignment"
	"github.com/zuberi/fizikia/core/submission"
	"github.com/zuberi/fizikia/core/user"
	emailsvc "github.com/zuberi/fizikia/services/email"
)

// setupCoursework builds a server with a professor, a student and an open
// published assignment.
func setupCoursework(t *testing.T) (s *testServer, prof, student user.User, asg assignment.Assignment) {
	t.Helper()
	s = setup(t)
	prof = createUser(t, s.usrRepo, "Prof Neza", "profneza", "neza@fizikia.test", "", []string{user.RoleProfessor}, true)
	student = createUser(t, s.usrRepo, "Asha Zuberi", "ashaz", "asha@fizikia.test", "", []string{user.RoleStudent}, true)
	asg = createAssignment(t, s.asgSvc, assignment.NewAssignment{
		Title: "Kinematics I", Kind: assignment.KindHomework, Published: true, Questions: physicsQuestions(),
	}, prof.ID)
	return s, prof, student, asg
}

func Test_submissionApi_saveDraft(t *testing.T) {
	s, prof, student, asg := setupCoursework(t)
	studentToken := getToken(t, student)

	closed := createAssignment(t, s.asgSvc, assignment.NewAssignment{
		Title: "Last Week's Quiz", Kind: assignment.KindQuiz, Published: true,
		DueAt:     timePtr(time.Now().Add(-time.Hour).UTC()),
		Questions: physicsQuestions(),
	}, prof.ID)

	input := submission.SubmissionInput{Answers: []submission.NewAnswer{
		{QuestionID: asg.Questions[0].ID, Value: "2.0"},
	}}

	tests := []httpTest{
		{
			name:     "no token",
			path:     "/api/assignments/" + asg.ID + "/draft",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "unknown assignment",
			path:     "/api/assignments/deadbeef/draft",
			token:    studentToken,
			body:     marchallObj(t, input),
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, errNotFound),
		},
		{
			name:     "closed assignment",
			path:     "/api/assignments/" + closed.ID + "/draft",
			token:    studentToken,
			body:     marchallObj(t, input),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: submission.ErrAssignmentClosed.Error()}),
		},
		{
			name:     "empty payload",
			path:     "/api/assignments/" + asg.ID + "/draft",
			token:    studentToken,
			body:     marchallObj(t, echo.Map{}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, echo.Map{"answers": "this field is required"}),
		},
		{
			name:  "unknown question",
			path:  "/api/assignments/" + asg.ID + "/draft",
			token: studentToken,
			body: marchallObj(t, submission.SubmissionInput{Answers: []submission.NewAnswer{
				{QuestionID: "deadbeef", Value: "42"},
			}}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, echo.Map{"answers": submission.ErrUnknownQuestion.Error()}),
		},
		{
			name:  "duplicate answers",
			path:  "/api/assignments/" + asg.ID + "/draft",
			token: studentToken,
			body: marchallObj(t, submission.SubmissionInput{Answers: []submission.NewAnswer{
				{QuestionID: asg.Questions[0].ID, Value: "2.0"},
				{QuestionID: asg.Questions[0].ID, Value: "2.1"},
			}}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, echo.Map{"answers": submission.ErrDuplicateAnswer.Error()}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.exec(newAuthRequest(http.MethodPut, tt.path, tt.token, tt.body))
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("draft is upserted", func(t *testing.T) {
		rec := s.exec(newAuthRequest(http.MethodPut, "/api/assignments/"+asg.ID+"/draft", studentToken, marchallObj(t, input)))
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; wantCode %v: %v", rec.Code, http.StatusOK, rec.Body.String())
		}
		var draft submission.Submission
		if err := json.Unmarshal(rec.Body.Bytes(), &draft); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if draft.Final {
			t.Error("draft marked final")
		}
		if draft.Score != nil {
			t.Errorf("score = %v; want nil", *draft.Score)
		}
		if len(draft.Answers) != 1 { // unanswered questions are not materialized
			t.Fatalf("len(answers) = %v; want 1", len(draft.Answers))
		}

		// saving again updates the same record
		input.Answers[0].Value = "2.1"
		rec = s.exec(newAuthRequest(http.MethodPut, "/api/assignments/"+asg.ID+"/draft", studentToken, marchallObj(t, input)))
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; wantCode %v: %v", rec.Code, http.StatusOK, rec.Body.String())
		}
		var again submission.Submission
		if err := json.Unmarshal(rec.Body.Bytes(), &again); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if again.ID != draft.ID {
			t.Errorf("draft ID = %v; want %v", again.ID, draft.ID)
		}
		if again.Answers[0].Value != "2.1" {
			t.Errorf("answer = %v; want %v", again.Answers[0].Value, "2.1")
		}
	})
}

func Test_submissionApi_submitFinal(t *testing.T) {
	s, _, student, asg := setupCoursework(t)
	studentToken := getToken(t, student)
	path := "/api/assignments/" + asg.ID + "/submit"

	input := submission.SubmissionInput{Answers: []submission.NewAnswer{
		{QuestionID: asg.Questions[0].ID, Value: "2.0"},  // numeric, within tolerance
		{QuestionID: asg.Questions[1].ID, Value: "Both"}, // correct choice
		{QuestionID: asg.Questions[2].ID, Value: "Rayleigh scattering."},
	}}

	// keep the draft around to check it gets promoted
	draft, err := s.subSvc.SaveDraft(asg.ID, student.ID, input)
	if err != nil {
		t.Fatalf("SaveDraft(): %v", err)
	}

	rec := s.exec(newAuthRequest(http.MethodPost, path, studentToken, marchallObj(t, input)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("code = %v; wantCode %v: %v", rec.Code, http.StatusCreated, rec.Body.String())
	}
	var sub submission.Submission
	if err := json.Unmarshal(rec.Body.Bytes(), &sub); err != nil {
		t.Fatalf("unmarshalling response: %v", err)
	}

	if sub.ID != draft.ID {
		t.Errorf("submission ID = %v; want promoted draft %v", sub.ID, draft.ID)
	}
	if !sub.Final {
		t.Error("submission not marked final")
	}
	if sub.SubmittedAt == nil {
		t.Error("submitted_at not set")
	}
	if len(sub.Answers) != 3 {
		t.Fatalf("len(answers) = %v; want 3", len(sub.Answers))
	}

	// MULTIPLE_CHOICE and NUMERIC auto-graded, TEXT left for staff
	wantScores := []*float64{floatPtr(5), floatPtr(3), nil}
	wantAuto := []bool{true, true, false}
	for i, ans := range sub.Answers {
		if (ans.Score == nil) != (wantScores[i] == nil) || (ans.Score != nil && *ans.Score != *wantScores[i]) {
			t.Errorf("answers[%d].score = %v; want %v", i, ans.Score, wantScores[i])
		}
		if ans.AutoGraded != wantAuto[i] {
			t.Errorf("answers[%d].auto_graded = %v; want %v", i, ans.AutoGraded, wantAuto[i])
		}
	}
	if sub.Score != nil { // text question still ungraded
		t.Errorf("score = %v; want nil", *sub.Score)
	}

	t.Run("second final submit conflicts", func(t *testing.T) {
		rec := s.exec(newAuthRequest(http.MethodPost, path, studentToken, marchallObj(t, input)))
		tt := httpTest{
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: submission.ErrAlreadySubmitted.Error()}),
		}
		checkCodeAndData(t, tt, rec)
	})
}

func Test_submissionApi_grade(t *testing.T) {
	s, prof, student, asg := setupCoursework(t)
	profToken := getToken(t, prof)

	input := submission.SubmissionInput{Answers: []submission.NewAnswer{
		{QuestionID: asg.Questions[0].ID, Value: "3.5"}, // off; auto-graded 0
		{QuestionID: asg.Questions[1].ID, Value: "Both"},
		{QuestionID: asg.Questions[2].ID, Value: "Rayleigh scattering."},
	}}
	sub, err := s.subSvc.SubmitFinal(asg.ID, student.ID, input)
	if err != nil {
		t.Fatalf("SubmitFinal(): %v", err)
	}
	textAnswer := sub.Answers[2]

	t.Run("students cannot grade", func(t *testing.T) {
		body := marchallObj(t, submission.GradeAnswerInput{Score: floatPtr(2)})
		rec := s.exec(newAuthRequest(http.MethodPost, "/api/answers/"+textAnswer.ID+"/grade", getToken(t, student), body))
		tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("unknown answer", func(t *testing.T) {
		body := marchallObj(t, submission.GradeAnswerInput{Score: floatPtr(2)})
		rec := s.exec(newAuthRequest(http.MethodPost, "/api/answers/deadbeef/grade", profToken, body))
		tt := httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("grading completes the submission", func(t *testing.T) {
		emailsvc.SentMessages = nil // reset

		// way above the question's 2 points; clamped
		body := marchallObj(t, submission.GradeAnswerInput{Score: floatPtr(100), Feedback: "Close enough."})
		rec := s.exec(newAuthRequest(http.MethodPost, "/api/answers/"+textAnswer.ID+"/grade", profToken, body))
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; wantCode %v: %v", rec.Code, http.StatusOK, rec.Body.String())
		}
		var graded submission.Submission
		if err := json.Unmarshal(rec.Body.Bytes(), &graded); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}

		if got := graded.Answers[2].Score; got == nil || *got != 2 {
			t.Errorf("answer score = %v; want 2", got)
		}
		if graded.Answers[2].Feedback != "Close enough." {
			t.Errorf("feedback = %q; want %q", graded.Answers[2].Feedback, "Close enough.")
		}
		if graded.Score == nil || *graded.Score != 5 { // 0 + 3 + 2
			t.Errorf("score = %v; want 5", graded.Score)
		}
		if graded.GradedAt == nil {
			t.Error("graded_at not set")
		}
		if graded.GradedBy != prof.ID {
			t.Errorf("graded_by = %v; want %v", graded.GradedBy, prof.ID)
		}
		if len(emailsvc.SentMessages) != 1 {
			t.Errorf("len(SentMessages) = %d; want 1", len(emailsvc.SentMessages))
		}
	})

	t.Run("drafts cannot be graded", func(t *testing.T) {
		draft, err := s.subSvc.SaveDraft(asg.ID, student.ID, submission.SubmissionInput{
			Answers: []submission.NewAnswer{{QuestionID: asg.Questions[2].ID, Value: "Mie scattering?"}},
		})
		if err != nil {
			t.Fatalf("SaveDraft(): %v", err)
		}
		body := marchallObj(t, submission.GradeAnswerInput{Score: floatPtr(1)})
		rec := s.exec(newAuthRequest(http.MethodPost, "/api/answers/"+draft.Answers[0].ID+"/grade", profToken, body))
		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: submission.ErrDraftNotGradable.Error()}),
		}
		checkCodeAndData(t, tt, rec)
	})
}

func Test_submissionApi_queryAndMine(t *testing.T) {
	s, prof, student, asg := setupCoursework(t)
	other := createUser(t, s.usrRepo, "Kito Juma", "kitoj", "kito@fizikia.test", "", []string{user.RoleStudent}, true)

	draft, err := s.subSvc.SaveDraft(asg.ID, student.ID, submission.SubmissionInput{
		Answers: []submission.NewAnswer{{QuestionID: asg.Questions[0].ID, Value: "2.0"}},
	})
	if err != nil {
		t.Fatalf("SaveDraft(): %v", err)
	}
	final, err := s.subSvc.SubmitFinal(asg.ID, other.ID, submission.SubmissionInput{
		Answers: []submission.NewAnswer{{QuestionID: asg.Questions[0].ID, Value: "2.0"}},
	})
	if err != nil {
		t.Fatalf("SubmitFinal(): %v", err)
	}

	t.Run("students cannot list all submissions", func(t *testing.T) {
		rec := s.exec(newAuthRequest(http.MethodGet, "/api/assignments/"+asg.ID+"/submissions", getToken(t, student)))
		tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("staff list finals only", func(t *testing.T) {
		rec := s.exec(newAuthRequest(http.MethodGet, "/api/assignments/"+asg.ID+"/submissions?final=true", getToken(t, prof)))
		noAnswers := final
		noAnswers.Answers = nil
		tt := httpTest{
			wantCode: http.StatusOK,
			wantData: marchallPage(t, []submission.Submission{noAnswers}, 1),
		}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("mine", func(t *testing.T) {
		rec := s.exec(newAuthRequest(http.MethodGet, "/api/assignments/"+asg.ID+"/submissions/mine", getToken(t, student)))
		tt := httpTest{
			wantCode: http.StatusOK,
			wantData: marchallList(t, draft),
		}
		checkCodeAndData(t, tt, rec)
	})
}

func Test_submissionApi_retrieve(t *testing.T) {
	s, prof, student, asg := setupCoursework(t)
	other := createUser(t, s.usrRepo, "Kito Juma", "kitoj", "kito@fizikia.test", "", []string{user.RoleStudent}, true)

	sub, err := s.subSvc.SubmitFinal(asg.ID, student.ID, submission.SubmissionInput{
		Answers: []submission.NewAnswer{{QuestionID: asg.Questions[0].ID, Value: "2.0"}},
	})
	if err != nil {
		t.Fatalf("SubmitFinal(): %v", err)
	}

	tests := []httpTest{
		{
			name:     "owner",
			token:    getToken(t, student),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, sub),
		},
		{
			name:     "staff",
			token:    getToken(t, prof),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, sub),
		},
		{
			name:     "other students get a 404",
			token:    getToken(t, other),
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, errNotFound),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.exec(newAuthRequest(http.MethodGet, "/api/submissions/"+sub.ID, tt.token))
			checkCodeAndData(t, tt, rec)
		})
	}
}

func timePtr(t time.Time) *time.Time { return &t }
func floatPtr(f float64) *float64    { return &f }
