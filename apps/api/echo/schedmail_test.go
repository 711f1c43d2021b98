package echoapi

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/zuberi/fizikia/core/schedmail"
	"github.com/zuberi/fizikia/core/user"
)

func newScheduledEmail(sendAt time.Time) schedmail.NewScheduledEmail {
	return schedmail.NewScheduledEmail{
		Subject:    "Exam room change",
		Message:    "The midterm moves to Hall B.",
		Recipients: []string{"phy101@fizikia.test"},
		SendAt:     sendAt,
	}
}

func Test_scheduledEmailApi_schedule(t *testing.T) {
	s := setup(t)
	admin := createUser(t, s.usrRepo, "Imani Said", "imanis", "imani@fizikia.test", "", []string{user.RoleAdmin}, true)
	ta := createUser(t, s.usrRepo, "Neema Oduya", "neemao", "neema@fizikia.test", "", []string{user.RoleTA}, true)
	student := createUser(t, s.usrRepo, "Amani Bakari", "amanib", "amani@fizikia.test", "", []string{user.RoleStudent}, true)

	tests := []httpTest{
		{
			name:     "no token",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "students cannot schedule",
			token:    getToken(t, student),
			body:     marchallObj(t, newScheduledEmail(time.Now().Add(time.Hour))),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "empty payload",
			token:    getToken(t, ta),
			body:     []byte("{}"),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"subject":    "this field is required",
				"message":    "this field is required",
				"recipients": "this field is required",
				"send_at":    "this field is required",
			}),
		},
		{
			name:     "send_at in the past",
			token:    getToken(t, ta),
			body:     marchallObj(t, newScheduledEmail(time.Now().Add(-time.Hour))),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"send_at": "send_at must be in the future"}),
		},
		{
			name:     "staff schedule an announcement",
			token:    getToken(t, admin),
			body:     marchallObj(t, newScheduledEmail(time.Now().Add(time.Hour))),
			wantCode: http.StatusCreated,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.exec(newAuthRequest(http.MethodPost, "/api/admin/scheduled-emails", tt.token, tt.body))
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusCreated {
				var em schedmail.ScheduledEmail
				if err := json.Unmarshal(rec.Body.Bytes(), &em); err != nil {
					t.Fatalf("unmarshalling response: %v", err)
				}
				if em.ID == "" {
					t.Error("ID not set")
				}
				if em.Status != schedmail.StatusPending {
					t.Errorf("status = %v; want %v", em.Status, schedmail.StatusPending)
				}
				if em.CreatedBy != admin.ID {
					t.Errorf("created_by = %v; want %v", em.CreatedBy, admin.ID)
				}
			}
		})
	}
}

func Test_scheduledEmailApi_queryAndRetrieve(t *testing.T) {
	s := setup(t)
	admin := createUser(t, s.usrRepo, "Imani Said", "imanis", "imani@fizikia.test", "", []string{user.RoleAdmin}, true)
	ta := createUser(t, s.usrRepo, "Neema Oduya", "neemao", "neema@fizikia.test", "", []string{user.RoleTA}, true)

	pending, err := s.schedmailSvc.Schedule(newScheduledEmail(time.Now().UTC().Add(time.Hour)), admin.ID)
	if err != nil {
		t.Fatalf("Schedule(): %v", err)
	}
	cancelled, err := s.schedmailSvc.Schedule(newScheduledEmail(time.Now().UTC().Add(2*time.Hour)), admin.ID)
	if err != nil {
		t.Fatalf("Schedule(): %v", err)
	}
	if cancelled, err = s.schedmailSvc.Cancel(cancelled.ID); err != nil {
		t.Fatalf("Cancel(): %v", err)
	}

	tests := []httpTest{
		{
			name:     "listing is admin-only",
			path:     "/api/admin/scheduled-emails",
			token:    getToken(t, ta),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "get all",
			path:     "/api/admin/scheduled-emails",
			token:    getToken(t, admin),
			wantCode: http.StatusOK,
			wantData: marchallPage(t, []schedmail.ScheduledEmail{pending, cancelled}, 2), // soonest send first
		},
		{
			name:     "filter by status, case-insensitive",
			path:     "/api/admin/scheduled-emails?status=pending",
			token:    getToken(t, admin),
			wantCode: http.StatusOK,
			wantData: marchallPage(t, []schedmail.ScheduledEmail{pending}, 1),
		},
		{
			name:     "staff retrieve a single email",
			path:     "/api/admin/scheduled-emails/" + pending.ID,
			token:    getToken(t, ta),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, pending),
		},
		{
			name:     "unknown ID",
			path:     "/api/admin/scheduled-emails/deadbeef",
			token:    getToken(t, admin),
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

func Test_scheduledEmailApi_updateAndCancel(t *testing.T) {
	s := setup(t)
	admin := createUser(t, s.usrRepo, "Imani Said", "imanis", "imani@fizikia.test", "", []string{user.RoleAdmin}, true)
	adminToken := getToken(t, admin)

	em, err := s.schedmailSvc.Schedule(newScheduledEmail(time.Now().UTC().Add(time.Hour)), admin.ID)
	if err != nil {
		t.Fatalf("Schedule(): %v", err)
	}
	path := "/api/admin/scheduled-emails/" + em.ID

	t.Run("edit a pending email", func(t *testing.T) {
		body := marchallObj(t, schedmail.UpdateScheduledEmail{Subject: "Exam room change (updated)"})
		rec := s.exec(newAuthRequest(http.MethodPatch, path, adminToken, body))
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; wantCode %v: %v", rec.Code, http.StatusOK, rec.Body.String())
		}
		var updated schedmail.ScheduledEmail
		if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if updated.Subject != "Exam room change (updated)" {
			t.Errorf("subject = %q; want the updated subject", updated.Subject)
		}
		if updated.Message != em.Message {
			t.Errorf("message = %q; want it unchanged", updated.Message)
		}
	})

	t.Run("cancel", func(t *testing.T) {
		rec := s.exec(newAuthRequest(http.MethodDelete, path, adminToken))
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; wantCode %v: %v", rec.Code, http.StatusOK, rec.Body.String())
		}
		var cancelled schedmail.ScheduledEmail
		if err := json.Unmarshal(rec.Body.Bytes(), &cancelled); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if cancelled.Status != schedmail.StatusCancelled {
			t.Errorf("status = %v; want %v", cancelled.Status, schedmail.StatusCancelled)
		}
	})

	t.Run("cancelled emails are frozen", func(t *testing.T) {
		wantData := marchallObj(t, httpErr{Error: schedmail.ErrNotPending.Error()})

		body := marchallObj(t, schedmail.UpdateScheduledEmail{Subject: "Too late"})
		rec := s.exec(newAuthRequest(http.MethodPatch, path, adminToken, body))
		checkCodeAndData(t, httpTest{wantCode: http.StatusConflict, wantData: wantData}, rec)

		rec = s.exec(newAuthRequest(http.MethodDelete, path, adminToken))
		checkCodeAndData(t, httpTest{wantCode: http.StatusConflict, wantData: wantData}, rec)
	})
}
