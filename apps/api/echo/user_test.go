package echoapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/zuberi/fizikia/core/user"
)

func Test_userApi_login(t *testing.T) {
	s := setup(t)
	createUser(t, s.usrRepo, "Asha Zuberi", "ashaz", "asha@fizikia.test", "G00d#Pass", []string{user.RoleStudent}, true)
	createUser(t, s.usrRepo, "Gone Guy", "goneguy", "gone@fizikia.test", "G00d#Pass", []string{user.RoleStudent}, false)

	tests := []httpTest{
		{
			name:     "empty payload",
			body:     marchallObj(t, echo.Map{}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, echo.Map{"username": "this field is required", "password": "this field is required"}),
		},
		{
			name:     "unknown user",
			body:     marchallObj(t, LoginRequest{Username: "nobody", Password: "G00d#Pass"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "wrong password",
			body:     marchallObj(t, LoginRequest{Username: "ashaz", Password: "WrongPass1!"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "deactivated account",
			body:     marchallObj(t, LoginRequest{Username: "goneguy", Password: "G00d#Pass"}),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name:     "login by email",
			body:     marchallObj(t, LoginRequest{Username: "asha@fizikia.test", Password: "G00d#Pass"}),
			wantCode: http.StatusOK,
		},
		{
			name:     "login by username",
			body:     marchallObj(t, LoginRequest{Username: "ashaz", Password: "G00d#Pass"}),
			wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.exec(newAuthRequest(http.MethodPost, "/api/users/login", "", tt.body))
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				var resp LoginResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
					t.Fatalf("unmarshalling response: %v", err)
				}
				if resp.Token == "" {
					t.Error("token is empty")
				}
			}
		})
	}
}

func Test_userApi_refreshToken(t *testing.T) {
	s := setup(t)
	student := createUser(t, s.usrRepo, "Asha Zuberi", "ashaz", "asha@fizikia.test", "", []string{user.RoleStudent}, true)

	t.Run("no token", func(t *testing.T) {
		rec := s.exec(newAuthRequest(http.MethodPost, "/api/users/token-refresh", ""))
		tt := httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("valid token", func(t *testing.T) {
		rec := s.exec(newAuthRequest(http.MethodPost, "/api/users/token-refresh", getToken(t, student)))
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; wantCode %v: %v", rec.Code, http.StatusOK, rec.Body.String())
		}
		var resp LoginResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if resp.Token == "" {
			t.Error("token is empty")
		}
	})
}

func Test_userApi_create(t *testing.T) {
	s := setup(t)
	student := createUser(t, s.usrRepo, "Asha Zuberi", "ashaz", "asha@fizikia.test", "", []string{user.RoleStudent}, true)
	admin := createUser(t, s.usrRepo, "Admin", "admin1", "admin@fizikia.test", "", []string{user.RoleAdmin}, true)
	studentToken := getToken(t, student)
	adminToken := getToken(t, admin)

	newTA := user.NewUser{
		Name:            "Grace TA",
		Username:        "gracew",
		Email:           "grace@fizikia.test",
		Password:        "S3cret!Pass",
		PasswordConfirm: "S3cret!Pass",
		Roles:           []string{user.RoleTA},
	}

	tests := []httpTest{
		{
			name:     "no token",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "students cannot register users",
			token:    studentToken,
			body:     marchallObj(t, newTA),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:  "weak password",
			token: adminToken,
			body: marchallObj(t, user.NewUser{
				Name: "Weak", Username: "weakling", Email: "weak@fizikia.test",
				Password: "password", PasswordConfirm: "password",
			}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, echo.Map{
				"password": "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character",
			}),
		},
		{
			name:  "cannot set roles above own",
			token: adminToken,
			body: marchallObj(t, user.NewUser{
				Name: "Boss", Username: "bigboss", Email: "boss@fizikia.test",
				Password: "S3cret!Pass", PasswordConfirm: "S3cret!Pass",
				Roles: []string{user.RoleAdminOwner},
			}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, echo.Map{"roles": errNoPermsToSetRoles}),
		},
		{
			name:     "admin registers a TA",
			token:    adminToken,
			body:     marchallObj(t, newTA),
			wantCode: http.StatusCreated,
		},
		{
			name:     "duplicate username",
			token:    adminToken,
			body:     marchallObj(t, newTA),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, echo.Map{
				"username": user.ErrUserExists.Error(),
				"email":    user.ErrUserExists.Error(),
			}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.exec(newAuthRequest(http.MethodPost, "/api/users/register", tt.token, tt.body))
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusCreated {
				var usr user.User
				if err := json.Unmarshal(rec.Body.Bytes(), &usr); err != nil {
					t.Fatalf("unmarshalling response: %v", err)
				}
				if usr.ID == "" {
					t.Error("created user has no ID")
				}
				if usr.Username != newTA.Username {
					t.Errorf("username = %v; want %v", usr.Username, newTA.Username)
				}
				if !usr.IsTA() {
					t.Errorf("roles = %v; want %v", usr.Roles, newTA.Roles)
				}
			}
		})
	}
}

func Test_userApi_query(t *testing.T) {
	s := setup(t)
	student := createUser(t, s.usrRepo, "Asha Zuberi", "ashaz", "asha@fizikia.test", "", []string{user.RoleStudent}, true)
	prof := createUser(t, s.usrRepo, "Prof Neza", "profneza", "neza@fizikia.test", "", []string{user.RoleProfessor}, true)
	admin := createUser(t, s.usrRepo, "Admin", "admin1", "admin@fizikia.test", "", []string{user.RoleAdmin}, true)
	adminToken := getToken(t, admin)

	tests := []httpTest{
		{
			name:     "students cannot list users",
			path:     "/api/users",
			token:    getToken(t, student),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "staff cannot list users",
			path:     "/api/users",
			token:    getToken(t, prof),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "get all",
			path:     "/api/users",
			token:    adminToken,
			wantCode: http.StatusOK,
			wantData: marchallList(t, admin, prof, student), // latest first
		},
		{
			name:     "search",
			path:     "/api/users?search=neza",
			token:    adminToken,
			wantCode: http.StatusOK,
			wantData: marchallList(t, prof),
		},
		{
			name:     "filter by role",
			path:     "/api/users?role=student:",
			token:    adminToken,
			wantCode: http.StatusOK,
			wantData: marchallList(t, student),
		},
		{
			name:     "no match",
			path:     "/api/users?search=lol",
			token:    adminToken,
			wantCode: http.StatusOK,
			wantData: marchallList(t),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.exec(newAuthRequest(http.MethodGet, tt.path, tt.token))
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_retrieve(t *testing.T) {
	s := setup(t)
	student := createUser(t, s.usrRepo, "Asha Zuberi", "ashaz", "asha@fizikia.test", "", []string{user.RoleStudent}, true)
	other := createUser(t, s.usrRepo, "Kito Juma", "kitoj", "kito@fizikia.test", "", []string{user.RoleStudent}, true)
	admin := createUser(t, s.usrRepo, "Admin", "admin1", "admin@fizikia.test", "", []string{user.RoleAdmin}, true)

	tests := []httpTest{
		{
			name:     "own profile",
			path:     "/api/users/" + student.ID,
			token:    getToken(t, student),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, student),
		},
		{
			name:     "someone else's profile",
			path:     "/api/users/" + student.ID,
			token:    getToken(t, other),
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, errNotFound),
		},
		{
			name:     "admin reads any profile",
			path:     "/api/users/" + student.ID,
			token:    getToken(t, admin),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, student),
		},
		{
			name:     "unknown user",
			path:     "/api/users/deadbeef",
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

func Test_userApi_update(t *testing.T) {
	s := setup(t)
	student := createUser(t, s.usrRepo, "Asha Zuberi", "ashaz", "asha@fizikia.test", "", []string{user.RoleStudent}, true)
	admin := createUser(t, s.usrRepo, "Admin", "admin1", "admin@fizikia.test", "", []string{user.RoleAdmin}, true)

	t.Run("own name change", func(t *testing.T) {
		body := marchallObj(t, user.UpdateUser{Name: "Asha Z."})
		rec := s.exec(newAuthRequest(http.MethodPut, "/api/users/"+student.ID, getToken(t, student), body))
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; wantCode %v: %v", rec.Code, http.StatusOK, rec.Body.String())
		}
		var usr user.User
		if err := json.Unmarshal(rec.Body.Bytes(), &usr); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if usr.Name != "Asha Z." {
			t.Errorf("name = %v; want %v", usr.Name, "Asha Z.")
		}
	})

	t.Run("students cannot change their roles", func(t *testing.T) {
		body := marchallObj(t, user.UpdateUser{Roles: []string{user.RoleProfessor}})
		rec := s.exec(newAuthRequest(http.MethodPut, "/api/users/"+student.ID, getToken(t, student), body))
		tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("admin promotes a student", func(t *testing.T) {
		body := marchallObj(t, user.UpdateUser{Roles: []string{user.RoleTA}})
		rec := s.exec(newAuthRequest(http.MethodPut, "/api/users/"+student.ID, getToken(t, admin), body))
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; wantCode %v: %v", rec.Code, http.StatusOK, rec.Body.String())
		}
		var usr user.User
		if err := json.Unmarshal(rec.Body.Bytes(), &usr); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if !usr.IsTA() {
			t.Errorf("roles = %v; want %v", usr.Roles, []string{user.RoleTA})
		}
	})
}

func Test_userApi_destroy(t *testing.T) {
	s := setup(t)
	student := createUser(t, s.usrRepo, "Asha Zuberi", "ashaz", "asha@fizikia.test", "", []string{user.RoleStudent}, true)
	admin := createUser(t, s.usrRepo, "Admin", "admin1", "admin@fizikia.test", "", []string{user.RoleAdmin}, true)
	adminToken := getToken(t, admin)

	t.Run("students cannot delete users", func(t *testing.T) {
		rec := s.exec(newAuthRequest(http.MethodDelete, "/api/users/"+student.ID, getToken(t, student)))
		tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("admins cannot delete themselves", func(t *testing.T) {
		rec := s.exec(newAuthRequest(http.MethodDelete, "/api/users/"+admin.ID, adminToken))
		tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("admin deletes a student", func(t *testing.T) {
		rec := s.exec(newAuthRequest(http.MethodDelete, "/api/users/"+student.ID, adminToken))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("code = %v; wantCode %v: %v", rec.Code, http.StatusNoContent, rec.Body.String())
		}
		if _, err := s.usrSvc.GetByID(student.ID); err == nil {
			t.Error("user still exists")
		}
	})
}
