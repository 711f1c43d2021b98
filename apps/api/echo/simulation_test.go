package echoapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/zuberi/fizikia/core/simulation"
	"github.com/zuberi/fizikia/core/user"
)

func Test_simulationApi_query(t *testing.T) {
	s := setup(t)
	student := createUser(t, s.usrRepo, "Amani Bakari", "amanib", "amani@fizikia.test", "", []string{user.RoleStudent}, true)

	tests := []httpTest{
		{
			name:     "no token",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "full catalog",
			token:    getToken(t, student),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, simulation.DefaultRegistry().List()),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.exec(newAuthRequest(http.MethodGet, "/api/simulations", tt.token))
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_simulationApi_retrieve(t *testing.T) {
	s := setup(t)
	student := createUser(t, s.usrRepo, "Amani Bakari", "amanib", "amani@fizikia.test", "", []string{user.RoleStudent}, true)
	token := getToken(t, student)

	tests := []httpTest{
		{
			name:     "known model",
			path:     "/api/simulations/projectile",
			token:    token,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, simulation.Projectile{}.Describe()),
		},
		{
			name:     "unknown model",
			path:     "/api/simulations/wormhole",
			token:    token,
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

func Test_simulationApi_run(t *testing.T) {
	s := setup(t)
	student := createUser(t, s.usrRepo, "Amani Bakari", "amanib", "amani@fizikia.test", "", []string{user.RoleStudent}, true)
	token := getToken(t, student)

	t.Run("unset parameters fall back to defaults", func(t *testing.T) {
		body := marchallObj(t, RunRequest{Params: map[string]float64{"v0": 50}})
		rec := s.exec(newAuthRequest(http.MethodPost, "/api/simulations/projectile/run", token, body))
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; wantCode %v: %v", rec.Code, http.StatusOK, rec.Body.String())
		}

		var resp RunResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if resp.Slug != "projectile" {
			t.Errorf("slug = %q; want projectile", resp.Slug)
		}
		if resp.Params["v0"] != 50 || resp.Params["angle"] != 45 || resp.Params["g"] != 9.81 {
			t.Errorf("resolved params = %v; want v0=50 with angle and g defaulted", resp.Params)
		}
		if len(resp.Frames) == 0 {
			t.Fatal("no frames returned")
		}
		for _, metric := range []string{"range", "apex", "flight_time"} {
			if _, ok := resp.Summary[metric]; !ok {
				t.Errorf("summary is missing %q", metric)
			}
		}
		if resp.Challenge != nil {
			t.Error("challenge result returned without a guess")
		}
	})

	errTests := []httpTest{
		{
			name:     "out-of-range parameter",
			path:     "/api/simulations/projectile/run",
			body:     marchallObj(t, RunRequest{Params: map[string]float64{"v0": -1}}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"v0": "must be between 1 and 200"}),
		},
		{
			name:     "unknown parameter",
			path:     "/api/simulations/projectile/run",
			body:     marchallObj(t, RunRequest{Params: map[string]float64{"warp": 9}}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"warp": "unknown parameter"}),
		},
		{
			name:     "unknown model",
			path:     "/api/simulations/wormhole/run",
			body:     marchallObj(t, RunRequest{}),
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, errNotFound),
		},
	}
	for _, tt := range errTests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.exec(newAuthRequest(http.MethodPost, tt.path, token, tt.body))
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_simulationApi_challenge(t *testing.T) {
	s := setup(t)
	student := createUser(t, s.usrRepo, "Amani Bakari", "amanib", "amani@fizikia.test", "", []string{user.RoleStudent}, true)
	token := getToken(t, student)

	// same run the server will do; its range is the challenge target
	series, err := simulation.Projectile{}.Run(nil)
	if err != nil {
		t.Fatalf("Run(): %v", err)
	}
	target := series.Summary["range"]

	runChallenge := func(t *testing.T, guess simulation.Guess) simulation.Result {
		t.Helper()
		body := marchallObj(t, RunRequest{Challenge: &guess})
		rec := s.exec(newAuthRequest(http.MethodPost, "/api/simulations/projectile/run", token, body))
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; wantCode %v: %v", rec.Code, http.StatusOK, rec.Body.String())
		}
		var resp RunResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if resp.Challenge == nil {
			t.Fatal("no challenge result returned")
		}
		return *resp.Challenge
	}

	t.Run("first-try hit earns full points", func(t *testing.T) {
		res := runChallenge(t, simulation.Guess{Value: target, Attempt: 1})
		if !res.Hit {
			t.Errorf("hit = false; guess %v target %v", res.Guess, res.Target)
		}
		if res.Points != 10 {
			t.Errorf("points = %v; want 10", res.Points)
		}
	})

	t.Run("the pot shrinks with each attempt", func(t *testing.T) {
		res := runChallenge(t, simulation.Guess{Value: target, Attempt: 2})
		if !res.Hit {
			t.Errorf("hit = false; guess %v target %v", res.Guess, res.Target)
		}
		if res.Points != 7.5 {
			t.Errorf("points = %v; want 7.5", res.Points)
		}
	})

	t.Run("a miss earns nothing", func(t *testing.T) {
		res := runChallenge(t, simulation.Guess{Value: target * 10, Attempt: 1})
		if res.Hit {
			t.Error("hit = true for a wild miss")
		}
		if res.Points != 0 {
			t.Errorf("points = %v; want 0", res.Points)
		}
	})

	t.Run("model without a challenge", func(t *testing.T) {
		body := marchallObj(t, RunRequest{Challenge: &simulation.Guess{Value: 1, Attempt: 1}})
		rec := s.exec(newAuthRequest(http.MethodPost, "/api/simulations/gravity/run", token, body))
		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: simulation.ErrNoChallenge.Error()}),
		}
		checkCodeAndData(t, tt, rec)
	})
}
