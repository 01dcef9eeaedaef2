package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/wanderlust/wanderbridge/internal/auth"
	"github.com/wanderlust/wanderbridge/internal/lifecycle"
	"github.com/wanderlust/wanderbridge/internal/mc"
	"github.com/wanderlust/wanderbridge/internal/sched"
)

type stubProber struct{ status mc.Status }

func (s *stubProber) Query() mc.Status { return s.status }

type stubConsole struct {
	resp string
	last string
}

func (s *stubConsole) Execute(command string) (string, error) {
	s.last = command
	return s.resp, nil
}

func newTestRouter(t *testing.T) (*Router, *stubConsole) {
	t.Helper()
	hash, err := auth.HashPassword("sesame")
	if err != nil {
		t.Fatal(err)
	}
	clk := sched.NewFake(time.Date(2025, 6, 19, 12, 0, 0, 0, time.UTC))
	machine := lifecycle.NewMachine(clk.Now())
	machine.Transition(lifecycle.StateOnline, clk.Now())
	machine.SetStartTime(clk.Now().Add(-30 * time.Minute))

	prober := &stubProber{status: mc.Status{Online: true, PlayersOnline: 2, PlayersMax: 20, LatencyMs: 9, MOTD: "Wanderlust"}}
	console := &stubConsole{resp: "Seed: [12345]"}
	svc := auth.NewService("test-secret", hash, time.Hour)
	return NewRouter(machine, prober, console, nil, svc, clk, nil), console
}

func TestStatusEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var resp StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.State != "online" || !resp.Online || resp.PlayersOnline != 2 {
		t.Fatalf("response = %+v", resp)
	}
	if resp.UptimeSeconds != 1800 {
		t.Fatalf("uptime = %d, want 1800", resp.UptimeSeconds)
	}
}

func TestHistoryEndpointDisabled(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/history", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 without a history store", rec.Code)
	}
}

func TestRconRequiresAuth(t *testing.T) {
	router, console := newTestRouter(t)

	body := strings.NewReader(`{"command": "seed"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/rcon", body))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 without token", rec.Code)
	}
	if console.last != "" {
		t.Fatalf("command executed without auth: %q", console.last)
	}
}

func TestLoginAndRcon(t *testing.T) {
	router, console := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/auth/login", strings.NewReader(`{"password": "sesame"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body)
	}
	var login LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &login); err != nil {
		t.Fatal(err)
	}
	if login.Token == "" {
		t.Fatal("empty token")
	}

	req := httptest.NewRequest("POST", "/api/rcon", strings.NewReader(`{"command": "seed"}`))
	req.Header.Set("Authorization", "Bearer "+login.Token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("rcon status = %d, body %s", rec.Code, rec.Body)
	}
	var resp RconResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Output != "Seed: [12345]" || console.last != "seed" {
		t.Fatalf("output = %q, executed = %q", resp.Output, console.last)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/auth/login", strings.NewReader(`{"password": "wrong"}`)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestIconWithoutFavicon(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/icon", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 when ping has no favicon", rec.Code)
	}
}
