package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/fivemin/harmony/internal/adapters/http/api"
	"github.com/fivemin/harmony/internal/adapters/storage"
	service "github.com/fivemin/harmony/internal/app"
	"github.com/fivemin/harmony/internal/auth"
	"github.com/fivemin/harmony/internal/domain/notes"
	"github.com/fivemin/harmony/pkg/logger"
)

func init() {
	_ = logger.Init()
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testServer struct {
	mux   *http.ServeMux
	clock *fakeClock
	svc   *service.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	st := storage.NewMemoryStore()

	svc := service.New(
		service.WithStorage(st),
		service.WithClock(clock),
		service.WithTotalMeasures(4),
	)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("service start: %v", err)
	}
	t.Cleanup(svc.Stop)

	accounts := auth.NewService(st, []byte("test-secret"), time.Hour)

	mux := http.NewServeMux()
	api.NewServer(svc, accounts, svc).Register(context.Background(), mux)
	return &testServer{mux: mux, clock: clock, svc: svc}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) register(t *testing.T, username string) string {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": username,
		"password": "hunter2!",
		"email":    username + "@example.com",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d body %s", username, rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Token == "" {
		t.Fatalf("register %s: bad body %s", username, rec.Body.String())
	}
	return resp.Token
}

func (ts *testServer) measureNotes(t *testing.T, index int) []notes.Note {
	t.Helper()
	rec := ts.do(t, http.MethodGet, fmt.Sprintf("/measures/%d/notes", index), "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("measure notes: status %d", rec.Code)
	}
	var ns []notes.Note
	if err := json.Unmarshal(rec.Body.Bytes(), &ns); err != nil {
		t.Fatalf("decode notes: %v", err)
	}
	return ns
}

func TestRegisterAndLogin(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "alice")

	// Duplicate username is rejected.
	rec := ts.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "alice", "password": "other",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate register: status %d", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "alice", "password": "hunter2!",
	})
	if rec.Code != http.StatusOK {
		t.Errorf("login: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "alice", "password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad password login: status %d", rec.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/auth/register", "", map[string]string{"password": "x"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing username: status %d", rec.Code)
	}
}

func TestMe(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "bob")

	rec := ts.do(t, http.MethodGet, "/auth/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me: status %d body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Username            string `json:"username"`
		Email               string `json:"email"`
		TimeUntilNextAction int64  `json:"time_until_next_action"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Username != "bob" || resp.Email != "bob@example.com" {
		t.Errorf("me = %+v", resp)
	}
	if resp.TimeUntilNextAction != 0 {
		t.Errorf("fresh user remaining = %d", resp.TimeUntilNextAction)
	}

	if rec := ts.do(t, http.MethodGet, "/auth/me", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("me without token: status %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/auth/me", "garbage", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("me with bad token: status %d", rec.Code)
	}
}

func TestListUsersRequiresAuth(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "carol")
	ts.register(t, "dave")

	if rec := ts.do(t, http.MethodGet, "/users", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("users without token: status %d", rec.Code)
	}

	rec := ts.do(t, http.MethodGet, "/users", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("users: status %d", rec.Code)
	}
	var users []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &users); err != nil {
		t.Fatalf("decode users: %v", err)
	}
	if len(users) != 2 {
		t.Errorf("got %d users, want 2", len(users))
	}
}

func TestMeasures(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/measures", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("measures: status %d", rec.Code)
	}
	var ms []notes.MeasureSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &ms); err != nil {
		t.Fatalf("decode measures: %v", err)
	}
	if len(ms) != 4 {
		t.Fatalf("got %d measures, want 4", len(ms))
	}
	if ms[0].NoteCount != 4 {
		t.Errorf("measure 0 has %d notes, want 4", ms[0].NoteCount)
	}

	ns := ts.measureNotes(t, 0)
	if len(ns) != 4 || ns[0].Pitch != notes.PitchRest {
		t.Errorf("seeded measure 0 = %+v", ns)
	}

	if rec := ts.do(t, http.MethodGet, "/measures/99/notes", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("out-of-range measure: status %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/measures/abc/notes", "", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad measure index: status %d", rec.Code)
	}
}

func TestEditPitchFlow(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "erin")
	id := ts.measureNotes(t, 0)[0].ID

	// Unauthenticated edits are rejected outright.
	rec := ts.do(t, http.MethodPatch, "/notes/pitch", "", map[string]any{"note_id": id, "pitch": "C5"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated edit: status %d", rec.Code)
	}

	rec = ts.do(t, http.MethodPatch, "/notes/pitch", token, map[string]any{"note_id": id, "pitch": "C5"})
	if rec.Code != http.StatusOK {
		t.Fatalf("edit: status %d body %s", rec.Code, rec.Body.String())
	}
	var edited notes.Note
	if err := json.Unmarshal(rec.Body.Bytes(), &edited); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if edited.Pitch != "C5" || !edited.Initialized {
		t.Errorf("edited = %+v", edited)
	}

	// Second edit inside the cooldown returns 429 with the wait.
	ts.clock.Advance(10 * time.Second)
	rec = ts.do(t, http.MethodPatch, "/notes/pitch", token, map[string]any{"note_id": id, "pitch": "D5"})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("edit during cooldown: status %d", rec.Code)
	}
	var errResp struct {
		Code              string `json:"code"`
		RetryAfterSeconds *int64 `json:"retry_after_seconds"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if errResp.Code != "cooldown" || errResp.RetryAfterSeconds == nil || *errResp.RetryAfterSeconds != 290 {
		t.Errorf("cooldown response = %s", rec.Body.String())
	}

	rec = ts.do(t, http.MethodGet, "/auth/has_action", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("has_action: status %d", rec.Code)
	}
	var ha struct {
		HasAction bool `json:"has_action"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &ha)
	if ha.HasAction {
		t.Error("has_action true during cooldown")
	}

	// After the tick the next edit goes through.
	ts.clock.Advance(290 * time.Second)
	rec = ts.do(t, http.MethodPatch, "/notes/pitch", token, map[string]any{"note_id": id, "pitch": "D5"})
	if rec.Code != http.StatusOK {
		t.Fatalf("edit after cooldown: status %d", rec.Code)
	}
}

func TestEditValidationErrors(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "frank")
	id := ts.measureNotes(t, 0)[0].ID

	rec := ts.do(t, http.MethodPatch, "/notes/pitch", token, map[string]any{"note_id": id, "pitch": "Z9"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid pitch: status %d", rec.Code)
	}
	rec = ts.do(t, http.MethodPatch, "/notes/duration", token, map[string]any{"note_id": id, "duration": 7})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid duration: status %d", rec.Code)
	}
	rec = ts.do(t, http.MethodPatch, "/notes/duration", token, map[string]any{"note_id": "nope", "duration": 8})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown note: status %d", rec.Code)
	}

	// Failed edits are free, so a valid one still succeeds.
	rec = ts.do(t, http.MethodPatch, "/notes/duration", token, map[string]any{"note_id": id, "duration": 8})
	if rec.Code != http.StatusOK {
		t.Errorf("valid edit after failures: status %d", rec.Code)
	}
}

func TestCombine(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "grace")
	ns := ts.measureNotes(t, 1)

	rec := ts.do(t, http.MethodPost, "/notes/combine", token, map[string]any{
		"note_id_list": []string{ns[0].ID, ns[1].ID},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("combine: status %d body %s", rec.Code, rec.Body.String())
	}
	var merged notes.Note
	if err := json.Unmarshal(rec.Body.Bytes(), &merged); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if merged.Duration != ns[0].Duration+ns[1].Duration {
		t.Errorf("merged duration = %d", merged.Duration)
	}
	if got := ts.measureNotes(t, 1); len(got) != len(ns)-1 {
		t.Errorf("measure 1 has %d notes, want %d", len(got), len(ns)-1)
	}
}

func TestCombineTooFew(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "heidi")
	ns := ts.measureNotes(t, 2)

	rec := ts.do(t, http.MethodPost, "/notes/combine", token, map[string]any{
		"note_id_list": []string{ns[0].ID},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("single-note combine: status %d", rec.Code)
	}
}

func TestStatsAndHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/stats", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats: status %d", rec.Code)
	}
	var stats map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats["started"] != true {
		t.Errorf("stats = %v", stats)
	}

	rec = ts.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("healthz: status %d", rec.Code)
	}
}
