package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/repositories"
	"github.com/desertthunder/playsync/internal/services"
	"github.com/desertthunder/playsync/internal/session"
	"github.com/desertthunder/playsync/internal/shared"
	"github.com/desertthunder/playsync/internal/tasks"
	"github.com/google/go-cmp/cmp"
	"golang.org/x/crypto/bcrypt"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	db, err := shared.OpenConfigured(shared.DatabaseConfig{Driver: "sqlite3", Path: shared.MemoryDatabase})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	srv, err := New(db, Opts{SessionTTL: time.Hour, HashCost: bcrypt.MinCost, Logger: log.New(io.Discard)})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func call(t *testing.T, ts *httptest.Server, method, path, token string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = strings.NewReader(b)
		default:
			data, err := json.Marshal(b)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			reader = bytes.NewReader(data)
		}
	}

	req, err := http.NewRequest(method, ts.URL+path, reader)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func signUp(t *testing.T, ts *httptest.Server, email string) services.IdentityPayload {
	t.Helper()
	resp := call(t, ts, http.MethodPost, "/auth/signup", "", services.CredentialsPayload{Email: email, Password: "hunter22"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup status = %d, want 201", resp.StatusCode)
	}
	return decode[services.IdentityPayload](t, resp)
}

func TestNew(t *testing.T) {
	db, err := shared.OpenConfigured(shared.DatabaseConfig{Driver: "sqlite", Path: shared.MemoryDatabase})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	t.Run("rejects non-positive ttl", func(t *testing.T) {
		if _, err := New(db, Opts{}); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("New() error = %v, want ErrInvalidConfig", err)
		}
	})

	t.Run("rejects bad purge schedule", func(t *testing.T) {
		_, err := New(db, Opts{SessionTTL: time.Hour, PurgeSchedule: "every so often"})
		if !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("New() error = %v, want ErrInvalidConfig", err)
		}
	})

	t.Run("accepts descriptor schedule", func(t *testing.T) {
		if _, err := New(db, Opts{SessionTTL: time.Hour, PurgeSchedule: "@every 1h"}); err != nil {
			t.Errorf("New() error = %v", err)
		}
	})
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t)

	resp := call(t, ts, http.MethodGet, "/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := decode[map[string]string](t, resp); got["status"] != "ok" {
		t.Errorf("body = %v", got)
	}

	if resp := call(t, ts, http.MethodPost, "/health", "", nil); resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST /health status = %d, want 405", resp.StatusCode)
	}
}

func TestAuthHandler(t *testing.T) {
	t.Run("signup returns identity with token", func(t *testing.T) {
		_, ts := newTestServer(t)
		identity := signUp(t, ts, "Alice@Example.com ")

		if identity.UserID == "" || identity.Token == "" {
			t.Fatalf("identity = %+v, want user id and token", identity)
		}
		if identity.Email != "alice@example.com" {
			t.Errorf("email = %q, want normalized", identity.Email)
		}
	})

	t.Run("signup validation", func(t *testing.T) {
		_, ts := newTestServer(t)

		tests := []struct {
			name string
			body any
		}{
			{"missing at sign", services.CredentialsPayload{Email: "alice", Password: "hunter22"}},
			{"short password", services.CredentialsPayload{Email: "a@b.c", Password: "short"}},
			{"malformed json", `{"email":`},
			{"unknown field", `{"email":"a@b.c","password":"hunter22","admin":true}`},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				resp := call(t, ts, http.MethodPost, "/auth/signup", "", tt.body)
				if resp.StatusCode != http.StatusBadRequest {
					t.Errorf("status = %d, want 400", resp.StatusCode)
				}
				if got := decode[services.ErrorPayload](t, resp); got.Error == "" {
					t.Error("expected error message in body")
				}
			})
		}
	})

	t.Run("duplicate signup conflicts", func(t *testing.T) {
		_, ts := newTestServer(t)
		signUp(t, ts, "alice@example.com")

		resp := call(t, ts, http.MethodPost, "/auth/signup", "", services.CredentialsPayload{Email: "ALICE@example.com", Password: "hunter22"})
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("status = %d, want 409", resp.StatusCode)
		}
	})

	t.Run("login", func(t *testing.T) {
		_, ts := newTestServer(t)
		created := signUp(t, ts, "alice@example.com")

		resp := call(t, ts, http.MethodPost, "/auth/login", "", services.CredentialsPayload{Email: "alice@example.com", Password: "hunter22"})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		got := decode[services.IdentityPayload](t, resp)
		if got.UserID != created.UserID {
			t.Errorf("user = %q, want %q", got.UserID, created.UserID)
		}
		if got.Token == created.Token {
			t.Error("login should issue a fresh token")
		}

		for _, creds := range []services.CredentialsPayload{
			{Email: "alice@example.com", Password: "wrong-password"},
			{Email: "nobody@example.com", Password: "hunter22"},
		} {
			if resp := call(t, ts, http.MethodPost, "/auth/login", "", creds); resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("login %s status = %d, want 401", creds.Email, resp.StatusCode)
			}
		}
	})

	t.Run("me and logout", func(t *testing.T) {
		_, ts := newTestServer(t)
		identity := signUp(t, ts, "alice@example.com")

		resp := call(t, ts, http.MethodGet, "/auth/me", identity.Token, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("me status = %d, want 200", resp.StatusCode)
		}
		me := decode[services.IdentityPayload](t, resp)
		if me.UserID != identity.UserID || me.Token != "" {
			t.Errorf("me = %+v", me)
		}

		if resp := call(t, ts, http.MethodPost, "/auth/logout", identity.Token, nil); resp.StatusCode != http.StatusNoContent {
			t.Fatalf("logout status = %d, want 204", resp.StatusCode)
		}
		if resp := call(t, ts, http.MethodGet, "/auth/me", identity.Token, nil); resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("me after logout status = %d, want 401", resp.StatusCode)
		}
	})

	t.Run("require rejects missing and malformed tokens", func(t *testing.T) {
		_, ts := newTestServer(t)

		for _, header := range []string{"", "Bearer", "Basic abc", "Bearer    "} {
			req, _ := http.NewRequest(http.MethodGet, ts.URL+"/auth/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			resp, err := ts.Client().Do(req)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("header %q status = %d, want 401", header, resp.StatusCode)
			}
		}
	})
}

func TestRequireExpiredSession(t *testing.T) {
	db, err := shared.OpenConfigured(shared.DatabaseConfig{Driver: "sqlite3", Path: shared.MemoryDatabase})
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	users := repositories.NewUserRepository(db)
	sessions := repositories.NewSessionRepository(db)
	h := NewAuthHandler(users, sessions, time.Minute, bcrypt.MinCost, log.New(io.Discard))

	user := models.NewUser(0, "alice@example.com", "$2a$04$hash")
	if err := users.Create(user); err != nil {
		t.Fatal(err)
	}
	if err := sessions.Create(models.NewSession("tok", user.ID(), time.Minute)); err != nil {
		t.Fatal(err)
	}
	h.now = func() time.Time { return time.Now().Add(time.Hour) }

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if _, err := sessions.Get("tok"); !errors.Is(err, shared.ErrNotAuthenticated) {
		t.Errorf("expired session should be deleted, Get() error = %v", err)
	}
}

func TestPlaylistHandler(t *testing.T) {
	tracks := []services.TrackPayload{
		{ID: "t1", Title: "Intro", Source: "file:///intro.mp3", Position: 7},
		{ID: "t2", Title: "Outro", Source: "file:///outro.mp3", Position: 3},
	}

	t.Run("never saved is not found", func(t *testing.T) {
		_, ts := newTestServer(t)
		identity := signUp(t, ts, "alice@example.com")

		if resp := call(t, ts, http.MethodGet, "/playlists/"+identity.UserID, identity.Token, nil); resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})

	t.Run("put then get", func(t *testing.T) {
		_, ts := newTestServer(t)
		identity := signUp(t, ts, "alice@example.com")
		path := "/playlists/" + identity.UserID

		resp := call(t, ts, http.MethodPut, path, identity.Token, services.PlaylistPayload{Tracks: tracks})
		if resp.StatusCode != http.StatusNoContent {
			t.Fatalf("put status = %d, want 204", resp.StatusCode)
		}
		if got := resp.Header.Get(RevisionHeader); got != "1" {
			t.Errorf("revision = %q, want 1", got)
		}

		resp = call(t, ts, http.MethodGet, path, identity.Token, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("get status = %d, want 200", resp.StatusCode)
		}
		got := decode[services.PlaylistPayload](t, resp)
		want := services.PlaylistPayload{
			UserID: identity.UserID,
			Tracks: []services.TrackPayload{
				{ID: "t1", Title: "Intro", Source: "file:///intro.mp3", Position: 0},
				{ID: "t2", Title: "Outro", Source: "file:///outro.mp3", Position: 1},
			},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("playlist mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("empty playlist is stored", func(t *testing.T) {
		_, ts := newTestServer(t)
		identity := signUp(t, ts, "alice@example.com")
		path := "/playlists/" + identity.UserID

		call(t, ts, http.MethodPut, path, identity.Token, services.PlaylistPayload{Tracks: tracks})
		if resp := call(t, ts, http.MethodPut, path, identity.Token, services.PlaylistPayload{}); resp.StatusCode != http.StatusNoContent {
			t.Fatalf("put status = %d, want 204", resp.StatusCode)
		}

		resp := call(t, ts, http.MethodGet, path, identity.Token, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("get status = %d, want 200", resp.StatusCode)
		}
		if got := decode[services.PlaylistPayload](t, resp); len(got.Tracks) != 0 {
			t.Errorf("tracks = %v, want empty", got.Tracks)
		}
		if got := resp.Header.Get(RevisionHeader); got != "2" {
			t.Errorf("revision = %q, want 2", got)
		}
	})

	t.Run("invalid tracks are rejected", func(t *testing.T) {
		_, ts := newTestServer(t)
		identity := signUp(t, ts, "alice@example.com")
		path := "/playlists/" + identity.UserID

		bodies := []services.PlaylistPayload{
			{Tracks: []services.TrackPayload{{ID: "", Title: "No ID"}}},
			{Tracks: []services.TrackPayload{{ID: "t1", Title: "A"}, {ID: "t1", Title: "B"}}},
		}
		for _, body := range bodies {
			if resp := call(t, ts, http.MethodPut, path, identity.Token, body); resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		}
	})

	t.Run("other users are forbidden", func(t *testing.T) {
		_, ts := newTestServer(t)
		alice := signUp(t, ts, "alice@example.com")
		bob := signUp(t, ts, "bob@example.com")
		path := "/playlists/" + alice.UserID

		if resp := call(t, ts, http.MethodGet, path, bob.Token, nil); resp.StatusCode != http.StatusForbidden {
			t.Errorf("get status = %d, want 403", resp.StatusCode)
		}
		if resp := call(t, ts, http.MethodPut, path, bob.Token, services.PlaylistPayload{Tracks: tracks}); resp.StatusCode != http.StatusForbidden {
			t.Errorf("put status = %d, want 403", resp.StatusCode)
		}
		if resp := call(t, ts, http.MethodGet, path, "", nil); resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("anonymous status = %d, want 401", resp.StatusCode)
		}
	})
}

func TestPurgeSessions(t *testing.T) {
	srv, ts := newTestServer(t)
	identity := signUp(t, ts, "alice@example.com")

	if n := srv.PurgeSessions(); n != 0 {
		t.Errorf("PurgeSessions() = %d, want 0 for a live session", n)
	}
	if resp := call(t, ts, http.MethodGet, "/auth/me", identity.Token, nil); resp.StatusCode != http.StatusOK {
		t.Errorf("me status = %d, want 200", resp.StatusCode)
	}
}

func TestServe(t *testing.T) {
	db, err := shared.OpenConfigured(shared.DatabaseConfig{Driver: "sqlite", Path: shared.MemoryDatabase})
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	srv, err := New(db, Opts{SessionTTL: time.Hour, PurgeSchedule: "@every 1h", HashCost: bcrypt.MinCost, Logger: log.New(io.Discard)})
	if err != nil {
		t.Fatal(err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	client := services.NewAPIService("http://"+ln.Addr().String(), nil, 0)
	if err := client.Health(context.Background()); err != nil {
		t.Fatalf("Health() error = %v", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}

// TestEngineRoundTrip drives the session controller against the real backend through the HTTP client.
func TestEngineRoundTrip(t *testing.T) {
	_, ts := newTestServer(t)
	ctx := context.Background()

	newController := func() *session.Controller {
		c := session.New(services.NewAPIService(ts.URL, ts.Client(), 0), session.Opts{
			Scheduler:    tasks.SchedulerOpts{Delay: time.Hour, Logger: log.New(io.Discard)},
			FlushTimeout: 5 * time.Second,
			Logger:       log.New(io.Discard),
		})
		t.Cleanup(func() { c.Close() })
		return c
	}

	first := newController()
	if err := first.SignUp(ctx, "alice@example.com", "hunter22"); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if first.Store().Len() != 0 {
		t.Fatalf("new account should start with an empty playlist")
	}

	for _, tr := range []models.Track{
		{ID: "a", Title: "A", Source: "file:///a.mp3"},
		{ID: "b", Title: "B", Source: "file:///b.mp3"},
		{ID: "c", Title: "C", Source: "file:///c.mp3"},
	} {
		if _, err := first.Store().Append(tr); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := first.Store().RemoveAt(1); err != nil {
		t.Fatal(err)
	}

	// The debounce never elapses; logout has to flush.
	if err := first.LogOut(ctx); err != nil {
		t.Fatalf("LogOut() error = %v", err)
	}
	if first.Store().Len() != 0 {
		t.Errorf("store should be cleared after logout")
	}

	second := newController()
	if err := second.LogIn(ctx, "alice@example.com", "hunter22"); err != nil {
		t.Fatalf("LogIn() error = %v", err)
	}

	want := []models.Track{
		{ID: "a", Title: "A", Source: "file:///a.mp3", Position: 0},
		{ID: "c", Title: "C", Source: "file:///c.mp3", Position: 1},
	}
	if diff := cmp.Diff(want, second.Store().All()); diff != "" {
		t.Errorf("restored playlist mismatch (-want +got):\n%s", diff)
	}
}
