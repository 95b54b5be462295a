package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/shared"
	"github.com/desertthunder/playsync/internal/tasks"
	tu "github.com/desertthunder/playsync/internal/testing"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const delay = time.Second

type harness struct {
	ctrl    *Controller
	backend *tu.FakeBackend
	clock   *tu.ManualClock
	reports chan Report
}

func newHarness(t *testing.T, configure func(*tu.FakeBackend), flushTimeout time.Duration) *harness {
	t.Helper()

	h := &harness{
		backend: tu.NewFakeBackend(),
		clock:   &tu.ManualClock{},
		reports: make(chan Report, 16),
	}
	if configure != nil {
		configure(h.backend)
	}

	h.ctrl = New(h.backend, Opts{
		Scheduler: tasks.SchedulerOpts{
			Delay:     delay,
			Retries:   1,
			AfterFunc: h.clock.AfterFunc,
		},
		FlushTimeout: flushTimeout,
		Reports:      h.reports,
	})
	t.Cleanup(func() { h.ctrl.Close() })
	return h
}

func (h *harness) add(t *testing.T, titles ...string) {
	t.Helper()
	for _, title := range titles {
		if _, err := h.ctrl.Store().Append(models.Track{ID: title, Title: title, Source: title + ".mp3"}); err != nil {
			t.Fatalf("Append(%s) error = %v", title, err)
		}
	}
}

func (h *harness) mustLogIn(t *testing.T, email, password string) {
	t.Helper()
	if err := h.ctrl.LogIn(context.Background(), email, password); err != nil {
		t.Fatalf("LogIn() error = %v", err)
	}
	if got := h.ctrl.State(); got != Authenticated {
		t.Fatalf("expected %v after login, got %v", Authenticated, got)
	}
}

func (h *harness) mustLogOut(t *testing.T) {
	t.Helper()
	if err := h.ctrl.LogOut(context.Background()); err != nil {
		t.Fatalf("LogOut() error = %v", err)
	}
	if got := h.ctrl.State(); got != Anonymous {
		t.Fatalf("expected %v after logout, got %v", Anonymous, got)
	}
}

func (h *harness) drainReports() []Report {
	var out []Report
	for {
		select {
		case r := <-h.reports:
			out = append(out, r)
		default:
			return out
		}
	}
}

func trackIDs(tracks []models.Track) []string {
	out := make([]string, len(tracks))
	for i, t := range tracks {
		out[i] = t.ID
	}
	return out
}

func remote(ids ...string) []models.Track {
	out := make([]models.Track, len(ids))
	for i, id := range ids {
		out[i] = models.Track{ID: id, Title: "Remote " + id, Source: id + ".mp3"}
	}
	return out
}

func TestStateMachine(t *testing.T) {
	t.Run("legal transitions", func(t *testing.T) {
		tests := []struct {
			from State
			on   trigger
			to   State
		}{
			{Anonymous, submit, Authenticating},
			{Authenticating, verified, Authenticated},
			{Authenticating, rejected, Anonymous},
			{Authenticated, logout, LoggingOut},
			{LoggingOut, settled, Anonymous},
		}
		for _, tt := range tests {
			got, err := next(tt.from, tt.on)
			if err != nil || got != tt.to {
				t.Errorf("next(%v, %v) = %v, %v; want %v", tt.from, tt.on, got, err, tt.to)
			}
		}
	})

	t.Run("illegal transitions", func(t *testing.T) {
		tests := []struct {
			from State
			on   trigger
		}{
			{Anonymous, verified},
			{Anonymous, logout},
			{Anonymous, settled},
			{Authenticating, submit},
			{Authenticating, logout},
			{Authenticated, submit},
			{Authenticated, settled},
			{LoggingOut, submit},
			{LoggingOut, logout},
		}
		for _, tt := range tests {
			got, err := next(tt.from, tt.on)
			if !errors.Is(err, shared.ErrInvalidTransition) {
				t.Errorf("next(%v, %v) error = %v, want ErrInvalidTransition", tt.from, tt.on, err)
			}
			if got != tt.from {
				t.Errorf("next(%v, %v) moved to %v", tt.from, tt.on, got)
			}
		}
	})

	t.Run("String", func(t *testing.T) {
		tests := map[State]string{
			Anonymous:      "anonymous",
			Authenticating: "authenticating",
			Authenticated:  "authenticated",
			LoggingOut:     "logging_out",
			State(9):       "State(9)",
		}
		for s, want := range tests {
			if got := s.String(); got != want {
				t.Errorf("String() = %q, want %q", got, want)
			}
		}
	})
}

func TestLogIn(t *testing.T) {
	t.Run("replaces anonymous playlist with remote copy", func(t *testing.T) {
		h := newHarness(t, nil, 0)
		h.backend.Register("u@example.com", "password123", remote("c", "d"))

		h.add(t, "a", "b")
		h.mustLogIn(t, "u@example.com", "password123")

		if diff := cmp.Diff([]string{"c", "d"}, trackIDs(h.ctrl.Store().All())); diff != "" {
			t.Errorf("playlist mismatch (-want +got):\n%s", diff)
		}
		if h.ctrl.Scheduler().Pending() {
			t.Error("anonymous edits should not be pending after login")
		}

		h.clock.Advance(2 * delay)
		if got := len(h.backend.Saves()); got != 0 {
			t.Errorf("expected login not to write, got %d writes", got)
		}
	})

	t.Run("no stored playlist starts empty", func(t *testing.T) {
		h := newHarness(t, nil, 0)
		h.backend.Register("new@example.com", "password123", nil)

		h.add(t, "a")
		h.mustLogIn(t, "new@example.com", "password123")

		if got := h.ctrl.Store().Len(); got != 0 {
			t.Errorf("expected empty playlist, got %d entries", got)
		}
		if reports := h.drainReports(); len(reports) != 0 {
			t.Errorf("not found should not be reported, got %+v", reports)
		}
	})

	t.Run("fetch failure starts empty and is reported", func(t *testing.T) {
		fetchErr := fmt.Errorf("%w: backend down", shared.ErrSyncFailed)
		h := newHarness(t, func(b *tu.FakeBackend) { b.FailFetch = fetchErr }, 0)
		h.backend.Register("u@example.com", "password123", remote("c"))

		h.add(t, "a")
		h.mustLogIn(t, "u@example.com", "password123")

		if got := h.ctrl.Store().Len(); got != 0 {
			t.Errorf("expected empty playlist, got %d entries", got)
		}
		reports := h.drainReports()
		if len(reports) != 1 || reports[0].Op != "fetch" || !errors.Is(reports[0].Err, shared.ErrSyncFailed) {
			t.Errorf("expected one fetch report, got %+v", reports)
		}
	})

	t.Run("invalid credentials leave everything untouched", func(t *testing.T) {
		h := newHarness(t, nil, 0)
		h.backend.Register("u@example.com", "password123", remote("c"))

		h.add(t, "a")
		err := h.ctrl.LogIn(context.Background(), "u@example.com", "wrong-password")

		if !errors.Is(err, shared.ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
		if got := h.ctrl.State(); got != Anonymous {
			t.Errorf("expected %v, got %v", Anonymous, got)
		}
		if diff := cmp.Diff([]string{"a"}, trackIDs(h.ctrl.Store().All())); diff != "" {
			t.Errorf("playlist changed (-want +got):\n%s", diff)
		}
		if !h.ctrl.Scheduler().Pending() {
			t.Error("expected anonymous edit to stay pending")
		}
		if got := len(h.backend.Fetches()); got != 0 {
			t.Errorf("expected no fetch, got %d", got)
		}
	})

	t.Run("duplicate sign up", func(t *testing.T) {
		h := newHarness(t, nil, 0)
		h.backend.Register("u@example.com", "password123", nil)

		err := h.ctrl.SignUp(context.Background(), "u@example.com", "password123")
		if !errors.Is(err, shared.ErrDuplicateEmail) {
			t.Errorf("expected ErrDuplicateEmail, got %v", err)
		}
		if got := h.ctrl.State(); got != Anonymous {
			t.Errorf("expected %v, got %v", Anonymous, got)
		}
	})

	t.Run("twice is an invalid transition", func(t *testing.T) {
		h := newHarness(t, nil, 0)
		h.backend.Register("u@example.com", "password123", remote("c"))
		h.mustLogIn(t, "u@example.com", "password123")

		err := h.ctrl.LogIn(context.Background(), "u@example.com", "password123")
		if !errors.Is(err, shared.ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
		if got := len(h.backend.Fetches()); got != 1 {
			t.Errorf("expected rejected call to have no side effects, got %d fetches", got)
		}
	})

	t.Run("resume from token", func(t *testing.T) {
		h := newHarness(t, nil, 0)
		h.backend.Register("u@example.com", "password123", remote("c", "d"))
		identity, err := h.backend.LogIn(context.Background(), "u@example.com", "password123")
		if err != nil {
			t.Fatalf("LogIn() error = %v", err)
		}

		if err := h.ctrl.Resume(context.Background(), identity.Token); err != nil {
			t.Fatalf("Resume() error = %v", err)
		}
		got, ok := h.ctrl.Identity()
		if !ok || got.UserID != identity.UserID {
			t.Errorf("Identity() = %+v, %v; want %s", got, ok, identity.UserID)
		}
		if got := h.ctrl.Store().Len(); got != 2 {
			t.Errorf("expected 2 entries, got %d", got)
		}

		h2 := newHarness(t, nil, 0)
		if err := h2.ctrl.Resume(context.Background(), "bogus"); !errors.Is(err, shared.ErrSessionExpired) {
			t.Errorf("expected ErrSessionExpired, got %v", err)
		}
	})
}

func TestLogOut(t *testing.T) {
	t.Run("flushes pending edit before clearing", func(t *testing.T) {
		h := newHarness(t, nil, 0)
		h.backend.Register("u@example.com", "password123", nil)
		h.mustLogIn(t, "u@example.com", "password123")

		h.add(t, "a", "b")

		h.mustLogOut(t)

		saves := h.backend.Saves()
		if len(saves) != 1 {
			t.Fatalf("expected 1 flushed write, got %d", len(saves))
		}
		if diff := cmp.Diff([]string{"a", "b"}, trackIDs(saves[0].Tracks)); diff != "" {
			t.Errorf("flushed snapshot mismatch (-want +got):\n%s", diff)
		}
		if got := h.ctrl.Store().Len(); got != 0 {
			t.Errorf("expected playlist cleared, got %d entries", got)
		}
		if _, ok := h.ctrl.Identity(); ok {
			t.Error("expected no identity after logout")
		}
		if got := len(h.backend.LogOuts()); got != 1 {
			t.Errorf("expected token to be revoked once, got %d", got)
		}
	})

	t.Run("nothing pending skips the write", func(t *testing.T) {
		h := newHarness(t, nil, 0)
		h.backend.Register("u@example.com", "password123", remote("c"))
		h.mustLogIn(t, "u@example.com", "password123")
		h.mustLogOut(t)

		if got := len(h.backend.Saves()); got != 0 {
			t.Errorf("expected no writes, got %d", got)
		}
	})

	t.Run("flush failure still logs out", func(t *testing.T) {
		h := newHarness(t, func(b *tu.FakeBackend) { b.FailSaves = 2 }, 0)
		h.backend.Register("u@example.com", "password123", nil)
		h.mustLogIn(t, "u@example.com", "password123")

		h.add(t, "a")
		h.mustLogOut(t)

		if got := len(h.backend.Saves()); got != 2 {
			t.Errorf("expected write and one retry, got %d", got)
		}
		if got := h.ctrl.Store().Len(); got != 0 {
			t.Errorf("expected playlist cleared, got %d entries", got)
		}
		reports := h.drainReports()
		if len(reports) != 1 || reports[0].Op != "flush" || !errors.Is(reports[0].Err, shared.ErrSyncFailed) {
			t.Errorf("expected one flush report, got %+v", reports)
		}
	})

	t.Run("flush is bounded by the timeout", func(t *testing.T) {
		gate := make(chan struct{})
		h := newHarness(t, func(b *tu.FakeBackend) { b.SaveGate = gate }, 30*time.Millisecond)
		defer close(gate)

		h.backend.Register("u@example.com", "password123", nil)
		h.mustLogIn(t, "u@example.com", "password123")
		h.add(t, "a")

		start := time.Now()
		h.mustLogOut(t)
		if elapsed := time.Since(start); elapsed > time.Second {
			t.Errorf("logout blocked for %v", elapsed)
		}

		reports := h.drainReports()
		if len(reports) != 1 || !errors.Is(reports[0].Err, shared.ErrTimeout) {
			t.Errorf("expected a timeout report, got %+v", reports)
		}
	})

	t.Run("revoke failure is reported", func(t *testing.T) {
		h := newHarness(t, func(b *tu.FakeBackend) { b.FailLogOut = shared.ErrServiceUnavailable }, 0)
		h.backend.Register("u@example.com", "password123", nil)
		h.mustLogIn(t, "u@example.com", "password123")
		h.mustLogOut(t)

		reports := h.drainReports()
		if len(reports) != 1 || reports[0].Op != "logout" {
			t.Errorf("expected one logout report, got %+v", reports)
		}
	})

	t.Run("while anonymous is an invalid transition", func(t *testing.T) {
		h := newHarness(t, nil, 0)
		h.add(t, "a")

		err := h.ctrl.LogOut(context.Background())
		if !errors.Is(err, shared.ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
		if got := h.ctrl.Store().Len(); got != 1 {
			t.Errorf("expected playlist untouched, got %d entries", got)
		}
		if got := len(h.backend.LogOuts()); got != 0 {
			t.Errorf("expected no revoke, got %d", got)
		}
	})
}

func TestStateListeners(t *testing.T) {
	h := newHarness(t, nil, 0)
	h.backend.Register("u@example.com", "password123", nil)

	type move struct{ From, To State }
	var first, second []move
	h.ctrl.OnStateChange(func(from, to State) { first = append(first, move{from, to}) })
	unsubscribe := h.ctrl.OnStateChange(func(from, to State) { second = append(second, move{from, to}) })

	h.ctrl.LogIn(context.Background(), "u@example.com", "wrong-password")
	h.mustLogIn(t, "u@example.com", "password123")
	unsubscribe()
	h.mustLogOut(t)

	want := []move{
		{Anonymous, Authenticating},
		{Authenticating, Anonymous},
		{Anonymous, Authenticating},
		{Authenticating, Authenticated},
		{Authenticated, LoggingOut},
		{LoggingOut, Anonymous},
	}
	if diff := cmp.Diff(want, first); diff != "" {
		t.Errorf("transitions mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want[:4], second); diff != "" {
		t.Errorf("unsubscribed listener mismatch (-want +got):\n%s", diff)
	}
}

func TestScenarios(t *testing.T) {
	t.Run("sign up, add two tracks, wait past the quiet window", func(t *testing.T) {
		h := newHarness(t, nil, 0)

		if err := h.ctrl.SignUp(context.Background(), "fresh@example.com", "password123"); err != nil {
			t.Fatalf("SignUp() error = %v", err)
		}
		h.add(t, "first", "second")
		h.clock.Advance(delay + time.Millisecond)
		if err := h.ctrl.Scheduler().FlushNow(context.Background()); err != nil {
			t.Fatalf("FlushNow() error = %v", err)
		}

		identity, _ := h.ctrl.Identity()
		stored, err := h.backend.FetchPlaylist(context.Background(), identity)
		if err != nil {
			t.Fatalf("FetchPlaylist() error = %v", err)
		}
		if diff := cmp.Diff([]string{"first", "second"}, trackIDs(stored)); diff != "" {
			t.Errorf("stored order mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(h.ctrl.Store().All(), stored); diff != "" {
			t.Errorf("stored playlist differs from store (-store +stored):\n%s", diff)
		}
	})

	t.Run("playlist survives a logout and login cycle", func(t *testing.T) {
		h := newHarness(t, nil, 0)
		h.backend.Register("u@example.com", "password123", nil)

		h.mustLogIn(t, "u@example.com", "password123")
		h.add(t, "x", "y")
		before := h.ctrl.Store().All()
		h.mustLogOut(t)

		h.mustLogIn(t, "u@example.com", "password123")
		if diff := cmp.Diff(before, h.ctrl.Store().All()); diff != "" {
			t.Errorf("playlist mismatch after relogin (-before +after):\n%s", diff)
		}
	})

	t.Run("anonymous edits are discarded on login", func(t *testing.T) {
		h := newHarness(t, nil, 0)
		v := h.backend.Register("v@example.com", "password123", nil)

		h.add(t, "anon")
		h.clock.Advance(delay)
		if got := len(h.backend.Saves()); got != 0 {
			t.Fatalf("anonymous save should be a no-op, got %d writes", got)
		}

		h.mustLogIn(t, "v@example.com", "password123")
		if got := h.ctrl.Store().Len(); got != 0 {
			t.Errorf("expected 0 entries for fresh identity, got %d", got)
		}
		if _, ok := h.backend.Stored(v.UserID); ok {
			t.Error("anonymous edits must not be persisted under the new identity")
		}
	})

	t.Run("repeated cycles", func(t *testing.T) {
		h := newHarness(t, nil, 0)
		h.backend.Register("a@example.com", "password123", nil)
		h.backend.Register("b@example.com", "password123", nil)

		for i := range 3 {
			h.mustLogIn(t, "a@example.com", "password123")
			h.add(t, fmt.Sprintf("a%d", i))
			h.mustLogOut(t)

			h.mustLogIn(t, "b@example.com", "password123")
			h.add(t, fmt.Sprintf("b%d", i))
			h.mustLogOut(t)
		}

		h.mustLogIn(t, "a@example.com", "password123")
		if diff := cmp.Diff([]string{"a0", "a1", "a2"}, trackIDs(h.ctrl.Store().All())); diff != "" {
			t.Errorf("identity a mismatch (-want +got):\n%s", diff)
		}
		h.mustLogOut(t)

		h.mustLogIn(t, "b@example.com", "password123")
		if diff := cmp.Diff([]string{"b0", "b1", "b2"}, trackIDs(h.ctrl.Store().All())); diff != "" {
			t.Errorf("identity b mismatch (-want +got):\n%s", diff)
		}
	})
}
