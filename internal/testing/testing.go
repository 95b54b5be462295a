// package testing contains shared testing utilities
package testing

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/shared"
)

// SaveCall records one SavePlaylist invocation on [FakeBackend].
type SaveCall struct {
	Identity models.Identity
	Tracks   []models.Track
}

// FakeBackend is an in-memory test double for [services.Backend].
//
// Accounts are keyed by email with the password stored in the clear. Failures are injected per operation
// with the Fail* fields, and SaveGate, when set, blocks every save until a value is received from it.
type FakeBackend struct {
	mu sync.Mutex

	accounts  map[string]fakeAccount
	playlists map[string][]models.Track
	tokens    map[string]models.Identity
	saves     []SaveCall
	fetches   []models.Identity
	logouts   []models.Identity
	nextUser  int

	FailSignUp error
	FailLogIn  error
	FailLogOut error
	FailFetch  error
	// FailSaves fails the next N saves with ErrSave.
	FailSaves int
	ErrSave   error

	// SaveGate blocks SavePlaylist until a value is received or the context ends.
	SaveGate chan struct{}
	// SaveStarted, when set, receives the identity of each save as it begins.
	SaveStarted chan models.Identity
}

type fakeAccount struct {
	identity models.Identity
	password string
}

// NewFakeBackend creates an empty [FakeBackend].
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		accounts:  make(map[string]fakeAccount),
		playlists: make(map[string][]models.Track),
		tokens:    make(map[string]models.Identity),
	}
}

// Register creates an account with an optional stored playlist and returns its logged-out identity.
// A nil tracks slice leaves the account without a stored playlist.
func (f *FakeBackend) Register(email, password string, tracks []models.Track) models.Identity {
	f.mu.Lock()
	defer f.mu.Unlock()

	identity := f.register(email, password)
	if tracks != nil {
		f.playlists[identity.UserID] = models.Reindex(tracks)
	}
	return identity
}

func (f *FakeBackend) register(email, password string) models.Identity {
	f.nextUser++
	identity := models.Identity{UserID: fmt.Sprintf("user-%d", f.nextUser), Email: email}
	f.accounts[email] = fakeAccount{identity: identity, password: password}
	return identity
}

func (f *FakeBackend) issue(identity models.Identity) models.Identity {
	identity.Token = fmt.Sprintf("token-%s-%d", identity.UserID, len(f.tokens)+1)
	f.tokens[identity.Token] = identity
	return identity
}

func (f *FakeBackend) SignUp(ctx context.Context, email, password string) (models.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailSignUp != nil {
		return models.Identity{}, f.FailSignUp
	}
	if _, exists := f.accounts[email]; exists {
		return models.Identity{}, fmt.Errorf("%w: %s", shared.ErrDuplicateEmail, email)
	}
	return f.issue(f.register(email, password)), nil
}

func (f *FakeBackend) LogIn(ctx context.Context, email, password string) (models.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailLogIn != nil {
		return models.Identity{}, f.FailLogIn
	}
	account, ok := f.accounts[email]
	if !ok || account.password != password {
		return models.Identity{}, fmt.Errorf("%w: %w", shared.ErrAuthFailed, shared.ErrInvalidCredentials)
	}
	return f.issue(account.identity), nil
}

func (f *FakeBackend) LogOut(ctx context.Context, identity models.Identity) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.logouts = append(f.logouts, identity)
	if f.FailLogOut != nil {
		return f.FailLogOut
	}
	delete(f.tokens, identity.Token)
	return nil
}

func (f *FakeBackend) CurrentIdentity(ctx context.Context, token string) (models.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	identity, ok := f.tokens[token]
	if !ok {
		return models.Identity{}, shared.ErrSessionExpired
	}
	return identity, nil
}

func (f *FakeBackend) FetchPlaylist(ctx context.Context, identity models.Identity) ([]models.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.fetches = append(f.fetches, identity)
	if f.FailFetch != nil {
		return nil, f.FailFetch
	}
	tracks, ok := f.playlists[identity.UserID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, identity.UserID)
	}
	return append([]models.Track(nil), tracks...), nil
}

func (f *FakeBackend) SavePlaylist(ctx context.Context, identity models.Identity, tracks []models.Track) error {
	if f.SaveStarted != nil {
		select {
		case f.SaveStarted <- identity:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.SaveGate != nil {
		select {
		case <-f.SaveGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.saves = append(f.saves, SaveCall{Identity: identity, Tracks: append([]models.Track(nil), tracks...)})
	if f.FailSaves > 0 {
		f.FailSaves--
		if f.ErrSave != nil {
			return f.ErrSave
		}
		return fmt.Errorf("%w: injected failure", shared.ErrSyncFailed)
	}
	f.playlists[identity.UserID] = models.Reindex(tracks)
	return nil
}

// Saves returns every recorded SavePlaylist call, including failed ones.
func (f *FakeBackend) Saves() []SaveCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SaveCall(nil), f.saves...)
}

// Fetches returns the identities FetchPlaylist was called with.
func (f *FakeBackend) Fetches() []models.Identity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Identity(nil), f.fetches...)
}

// LogOuts returns the identities LogOut was called with.
func (f *FakeBackend) LogOuts() []models.Identity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Identity(nil), f.logouts...)
}

// Stored returns the persisted playlist for userID and whether one exists.
func (f *FakeBackend) Stored(userID string) ([]models.Track, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tracks, ok := f.playlists[userID]
	return append([]models.Track(nil), tracks...), ok
}

// ManualClock fires scheduled functions only when advanced, standing in for time.AfterFunc.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*manualTimer
}

type manualTimer struct {
	clock   *ManualClock
	at      time.Duration
	fn      func()
	stopped bool
	fired   bool
}

// AfterFunc schedules fn to run once the clock has been advanced by d. The returned stop function reports
// whether it prevented the call.
func (c *ManualClock) AfterFunc(d time.Duration, fn func()) func() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &manualTimer{clock: c, at: c.now + d, fn: fn}
	c.timers = append(c.timers, t)
	return t.stop
}

func (t *manualTimer) stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves the clock forward by d and runs every due timer synchronously, in deadline order.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*manualTimer
	pending := c.timers[:0]
	for _, t := range c.timers {
		switch {
		case t.stopped:
		case t.at <= c.now:
			t.fired = true
			due = append(due, t)
		default:
			pending = append(pending, t)
		}
	}
	c.timers = pending
	c.mu.Unlock()

	slices.SortStableFunc(due, func(a, b *manualTimer) int { return cmp.Compare(a.at, b.at) })
	for _, t := range due {
		t.fn()
	}
}

// Pending returns the number of armed timers.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

// Eventually polls cond until it holds or the timeout elapses.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v: %s", timeout, msg)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
