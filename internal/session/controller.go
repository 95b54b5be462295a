// Package session drives the playlist through login and logout.
//
// A [Controller] owns the [playlist.Store] and the write-back [tasks.Scheduler] for the lifetime of the
// process. Logging in replaces the playlist with the copy stored for the identity (or empties it when there
// is none); logging out flushes pending edits, revokes the token and clears the playlist.
package session

import (
	"context"
	"errors"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/playlist"
	"github.com/desertthunder/playsync/internal/services"
	"github.com/desertthunder/playsync/internal/shared"
	"github.com/desertthunder/playsync/internal/tasks"
)

// DefaultFlushTimeout bounds the logout flush when [Opts.FlushTimeout] is zero.
const DefaultFlushTimeout = 5 * time.Second

// StateListener is called after every transition, synchronously and in transition order.
type StateListener func(from, to State)

// Report is a remote failure the controller absorbed instead of returning.
type Report struct {
	Op  string // "fetch", "flush" or "logout"
	Err error
}

// Opts contains configuration for a [Controller].
type Opts struct {
	Scheduler    tasks.SchedulerOpts // Write-back settings; its Logger defaults to Logger
	FlushTimeout time.Duration       // Upper bound on the logout flush (default: 5s)
	Logger       *log.Logger
	Reports      chan<- Report // Optional; sends never block
}

// Controller is the session lifecycle state machine.
type Controller struct {
	backend      services.Backend
	store        *playlist.Store
	scheduler    *tasks.Scheduler
	flushTimeout time.Duration
	logger       *log.Logger
	reports      chan<- Report

	mu        sync.Mutex
	state     State
	identity  models.Identity
	listeners map[int]StateListener
	nextID    int
}

// New creates a [Controller] in the [Anonymous] state over an empty playlist.
func New(backend services.Backend, opts Opts) *Controller {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(io.Discard)
	}
	if opts.FlushTimeout <= 0 {
		opts.FlushTimeout = DefaultFlushTimeout
	}
	if opts.Scheduler.Logger == nil {
		opts.Scheduler.Logger = opts.Logger
	}

	c := &Controller{
		backend:      backend,
		store:        playlist.NewStore(),
		flushTimeout: opts.FlushTimeout,
		logger:       shared.WithLogger(opts.Logger, "component", "session"),
		reports:      opts.Reports,
		listeners:    make(map[int]StateListener),
	}
	c.scheduler = tasks.NewScheduler(c.store, backend, c.Identity, opts.Scheduler)
	return c
}

// Store returns the playlist the UI reads and edits.
func (c *Controller) Store() *playlist.Store {
	return c.store
}

// Scheduler returns the write-back scheduler attached to the store.
func (c *Controller) Scheduler() *tasks.Scheduler {
	return c.scheduler
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Identity returns the identity writes are keyed by. It is only set while [Authenticated] or [LoggingOut].
func (c *Controller) Identity() (models.Identity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Authenticated && c.state != LoggingOut {
		return models.Identity{}, false
	}
	return c.identity, true
}

// OnStateChange registers l and returns a function that removes it.
func (c *Controller) OnStateChange(l StateListener) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.listeners[id] = l

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// LogIn authenticates with existing credentials and loads the identity's playlist.
func (c *Controller) LogIn(ctx context.Context, email, password string) error {
	return c.authenticate(ctx, "login", func(ctx context.Context) (models.Identity, error) {
		return c.backend.LogIn(ctx, email, password)
	})
}

// SignUp registers a new account and loads its (empty) playlist.
func (c *Controller) SignUp(ctx context.Context, email, password string) error {
	return c.authenticate(ctx, "signup", func(ctx context.Context) (models.Identity, error) {
		return c.backend.SignUp(ctx, email, password)
	})
}

// Resume restores a session from a previously issued token.
func (c *Controller) Resume(ctx context.Context, token string) error {
	return c.authenticate(ctx, "resume", func(ctx context.Context) (models.Identity, error) {
		return c.backend.CurrentIdentity(ctx, token)
	})
}

// authenticate runs Anonymous → Authenticating → Authenticated (or back to Anonymous when fn fails).
//
// Account errors are returned and leave the playlist untouched. Fetch errors are reported, not returned:
// the session still starts, over an empty playlist.
func (c *Controller) authenticate(ctx context.Context, op string, fn func(context.Context) (models.Identity, error)) error {
	if err := c.fire(submit, nil); err != nil {
		return err
	}

	identity, err := fn(ctx)
	if err != nil {
		c.logger.Warn("authentication failed", "op", op, "error", err)
		c.fire(rejected, nil)
		return err
	}

	logger := c.logger.With("identity", identity.UserID)

	tracks, err := c.backend.FetchPlaylist(ctx, identity)
	switch {
	case err == nil:
		c.store.ReplaceAll(tracks)
		logger.Info("playlist loaded", "tracks", len(tracks))
	case errors.Is(err, shared.ErrPlaylistNotFound):
		c.store.Clear()
		logger.Info("no stored playlist, starting empty")
	default:
		c.store.Clear()
		logger.Error("playlist fetch failed, starting empty", "error", err)
		c.report("fetch", err)
	}

	return c.fire(verified, func() { c.identity = identity })
}

// LogOut runs Authenticated → LoggingOut → Anonymous.
//
// Pending edits are flushed first, bounded by the flush timeout. Flush and revoke failures are reported and
// do not stop the logout; the playlist is cleared either way.
func (c *Controller) LogOut(ctx context.Context) error {
	if err := c.fire(logout, nil); err != nil {
		return err
	}

	identity, _ := c.Identity()
	logger := c.logger.With("identity", identity.UserID)

	flushCtx, cancel := context.WithTimeout(ctx, c.flushTimeout)
	if err := c.scheduler.FlushNow(flushCtx); err != nil {
		logger.Error("flush before logout failed", "error", err)
		c.report("flush", err)
	}
	cancel()

	if err := c.backend.LogOut(ctx, identity); err != nil {
		logger.Warn("token revoke failed", "error", err)
		c.report("logout", err)
	}

	c.store.Clear()
	logger.Info("logged out")
	return c.fire(settled, func() { c.identity = models.Identity{} })
}

// Close stops the scheduler, waiting for in-flight writes. It does not flush pending edits.
func (c *Controller) Close() error {
	return c.scheduler.Close()
}

// fire applies t and, with the lock held, mutate. Listeners run after the lock is released.
func (c *Controller) fire(t trigger, mutate func()) error {
	c.mu.Lock()
	from := c.state
	to, err := next(from, t)
	if err != nil {
		c.mu.Unlock()
		return err
	}

	c.state = to
	if mutate != nil {
		mutate()
	}

	ids := make([]int, 0, len(c.listeners))
	for id := range c.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	listeners := make([]StateListener, len(ids))
	for i, id := range ids {
		listeners[i] = c.listeners[id]
	}
	c.mu.Unlock()

	c.logger.Debug("transition", "from", from, "to", to, "on", t)
	for _, l := range listeners {
		l(from, to)
	}
	return nil
}

// report forwards an absorbed failure without blocking.
func (c *Controller) report(op string, err error) {
	if c.reports != nil {
		select {
		case c.reports <- Report{Op: op, Err: err}:
		default:
		}
	}
}
