package tasks

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/playlist"
	"github.com/desertthunder/playsync/internal/services"
	"github.com/desertthunder/playsync/internal/shared"
)

// DefaultDelay is the quiet window used when [SchedulerOpts.Delay] is zero.
const DefaultDelay = 1500 * time.Millisecond

// IdentityFunc returns the identity writes are keyed by, and false while nobody is logged in.
type IdentityFunc func() (models.Identity, bool)

// AfterFunc runs f once d has elapsed. The returned function cancels the call and reports whether it did.
type AfterFunc func(d time.Duration, f func()) (stop func() bool)

func timeAfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// SchedulerOpts contains configuration for a [Scheduler].
type SchedulerOpts struct {
	Delay     time.Duration // Quiet window after the last local edit (default: 1.5s)
	Retries   int           // Extra attempts for a failed save, with the same snapshot
	Logger    *log.Logger   // Defaults to a discarding logger
	Events    chan<- Event  // Optional; sends never block
	AfterFunc AfterFunc     // Timer source (default: time.AfterFunc)
}

// Scheduler coalesces local playlist edits into debounced writes to the backend.
type Scheduler struct {
	store     *playlist.Store
	client    services.PlaylistClient
	identity  IdentityFunc
	delay     time.Duration
	retries   int
	logger    *log.Logger
	events    chan<- Event
	afterFunc AfterFunc

	mu      sync.Mutex
	stop    func() bool // pending timer, nil when idle
	gen     uint64      // bumped whenever the pending timer is replaced or cancelled
	dirty   bool
	epoch   uint64 // store epoch of the edits the pending timer covers
	writers map[string]*writer
	closed  bool

	unsubscribe func()
	wg          sync.WaitGroup
}

// NewScheduler creates a [Scheduler] and subscribes it to store.
func NewScheduler(store *playlist.Store, client services.PlaylistClient, identity IdentityFunc, opts SchedulerOpts) *Scheduler {
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(io.Discard)
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = timeAfterFunc
	}
	if identity == nil {
		identity = func() (models.Identity, bool) { return models.Identity{}, false }
	}

	s := &Scheduler{
		store:     store,
		client:    client,
		identity:  identity,
		delay:     opts.Delay,
		retries:   opts.Retries,
		logger:    shared.WithLogger(opts.Logger, "component", "scheduler"),
		events:    opts.Events,
		afterFunc: opts.AfterFunc,
		writers:   make(map[string]*writer),
	}
	s.unsubscribe = store.Subscribe(s.onChange)
	return s
}

// onChange re-arms the timer on local edits and drops it when the playlist is replaced or cleared.
func (s *Scheduler) onChange(c playlist.Change) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	if !c.Kind.Local() {
		if s.dirty {
			s.cancelLocked()
			s.logger.Debug("pending save dropped", "reason", c.Kind, "version", c.Version)
			s.send(cancelledEvent(c.Version, c.Kind.String()))
		}
		return
	}

	s.cancelLocked()
	s.dirty = true
	s.epoch = c.Epoch
	gen := s.gen
	s.stop = s.afterFunc(s.delay, func() { s.fire(gen) })

	s.logger.Debug("save armed", "change", c.Kind, "version", c.Version, "delay", s.delay)
	s.send(armedEvent(c.Version))
}

// cancelLocked stops the pending timer and forgets the edits it covered.
func (s *Scheduler) cancelLocked() {
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
	s.gen++
	s.dirty = false
}

// fire runs when the quiet window of timer generation gen elapses.
func (s *Scheduler) fire(gen uint64) {
	identity, ok := s.identity()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || gen != s.gen || !s.dirty {
		return
	}
	s.capture(identity, ok)
}

// capture must be called with mu held and dirty set. It snapshots the store and hands it to the identity's
// writer, returning nil when there is nothing to write.
func (s *Scheduler) capture(identity models.Identity, ok bool) *job {
	epoch := s.epoch
	s.cancelLocked()

	tracks, version, current := s.store.Snapshot()
	if current != epoch {
		s.logger.Debug("pending save dropped", "reason", "stale", "version", version)
		s.send(cancelledEvent(version, "stale"))
		return nil
	}

	if !ok || identity.IsZero() {
		s.logger.Debug("save skipped", "reason", "anonymous", "version", version)
		s.send(skippedEvent(version, len(tracks)))
		return nil
	}

	return s.enqueue(identity, tracks, version)
}

// FlushNow cancels the pending timer and writes the current snapshot without waiting for the quiet window.
//
// It blocks until that write and any earlier write for the same identity settle, or ctx ends. With no pending
// edits and nothing in flight it returns immediately. The error is the outcome of the last write after retries.
func (s *Scheduler) FlushNow(ctx context.Context) error {
	identity, ok := s.identity()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return shared.ErrSchedulerClosed
	}

	var j *job
	if s.dirty {
		s.logger.Debug("flushing pending save")
		j = s.capture(identity, ok)
	}
	if j == nil && ok {
		if w, found := s.writers[identity.UserID]; found {
			j = w.last()
		}
	}
	s.mu.Unlock()

	if j == nil {
		return nil
	}

	if err := j.wait(ctx); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: flush: %v", shared.ErrTimeout, err)
		}
		return err
	}
	return nil
}

// Pending reports whether local edits are waiting for the quiet window to elapse.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Close cancels the pending timer, unsubscribes from the store and waits for in-flight writes.
// Later calls to FlushNow fail with [shared.ErrSchedulerClosed].
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.cancelLocked()
	s.mu.Unlock()

	s.unsubscribe()
	s.wg.Wait()
	return nil
}

// send reports an event without blocking.
func (s *Scheduler) send(e Event) {
	if s.events != nil {
		select {
		case s.events <- e:
		default:
		}
	}
}
