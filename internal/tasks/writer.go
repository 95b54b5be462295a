package tasks

import (
	"context"

	"github.com/desertthunder/playsync/internal/models"
)

// job is one captured snapshot waiting to be written. done is closed once the write settles.
type job struct {
	identity models.Identity
	tracks   []models.Track
	version  uint64
	done     chan struct{}
	err      error
}

func newJob(identity models.Identity, tracks []models.Track, version uint64) *job {
	return &job{identity: identity, tracks: tracks, version: version, done: make(chan struct{})}
}

// wait blocks until the job settles or ctx ends.
func (j *job) wait(ctx context.Context) error {
	select {
	case <-j.done:
		return j.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// writer serializes writes for one identity: one job in flight plus a single pending slot.
//
// A snapshot enqueued while the slot is taken replaces the waiting one, so the write that follows the
// in-flight one always carries the newest state. Callers waiting on the replaced job share the newer one.
type writer struct {
	current *job
	pending *job
}

// last returns the job whose completion means every write enqueued so far has settled.
func (w *writer) last() *job {
	if w.pending != nil {
		return w.pending
	}
	return w.current
}

// enqueue must be called with mu held. It returns the job that will carry the snapshot.
func (s *Scheduler) enqueue(identity models.Identity, tracks []models.Track, version uint64) *job {
	w, ok := s.writers[identity.UserID]
	if !ok {
		w = &writer{}
		s.writers[identity.UserID] = w
	}

	if w.current == nil {
		j := newJob(identity, tracks, version)
		w.current = j
		s.wg.Add(1)
		go s.drain(w, j)
		return j
	}

	if w.pending != nil {
		w.pending.identity = identity
		w.pending.tracks = tracks
		w.pending.version = version
		s.send(queuedEvent(w.pending))
		return w.pending
	}

	w.pending = newJob(identity, tracks, version)
	s.send(queuedEvent(w.pending))
	return w.pending
}

// drain writes j, then any job that queued behind it, until the writer is idle.
func (s *Scheduler) drain(w *writer, j *job) {
	defer s.wg.Done()

	for {
		j.err = s.write(j)
		close(j.done)

		s.mu.Lock()
		next := w.pending
		w.pending = nil
		w.current = next
		if next == nil {
			delete(s.writers, j.identity.UserID)
		}
		s.mu.Unlock()

		if next == nil {
			return
		}
		j = next
	}
}

// write saves the job's snapshot, retrying with the same snapshot up to the configured number of times.
func (s *Scheduler) write(j *job) error {
	logger := s.logger.With("identity", j.identity.UserID, "version", j.version)

	var err error
	attempts := 1 + s.retries
	for attempt := 1; attempt <= attempts; attempt++ {
		s.send(savingEvent(j, attempt))

		if err = s.client.SavePlaylist(context.Background(), j.identity, j.tracks); err == nil {
			logger.Info("playlist saved", "tracks", len(j.tracks), "attempt", attempt)
			s.send(savedEvent(j, attempt))
			return nil
		}

		if attempt < attempts {
			logger.Warn("save failed, retrying", "attempt", attempt, "error", err)
			s.send(retryingEvent(j, attempt, err))
		}
	}

	logger.Error("save failed", "attempts", attempts, "error", err)
	s.send(saveFailedEvent(j, attempts, err))
	return err
}
