// Package playlist holds the in-memory playlist the player renders while a session is active.
//
// [Store] is the single source of truth for the UI. Every mutation bumps a monotonically increasing
// version and notifies subscribers in the order the mutations happened. Appends and removals are local
// edits that need writing back; [Store.ReplaceAll] and [Store.Clear] represent incoming state (a remote
// fetch or a session teardown) and also advance the store's epoch so pending write-backs can tell
// their snapshot went stale.
package playlist

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/shared"
)

// ChangeKind identifies which operation produced a [Change].
type ChangeKind int

const (
	ChangeAppend ChangeKind = iota
	ChangeRemove
	ChangeReplace
	ChangeClear
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAppend:
		return "append"
	case ChangeRemove:
		return "remove"
	case ChangeReplace:
		return "replace"
	case ChangeClear:
		return "clear"
	default:
		return fmt.Sprintf("ChangeKind(%d)", int(k))
	}
}

// Local reports whether the change is a user edit that should be written back.
func (k ChangeKind) Local() bool {
	return k == ChangeAppend || k == ChangeRemove
}

// Change describes one store mutation.
type Change struct {
	Kind    ChangeKind
	Version uint64 // Store version after the mutation
	Epoch   uint64 // Store epoch after the mutation
	Len     int    // Number of entries after the mutation
}

// Listener receives change notifications.
//
// Listeners run synchronously on the mutating goroutine and must not mutate the store.
type Listener func(Change)

// Store is an ordered, concurrency-safe collection of [models.Track] entries.
type Store struct {
	// emit serializes mutate+notify so listeners observe changes FIFO.
	emit sync.Mutex

	mu        sync.RWMutex
	tracks    []models.Track
	index     map[string]struct{}
	version   uint64
	epoch     uint64
	listeners map[int]Listener
	nextID    int
}

// NewStore creates an empty [Store].
func NewStore() *Store {
	return &Store{
		index:     make(map[string]struct{}),
		listeners: make(map[int]Listener),
	}
}

// Subscribe registers l for change notifications and returns a function that removes it.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = l

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Append adds track to the end of the playlist and returns it with its assigned ID and position.
//
// An empty ID gets a generated one. Track IDs are unique within the playlist, so appending an ID that is
// already present fails with [shared.ErrDuplicateTrack].
func (s *Store) Append(track models.Track) (models.Track, error) {
	if strings.TrimSpace(track.Title) == "" {
		return models.Track{}, fmt.Errorf("%w: track title is required", shared.ErrInvalidInput)
	}
	if track.ID == "" {
		track.ID = shared.GenerateID()
	}

	s.emit.Lock()
	defer s.emit.Unlock()

	s.mu.Lock()
	if _, exists := s.index[track.ID]; exists {
		s.mu.Unlock()
		return models.Track{}, fmt.Errorf("%w: %s", shared.ErrDuplicateTrack, track.ID)
	}

	track.Position = len(s.tracks)
	s.tracks = append(s.tracks, track)
	s.index[track.ID] = struct{}{}
	change := s.bump(ChangeAppend)
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	notify(listeners, change)
	return track, nil
}

// RemoveAt deletes the entry at index and returns it. Later entries shift up by one position.
func (s *Store) RemoveAt(index int) (models.Track, error) {
	s.emit.Lock()
	defer s.emit.Unlock()

	s.mu.Lock()
	if index < 0 || index >= len(s.tracks) {
		n := len(s.tracks)
		s.mu.Unlock()
		return models.Track{}, fmt.Errorf("%w: %d not in [0, %d)", shared.ErrIndexOutOfRange, index, n)
	}

	removed := s.tracks[index]
	s.tracks = models.Reindex(append(s.tracks[:index:index], s.tracks[index+1:]...))
	delete(s.index, removed.ID)
	change := s.bump(ChangeRemove)
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	notify(listeners, change)
	return removed, nil
}

// ReplaceAll swaps the whole playlist for tracks, typically the copy fetched from the backend.
//
// Positions are rewritten to follow slice order. When tracks repeat an ID only the first entry is kept.
func (s *Store) ReplaceAll(tracks []models.Track) {
	next := make([]models.Track, 0, len(tracks))
	index := make(map[string]struct{}, len(tracks))
	for _, t := range tracks {
		if _, dup := index[t.ID]; dup {
			continue
		}
		index[t.ID] = struct{}{}
		next = append(next, t)
	}

	s.emit.Lock()
	defer s.emit.Unlock()

	s.mu.Lock()
	s.tracks = models.Reindex(next)
	s.index = index
	s.epoch++
	change := s.bump(ChangeReplace)
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	notify(listeners, change)
}

// Clear empties the playlist.
func (s *Store) Clear() {
	s.emit.Lock()
	defer s.emit.Unlock()

	s.mu.Lock()
	s.tracks = nil
	s.index = make(map[string]struct{})
	s.epoch++
	change := s.bump(ChangeClear)
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	notify(listeners, change)
}

// All returns a copy of the entries in order.
func (s *Store) All() []models.Track {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Track, len(s.tracks))
	copy(out, s.tracks)
	return out
}

// Snapshot returns a copy of the entries together with the version and epoch they were read at.
func (s *Store) Snapshot() (tracks []models.Track, version, epoch uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tracks = make([]models.Track, len(s.tracks))
	copy(tracks, s.tracks)
	return tracks, s.version, s.epoch
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tracks)
}

// Version returns the number of mutations applied so far.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Epoch returns the number of wholesale replacements (ReplaceAll or Clear) applied so far.
func (s *Store) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// bump must be called with mu held.
func (s *Store) bump(kind ChangeKind) Change {
	s.version++
	return Change{Kind: kind, Version: s.version, Epoch: s.epoch, Len: len(s.tracks)}
}

// snapshotListeners must be called with mu held.
func (s *Store) snapshotListeners() []Listener {
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	out := make([]Listener, len(ids))
	for i, id := range ids {
		out[i] = s.listeners[id]
	}
	return out
}

func notify(listeners []Listener, change Change) {
	for _, l := range listeners {
		l(change)
	}
}
