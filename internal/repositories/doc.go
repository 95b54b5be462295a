// Package repositories implements SQLite persistence for the backend's accounts and playlists.
//
// Key Implementations:
//   - [UserRepository] : Account persistence with email-based lookups and soft deletes
//   - [SessionRepository] : Bearer sessions with expiry and purging
//   - [PlaylistRepository] : One ordered playlist per user, replaced atomically on save
//
// Sequence numbers provide stable, human-readable ordering (e.g., user #42) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
