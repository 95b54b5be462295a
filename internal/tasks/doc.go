// Package tasks writes local playlist edits back to the backend.
//
// # Debounce
//
// A [Scheduler] subscribes to a [playlist.Store]. Every local edit (append, remove) re-arms a single
// timer for the quiet window; only when no edit arrives for that long is the playlist captured and written.
// A burst of edits therefore produces one write carrying the final state.
//
// [playlist.Store.ReplaceAll] and [playlist.Store.Clear] are incoming state, not edits. They cancel a pending
// timer without writing so a fetched or torn-down playlist is never overwritten by an older local copy.
//
// # Write Queue
//
// Writes are keyed by the identity returned from the [IdentityFunc]. Each identity has at most one write in
// flight; a snapshot captured meanwhile waits in a single pending slot and replaces any snapshot already
// waiting there. Failed writes are retried with the same snapshot.
//
// With no identity the capture is dropped: edits made while logged out are never written.
//
// # Flush
//
// [Scheduler.FlushNow] skips the quiet window and waits for the write to settle, which is what logout needs
// before it tears the session down.
//
// # Progress Reporting
//
// Lifecycle [Event] values are sent on an optional channel using select with default, so a slow reader drops
// events instead of stalling writes. Failures are reported there and logged; they are never returned from
// the store's mutation path.
package tasks
