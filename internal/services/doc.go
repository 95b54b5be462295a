// Package services defines the remote collaborators of the playlist sync engine and implements them over HTTP.
//
// # Interfaces
//
// [PlaylistClient] is the remote persistence API: fetch and save one ordered track sequence per identity.
// [AuthClient] is the account service: sign-up, log-in, log-out and the current-identity query.
// [Backend] combines both, matching the single account service served by internal/server.
//
// # HTTP Implementation
//
// [APIService] talks JSON to the backend. Authenticated requests carry the identity's token as a bearer
// header through an [oauth2.Transport] with a static token source. Every request first waits on a
// [rate.Limiter] so bursts of saves cannot flood the backend.
//
// # Error Handling
//
// Failures come back as typed errors:
//   - [AuthError] : wraps [shared.ErrAuthFailed] plus the cause ([shared.ErrInvalidCredentials], [shared.ErrDuplicateEmail])
//   - [SyncError] : wraps [shared.ErrSyncFailed] plus the cause (network error, non-2xx status)
//   - [shared.ErrPlaylistNotFound] : the identity never saved a playlist (not a failure)
package services
