package shared

import "fmt"

var (

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Authentication errors
	ErrAuthFailed         = fmt.Errorf("authentication failed")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrDuplicateEmail     = fmt.Errorf("email already registered")
	ErrNotAuthenticated   = fmt.Errorf("not authenticated")
	ErrSessionExpired     = fmt.Errorf("session expired")
	ErrForbidden          = fmt.Errorf("forbidden")
	ErrTimeout            = fmt.Errorf("operation timed out")

	// Sync and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrSyncFailed         = fmt.Errorf("playlist sync failed")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")
	ErrUserNotFound       = fmt.Errorf("user not found")
	ErrNoIdentity         = fmt.Errorf("no active identity")
	ErrSchedulerClosed    = fmt.Errorf("scheduler closed")

	// Session state errors
	ErrInvalidTransition = fmt.Errorf("invalid session transition")

	// Playlist store errors
	ErrIndexOutOfRange = fmt.Errorf("index out of range")
	ErrDuplicateTrack  = fmt.Errorf("track already in playlist")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
