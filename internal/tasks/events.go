package tasks

import (
	"fmt"
)

// Event represents one step of the write-back lifecycle.
//
// Sent to the UI or CLI layer for display; failures surface here instead of as returned errors.
type Event struct {
	Phase   Phase  // Lifecycle phase
	UserID  string // Identity the write targets, empty when there is none
	Version uint64 // Store version of the snapshot
	Attempt int    // Attempt number for Saving, Retrying and SaveFailed
	Tracks  int    // Number of entries in the snapshot
	Message string // Human-readable message for display
	Err     error  // Cause for Retrying and SaveFailed
}

// Write-back phase enumeration
type Phase int

const (
	Armed Phase = iota
	Cancelled
	Skipped
	Queued
	Saving
	Saved
	Retrying
	SaveFailed
)

func (p Phase) String() string {
	switch p {
	case Armed:
		return "armed"
	case Cancelled:
		return "cancelled"
	case Skipped:
		return "skipped"
	case Queued:
		return "queued"
	case Saving:
		return "saving"
	case Saved:
		return "saved"
	case Retrying:
		return "retrying"
	case SaveFailed:
		return "save_failed"
	default:
		return ""
	}
}

func armedEvent(version uint64) Event {
	return Event{Phase: Armed, Version: version, Message: "Changes pending..."}
}

func cancelledEvent(version uint64, reason string) Event {
	return Event{Phase: Cancelled, Version: version, Message: fmt.Sprintf("Pending save dropped: %s", reason)}
}

func skippedEvent(version uint64, tracks int) Event {
	return Event{
		Phase:   Skipped,
		Version: version,
		Tracks:  tracks,
		Message: "Not logged in, playlist kept locally",
	}
}

func queuedEvent(j *job) Event {
	return Event{
		Phase:   Queued,
		UserID:  j.identity.UserID,
		Version: j.version,
		Tracks:  len(j.tracks),
		Message: "Waiting for previous save to finish...",
	}
}

func savingEvent(j *job, attempt int) Event {
	return Event{
		Phase:   Saving,
		UserID:  j.identity.UserID,
		Version: j.version,
		Attempt: attempt,
		Tracks:  len(j.tracks),
		Message: fmt.Sprintf("Saving %d tracks...", len(j.tracks)),
	}
}

func savedEvent(j *job, attempt int) Event {
	return Event{
		Phase:   Saved,
		UserID:  j.identity.UserID,
		Version: j.version,
		Attempt: attempt,
		Tracks:  len(j.tracks),
		Message: fmt.Sprintf("✓ Saved %d tracks", len(j.tracks)),
	}
}

func retryingEvent(j *job, attempt int, err error) Event {
	return Event{
		Phase:   Retrying,
		UserID:  j.identity.UserID,
		Version: j.version,
		Attempt: attempt,
		Tracks:  len(j.tracks),
		Message: fmt.Sprintf("Save attempt %d failed, retrying: %v", attempt, err),
		Err:     err,
	}
}

func saveFailedEvent(j *job, attempt int, err error) Event {
	return Event{
		Phase:   SaveFailed,
		UserID:  j.identity.UserID,
		Version: j.version,
		Attempt: attempt,
		Tracks:  len(j.tracks),
		Message: fmt.Sprintf("✗ Save failed after %d attempts: %v", attempt, err),
		Err:     err,
	}
}
