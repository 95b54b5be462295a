package session

import (
	"fmt"

	"github.com/desertthunder/playsync/internal/shared"
)

// State is the session lifecycle state.
type State int

const (
	Anonymous State = iota
	Authenticating
	Authenticated
	LoggingOut
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case LoggingOut:
		return "logging_out"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// trigger is an input to the state machine.
type trigger int

const (
	submit   trigger = iota // credentials or token handed to the account service
	verified                // account service accepted them and the playlist was loaded
	rejected                // account service refused them
	logout                  // user asked to log out
	settled                 // logout flush finished, successfully or not
)

func (t trigger) String() string {
	switch t {
	case submit:
		return "submit"
	case verified:
		return "verified"
	case rejected:
		return "rejected"
	case logout:
		return "logout"
	case settled:
		return "settled"
	default:
		return fmt.Sprintf("trigger(%d)", int(t))
	}
}

type transition struct {
	from State
	on   trigger
	to   State
}

// transitions is the complete set of legal moves; anything else is rejected.
var transitions = []transition{
	{Anonymous, submit, Authenticating},
	{Authenticating, verified, Authenticated},
	{Authenticating, rejected, Anonymous},
	{Authenticated, logout, LoggingOut},
	{LoggingOut, settled, Anonymous},
}

// next looks up the state reached from from on t.
func next(from State, t trigger) (State, error) {
	for _, tr := range transitions {
		if tr.from == from && tr.on == t {
			return tr.to, nil
		}
	}
	return from, fmt.Errorf("%w: %s on %s", shared.ErrInvalidTransition, from, t)
}
