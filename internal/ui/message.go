package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/playsync/internal/playlist"
	"github.com/desertthunder/playsync/internal/session"
	"github.com/desertthunder/playsync/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgStoreChanged MsgKind = iota
	MsgStateChanged
	MsgSyncEvent
	MsgAuthDone
	MsgLogOutDone
	MsgEditDone
	MsgFlushed
)

type transition struct {
	from, to session.State
}

// storeChangedMsg is the constructor for [MsgStoreChanged]
func storeChangedMsg(c playlist.Change) Msg {
	return Msg{kind: MsgStoreChanged, data: c}
}

// stateChangedMsg is the constructor for [MsgStateChanged]
func stateChangedMsg(from, to session.State) Msg {
	return Msg{kind: MsgStateChanged, data: transition{from, to}}
}

// syncEventMsg is the constructor for [MsgSyncEvent]
func syncEventMsg(e tasks.Event) Msg {
	return Msg{kind: MsgSyncEvent, data: e}
}

// authDoneMsg is the constructor for [MsgAuthDone]
func authDoneMsg(err error) Msg {
	return Msg{kind: MsgAuthDone, data: err}
}

// logOutDoneMsg is the constructor for [MsgLogOutDone]
func logOutDoneMsg(err error) Msg {
	return Msg{kind: MsgLogOutDone, data: err}
}

// editDoneMsg is the constructor for [MsgEditDone]
func editDoneMsg(err error) Msg {
	return Msg{kind: MsgEditDone, data: err}
}

// flushedMsg is the constructor for [MsgFlushed]
func flushedMsg(err error) Msg {
	return Msg{kind: MsgFlushed, data: err}
}

// Err returns the error carried by a completion message, if any.
func (m Msg) Err() error {
	err, _ := m.data.(error)
	return err
}
