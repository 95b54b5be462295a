package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/playlist"
	"github.com/desertthunder/playsync/internal/session"
	"github.com/desertthunder/playsync/internal/tasks"
)

// Size used until the first [tea.WindowSizeMsg] arrives.
const (
	defaultWidth  = 80
	defaultHeight = 20
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PlaylistView ViewState = iota
	FormView
)

type formMode int

const (
	formLogIn formMode = iota
	formSignUp
)

func (m formMode) String() string {
	if m == formSignUp {
		return "Sign up"
	}
	return "Log in"
}

// Model represents the TUI application state.
//
// Every call into the controller or the store runs inside a [tea.Cmd]: store and state listeners deliver
// messages through [tea.Program.Send], which would block if the mutation happened on the event loop.
type Model struct {
	ctx          context.Context
	view         ViewState
	controller   *session.Controller
	events       <-chan tasks.Event
	flushTimeout time.Duration
	width        int
	height       int
	tracks       list.Model
	inputs       []textinput.Model
	focus        int
	mode         formMode
	state        session.State
	email        string
	status       string
	demo         int
	busy         bool
	quitting     bool
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model over controller. events may be nil; when set it should be the
// channel handed to the scheduler so save progress shows in the header.
func NewModel(ctx context.Context, controller *session.Controller, events <-chan tasks.Event, flushTimeout time.Duration) *Model {
	if flushTimeout <= 0 {
		flushTimeout = session.DefaultFlushTimeout
	}

	tracks := list.New(nil, list.NewDefaultDelegate(), defaultWidth, defaultHeight)
	tracks.Title = "Up Next"
	tracks.SetShowHelp(false)
	tracks.SetFilteringEnabled(false)
	tracks.SetStatusBarItemName("track", "tracks")

	email := textinput.New()
	email.Placeholder = "email"
	email.CharLimit = 254

	password := textinput.New()
	password.Placeholder = "password"
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	m := &Model{
		ctx:          ctx,
		view:         PlaylistView,
		controller:   controller,
		events:       events,
		flushTimeout: flushTimeout,
		tracks:       tracks,
		inputs:       []textinput.Model{email, password},
		state:        controller.State(),
		help:         help.New(),
		keys:         newKeyMap(),
	}
	m.refresh()
	return m
}

// Attach subscribes send to store changes and session transitions. Pass [tea.Program.Send].
//
// The returned function removes both subscriptions.
func (m *Model) Attach(send func(tea.Msg)) func() {
	unsubStore := m.controller.Store().Subscribe(func(c playlist.Change) { send(storeChangedMsg(c)) })
	unsubState := m.controller.OnStateChange(func(from, to session.State) { send(stateChangedMsg(from, to)) })
	return func() {
		unsubStore()
		unsubState()
	}
}

// Init starts listening for save progress.
func (m *Model) Init() tea.Cmd {
	return m.waitForEvent()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.tracks.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		if m.quitting {
			return m, nil
		}
		switch m.view {
		case FormView:
			return m.handleFormKeys(msg)
		default:
			return m.handlePlaylistKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateInputs(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgStoreChanged:
		m.refresh()
		return m, nil

	case MsgStateChanged:
		t := msg.data.(transition)
		m.state = t.to
		m.refreshIdentity()
		return m, nil

	case MsgSyncEvent:
		m.status = describe(msg.data.(tasks.Event))
		return m, m.waitForEvent()

	case MsgAuthDone:
		m.busy = false
		m.state = m.controller.State()
		m.refreshIdentity()
		if err := msg.Err(); err != nil {
			m.err = err
			return m, nil
		}
		m.err = nil
		m.view = PlaylistView
		m.resetForm()
		m.refresh()
		return m, nil

	case MsgLogOutDone:
		m.busy = false
		m.state = m.controller.State()
		m.refreshIdentity()
		m.err = msg.Err()
		m.refresh()
		return m, nil

	case MsgEditDone:
		m.err = msg.Err()
		m.refresh()
		return m, nil

	case MsgFlushed:
		if err := msg.Err(); err != nil {
			m.err = err
		}
		return m, tea.Quit
	}

	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")

	switch m.view {
	case FormView:
		b.WriteString(m.renderForm())
	default:
		b.WriteString(m.renderPlaylist())
	}

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(styles.err.Render(fmt.Sprintf("Error: %v", m.err)))
	}
	if m.quitting {
		b.WriteString("\n")
		b.WriteString(styles.warn.Render("Saving before exit..."))
	}
	return b.String()
}

func (m *Model) handlePlaylistKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		m.quitting = true
		return m, m.flush()
	case key.Matches(msg, m.keys.login):
		return m.openForm(formLogIn)
	case key.Matches(msg, m.keys.signup):
		return m.openForm(formSignUp)
	case key.Matches(msg, m.keys.logout):
		if m.busy || m.state != session.Authenticated {
			return m, nil
		}
		m.busy = true
		return m, m.logOut()
	case key.Matches(msg, m.keys.add):
		m.demo++
		return m, m.appendDemo(m.demo)
	case key.Matches(msg, m.keys.remove):
		if len(m.tracks.Items()) == 0 {
			return m, nil
		}
		return m, m.removeAt(m.tracks.Index())
	}

	var cmd tea.Cmd
	m.tracks, cmd = m.tracks.Update(msg)
	return m, cmd
}

func (m *Model) handleFormKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		m.quitting = true
		return m, m.flush()
	case key.Matches(msg, m.keys.back):
		m.view = PlaylistView
		m.resetForm()
		return m, nil
	case key.Matches(msg, m.keys.next):
		return m, m.setFocus((m.focus + 1) % len(m.inputs))
	case key.Matches(msg, m.keys.submit):
		if m.focus < len(m.inputs)-1 {
			return m, m.setFocus(m.focus + 1)
		}
		if m.busy {
			return m, nil
		}
		m.busy = true
		m.err = nil
		return m, m.authenticate(m.mode, m.inputs[0].Value(), m.inputs[1].Value())
	}

	return m.updateInputs(msg)
}

func (m *Model) openForm(mode formMode) (tea.Model, tea.Cmd) {
	if m.state != session.Anonymous {
		m.status = "already logged in"
		return m, nil
	}
	m.mode = mode
	m.view = FormView
	m.err = nil
	return m, m.setFocus(0)
}

func (m *Model) setFocus(i int) tea.Cmd {
	m.focus = i
	var cmd tea.Cmd
	for j := range m.inputs {
		if j == i {
			cmd = m.inputs[j].Focus()
		} else {
			m.inputs[j].Blur()
		}
	}
	return cmd
}

func (m *Model) resetForm() {
	for i := range m.inputs {
		m.inputs[i].Reset()
		m.inputs[i].Blur()
	}
	m.focus = 0
}

func (m *Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.view != FormView {
		return m, nil
	}
	cmds := make([]tea.Cmd, len(m.inputs))
	for i := range m.inputs {
		m.inputs[i], cmds[i] = m.inputs[i].Update(msg)
	}
	return m, tea.Batch(cmds...)
}

// refresh rebuilds the track list from the store.
func (m *Model) refresh() {
	index := m.tracks.Index()
	m.tracks.SetItems(trackItems(m.controller.Store().All()))
	if n := len(m.tracks.Items()); n > 0 {
		m.tracks.Select(min(index, n-1))
	}
}

func (m *Model) refreshIdentity() {
	if identity, ok := m.controller.Identity(); ok {
		m.email = identity.Email
	} else {
		m.email = ""
	}
}

func (m *Model) authenticate(mode formMode, email, password string) tea.Cmd {
	return func() tea.Msg {
		if mode == formSignUp {
			return authDoneMsg(m.controller.SignUp(m.ctx, email, password))
		}
		return authDoneMsg(m.controller.LogIn(m.ctx, email, password))
	}
}

func (m *Model) logOut() tea.Cmd {
	return func() tea.Msg {
		return logOutDoneMsg(m.controller.LogOut(m.ctx))
	}
}

func (m *Model) appendDemo(n int) tea.Cmd {
	return func() tea.Msg {
		_, err := m.controller.Store().Append(models.Track{
			Title:  fmt.Sprintf("Demo Track %d", n),
			Source: fmt.Sprintf("demo://track/%d", n),
		})
		return editDoneMsg(err)
	}
}

func (m *Model) removeAt(index int) tea.Cmd {
	return func() tea.Msg {
		_, err := m.controller.Store().RemoveAt(index)
		return editDoneMsg(err)
	}
}

// flush writes pending edits, bounded by the flush timeout, before the program quits.
func (m *Model) flush() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, m.flushTimeout)
		defer cancel()
		return flushedMsg(m.controller.Scheduler().FlushNow(ctx))
	}
}

func (m *Model) waitForEvent() tea.Cmd {
	if m.events == nil {
		return nil
	}
	return func() tea.Msg {
		e, ok := <-m.events
		if !ok {
			return nil
		}
		return syncEventMsg(e)
	}
}

func describe(e tasks.Event) string {
	switch e.Phase {
	case tasks.Armed, tasks.Queued:
		return "unsaved changes"
	case tasks.Saving, tasks.Retrying:
		return "saving..."
	case tasks.Saved:
		return fmt.Sprintf("saved %d tracks", e.Tracks)
	case tasks.SaveFailed:
		return "save failed"
	case tasks.Skipped:
		return "not saved (logged out)"
	default:
		return ""
	}
}

func (m *Model) renderHeader() string {
	title := styles.title.Render("playsync")
	line := fmt.Sprintf("%s  %s", title, styles.stateBadge(m.state))
	if m.email != "" {
		line += "  " + m.email
	}
	if m.status != "" {
		style := styles.help
		switch m.status {
		case "save failed":
			style = styles.err
		case "unsaved changes", "saving...":
			style = styles.warn
		}
		line += "  " + style.Render(m.status)
	}
	return line
}

func (m *Model) renderPlaylist() string {
	var body string
	if len(m.tracks.Items()) == 0 {
		body = styles.help.Render("Nothing queued. Press d to add a demo track.")
	} else {
		body = m.tracks.View()
	}

	helpKeys := []key.Binding{m.keys.add, m.keys.remove}
	if m.state == session.Anonymous {
		helpKeys = append(helpKeys, m.keys.login, m.keys.signup)
	} else {
		helpKeys = append(helpKeys, m.keys.logout)
	}
	helpKeys = append(helpKeys, m.keys.quit)

	return fmt.Sprintf("%s\n\n%s", body, m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderForm() string {
	title := styles.title.Render(m.mode.String())

	fields := make([]string, len(m.inputs))
	for i := range m.inputs {
		fields[i] = m.inputs[i].View()
	}

	status := ""
	if m.busy {
		status = "\n" + styles.warn.Render("Contacting server...")
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.submit, m.keys.next, m.keys.back})
	return fmt.Sprintf("%s\n%s%s\n\n%s", title, styles.panel.Render(strings.Join(fields, "\n")), status, helpView)
}
