package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up     key.Binding
	down   key.Binding
	login  key.Binding
	signup key.Binding
	logout key.Binding
	add    key.Binding
	remove key.Binding
	submit key.Binding
	next   key.Binding
	back   key.Binding
	quit   key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		login:  key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "log in")),
		signup: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sign up")),
		logout: key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "log out")),
		add:    key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "add demo track")),
		remove: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "remove")),
		submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit")),
		next:   key.NewBinding(key.WithKeys("tab", "shift+tab"), key.WithHelp("tab", "next field")),
		back:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.add, k.remove},
		{k.login, k.signup, k.logout},
		{k.quit},
	}
}
