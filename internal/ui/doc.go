// Package ui implements the terminal player using bubbletea's Elm architecture.
//
// The player has two views:
//  1. [PlaylistView] : the session header and the "Up Next" track list
//  2. [FormView] : email and password entry for log in or sign up
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Store changes and session transitions arrive through [Model.Attach]; save progress is read from the scheduler's
// event channel, one message per event.
//
// Keyboard navigation uses vim-style bindings (j/k, d, x, l, s, o, q) with contextual help displayed via charmbracelet/bubbles/help.
// Quitting flushes pending edits before the program exits.
package ui
