package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/playsync/internal/models"
)

var _ list.Item = trackItem{}

// trackItem wraps [models.Track] to implement [list.Item].
type trackItem struct {
	track models.Track
}

func (i trackItem) FilterValue() string { return i.track.Title }
func (i trackItem) Title() string       { return fmt.Sprintf("%d. %s", i.track.Position+1, i.track.Title) }
func (i trackItem) Description() string {
	if i.track.Source == "" {
		return i.track.ID
	}
	return i.track.Source
}

func trackItems(tracks []models.Track) []list.Item {
	items := make([]list.Item, len(tracks))
	for i, t := range tracks {
		items[i] = trackItem{track: t}
	}
	return items
}
