// package formatter exports a stored playlist to JSON, CSV, Markdown or plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/shared"
)

// Format names an export encoding.
type Format string

const (
	JSON     Format = "json"
	CSV      Format = "csv"
	Markdown Format = "md"
	Text     Format = "txt"
)

// Formats lists the supported export formats in help-text order.
var Formats = []Format{JSON, CSV, Markdown, Text}

// ParseFormat resolves a user-supplied format name. "markdown" and "text" are accepted as aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return JSON, nil
	case "csv":
		return CSV, nil
	case "md", "markdown":
		return Markdown, nil
	case "txt", "text":
		return Text, nil
	default:
		return "", fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidFlag, s)
	}
}

// Export encodes the playlist in the given format.
func Export(playlist *models.Playlist, format Format) ([]byte, error) {
	switch format {
	case JSON:
		return ExportToJSON(playlist)
	case CSV:
		return ExportToCSV(playlist)
	case Markdown:
		return ExportToMarkdown(playlist)
	case Text:
		return ExportToText(playlist)
	default:
		return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidFlag, format)
	}
}

// ExportToJSON encodes the playlist as indented JSON with positions following slice order.
func ExportToJSON(playlist *models.Playlist) ([]byte, error) {
	out := models.Playlist{UserID: playlist.UserID, Tracks: models.Reindex(playlist.Tracks)}
	return shared.MarshalJSON(out, true)
}

// ExportToCSV converts a playlist to CSV format with columns: Position, ID, Title, Source
func ExportToCSV(playlist *models.Playlist) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "ID", "Title", "Source"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, track := range playlist.Tracks {
		record := []string{strconv.Itoa(i + 1), track.ID, track.Title, track.Source}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a playlist to a Markdown document with a track table
func ExportToMarkdown(playlist *models.Playlist) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# Playlist for %s\n\n", playlist.UserID))
	buf.WriteString(fmt.Sprintf("**Tracks**: %d\n\n", len(playlist.Tracks)))

	if len(playlist.Tracks) == 0 {
		buf.WriteString("_Nothing queued._\n")
		return buf.Bytes(), nil
	}

	buf.WriteString("| # | Title | Source |\n")
	buf.WriteString("|---|-------|--------|\n")
	for i, track := range playlist.Tracks {
		buf.WriteString(fmt.Sprintf("| %d | %s | %s |\n", i+1, escapeCell(track.Title), escapeCell(track.Source)))
	}

	return buf.Bytes(), nil
}

// ExportToText converts a playlist to a numbered plain text list
func ExportToText(playlist *models.Playlist) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Playlist: %s\n", playlist.UserID))
	buf.WriteString(fmt.Sprintf("Tracks: %d\n\n", len(playlist.Tracks)))

	for i, track := range playlist.Tracks {
		buf.WriteString(fmt.Sprintf("%d. %s\n", i+1, track.Title))
	}

	return buf.Bytes(), nil
}

// WriteExport writes the playlist in format to path and returns the path written.
//
// Defaults to {user_id}_playlist.{format} as the filename.
func WriteExport(playlist *models.Playlist, format Format, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("%s_playlist.%s", playlist.UserID, format)
	}

	data, err := Export(playlist, format)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s: %w", format, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}

	return path, nil
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
