package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/playsync/internal/formatter"
	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// fetchStored logs in, fetches the stored playlist and revokes the session again.
//
// A user who never saved a playlist gets an empty one.
func (r *Runner) fetchStored(ctx context.Context, cmd *cli.Command) (*models.Playlist, error) {
	identity, logout, err := r.logIn(ctx, cmd)
	if err != nil {
		return nil, err
	}
	defer logout()

	tracks, err := r.backend.FetchPlaylist(ctx, identity)
	switch {
	case errors.Is(err, shared.ErrPlaylistNotFound):
		tracks = []models.Track{}
	case err != nil:
		return nil, err
	}

	return &models.Playlist{UserID: identity.UserID, Tracks: tracks}, nil
}

// PlaylistGet prints the stored playlist.
func (r *Runner) PlaylistGet(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	playlist, err := r.fetchStored(ctx, cmd)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlist, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("Playlist for %s", cmd.String("email")))
	if len(playlist.Tracks) == 0 {
		return r.writePlain("(empty)\n")
	}
	for i, t := range playlist.Tracks {
		if err := r.writePlain("%3d. %s\n", i+1, t.Title); err != nil {
			return err
		}
	}
	return nil
}

// PlaylistExport writes the stored playlist in the requested format to a file or stdout.
func (r *Runner) PlaylistExport(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	playlist, err := r.fetchStored(ctx, cmd)
	if err != nil {
		return err
	}

	if path := cmd.String("output"); path != "" {
		written, err := formatter.WriteExport(playlist, format, path)
		if err != nil {
			return err
		}
		r.logger.Info("playlist exported", "path", written, "tracks", len(playlist.Tracks))
		return r.writePlain("✓ Exported %d tracks to %s\n", len(playlist.Tracks), written)
	}

	data, err := formatter.Export(playlist, format)
	if err != nil {
		return err
	}
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
