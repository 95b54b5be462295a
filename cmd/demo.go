package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/session"
	"github.com/desertthunder/playsync/internal/shared"
	"github.com/desertthunder/playsync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Demo drives one full session cycle through the sync engine: log in, queue tracks, log out, log back in
// and print what the backend restored.
func (r *Runner) Demo(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	n := int(cmd.Int("tracks"))
	if n < 0 {
		return fmt.Errorf("%w: --tracks must not be negative, got %d", shared.ErrInvalidFlag, n)
	}
	email, password := cmd.String("email"), cmd.String("password")

	events := make(chan tasks.Event, 64)
	reports := make(chan session.Report, 8)
	ctrl := r.newController(events, reports)
	defer ctrl.Close()

	r.writePlainHeader("playsync demo")

	if cmd.Bool("signup") {
		if err := ctrl.SignUp(ctx, email, password); err != nil {
			return err
		}
		r.writePlain("signed up as %s\n", email)
	} else {
		if err := ctrl.LogIn(ctx, email, password); err != nil {
			return err
		}
		r.writePlain("logged in as %s\n", email)
	}
	r.writePlain("loaded %d tracks\n", ctrl.Store().Len())

	start := ctrl.Store().Len()
	for i := range n {
		track := models.Track{
			Title:  fmt.Sprintf("Demo Track %d", start+i+1),
			Source: fmt.Sprintf("demo://track/%d", start+i+1),
		}
		if _, err := ctrl.Store().Append(track); err != nil {
			return err
		}
	}
	r.writePlain("queued %d tracks\n", n)

	if err := ctrl.LogOut(ctx); err != nil {
		return err
	}
	r.writePlain("logged out, player shows %d tracks\n", ctrl.Store().Len())

	if err := ctrl.LogIn(ctx, email, password); err != nil {
		return err
	}

	r.writePlain("\nrestored after logging back in:\n")
	for i, t := range ctrl.Store().All() {
		r.writePlain("%3d. %s\n", i+1, t.Title)
	}

	if err := ctrl.LogOut(ctx); err != nil {
		return err
	}

	r.writeEvents(events, reports)
	return nil
}

// writeEvents prints the buffered save progress and absorbed failures.
func (r *Runner) writeEvents(events <-chan tasks.Event, reports <-chan session.Report) {
	r.writePlain("\nsync log:\n")
	for {
		select {
		case e := <-events:
			line := fmt.Sprintf("  %-11s v%d", e.Phase, e.Version)
			if e.Phase == tasks.Saved || e.Phase == tasks.Saving {
				line += fmt.Sprintf(" (%d tracks)", e.Tracks)
			}
			if e.Err != nil {
				line += fmt.Sprintf(": %v", e.Err)
			}
			r.writePlain("%s\n", line)
		case rep := <-reports:
			r.writePlain("  %-11s %v\n", rep.Op+" failed", rep.Err)
		default:
			return
		}
	}
}
