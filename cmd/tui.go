package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/playsync/internal/shared"
	"github.com/desertthunder/playsync/internal/tasks"
	"github.com/desertthunder/playsync/internal/ui"
	"github.com/urfave/cli/v3"
)

// Play launches the terminal player.
func (r *Runner) Play(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(r.config.Log.File)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	if level, err := shared.ParseLogLevel(r.config.Log.Level); err == nil {
		shared.SetLogLevel(fileLogger, level)
	}
	r.SetLogger(fileLogger)

	events := make(chan tasks.Event, 64)
	ctrl := r.newController(events, nil)
	defer ctrl.Close()

	// Resume before the program starts: listeners attached later would block on Send until Run.
	if token := cmd.String("token"); token != "" {
		if err := ctrl.Resume(ctx, token); err != nil {
			return fmt.Errorf("failed to resume session: %w", err)
		}
	}

	model := ui.NewModel(ctx, ctrl, events, r.config.Sync.FlushTimeout.Duration)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	detach := model.Attach(p.Send)
	defer detach()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
