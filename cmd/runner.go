package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/services"
	"github.com/desertthunder/playsync/internal/session"
	"github.com/desertthunder/playsync/internal/shared"
	"github.com/desertthunder/playsync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config  *shared.Config
	backend services.Backend
	fixed   bool // backend was injected and survives config reloads
	logger  *log.Logger
	output  io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config  *shared.Config
	Backend services.Backend // Defaults to an [services.APIService] built from Config.Client
	Logger  *log.Logger
	Output  io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	r := &Runner{
		config:  opts.Config,
		backend: opts.Backend,
		fixed:   opts.Backend != nil,
		logger:  opts.Logger,
		output:  opts.Output,
	}
	if r.backend == nil {
		r.backend = newAPIService(r.config)
	}
	return r
}

func newAPIService(config *shared.Config) *services.APIService {
	client := &http.Client{Timeout: config.Client.RequestTimeout.Duration}
	return services.NewAPIService(config.Client.BaseURL, client, config.Client.RateLimit)
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, serveCommand, statusCommand, playlistCommand, demoCommand, playCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the runner's logger.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// loadConfig reads the file named by the command's config flag when it exists; otherwise the current
// config stays. The backend follows the loaded client settings unless one was injected.
func (r *Runner) loadConfig(cmd *cli.Command) error {
	path := cmd.String("config")
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		r.logger.Debug("config file not found, using current settings", "path", path)
		return nil
	}

	config, err := shared.LoadConfig(path)
	if err != nil {
		return err
	}

	r.config = config
	if level, err := shared.ParseLogLevel(config.Log.Level); err == nil {
		shared.SetLogLevel(r.logger, level)
	}
	if !r.fixed {
		r.backend = newAPIService(config)
	}
	return nil
}

// newController builds a session controller over the runner's backend with the configured sync settings.
func (r *Runner) newController(events chan<- tasks.Event, reports chan<- session.Report) *session.Controller {
	return session.New(r.backend, session.Opts{
		Scheduler: tasks.SchedulerOpts{
			Delay:   r.config.Sync.Debounce.Duration,
			Retries: r.config.Sync.Retries,
			Events:  events,
		},
		FlushTimeout: r.config.Sync.FlushTimeout.Duration,
		Logger:       r.logger,
		Reports:      reports,
	})
}

// logIn reads the email and password flags and logs in directly against the backend.
//
// The returned function revokes the session; failures there are logged, not returned.
func (r *Runner) logIn(ctx context.Context, cmd *cli.Command) (models.Identity, func(), error) {
	email, password := cmd.String("email"), cmd.String("password")
	if email == "" || password == "" {
		return models.Identity{}, nil, fmt.Errorf("%w: --email and --password are required", shared.ErrMissingArgument)
	}

	identity, err := r.backend.LogIn(ctx, email, password)
	if err != nil {
		return models.Identity{}, nil, err
	}

	logout := func() {
		if err := r.backend.LogOut(ctx, identity); err != nil {
			r.logger.Warn("failed to revoke session", "error", err)
		}
	}
	return identity, logout, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return err
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
