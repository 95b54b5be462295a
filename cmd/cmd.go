// submodule cmd contains command definitions
package main

import (
	"github.com/desertthunder/playsync/internal/formatter"
	"github.com/urfave/cli/v3"
)

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

func credentialFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "email",
			Aliases:  []string{"e"},
			Usage:    "Account email",
			Sources:  cli.EnvVars("PLAYSYNC_EMAIL"),
			Required: true,
		},
		&cli.StringFlag{
			Name:     "password",
			Aliases:  []string{"p"},
			Usage:    "Account password",
			Sources:  cli.EnvVars("PLAYSYNC_PASSWORD"),
			Required: true,
		},
	}
}

// setupCommand handles setup operations for the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Create the config file if missing, initialize the database and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
		},
	}
}

// serveCommand runs the account and playlist backend.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the account and playlist backend",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address, overriding server.host and server.port",
			},
		},
		Action: r.Serve,
	}
}

// statusCommand checks backend health.
func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Check that the backend is reachable (calls /health)",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Status,
	}
}

// playlistCommand reads the stored playlist without going through the sync engine.
func playlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "playlist",
		Usage: "Read the playlist stored on the backend",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Log in and print the stored playlist",
				Flags: append([]cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				}, credentialFlags()...),
				Action: r.PlaylistGet,
			},
			{
				Name:  "export",
				Usage: "Log in and export the stored playlist",
				Flags: append([]cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format (json, csv, markdown, txt)",
						Value:   string(formatter.JSON),
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path (default: stdout)",
					},
				}, credentialFlags()...),
				Action: r.PlaylistExport,
			},
		},
	}
}

// demoCommand runs a scripted session cycle headlessly.
func demoCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "demo",
		Usage: "Log in, queue demo tracks, log out, log back in and print what was restored",
		Flags: append([]cli.Flag{
			configFlag(),
			&cli.IntFlag{
				Name:  "tracks",
				Usage: "Number of demo tracks to add",
				Value: 3,
			},
			&cli.BoolFlag{
				Name:  "signup",
				Usage: "Create the account first",
			},
		}, credentialFlags()...),
		Action: r.Demo,
	}
}

// playCommand returns the top-level TUI command for the terminal player.
func playCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "play",
		Aliases: []string{"tui", "ui"},
		Usage:   "Launch the terminal player",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:    "token",
				Usage:   "Resume an existing session token",
				Sources: cli.EnvVars("PLAYSYNC_TOKEN"),
			},
		},
		Action: r.Play,
	}
}
