package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/playsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase creates the config file when missing, initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	config := r.config
	if _, err := os.Stat(configPath); err == nil {
		if config, err = shared.LoadConfig(configPath); err != nil {
			return err
		}
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using current settings", "error", err)
		} else {
			r.logger.Info("config file created", "path", configPath)
			if config, err = shared.LoadConfig(configPath); err != nil {
				return err
			}
		}
	}
	r.config = config

	r.logger.Info("initializing database", "driver", config.Database.Driver, "path", config.Database.Path)

	db, err := shared.OpenConfigured(config.Database)
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}
	defer db.Close()

	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	return r.writePlain("✓ Database ready at %s\n", config.Database.Path)
}
