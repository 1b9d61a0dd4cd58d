// Package app provides the application context and dependency management
// for the automator CLI: configuration, logging and the platform clients
// the commands run against.
package app

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/agentstation/automator/internal/github"
	"github.com/agentstation/automator/pkg/errors"
	"github.com/agentstation/automator/pkg/platform"
)

// PlatformFactory creates a platform client for a token and API URL.
type PlatformFactory func(token, apiURL string) platform.Platform

// App represents the automator application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	config *Config
	logger *zerolog.Logger

	newPlatform PlatformFactory
	out         io.Writer
}

// New creates a new App instance with the given version information.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version:     version,
		commit:      commit,
		date:        date,
		builtBy:     builtBy,
		newPlatform: defaultPlatform,
		out:         os.Stdout,
	}

	config, err := LoadConfig()
	if err != nil {
		return nil, errors.WrapResource("load", "config", "", err)
	}
	app.config = config

	logger := NewLogger(config)
	app.logger = &logger

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	return app, nil
}

func defaultPlatform(token, apiURL string) platform.Platform {
	return github.New(token, github.WithBaseURL(apiURL))
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// Shutdown releases resources after a failed command. Cycles keep no state
// between runs, so there is nothing to flush.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Debug().Msg("Shutting down")
	return ctx.Err()
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		if config == nil {
			return errors.NewValidationError("config", nil, "must not be nil")
		}
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithPlatformFactory replaces the GitHub client factory (useful for testing).
func WithPlatformFactory(factory PlatformFactory) Option {
	return func(a *App) error {
		if factory == nil {
			return errors.NewValidationError("platform_factory", nil, "must not be nil")
		}
		a.newPlatform = factory
		return nil
	}
}

// WithOutput sets where command output is printed.
func WithOutput(w io.Writer) Option {
	return func(a *App) error {
		a.out = w
		return nil
	}
}
