// Package cli runs the lndp subcommands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/joe/lndp/internal/config"
	"github.com/joe/lndp/internal/discovery"
	"github.com/joe/lndp/internal/logging"
	"github.com/joe/lndp/internal/server"
)

// ErrNotRemote is returned when a command needs an LNDP location.
var ErrNotRemote = errors.New("location is not an lndp:// or http(s):// location")

// App runs subcommands against the configured outputs.
type App struct {
	Stdout io.Writer
	Stderr io.Writer
	// Interactive enables the progress view for copy.
	Interactive bool
	// NewDiscovery builds the discovery stack used to resolve lndp:// names.
	NewDiscovery func(logger *zap.Logger) *discovery.Discovery
	// Advertiser announces served folders; nil disables announcing.
	Advertiser server.Advertiser
	// Ready, if set, is called with the server once it is listening.
	Ready func(*server.Server)
	logger *zap.Logger
}

// New creates an App with mDNS discovery and advertising.
func New(stdout, stderr io.Writer, interactive bool) *App {
	return &App{
		Stdout:       stdout,
		Stderr:       stderr,
		Interactive:  interactive,
		NewDiscovery: discovery.New,
		Advertiser:   discovery.ZeroconfAdvertiser{},
	}
}

// Run dispatches to the selected subcommand.
func (a *App) Run(ctx context.Context, cfg *config.Config) error {
	a.logger = logging.Named("cli")

	store, err := config.OpenStore(cfg.SettingsPath)
	if err != nil {
		return err //nolint:wrapcheck // Already describes the settings file
	}

	switch {
	case cfg.Serve != nil:
		return a.serve(ctx, cfg.Serve, store)
	case cfg.List != nil:
		return a.list(ctx, cfg.List, store)
	case cfg.Get != nil:
		return a.get(ctx, cfg.Get, store)
	case cfg.Copy != nil:
		return a.copy(ctx, cfg.Copy, store)
	case cfg.Discover != nil:
		return a.discover(ctx, cfg.Discover)
	case cfg.Settings != nil:
		return a.settings(cfg.Settings, store)
	default:
		return config.ErrNoCommand
	}
}

// UsesProgressView reports whether cfg shows the copy progress view on an
// interactive terminal.
func UsesProgressView(cfg *config.Config, interactive bool) bool {
	return interactive && cfg.Copy != nil && !cfg.Copy.NoTUI
}

// InitLogging installs the global logger. While the progress view owns the
// terminal, logs go to --log-file or the default log file.
func InitLogging(cfg *config.Config, progressView bool) (string, error) {
	output := cfg.LogFile

	if output == "" && progressView {
		path, err := config.DefaultLogPath()
		if err != nil {
			return "", err //nolint:wrapcheck // Already descriptive
		}

		output = path
	}

	if output == "" {
		output = "stderr"
	} else {
		//nolint:mnd // Standard directory permissions
		if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
			return "", fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	err := logging.Init(logging.Config{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		OutputPath: output,
	})
	if err != nil {
		return "", err //nolint:wrapcheck // Already descriptive
	}

	return output, nil
}

func (a *App) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(a.Stdout, format, args...)
}
