// Package main is the entry point for the lndp application.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term" //nolint:depguard // Required for TTY detection

	"github.com/joe/lndp/internal/cli"
	"github.com/joe/lndp/internal/config"
	"github.com/joe/lndp/internal/logging"
)

func main() {
	cfg, err := config.ParseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Only show the progress view if stdout is a TTY
	interactive := term.IsTerminal(int(os.Stdout.Fd()))

	if _, err := cli.InitLogging(cfg, cli.UsesProgressView(cfg, interactive)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync() //nolint:errcheck // Nothing to do on exit

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = cli.New(os.Stdout, os.Stderr, interactive).Run(ctx, cfg)
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		_ = logging.Sync()
		os.Exit(1) //nolint:gocritic // Deferred calls handled above
	}
}
