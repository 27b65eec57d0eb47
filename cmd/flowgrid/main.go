package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/vk/flowgrid/internal/app"
	"github.com/vk/flowgrid/internal/cli"
	"github.com/vk/flowgrid/internal/flowerr"
	"github.com/vk/flowgrid/internal/hcl"
)

// main is the entrypoint for the flowgrid application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Stdout, os.Args[1:])
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps a run error onto the process exit status.
func exitCode(err error) int {
	var exitErr *cli.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	switch flowerr.Classify(err) {
	case flowerr.KindConfig:
		return cli.ExitCodeUsage
	case flowerr.KindCanceled:
		return 130
	default:
		return 1
	}
}

// run encapsulates the main application logic for easier testing and error handling.
func run(ctx context.Context, outW io.Writer, args []string) (err error) {
	cfg, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	// The app panics on startup errors; turn them into an ordinary error.
	defer func() {
		if r := recover(); r != nil {
			if rerr, ok := r.(error); ok {
				err = fmt.Errorf("application startup panicked: %w", rerr)
				return
			}
			err = fmt.Errorf("application startup panicked: %v", r)
		}
	}()

	flowgrid := app.NewApp(outW, cfg, hcl.NewLoader())
	return flowgrid.Run(ctx)
}
