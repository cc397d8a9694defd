package app

import (
	"context"
	"fmt"
	"log/slog"

	"sudare/internal/event"
	"sudare/internal/input"
	"sudare/internal/registry"
	"sudare/internal/runner"
	"sudare/internal/tui"
)

// newScreen is swapped in tests for a screen that needs no terminal.
var newScreen = func(bus *event.Bus) tui.Screen {
	return tui.NewScreen(bus)
}

func runTUI(ctx context.Context, reg *registry.Registry, procs *runner.Runner, bus *event.Bus, log *slog.Logger) error {
	loop := tui.NewLoop(reg, procs, bus, newScreen(bus), input.DefaultKeyMap())
	loop.SetLogger(log)
	if err := loop.Run(ctx); err != nil {
		return fmt.Errorf("tui exited with error: %w", err)
	}
	return nil
}
