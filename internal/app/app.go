package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"sudare/internal/config"
	"sudare/internal/event"
	"sudare/internal/logger"
	"sudare/internal/metrics"
	"sudare/internal/procfile"
	"sudare/internal/registry"
	"sudare/internal/runner"
)

// Options configures a single supervisor run.
type Options struct {
	// Plain streams prefixed output instead of starting the terminal UI.
	Plain bool
	// NoState skips restoring and saving the group/member selection.
	NoState bool

	Stdout io.Writer
	Stderr io.Writer

	// Spawner overrides how processes are started.
	Spawner runner.Spawner
	// Stopping is called when shutdown begins; the returned func is called
	// once every process is gone.
	Stopping func() (done func())
}

// App runs the processes of one Procfile and presents them.
type App struct {
	cfg  config.Config
	opts Options
}

// New constructs the supervisor from a loaded configuration.
func New(cfg config.Config, opts Options) *App {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	return &App{cfg: cfg, opts: opts}
}

// Config returns the configuration the app was built with.
func (a *App) Config() config.Config {
	return a.cfg
}

// Run parses the Procfile at path, starts every declared process and blocks
// until the user quits (or, in plain mode, until every process has ended or
// ctx is cancelled). All children are stopped before Run returns.
// A malformed Procfile is reported as a *procfile.DefinitionError and
// nothing is started.
func (a *App) Run(ctx context.Context, path string) (err error) {
	specs, err := procfile.Load(path)
	if err != nil {
		return err
	}
	if len(specs) == 0 {
		return fmt.Errorf("procfile %s declares no processes", path)
	}

	var fallback io.Writer
	if a.opts.Plain {
		fallback = a.opts.Stderr
	}
	log, closer, err := logger.New(a.cfg.Log.Logger(), fallback)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer closer.Close()

	reg := registry.New(specs)
	if !a.opts.NoState {
		a.restoreSelection(reg, path, log)
	}

	var m *metrics.Metrics
	if a.cfg.MetricsFile != "" {
		m = metrics.New()
	}

	bus := event.New(len(specs), a.cfg.QueueSize)
	spawner := a.opts.Spawner
	if spawner == nil {
		spawner = runner.ShellSpawner{Shell: a.cfg.Shell}
	}
	ropts := runner.Options{
		Spawner:   spawner,
		Capacity:  a.cfg.BufferCapacity,
		Grace:     a.cfg.GracePeriod,
		Logger:    log,
		Metrics:   m,
		OutputLog: a.cfg.OutputLog.Logger(),
	}
	var out *printer
	if a.opts.Plain {
		out = newPrinter(a.opts.Stdout, specs)
		ropts.OnLine = out.line
	}
	procs := runner.New(specs, bus, ropts)

	log.Info("starting processes", "procfile", path, "count", len(specs), "groups", reg.Len())
	if err := procs.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if serr := a.shutdown(procs, log); serr != nil {
			err = errors.Join(err, serr)
		}
		if !a.opts.NoState {
			if serr := reg.SaveSelection(); serr != nil {
				log.Warn("save selection failed", "path", reg.SnapshotPath, "error", serr)
			}
		}
		if werr := m.WriteTextfile(a.cfg.MetricsFile); werr != nil {
			log.Warn("write metrics failed", "path", a.cfg.MetricsFile, "error", werr)
		}
	}()

	if a.opts.Plain {
		return runPlain(ctx, procs, bus, out)
	}
	return runTUI(ctx, reg, procs, bus, log)
}

func (a *App) restoreSelection(reg *registry.Registry, path string, log *slog.Logger) {
	snap, err := registry.SnapshotPathFor(a.cfg.StateDir, path)
	if err != nil {
		log.Warn("cannot derive selection path", "error", err)
		return
	}
	reg.SnapshotPath = snap
	if err := reg.LoadSelection(); err != nil {
		log.Warn("restore selection failed", "path", snap, "error", err)
	}
}

func (a *App) shutdown(procs *runner.Runner, log *slog.Logger) error {
	if a.opts.Stopping != nil {
		done := a.opts.Stopping()
		defer done()
	}
	log.Info("stopping processes")
	if err := procs.Shutdown(context.Background()); err != nil {
		log.Error("shutdown incomplete", "error", err)
		return err
	}
	return nil
}
