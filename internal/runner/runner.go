// Package runner supervises one child process per Procfile entry.
//
// Each child gets two reader goroutines, one per output stream, which split
// the stream into lines and append them to the process's bounded buffer,
// then notify the event bus. A third goroutine per child waits for exit and
// publishes a single Exit event once the lifecycle is final. Children are
// never restarted.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"sudare/internal/buffer"
	"sudare/internal/event"
	"sudare/internal/logger"
	"sudare/internal/metrics"
	"sudare/internal/procfile"
)

const (
	// DefaultGrace is how long Shutdown waits after SIGTERM before SIGKILL.
	DefaultGrace = 5 * time.Second
	// DefaultDrain bounds how long readers may keep going after the child
	// exits, e.g. when a grandchild still holds the pipe.
	DefaultDrain = 2 * time.Second

	groupPollInterval = 20 * time.Millisecond
)

// Shell exit codes for a missing or non-executable command.
const (
	codeNotExecutable = 126
	codeNotFound      = 127
)

// Options configures a Runner.
type Options struct {
	Spawner  Spawner
	Capacity int           // lines kept per process
	Grace    time.Duration // SIGTERM → SIGKILL window
	Drain    time.Duration // reader drain window after exit
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	// OutputLog optionally mirrors each process's output to rotating files.
	OutputLog logger.OutputConfig
	// OnLine is called from reader goroutines after each append.
	OnLine func(proc int, l buffer.Line)
}

// Runner owns every child process and its output buffer.
type Runner struct {
	opts  Options
	bus   *event.Bus
	log   *slog.Logger
	procs []*proc

	wg       sync.WaitGroup
	started  atomic.Bool
	stopping atomic.Bool
	done     chan struct{}
}

type exitResult struct {
	code int
	err  error
}

type proc struct {
	id   int
	spec procfile.Spec
	buf  *buffer.Buffer

	mu      sync.Mutex
	status  Status
	history []Status
	handle  Handle

	stdoutLog io.WriteCloser
	stderrLog io.WriteCloser
}

// New prepares one entry per spec; spec i is addressed as process i.
func New(specs []procfile.Spec, bus *event.Bus, opts Options) *Runner {
	if opts.Spawner == nil {
		opts.Spawner = ShellSpawner{}
	}
	if opts.Grace <= 0 {
		opts.Grace = DefaultGrace
	}
	if opts.Drain <= 0 {
		opts.Drain = DefaultDrain
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	r := &Runner{opts: opts, bus: bus, log: log, done: make(chan struct{})}
	for i, s := range specs {
		initial := Status{State: Starting}
		r.procs = append(r.procs, &proc{
			id:      i,
			spec:    s,
			buf:     buffer.New(opts.Capacity),
			status:  initial,
			history: []Status{initial},
		})
	}
	return r
}

// Len returns the number of managed processes.
func (r *Runner) Len() int { return len(r.procs) }

// Spec returns the spec of process id.
func (r *Runner) Spec(id int) procfile.Spec { return r.procs[id].spec }

// Buffer returns the output buffer of process id.
func (r *Runner) Buffer(id int) *buffer.Buffer { return r.procs[id].buf }

// Status returns the current lifecycle of process id.
func (r *Runner) Status(id int) Status {
	p := r.procs[id]
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// History returns every lifecycle state process id went through, in order.
func (r *Runner) History(id int) []Status {
	p := r.procs[id]
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Status(nil), p.history...)
}

// Done is closed once every process has finished and its readers are joined.
func (r *Runner) Done() <-chan struct{} { return r.done }

// Start launches every process. It must be called at most once.
func (r *Runner) Start(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return errors.New("runner already started")
	}
	for _, p := range r.procs {
		r.wg.Add(1)
		go r.run(ctx, p)
	}
	go func() {
		r.wg.Wait()
		close(r.done)
	}()
	return nil
}

// Shutdown terminates every spawned process group, including groups whose
// leader already exited but left descendants behind, waits up to the grace
// period, then kills survivors. It returns once all processes are reaped,
// all readers joined and no group has members left, or with an error if
// that takes longer than the drain window after the kill. It never waits
// longer than Grace+Drain.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.stopping.Store(true)
	if !r.started.Load() {
		return nil
	}

	r.signalAll(Handle.Terminate)
	if r.await(ctx, r.opts.Grace) {
		return nil
	}

	survivors := r.countAlive()
	r.signalAll(Handle.Kill)
	r.log.Warn("process groups ignored SIGTERM, killed", "count", survivors, "grace", r.opts.Grace)
	if r.await(ctx, r.opts.Drain) {
		return nil
	}
	return fmt.Errorf("shutdown: %d process groups still alive after kill", r.countAlive())
}

// signalAll sends sig to every group spawned so far. Groups that are gone
// already are ignored by the handle.
func (r *Runner) signalAll(sig func(Handle) error) {
	for _, p := range r.procs {
		h := p.spawned()
		if h == nil {
			continue
		}
		if st := r.Status(p.id); st.Terminal() && h.Alive() {
			r.log.Info("signalling descendants of finished process", "process", p.spec.Label(), "status", st.String())
		}
		if err := sig(h); err != nil {
			r.log.Debug("signal failed", "process", p.spec.Label(), "error", err)
		}
	}
}

func (r *Runner) countAlive() int {
	n := 0
	for _, p := range r.procs {
		if h := p.spawned(); h != nil && h.Alive() {
			n++
		}
	}
	return n
}

// await waits for every lifecycle to finish and every group to empty.
func (r *Runner) await(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-r.done:
	case <-t.C:
		return false
	case <-ctx.Done():
		return false
	}

	tick := time.NewTicker(groupPollInterval)
	defer tick.Stop()
	for r.countAlive() > 0 {
		select {
		case <-tick.C:
		case <-t.C:
			return false
		case <-ctx.Done():
			return false
		}
	}
	return true
}

func (r *Runner) run(ctx context.Context, p *proc) {
	defer r.wg.Done()
	name := p.spec.Label()

	h, err := r.opts.Spawner.Spawn(ctx, p.spec.Command)
	if err != nil {
		r.log.Warn("spawn failed", "process", name, "error", err)
		r.finish(p, Status{State: Failed, Reason: err.Error()})
		return
	}
	defer h.Close()

	p.openLogs(r.opts.OutputLog)
	defer p.closeLogs()

	// Shutdown may have swept the handles before this one was recorded.
	if r.attach(p, h) {
		_ = h.Terminate()
	}
	p.transition(Status{State: Running, PID: h.PID()})
	r.opts.Metrics.ObserveStart(name)
	r.log.Info("process started", "process", name, "pid", h.PID())

	readFailed := make(chan error, 2)
	var readers errgroup.Group
	for _, s := range []struct {
		rd     io.Reader
		stream buffer.Stream
	}{{h.Stdout(), buffer.Stdout}, {h.Stderr(), buffer.Stderr}} {
		s := s
		readers.Go(func() error {
			err := r.pump(p, s.rd, s.stream)
			if err != nil {
				readFailed <- err
			}
			return err
		})
	}
	readDone := make(chan error, 1)
	go func() { readDone <- readers.Wait() }()

	exited := make(chan exitResult, 1)
	go func() {
		code, err := h.Wait()
		exited <- exitResult{code, err}
	}()

	var (
		res     exitResult
		readErr error
	)
	select {
	case res = <-exited:
		if readErr = r.drain(h, readDone); readErr != nil {
			r.recordReadError(p, readErr)
		}
	case readErr = <-readFailed:
		// The output is gone; stop the process rather than run it blind.
		r.recordReadError(p, readErr)
		res = r.stop(h, exited)
		_ = r.drain(h, readDone)
	}

	switch {
	case readErr != nil:
		r.finish(p, Status{State: Failed, Reason: "read error: " + readErr.Error()})
	case res.err != nil:
		r.finish(p, Status{State: Failed, Reason: "wait: " + res.err.Error()})
	case res.code == codeNotFound:
		r.finish(p, Status{State: Failed, Reason: fmt.Sprintf("command not found (exit %d)", res.code)})
	case res.code == codeNotExecutable:
		r.finish(p, Status{State: Failed, Reason: fmt.Sprintf("command not executable (exit %d)", res.code)})
	default:
		r.finish(p, Status{State: Exited, Code: res.code})
	}
}

func (r *Runner) recordReadError(p *proc, err error) {
	p.buf.Append(buffer.Line{Text: "[read error: " + err.Error() + "]", Stream: buffer.System})
	r.bus.NotifyOutput(p.id)
}

// drain gives the readers a bounded window to reach EOF after exit, then
// closes the streams under them.
func (r *Runner) drain(h Handle, readDone <-chan error) error {
	t := time.NewTimer(r.opts.Drain)
	defer t.Stop()
	select {
	case err := <-readDone:
		return err
	case <-t.C:
		_ = h.Close()
		return <-readDone
	}
}

// stop terminates a process whose output can no longer be read, escalating
// to SIGKILL after the grace period.
func (r *Runner) stop(h Handle, exited <-chan exitResult) exitResult {
	_ = h.Terminate()
	t := time.NewTimer(r.opts.Grace)
	defer t.Stop()
	select {
	case res := <-exited:
		return res
	case <-t.C:
		_ = h.Kill()
		return <-exited
	}
}

func (r *Runner) pump(p *proc, rd io.Reader, stream buffer.Stream) error {
	name := p.spec.Label()
	sink := p.logFor(stream)
	return readLines(rd, func(text string) {
		l := buffer.Line{Text: text, Stream: stream}
		p.buf.Append(l)
		if sink != nil {
			_, _ = io.WriteString(sink, text+"\n")
		}
		r.opts.Metrics.ObserveLine(name, stream.String())
		if r.opts.OnLine != nil {
			r.opts.OnLine(p.id, l)
		}
		r.bus.NotifyOutput(p.id)
	})
}

func (r *Runner) finish(p *proc, st Status) {
	p.transition(st)
	name := p.spec.Label()
	if st.State == Failed {
		r.opts.Metrics.ObserveFailure(name)
		r.log.Warn("process failed", "process", name, "reason", st.Reason)
	} else {
		r.opts.Metrics.ObserveExit(name, st.Code)
		r.log.Info("process exited", "process", name, "code", st.Code)
	}
	r.bus.Publish(event.Event{Kind: event.Exit, Proc: p.id})
}

// attach records the handle and reports whether Shutdown already began.
func (r *Runner) attach(p *proc, h Handle) bool {
	p.mu.Lock()
	p.handle = h
	p.mu.Unlock()
	return r.stopping.Load()
}

// spawned returns the handle of a started process, whatever its status.
func (p *proc) spawned() Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handle
}

func (p *proc) transition(next Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !advances(p.status.State, next.State) {
		return
	}
	p.status = next
	p.history = append(p.history, next)
}

func (p *proc) openLogs(cfg logger.OutputConfig) {
	p.stdoutLog, p.stderrLog = cfg.Writers(p.spec.Group + "." + p.spec.Name)
}

func (p *proc) logFor(stream buffer.Stream) io.Writer {
	w := p.stdoutLog
	if stream == buffer.Stderr {
		w = p.stderrLog
	}
	if w == nil {
		return nil
	}
	return w
}

func (p *proc) closeLogs() {
	for _, w := range []io.WriteCloser{p.stdoutLog, p.stderrLog} {
		if w != nil {
			_ = w.Close()
		}
	}
}
