package runner

import (
	"context"
	"errors"
	"io"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"testing/iotest"
	"time"

	"sudare/internal/buffer"
	"sudare/internal/event"
	"sudare/internal/procfile"
)

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
}

func newTestRunner(t *testing.T, opts Options, commands ...string) (*Runner, *event.Bus) {
	t.Helper()
	specs := make([]procfile.Spec, len(commands))
	for i, c := range commands {
		specs[i] = procfile.Spec{Group: "p", Name: string(rune('a' + i)), Command: c, Order: i}
	}
	bus := event.New(len(specs), 256)
	r := New(specs, bus, opts)
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = r.Shutdown(ctx)
	})
	return r, bus
}

func waitDone(t *testing.T, r *Runner) {
	t.Helper()
	select {
	case <-r.Done():
	case <-time.After(10 * time.Second):
		t.Fatalf("processes did not finish")
	}
}

func texts(lines []buffer.Line, stream buffer.Stream) []string {
	var out []string
	for _, l := range lines {
		if l.Stream == stream {
			out = append(out, l.Text)
		}
	}
	return out
}

// drainExits counts Exit events per process until the bus goes quiet.
func drainExits(bus *event.Bus) map[int]int {
	counts := map[int]int{}
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		batch, err := bus.Next(ctx)
		cancel()
		if err != nil {
			return counts
		}
		for _, e := range batch.Events {
			if e.Kind == event.Exit {
				counts[e.Proc]++
			}
		}
	}
}

func TestEchoIsCapturedAndExitsZero(t *testing.T) {
	requireUnix(t)
	r, bus := newTestRunner(t, Options{}, "echo hi")
	waitDone(t, r)

	lines := r.Buffer(0).Lines()
	if len(lines) != 1 || lines[0] != (buffer.Line{Text: "hi", Stream: buffer.Stdout}) {
		t.Fatalf("unexpected lines: %+v", lines)
	}
	if st := r.Status(0); st.State != Exited || st.Code != 0 {
		t.Fatalf("unexpected status: %v", st)
	}
	var states []State
	for _, st := range r.History(0) {
		states = append(states, st.State)
	}
	if len(states) != 3 || states[0] != Starting || states[1] != Running || states[2] != Exited {
		t.Fatalf("unexpected history: %v", states)
	}
	if n := drainExits(bus)[0]; n != 1 {
		t.Fatalf("expected exactly one exit event, got %d", n)
	}
}

func TestExitCodeAndStreamsAreKept(t *testing.T) {
	requireUnix(t)
	r, _ := newTestRunner(t, Options{}, "echo out; echo err 1>&2; exit 3")
	waitDone(t, r)

	lines := r.Buffer(0).Lines()
	if got := texts(lines, buffer.Stdout); len(got) != 1 || got[0] != "out" {
		t.Fatalf("stdout: %v", got)
	}
	if got := texts(lines, buffer.Stderr); len(got) != 1 || got[0] != "err" {
		t.Fatalf("stderr: %v", got)
	}
	if st := r.Status(0); st.State != Exited || st.Code != 3 {
		t.Fatalf("unexpected status: %v", st)
	}
}

func TestLinesKeepOrderWithinStream(t *testing.T) {
	requireUnix(t)
	r, _ := newTestRunner(t, Options{}, "for i in 1 2 3 4 5 6 7 8; do echo $i; done")
	waitDone(t, r)

	got := strings.Join(texts(r.Buffer(0).Lines(), buffer.Stdout), ",")
	if got != "1,2,3,4,5,6,7,8" {
		t.Fatalf("out of order: %s", got)
	}
}

func TestStreamsKeepTheirOwnOrder(t *testing.T) {
	requireUnix(t)
	r, _ := newTestRunner(t, Options{}, "for i in 1 2 3 4 5 6; do echo o$i; echo e$i 1>&2; done")
	waitDone(t, r)

	lines := r.Buffer(0).Lines()
	if got := strings.Join(texts(lines, buffer.Stdout), ","); got != "o1,o2,o3,o4,o5,o6" {
		t.Fatalf("stdout out of order: %s", got)
	}
	if got := strings.Join(texts(lines, buffer.Stderr), ","); got != "e1,e2,e3,e4,e5,e6" {
		t.Fatalf("stderr out of order: %s", got)
	}
}

func TestPartialLineIsFlushedAtEOF(t *testing.T) {
	requireUnix(t)
	r, _ := newTestRunner(t, Options{}, `printf 'a\r\nb'`)
	waitDone(t, r)

	got := texts(r.Buffer(0).Lines(), buffer.Stdout)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected lines: %q", got)
	}
}

func TestMissingCommandFails(t *testing.T) {
	requireUnix(t)
	r, _ := newTestRunner(t, Options{}, "sudare-definitely-not-a-command")
	waitDone(t, r)

	st := r.Status(0)
	if st.State != Failed || !strings.Contains(st.Reason, "not found") {
		t.Fatalf("unexpected status: %v", st)
	}
}

func TestBufferIsBounded(t *testing.T) {
	requireUnix(t)
	r, _ := newTestRunner(t, Options{Capacity: 10}, "i=0; while [ $i -lt 50 ]; do echo $i; i=$((i+1)); done")
	waitDone(t, r)

	b := r.Buffer(0)
	if b.Len() != 10 || b.Total() != 50 {
		t.Fatalf("len=%d total=%d", b.Len(), b.Total())
	}
	if first := b.Lines()[0].Text; first != "40" {
		t.Fatalf("oldest kept line = %q, want 40", first)
	}
}

func TestOnLineSeesEveryLine(t *testing.T) {
	requireUnix(t)
	var n atomic.Int32
	opts := Options{OnLine: func(proc int, l buffer.Line) { n.Add(1) }}
	r, _ := newTestRunner(t, opts, "echo 1; echo 2", "echo 3")
	waitDone(t, r)
	if n.Load() != 3 {
		t.Fatalf("OnLine called %d times, want 3", n.Load())
	}
}

func TestShutdownTerminatesRunningProcess(t *testing.T) {
	requireUnix(t)
	r, _ := newTestRunner(t, Options{Grace: 2 * time.Second}, "sleep 30")

	deadline := time.Now().Add(5 * time.Second)
	for r.Status(0).State != Running {
		if time.Now().After(deadline) {
			t.Fatalf("process never started")
		}
		time.Sleep(10 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if st := r.Status(0); st.State != Exited || st.Code != 128+15 {
		t.Fatalf("unexpected status after SIGTERM: %v", st)
	}
}

// fakeHandle is a process that runs until it is told to stop.
type fakeHandle struct {
	stdout     io.Reader
	stderr     io.Reader
	outW, errW *io.PipeWriter

	ignoreTerm bool
	// lingering keeps the group alive after the leader exits, like a
	// backgrounded child.
	lingering atomic.Bool
	terms     atomic.Int32
	kills     atomic.Int32

	once sync.Once
	code int
	done chan struct{}
}

func newFakeHandle() *fakeHandle {
	outR, outW := io.Pipe()
	errR, errW := io.Pipe()
	return &fakeHandle{stdout: outR, stderr: errR, outW: outW, errW: errW, done: make(chan struct{})}
}

func (h *fakeHandle) exit(code int) {
	h.once.Do(func() {
		h.code = code
		_ = h.outW.Close()
		_ = h.errW.Close()
		close(h.done)
	})
}

func (h *fakeHandle) PID() int           { return 4242 }
func (h *fakeHandle) Stdout() io.Reader  { return h.stdout }
func (h *fakeHandle) Stderr() io.Reader  { return h.stderr }
func (h *fakeHandle) Wait() (int, error) { <-h.done; return h.code, nil }
func (h *fakeHandle) Close() error       { h.exit(0); return nil }

func (h *fakeHandle) Terminate() error {
	h.terms.Add(1)
	if !h.ignoreTerm {
		h.lingering.Store(false)
		h.exit(143)
	}
	return nil
}

func (h *fakeHandle) Kill() error {
	h.kills.Add(1)
	h.lingering.Store(false)
	h.exit(137)
	return nil
}

func (h *fakeHandle) Alive() bool {
	if h.lingering.Load() {
		return true
	}
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

type fakeSpawner func(command string) (Handle, error)

func (f fakeSpawner) Spawn(_ context.Context, command string) (Handle, error) { return f(command) }

func TestSpawnErrorFails(t *testing.T) {
	spawner := fakeSpawner(func(string) (Handle, error) { return nil, errors.New("no such shell") })
	r, bus := newTestRunner(t, Options{Spawner: spawner}, "x")
	waitDone(t, r)

	st := r.Status(0)
	if st.State != Failed || st.Reason != "no such shell" {
		t.Fatalf("unexpected status: %v", st)
	}
	if h := r.History(0); len(h) != 2 || h[0].State != Starting || h[1].State != Failed {
		t.Fatalf("unexpected history: %+v", h)
	}
	if r.Buffer(0).Len() != 0 {
		t.Fatalf("failed process must have empty buffer")
	}
	if n := drainExits(bus)[0]; n != 1 {
		t.Fatalf("expected one exit event, got %d", n)
	}
}

func TestShutdownEscalatesToKill(t *testing.T) {
	h := newFakeHandle()
	h.ignoreTerm = true
	spawner := fakeSpawner(func(string) (Handle, error) { return h, nil })

	bus := event.New(1, 16)
	r := New([]procfile.Spec{{Group: "a", Name: "a", Command: "x"}}, bus, Options{
		Spawner: spawner,
		Grace:   50 * time.Millisecond,
		Drain:   time.Second,
	})
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	for r.Status(0).State != Running {
		time.Sleep(time.Millisecond)
	}

	start := time.Now()
	if err := r.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 900*time.Millisecond {
		t.Fatalf("shutdown took %v", elapsed)
	}
	if h.terms.Load() != 1 || h.kills.Load() != 1 {
		t.Fatalf("terms=%d kills=%d", h.terms.Load(), h.kills.Load())
	}
	if st := r.Status(0); st.State != Exited || st.Code != 137 {
		t.Fatalf("unexpected status: %v", st)
	}
}

func TestReadErrorStopsProcess(t *testing.T) {
	h := newFakeHandle()
	h.stdout = iotest.ErrReader(errors.New("boom"))
	spawner := fakeSpawner(func(string) (Handle, error) { return h, nil })

	bus := event.New(1, 16)
	r := New([]procfile.Spec{{Group: "a", Name: "a", Command: "x"}}, bus, Options{Spawner: spawner, Grace: time.Second})
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitDone(t, r)

	st := r.Status(0)
	if st.State != Failed || !strings.Contains(st.Reason, "boom") {
		t.Fatalf("unexpected status: %v", st)
	}
	if h.terms.Load() != 1 {
		t.Fatalf("process should have been terminated")
	}
	lines := r.Buffer(0).Lines()
	if len(lines) != 1 || lines[0].Stream != buffer.System {
		t.Fatalf("expected a system line, got %+v", lines)
	}
}

// lateErrReader fails only after the process has exited.
type lateErrReader struct {
	done <-chan struct{}
	err  error
}

func (r lateErrReader) Read([]byte) (int, error) {
	<-r.done
	time.Sleep(50 * time.Millisecond)
	return 0, r.err
}

func TestReadErrorAfterExitIsRecorded(t *testing.T) {
	h := newFakeHandle()
	h.stdout = lateErrReader{done: h.done, err: errors.New("late failure")}
	spawner := fakeSpawner(func(string) (Handle, error) { return h, nil })

	bus := event.New(1, 16)
	r := New([]procfile.Spec{{Group: "a", Name: "a", Command: "x"}}, bus, Options{Spawner: spawner, Grace: time.Second})
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	for r.Status(0).State != Running {
		time.Sleep(time.Millisecond)
	}
	h.exit(0)
	waitDone(t, r)

	st := r.Status(0)
	if st.State != Failed || !strings.Contains(st.Reason, "late failure") {
		t.Fatalf("unexpected status: %v", st)
	}
	lines := r.Buffer(0).Lines()
	if len(lines) != 1 || lines[0].Stream != buffer.System || !strings.Contains(lines[0].Text, "late failure") {
		t.Fatalf("expected one system line, got %+v", lines)
	}
}

func TestShutdownKillsGroupOfExitedLeader(t *testing.T) {
	for _, ignoreTerm := range []bool{false, true} {
		h := newFakeHandle()
		h.ignoreTerm = ignoreTerm
		h.lingering.Store(true)
		spawner := fakeSpawner(func(string) (Handle, error) { return h, nil })

		r := New([]procfile.Spec{{Group: "a", Name: "a", Command: "x"}}, event.New(1, 16), Options{
			Spawner: spawner,
			Grace:   50 * time.Millisecond,
			Drain:   time.Second,
		})
		if err := r.Start(context.Background()); err != nil {
			t.Fatalf("start: %v", err)
		}
		for r.Status(0).State != Running {
			time.Sleep(time.Millisecond)
		}
		h.exit(0)
		waitDone(t, r)

		if err := r.Shutdown(context.Background()); err != nil {
			t.Fatalf("ignoreTerm=%v: shutdown: %v", ignoreTerm, err)
		}
		if h.Alive() {
			t.Fatalf("ignoreTerm=%v: group still alive after shutdown", ignoreTerm)
		}
		wantKills := int32(0)
		if ignoreTerm {
			wantKills = 1
		}
		if h.terms.Load() != 1 || h.kills.Load() != wantKills {
			t.Fatalf("ignoreTerm=%v: terms=%d kills=%d", ignoreTerm, h.terms.Load(), h.kills.Load())
		}
		if st := r.Status(0); st.State != Exited || st.Code != 0 {
			t.Fatalf("ignoreTerm=%v: status changed after exit: %v", ignoreTerm, st)
		}
	}
}

func TestStartTwice(t *testing.T) {
	spawner := fakeSpawner(func(string) (Handle, error) { return nil, errors.New("nope") })
	r, _ := newTestRunner(t, Options{Spawner: spawner}, "x")
	if err := r.Start(context.Background()); err == nil {
		t.Fatalf("second Start should fail")
	}
}

func TestShutdownBeforeStart(t *testing.T) {
	r := New(nil, event.New(0, 1), Options{})
	if err := r.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to State
		ok       bool
	}{
		{Starting, Running, true},
		{Starting, Failed, true},
		{Running, Exited, true},
		{Running, Failed, true},
		{Running, Starting, false},
		{Exited, Failed, false},
		{Failed, Running, false},
		{Running, Running, false},
	}
	for _, tc := range cases {
		if got := advances(tc.from, tc.to); got != tc.ok {
			t.Errorf("%s → %s: got %v want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestReadLines(t *testing.T) {
	var got []string
	err := readLines(strings.NewReader("one\ntwo\r\n\nthree"), func(s string) { got = append(got, s) })
	if err != nil {
		t.Fatalf("readLines: %v", err)
	}
	want := []string{"one", "two", "", "three"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestReadLinesSplitsLongLines(t *testing.T) {
	long := strings.Repeat("x", 2*maxLineBytes+10)
	var got []string
	err := readLines(strings.NewReader(long+"\nnext"), func(s string) { got = append(got, s) })
	if err != nil {
		t.Fatalf("readLines: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 pieces, got %d", len(got))
	}
	for i, n := range []int{maxLineBytes, maxLineBytes, 10} {
		if len(got[i]) != n {
			t.Fatalf("piece %d has %d bytes, want %d", i, len(got[i]), n)
		}
	}
	if got[3] != "next" {
		t.Fatalf("line after the long one = %q", got[3])
	}
	if strings.Join(got[:3], "") != long {
		t.Fatalf("pieces do not add up to the original line")
	}
}
