package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"sudare/internal/event"
	"sudare/internal/input"
	"sudare/internal/registry"
)

// Loop is the single consumer of the event bus. It alone mutates the
// registry and the view state, and it is the only caller of the renderer.
type Loop struct {
	reg    *registry.Registry
	procs  Processes
	bus    *event.Bus
	screen Screen
	keys   input.KeyMap
	render *Renderer
	log    *slog.Logger

	view          ViewState
	width, height int
	frame         string
	draws         int
}

// NewLoop wires a loop; call Run to start consuming.
func NewLoop(reg *registry.Registry, procs Processes, bus *event.Bus, screen Screen, keys input.KeyMap) *Loop {
	return &Loop{
		reg:    reg,
		procs:  procs,
		bus:    bus,
		screen: screen,
		keys:   keys,
		render: NewRenderer(keys),
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		view:   NewViewState(),
		width:  DefaultWidth,
		height: DefaultHeight,
	}
}

// SetLogger replaces the loop's diagnostic logger.
func (l *Loop) SetLogger(log *slog.Logger) {
	if log != nil {
		l.log = log
	}
}

// Run puts the terminal in raw mode and handles events until the user quits,
// the input source closes or ctx is cancelled. The bus is closed on return
// so producers blocked on a full queue are released.
func (l *Loop) Run(ctx context.Context) (err error) {
	if err := l.screen.EnterRawMode(); err != nil {
		return fmt.Errorf("enter raw mode: %w", err)
	}
	defer func() {
		if lerr := l.screen.LeaveRawMode(); lerr != nil && err == nil {
			err = fmt.Errorf("leave raw mode: %w", lerr)
		}
	}()
	defer l.bus.Close()

	l.draw()
	for {
		batch, err := l.bus.Next(ctx)
		if err != nil {
			if errors.Is(err, event.ErrClosed) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if l.handle(batch) {
			return nil
		}
	}
}

// handle applies one batch and redraws at most once. It reports whether the
// loop should stop.
func (l *Loop) handle(batch event.Batch) (quit bool) {
	dirty := false
	for _, e := range batch.Events {
		switch e.Kind {
		case event.Key:
			cmd := l.keys.Map(e.Key)
			if cmd.Action == input.Quit {
				l.log.Debug("quit requested", "key", e.Key)
				return true
			}
			if l.apply(cmd) {
				dirty = true
			}
		case event.Resize:
			if e.Width > 0 && e.Height > 0 {
				l.width, l.height = e.Width, e.Height
				dirty = true
			}
		case event.InputClosed:
			l.log.Debug("input closed")
			return true
		case event.Output, event.Exit:
			if l.isActive(e.Proc) {
				dirty = true
			}
		}
	}
	if dirty {
		l.draw()
	}
	return false
}

// apply performs a navigation command and reports whether anything changed.
func (l *Loop) apply(cmd input.Command) bool {
	spec, ok := l.reg.ActiveSpec()
	if !ok {
		return false
	}
	id := spec.Order

	switch cmd.Action {
	case input.NextGroup, input.PreviousGroup:
		before := l.reg.ActiveIndex()
		if cmd.Action == input.NextGroup {
			l.reg.NextGroup()
		} else {
			l.reg.PreviousGroup()
		}
		if l.reg.ActiveIndex() == before {
			return false
		}
		l.view.reset(id)
		return true
	case input.SelectMember:
		if !l.reg.SelectMember(cmd.Member) {
			return false
		}
		l.view.reset(id)
		return true
	case input.ScrollUp, input.ScrollDown:
		delta := 1
		if cmd.Action == input.ScrollDown {
			delta = -1
		}
		before := l.view.Offset(id)
		l.view.scrollBy(id, delta, l.procs.Buffer(id).Len(), BodyHeight(l.height))
		return l.view.Offset(id) != before
	default:
		return false
	}
}

func (l *Loop) isActive(id int) bool {
	spec, ok := l.reg.ActiveSpec()
	return ok && spec.Order == id
}

func (l *Loop) draw() {
	l.frame = l.render.Render(l.reg, l.procs, l.view, l.width, l.height)
	l.draws++
	l.screen.Draw(l.frame)
}
