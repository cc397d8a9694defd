package tui

import (
	"errors"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"sudare/internal/event"
)

// Screen is the terminal collaborator the event loop talks to.
type Screen interface {
	EnterRawMode() error
	LeaveRawMode() error
	// Draw replaces what is on screen with frame. It must not block.
	Draw(frame string)
}

// TeaScreen is a Screen backed by a Bubble Tea program. The program owns the
// terminal: it switches to the alternate screen, reads keys in raw mode and
// reports size changes, all of which are forwarded to the event bus. Frames
// come from the event loop through Draw.
type TeaScreen struct {
	bus  *event.Bus
	opts []tea.ProgramOption

	mu    sync.Mutex
	frame string

	prog   *tea.Program
	poke   chan struct{}
	exited chan struct{}
	runErr error
}

// NewScreen creates a screen publishing input to bus. Extra options are
// passed to tea.NewProgram after the defaults.
func NewScreen(bus *event.Bus, opts ...tea.ProgramOption) *TeaScreen {
	return &TeaScreen{
		bus:  bus,
		opts: opts,
		poke: make(chan struct{}, 1),
	}
}

// EnterRawMode starts the Bubble Tea program.
func (s *TeaScreen) EnterRawMode() error {
	if s.prog != nil {
		return errors.New("screen already active")
	}
	opts := append([]tea.ProgramOption{tea.WithAltScreen()}, s.opts...)
	s.prog = tea.NewProgram(screenModel{s: s}, opts...)
	s.exited = make(chan struct{})

	go func() {
		_, err := s.prog.Run()
		s.runErr = err
		close(s.exited)
		// The keyboard is gone either way; let the loop wind down.
		s.bus.Publish(event.Event{Kind: event.InputClosed})
	}()
	go s.pump()
	return nil
}

// LeaveRawMode stops the program and restores the terminal.
func (s *TeaScreen) LeaveRawMode() error {
	if s.prog == nil {
		return nil
	}
	s.prog.Quit()
	<-s.exited
	if errors.Is(s.runErr, tea.ErrProgramKilled) {
		return nil
	}
	return s.runErr
}

// Draw records frame as the one to show and schedules a repaint.
func (s *TeaScreen) Draw(frame string) {
	s.mu.Lock()
	s.frame = frame
	s.mu.Unlock()
	select {
	case s.poke <- struct{}{}:
	default:
	}
}

func (s *TeaScreen) current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

// pump turns Draw calls into program messages off the caller's goroutine,
// since Program.Send blocks until the program takes the message.
func (s *TeaScreen) pump() {
	for {
		select {
		case <-s.poke:
			s.prog.Send(redrawMsg{})
		case <-s.exited:
			return
		}
	}
}

type redrawMsg struct{}

// screenModel forwards input to the bus and shows the latest frame.
type screenModel struct {
	s *TeaScreen
}

func (m screenModel) Init() tea.Cmd { return nil }

func (m screenModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		m.s.bus.Publish(event.Event{Kind: event.Key, Key: msg.String()})
	case tea.WindowSizeMsg:
		m.s.bus.Publish(event.Event{Kind: event.Resize, Width: msg.Width, Height: msg.Height})
	}
	return m, nil
}

func (m screenModel) View() string { return m.s.current() }
