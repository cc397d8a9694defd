package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"sudare/internal/buffer"
	"sudare/internal/event"
	"sudare/internal/procfile"
	"sudare/internal/runner"
)

var prefixColors = []string{"6", "3", "2", "5", "4", "14", "11", "10", "13", "12"}

// printer writes every captured line to one stream, prefixed with the
// process label. It is called from all reader goroutines.
type printer struct {
	mu       sync.Mutex
	w        io.Writer
	prefixes []string
	stderr   lipgloss.Style
	notice   lipgloss.Style
}

func newPrinter(w io.Writer, specs []procfile.Spec) *printer {
	width := 0
	for _, s := range specs {
		width = max(width, len(s.Label()))
	}
	p := &printer{
		w:      w,
		stderr: lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		notice: lipgloss.NewStyle().Bold(true),
	}
	for i, s := range specs {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(prefixColors[i%len(prefixColors)]))
		label := s.Label() + strings.Repeat(" ", width-len(s.Label()))
		p.prefixes = append(p.prefixes, style.Render(label))
	}
	return p
}

func (p *printer) line(proc int, l buffer.Line) {
	text := l.Text
	if l.Stream != buffer.Stdout {
		text = p.stderr.Render(text)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "%s | %s\n", p.prefixes[proc], text)
}

func (p *printer) status(proc int, st runner.Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "%s | %s\n", p.prefixes[proc], p.notice.Render("["+st.String()+"]"))
}

// runPlain follows the bus until every process has ended or ctx is done.
func runPlain(ctx context.Context, procs *runner.Runner, bus *event.Bus, out *printer) error {
	defer bus.Close()
	remaining := procs.Len()
	for remaining > 0 {
		batch, err := bus.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, event.ErrClosed) {
				return nil
			}
			return err
		}
		for _, e := range batch.Events {
			if e.Kind != event.Exit {
				continue
			}
			out.status(e.Proc, procs.Status(e.Proc))
			remaining--
		}
	}
	return nil
}
