package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"

	"sudare/internal/buffer"
	"sudare/internal/input"
	"sudare/internal/registry"
	"sudare/internal/runner"
)

// Frame size used until the terminal reports its dimensions.
const (
	DefaultWidth  = 80
	DefaultHeight = 24
)

// Rows that are not part of the body: header, banner, footer.
const chromeRows = 3

// Processes is the read-only view of the runner the renderer needs.
type Processes interface {
	Status(id int) runner.Status
	Buffer(id int) *buffer.Buffer
}

// Renderer turns registry, view and process state into a frame.
type Renderer struct {
	keys input.KeyMap
	help help.Model

	tab       lipgloss.Style
	activeTab lipgloss.Style
	members   lipgloss.Style
	stderr    lipgloss.Style
	system    lipgloss.Style
	exited    lipgloss.Style
	failed    lipgloss.Style
}

// NewRenderer builds a renderer that lists keys in its footer.
func NewRenderer(keys input.KeyMap) *Renderer {
	return &Renderer{
		keys:      keys,
		help:      help.New(),
		tab:       lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Padding(0, 1),
		activeTab: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("231")).Background(lipgloss.Color("127")).Padding(0, 1),
		members:   lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		stderr:    lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		system:    lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("214")),
		exited:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		failed:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
	}
}

// BodyHeight is the number of output lines shown for a terminal of the
// given height.
func BodyHeight(height int) int {
	if h := height - chromeRows; h > 0 {
		return h
	}
	return 1
}

// Render draws one frame. It reads state only, so equal state yields an
// equal frame.
func (r *Renderer) Render(reg *registry.Registry, procs Processes, view ViewState, width, height int) string {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	bodyHeight := BodyHeight(height)

	rows := make([]string, 0, height)
	rows = append(rows, r.header(reg, width))

	spec, ok := reg.ActiveSpec()
	if !ok {
		rows = append(rows, "no processes")
		rows = pad(rows, 1+bodyHeight+1)
		rows = append(rows, r.footer(width))
		return strings.Join(rows, "\n")
	}

	id := spec.Order
	lines, _ := procs.Buffer(id).Window(bodyHeight, view.Offset(id))
	for _, l := range lines {
		rows = append(rows, r.line(l, width))
	}
	rows = pad(rows, 1+bodyHeight)
	rows = append(rows, r.banner(procs.Status(id), width))
	rows = append(rows, r.footer(width))
	return strings.Join(rows, "\n")
}

func (r *Renderer) header(reg *registry.Registry, width int) string {
	groups := reg.Groups()
	active := reg.ActiveIndex()
	tabs := make([]string, 0, len(groups))
	for i, g := range groups {
		if i == active {
			tabs = append(tabs, r.activeTab.Render(g.Name))
		} else {
			tabs = append(tabs, r.tab.Render(g.Name))
		}
	}
	head := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)

	if g, ok := reg.ActiveGroup(); ok && len(g.Members) > 1 {
		names := make([]string, len(g.Members))
		for i, m := range g.Members {
			mark := ""
			if i == g.Active {
				mark = "*"
			}
			names[i] = fmt.Sprintf("%s%d:%s", mark, i, m.Name)
		}
		indicator := fmt.Sprintf(" [%d/%d] %s | %s", g.Active+1, len(g.Members), g.ActiveSpec().Name, strings.Join(names, " "))
		head += r.members.Render(indicator)
	}
	return truncate.String(head, uint(width))
}

func (r *Renderer) line(l buffer.Line, width int) string {
	text := truncate.String(expandTabs(l.Text), uint(width))
	switch l.Stream {
	case buffer.Stderr:
		return r.stderr.Render(text)
	case buffer.System:
		return r.system.Render(text)
	default:
		return text
	}
}

func (r *Renderer) banner(st runner.Status, width int) string {
	switch st.State {
	case runner.Exited:
		return r.exited.Render(truncate.String(fmt.Sprintf("[process exited with %d]", st.Code), uint(width)))
	case runner.Failed:
		return r.failed.Render(truncate.String("[failed: "+st.Reason+"]", uint(width)))
	default:
		return ""
	}
}

func (r *Renderer) footer(width int) string {
	r.help.Width = width
	return r.help.View(r.keys)
}

func pad(rows []string, n int) []string {
	for len(rows) < n {
		rows = append(rows, "")
	}
	return rows
}

func expandTabs(s string) string {
	if !strings.Contains(s, "\t") {
		return s
	}
	return strings.ReplaceAll(s, "\t", "    ")
}
