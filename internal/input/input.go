package input

import (
	"github.com/charmbracelet/bubbles/key"
)

// Action identifies what a keystroke asks the UI to do.
type Action int

const (
	Unknown Action = iota
	Quit
	NextGroup
	PreviousGroup
	SelectMember
	ScrollUp
	ScrollDown
)

func (a Action) String() string {
	switch a {
	case Quit:
		return "quit"
	case NextGroup:
		return "next-group"
	case PreviousGroup:
		return "previous-group"
	case SelectMember:
		return "select-member"
	case ScrollUp:
		return "scroll-up"
	case ScrollDown:
		return "scroll-down"
	default:
		return "unknown"
	}
}

// Command is the decoded meaning of a keystroke. Member is only set for
// SelectMember.
type Command struct {
	Action Action
	Member int
}

// KeyMap holds the bindings. Key names follow bubbletea's KeyMsg.String().
type KeyMap struct {
	Quit       key.Binding
	NextGroup  key.Binding
	PrevGroup  key.Binding
	Select     key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding
}

// DefaultKeyMap returns the stock bindings. j scrolls up and k scrolls down.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("esc", "ctrl+c"),
			key.WithHelp("esc", "quit"),
		),
		NextGroup: key.NewBinding(
			key.WithKeys("n", "down"),
			key.WithHelp("n/↓", "next group"),
		),
		PrevGroup: key.NewBinding(
			key.WithKeys("p", "up"),
			key.WithHelp("p/↑", "prev group"),
		),
		Select: key.NewBinding(
			key.WithKeys("0", "1", "2", "3", "4", "5", "6", "7", "8", "9"),
			key.WithHelp("0-9", "select member"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("j"),
			key.WithHelp("j", "scroll up"),
		),
		ScrollDown: key.NewBinding(
			key.WithKeys("k"),
			key.WithHelp("k", "scroll down"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextGroup, k.PrevGroup, k.Select, k.ScrollUp, k.ScrollDown, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// Map decodes a key name into a Command. It has no side effects.
func (k KeyMap) Map(name string) Command {
	switch {
	case matches(name, k.Quit):
		return Command{Action: Quit}
	case matches(name, k.NextGroup):
		return Command{Action: NextGroup}
	case matches(name, k.PrevGroup):
		return Command{Action: PreviousGroup}
	case matches(name, k.Select):
		return Command{Action: SelectMember, Member: int(name[0] - '0')}
	case matches(name, k.ScrollUp):
		return Command{Action: ScrollUp}
	case matches(name, k.ScrollDown):
		return Command{Action: ScrollDown}
	default:
		return Command{Action: Unknown}
	}
}

func matches(name string, b key.Binding) bool {
	if !b.Enabled() {
		return false
	}
	for _, k := range b.Keys() {
		if k == name {
			return true
		}
	}
	return false
}
