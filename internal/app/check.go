package app

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"sudare/internal/procfile"
	"sudare/internal/registry"
)

// Check parses the Procfile at path and prints its groups and members
// without starting anything.
func Check(path string, w io.Writer) error {
	specs, err := procfile.Load(path)
	if err != nil {
		return err
	}
	reg := registry.New(specs)

	groupStyle := lipgloss.NewStyle().Bold(true)
	cmdStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	for _, g := range reg.Groups() {
		fmt.Fprintf(w, "%s (%d)\n", groupStyle.Render(g.Name), len(g.Members))
		for i, m := range g.Members {
			fmt.Fprintf(w, "  %d: %s %s\n", i, m.Name, cmdStyle.Render(m.Command))
		}
	}
	fmt.Fprintf(w, "%d processes in %d groups\n", len(specs), reg.Len())
	return nil
}
