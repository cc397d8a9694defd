package registry

import "sudare/internal/procfile"

// Group is a named bucket of specs. Members keep source order.
type Group struct {
	Name    string
	Members []procfile.Spec
	// Active is always a valid index into Members.
	Active int
}

// ActiveSpec returns the selected member.
func (g Group) ActiveSpec() procfile.Spec {
	return g.Members[g.Active]
}

// Selection is the navigable part of the registry, keyed by names so it
// survives edits to the Procfile.
type Selection struct {
	Group   string            `json:"focused_group"`
	Members map[string]string `json:"active_processes"`
}
