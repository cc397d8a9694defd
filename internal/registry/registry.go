package registry

import (
	"sudare/internal/procfile"
)

// Registry groups specs and tracks which group and member are in focus.
// It is built once and then mutated only by the UI event loop, so it does
// no locking of its own.
type Registry struct {
	groups []Group
	active int
	// Where to snapshot the selection. If empty, snapshotting is disabled.
	SnapshotPath string
}

// New groups specs by first appearance of the group name; members keep
// their source order.
func New(specs []procfile.Spec) *Registry {
	r := &Registry{}
	index := make(map[string]int)
	for _, s := range specs {
		i, ok := index[s.Group]
		if !ok {
			i = len(r.groups)
			index[s.Group] = i
			r.groups = append(r.groups, Group{Name: s.Group})
		}
		r.groups[i].Members = append(r.groups[i].Members, s)
	}
	return r
}

// Len returns the number of groups.
func (r *Registry) Len() int { return len(r.groups) }

// Groups returns a copy of the groups in display order.
func (r *Registry) Groups() []Group {
	out := make([]Group, len(r.groups))
	copy(out, r.groups)
	return out
}

// ActiveIndex returns the focused group index, or -1 when there are no groups.
func (r *Registry) ActiveIndex() int {
	if len(r.groups) == 0 {
		return -1
	}
	return r.active
}

// ActiveGroup returns the focused group.
func (r *Registry) ActiveGroup() (Group, bool) {
	if len(r.groups) == 0 {
		return Group{}, false
	}
	return r.groups[r.active], true
}

// ActiveSpec returns the selected member of the focused group.
func (r *Registry) ActiveSpec() (procfile.Spec, bool) {
	g, ok := r.ActiveGroup()
	if !ok {
		return procfile.Spec{}, false
	}
	return g.ActiveSpec(), true
}

// NextGroup moves focus forward, wrapping from the last group to the first.
func (r *Registry) NextGroup() {
	if n := len(r.groups); n > 1 {
		r.active = (r.active + 1) % n
	}
}

// PreviousGroup moves focus back, wrapping from the first group to the last.
func (r *Registry) PreviousGroup() {
	if n := len(r.groups); n > 1 {
		r.active = (r.active - 1 + n) % n
	}
}

// SelectMember selects a member of the focused group. Out-of-range indexes
// are ignored. Reports whether the selection changed.
func (r *Registry) SelectMember(index int) bool {
	if len(r.groups) == 0 {
		return false
	}
	g := &r.groups[r.active]
	if index < 0 || index >= len(g.Members) || index == g.Active {
		return false
	}
	g.Active = index
	return true
}

// Selection captures the current focus by name.
func (r *Registry) Selection() Selection {
	sel := Selection{Members: make(map[string]string, len(r.groups))}
	if g, ok := r.ActiveGroup(); ok {
		sel.Group = g.Name
	}
	for _, g := range r.groups {
		sel.Members[g.Name] = g.ActiveSpec().Name
	}
	return sel
}

// Restore applies a previously captured selection. Names that no longer
// exist are ignored.
func (r *Registry) Restore(sel Selection) {
	for i := range r.groups {
		g := &r.groups[i]
		if g.Name == sel.Group {
			r.active = i
		}
		want, ok := sel.Members[g.Name]
		if !ok {
			continue
		}
		for j, m := range g.Members {
			if m.Name == want {
				g.Active = j
				break
			}
		}
	}
}
