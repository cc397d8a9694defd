package tui

import "sudare/internal/buffer"

// ViewState is the per-session scroll position of every process, keyed by
// process id. It belongs to the event loop and is never shared.
type ViewState struct {
	Scroll map[int]int
}

// NewViewState returns a view with every process following its tail.
func NewViewState() ViewState {
	return ViewState{Scroll: make(map[int]int)}
}

// Offset returns how many lines process id is scrolled back.
func (v ViewState) Offset(id int) int { return v.Scroll[id] }

// scrollBy moves process id's window by delta lines (positive scrolls back
// into history), clamped to the n lines held and the body height.
func (v ViewState) scrollBy(id, delta, n, height int) {
	off := buffer.ClampOffset(v.Scroll[id]+delta, n, height)
	if off == 0 {
		delete(v.Scroll, id)
		return
	}
	v.Scroll[id] = off
}

func (v ViewState) reset(id int) { delete(v.Scroll, id) }
