package buffer

import "sync"

// DefaultCapacity is the number of lines kept per process when none is configured.
const DefaultCapacity = 5000

// Stream identifies which output stream a line came from.
type Stream int

const (
	Stdout Stream = iota
	Stderr
	// System marks lines written by the supervisor itself, such as read errors.
	System
)

func (s Stream) String() string {
	switch s {
	case Stdout:
		return "stdout"
	case Stderr:
		return "stderr"
	case System:
		return "system"
	default:
		return "unknown"
	}
}

// Line is one captured line of output.
type Line struct {
	Text   string
	Stream Stream
}

// Buffer is a bounded FIFO of lines. When full, each append evicts the
// oldest line. Appends and reads are serialized by a narrow mutex so readers
// never observe a partially written line.
type Buffer struct {
	mu    sync.Mutex
	lines []Line
	start int // index of the oldest line
	n     int
	total uint64
}

// New returns a buffer holding at most capacity lines.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{lines: make([]Line, capacity)}
}

// Cap returns the configured capacity.
func (b *Buffer) Cap() int { return len(b.lines) }

// Len returns the number of retained lines.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.n
}

// Total returns how many lines were ever appended, including evicted ones.
func (b *Buffer) Total() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

// Append adds a line, evicting exactly one oldest line when full.
func (b *Buffer) Append(l Line) {
	b.mu.Lock()
	c := len(b.lines)
	if b.n < c {
		b.lines[(b.start+b.n)%c] = l
		b.n++
	} else {
		b.lines[b.start] = l
		b.start = (b.start + 1) % c
	}
	b.total++
	b.mu.Unlock()
}

// Lines returns a copy of all retained lines, oldest first.
func (b *Buffer) Lines() []Line {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sliceLocked(0, b.n)
}

// Window returns up to height lines ending offset lines before the newest
// one. Offset 0 follows the tail; larger offsets scroll back in history.
// The offset is clamped so the window never starts before the oldest
// retained line or ends past the newest, and the clamped value is returned.
func (b *Buffer) Window(height, offset int) ([]Line, int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if height <= 0 || b.n == 0 {
		return nil, 0
	}
	offset = ClampOffset(offset, b.n, height)
	end := b.n - offset
	begin := end - height
	if begin < 0 {
		begin = 0
	}
	return b.sliceLocked(begin, end), offset
}

// ClampOffset bounds a scroll offset for a buffer of n lines shown in a
// window of the given height.
func ClampOffset(offset, n, height int) int {
	maxOffset := n - height
	if maxOffset < 0 {
		maxOffset = 0
	}
	if offset > maxOffset {
		return maxOffset
	}
	if offset < 0 {
		return 0
	}
	return offset
}

func (b *Buffer) sliceLocked(begin, end int) []Line {
	out := make([]Line, 0, end-begin)
	c := len(b.lines)
	for i := begin; i < end; i++ {
		out = append(out, b.lines[(b.start+i)%c])
	}
	return out
}
