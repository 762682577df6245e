package transport

import "sync"

// stderrRing keeps the last N diagnostic lines from the child so exit
// failures can quote recent stderr without unbounded buffering.
type stderrRing struct {
	mu       sync.Mutex
	maxLines int
	lines    []string
}

func newStderrRing(maxLines int) *stderrRing {
	if maxLines <= 0 {
		maxLines = 100
	}
	return &stderrRing{maxLines: maxLines}
}

func (r *stderrRing) append(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lines = append(r.lines, line)
	if len(r.lines) > r.maxLines {
		r.lines = r.lines[len(r.lines)-r.maxLines:]
	}
}

// snapshot returns a copy of the buffered lines.
func (r *stderrRing) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}
