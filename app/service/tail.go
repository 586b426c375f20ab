package service

import (
	"strings"
	"sync"
)

// Tail keeps the last N lines added to it, used to attach recent stderr output to failure records.
// Thread safe.
type Tail struct {
	max   int
	lines []string
	mu    sync.Mutex
}

// NewTail makes tail limited to last max lines, zero disables capture
func NewTail(maximum int) *Tail {
	return &Tail{max: maximum}
}

// Add appends a line, dropping the oldest one when the limit is reached. Blank lines are ignored.
func (t *Tail) Add(line string) {
	if t.max <= 0 {
		return
	}
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.lines) >= t.max {
		t.lines = t.lines[1:]
	}
	t.lines = append(t.lines, line)
}

// Lines returns a copy of captured lines, oldest first
func (t *Tail) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	res := make([]string, len(t.lines))
	copy(res, t.lines)
	return res
}

// String returns captured lines joined with new lines
func (t *Tail) String() string {
	return strings.Join(t.Lines(), "\n")
}
