package service

import (
	"fmt"
	"io"
	"sync"
)

const mirrorIDMaxLen = 8
const mirrorCutSuffix = "..."

// Mirror copies raw subprocess lines to a shared writer, each line prefixed with its job id,
// like `{1b4e28ba...} stderr: Predicting DataLoader 0`. Lines from different jobs never interleave.
type Mirror struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewMirror makes mirror writing to w
func NewMirror(w io.Writer) *Mirror {
	return &Mirror{writer: w}
}

// Line writes a single prefixed line
func (m *Mirror) Line(id string, stream Stream, line string) error {
	if m == nil || m.writer == nil {
		return nil
	}
	buf := make([]byte, 0, len(id)+len(line)+16)
	buf = append(buf, m.prefix(id)...)
	buf = append(buf, stream.String()...)
	buf = append(buf, ": "...)
	buf = append(buf, line...)
	buf = append(buf, '\n')

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.writer.Write(buf); err != nil {
		return fmt.Errorf("failed to mirror output of %s: %w", id, err)
	}
	return nil
}

func (m *Mirror) prefix(id string) string {
	if len(id) > mirrorIDMaxLen {
		id = id[:mirrorIDMaxLen] + mirrorCutSuffix
	}
	return fmt.Sprintf("{%s} ", id)
}
