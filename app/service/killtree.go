package service

import (
	"errors"
	"fmt"
	"os"

	log "github.com/go-pkgz/lgr"
	"github.com/shirou/gopsutil/v4/process"
)

// killTree kills the process and all its descendants, children first.
// Boltz forks data loader workers which otherwise keep running and hold the output pipes.
func killTree(p *os.Process) error {
	if p == nil {
		return nil
	}
	root, err := process.NewProcess(int32(p.Pid)) //nolint:gosec // pid fits int32
	if err != nil {
		// already gone, let exec report it
		return os.ErrProcessDone
	}

	var errs []error
	for _, c := range descendants(root) {
		if err := c.Kill(); err != nil {
			log.Printf("[DEBUG] can't kill child process %d: %v", c.Pid, err)
		}
	}
	if err := p.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		errs = append(errs, fmt.Errorf("failed to kill process %d: %w", p.Pid, err))
	}
	return errors.Join(errs...)
}

// descendants returns all child processes of p, deepest first
func descendants(p *process.Process) []*process.Process {
	children, err := p.Children()
	if err != nil {
		return nil
	}
	var res []*process.Process
	for _, c := range children {
		res = append(res, descendants(c)...)
		res = append(res, c)
	}
	return res
}
