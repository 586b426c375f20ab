package service

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

//go:generate moq -out mocks/prober.go -pkg mocks -skip-ensure -fmt goimports . Prober

// ErrNoAccelerator returned by probes when no GPU is reachable
var ErrNoAccelerator = errors.New("no accelerator access detected")

// Prober checks the hardware precondition of a prediction run
type Prober interface {
	Probe(ctx context.Context) (details string, err error)
}

// ProberFunc is an adapter to allow the use of ordinary functions as Prober
type ProberFunc func(ctx context.Context) (string, error)

// Probe calls f(ctx)
func (f ProberFunc) Probe(ctx context.Context) (string, error) {
	return f(ctx)
}

// CommandProbe runs an external command, like `nvidia-smi -L`, and treats zero exit as accelerator available
type CommandProbe struct {
	Command []string
	Timeout time.Duration
}

// Probe runs the probe command bounded by the probe timeout
func (p CommandProbe) Probe(ctx context.Context) (string, error) {
	if len(p.Command) == 0 {
		return "", fmt.Errorf("%w: probe command not set", ErrNoAccelerator)
	}
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	out, err := exec.CommandContext(ctx, p.Command[0], p.Command[1:]...).CombinedOutput() //nolint:gosec // operator configured
	details := strings.TrimSpace(string(out))
	if ctx.Err() != nil {
		return details, fmt.Errorf("%w: %s timed out: %v", ErrNoAccelerator, p.Command[0], ctx.Err())
	}
	if err != nil {
		return details, fmt.Errorf("%w: %s failed: %v", ErrNoAccelerator, p.Command[0], err)
	}
	return details, nil
}
