package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-pkgz/repeater"
	"github.com/go-pkgz/repeater/strategy"
)

// Artifact is the result of completion detection
type Artifact int

// detection results
const (
	ArtifactFound Artifact = iota
	ArtifactTimedOut
)

func (a Artifact) String() string {
	if a == ArtifactFound {
		return "found"
	}
	return "timed out"
}

// Detector polls for the artifact a finished process is expected to leave behind.
// Boltz may flush the structure file shortly after its process exits, so a single stat is not enough.
type Detector struct {
	Attempts int
	Interval time.Duration

	stat func(name string) (os.FileInfo, error)
}

// NewDetector makes detector checking up to attempts times, interval apart
func NewDetector(attempts int, interval time.Duration) *Detector {
	if attempts <= 0 {
		attempts = 1
	}
	return &Detector{Attempts: attempts, Interval: interval, stat: os.Stat}
}

// Wait blocks until the file at path exists or all attempts are used.
// Canceled context is reported as timed out.
func (d *Detector) Wait(ctx context.Context, path string) Artifact {
	stat := d.stat
	if stat == nil {
		stat = os.Stat
	}
	rptr := repeater.New(&strategy.FixedDelay{Repeats: d.Attempts, Delay: d.Interval})
	err := rptr.Do(ctx, func() error {
		fi, err := stat(path)
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return fmt.Errorf("%s is a directory", path)
		}
		return nil
	})
	if err != nil {
		return ArtifactTimedOut
	}
	return ArtifactFound
}
