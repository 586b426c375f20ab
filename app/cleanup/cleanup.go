// Package cleanup removes files of old prediction jobs on a cron schedule
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/robfig/cron/v3"

	"github.com/labfold/boltzweb/app/job"
)

// Tracker gives access to jobs known to the running process
type Tracker interface {
	Lookup(id string) (*job.Entry, bool)
	Remove(id string) error
}

// Cleaner removes output directories and inputs of jobs older than retention.
// Jobs still running in this process are never touched.
type Cleaner struct {
	Layout    job.Layout
	Registry  Tracker
	Retention time.Duration
}

// Run sweeps on schedule (standard 5-field cron spec or descriptor like @hourly) until ctx canceled
func (c *Cleaner) Run(ctx context.Context, schedule string) error {
	if c.Retention <= 0 {
		return errors.New("retention period not set")
	}
	cr := cron.New()
	if _, err := cr.AddFunc(schedule, func() {
		ids, err := c.Sweep(time.Now())
		if err != nil {
			log.Printf("[WARN] cleanup failed, %v", err)
		}
		if len(ids) > 0 {
			log.Printf("[INFO] removed %d jobs older than %v", len(ids), c.Retention)
		}
	}); err != nil {
		return fmt.Errorf("can't schedule cleanup %q: %w", schedule, err)
	}
	log.Printf("[INFO] cleanup scheduled %q, retention %v", schedule, c.Retention)
	cr.Start()
	<-ctx.Done()
	<-cr.Stop().Done()
	return ctx.Err()
}

// Sweep removes jobs which directories were last modified before now minus retention.
// Returns ids of removed jobs.
func (c *Cleaner) Sweep(now time.Time) ([]string, error) {
	dirs, err := os.ReadDir(c.Layout.OutputDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("can't read %s: %w", c.Layout.OutputDir, err)
	}

	threshold := now.Add(-c.Retention)
	var removed []string
	var errs []error
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		id, ok := c.Layout.IDFromJobDir(d.Name())
		if !ok {
			continue
		}
		info, err := d.Info()
		if err != nil || !info.ModTime().Before(threshold) {
			continue
		}
		if e, ok := c.Registry.Lookup(id); ok && !e.Channel.Terminated() {
			log.Printf("[DEBUG] skip cleanup of %s, still running", id)
			continue
		}
		if err := c.remove(id); err != nil {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, id)
	}
	return removed, errors.Join(errs...)
}

func (c *Cleaner) remove(id string) error {
	if err := c.Registry.Remove(id); err != nil {
		log.Printf("[WARN] can't close log of %s, %v", id, err)
	}
	if err := os.RemoveAll(c.Layout.JobDir(id)); err != nil {
		return fmt.Errorf("can't remove output of %s: %w", id, err)
	}
	if err := os.Remove(c.Layout.InputPath(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("can't remove input of %s: %w", id, err)
	}
	log.Printf("[DEBUG] removed job %s", id)
	return nil
}
