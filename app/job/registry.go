package job

import (
	"errors"
	"sync"
)

// Entry is the per-job state shared by the launcher and status polls
type Entry struct {
	Channel *Channel
	Logger  *Logger
}

// Registry maps job ids to their entries. Entries are created on first access and
// live until the process exits or the job's files are removed.
type Registry struct {
	logPath func(id string) string

	mu      sync.Mutex
	entries map[string]*Entry
}

// NewRegistry makes empty registry, logPath resolves job log location for a job id
func NewRegistry(logPath func(id string) string) *Registry {
	return &Registry{logPath: logPath, entries: make(map[string]*Entry)}
}

// Get returns entry for id, creating it on the first call. All calls for the same id return the same entry.
func (r *Registry) Get(id string) *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		return e
	}
	e := &Entry{Channel: &Channel{}, Logger: NewLogger(r.logPath(id))}
	r.entries[id] = e
	return e
}

// Lookup returns existing entry without creating one
func (r *Registry) Lookup(id string) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	return e, ok
}

// Remove drops the entry and closes its log. Used when job files are deleted.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	e, ok := r.entries[id]
	delete(r.entries, id)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return e.Logger.Close()
}

// Len returns number of registered jobs
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close closes all job logs, entries stay registered
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for _, e := range r.entries {
		if err := e.Logger.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
