// Package service runs prediction jobs. Service accepts submissions and starts each job in its own
// goroutine, Launcher drives a single boltz run and reports everything it sees to the job's channel.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/syncs"
	"github.com/google/uuid"

	"github.com/labfold/boltzweb/app/fasta"
	"github.com/labfold/boltzweb/app/job"
)

//go:generate moq -out mocks/runner.go -pkg mocks -skip-ensure -fmt goimports . Runner

const msgInitializing = "Initializing prediction..."

// ErrNoSequences returned on submission without sequences
var ErrNoSequences = errors.New("no sequences provided")

// Runner executes a single job, implemented by Launcher
type Runner interface {
	Run(ctx context.Context, j job.Job, e *job.Entry) Outcome
}

// Params to make Service
type Params struct {
	Runner   Runner
	Registry *job.Registry
	Layout   job.Layout
	Metrics  *Metrics      // optional
	MaxJobs  int           // concurrent runs, default 4
	NewID    func() string // job id generator, default uuid
}

// Service accepts prediction jobs and answers status polls
type Service struct {
	Params
	ctx   context.Context
	group *syncs.SizedGroup
}

// SubmitRequest is a validated prediction request
type SubmitRequest struct {
	Sequences     []fasta.Sequence
	UsePotentials bool
}

// Poll is a result of a status poll
type Poll struct {
	Messages []job.Message
	Finished bool // terminal message delivered by this or an earlier poll
}

// NewService makes service running jobs with ctx, canceling ctx interrupts running predictions
func NewService(ctx context.Context, p Params) *Service {
	if p.MaxJobs <= 0 {
		p.MaxJobs = 4
	}
	if p.NewID == nil {
		p.NewID = uuid.NewString
	}
	return &Service{Params: p, ctx: ctx, group: syncs.NewSizedGroup(p.MaxJobs)}
}

// Submit writes job input, registers the job and starts it in background.
// Returns as soon as the job is queued, the job's first message is "Initializing prediction...".
func (s *Service) Submit(_ context.Context, req SubmitRequest) (job.Job, error) {
	if len(req.Sequences) == 0 {
		return job.Job{}, ErrNoSequences
	}
	if len(req.Sequences) > fasta.MaxSequences {
		return job.Job{}, fmt.Errorf("%w: %d, max %d supported", fasta.ErrTooManySequences, len(req.Sequences), fasta.MaxSequences)
	}
	id := s.NewID()
	if !job.ValidID(id) {
		return job.Job{}, fmt.Errorf("invalid job id %q", id)
	}
	j := job.Job{
		ID:            id,
		InputPath:     s.Layout.InputPath(id),
		OutputDir:     s.Layout.JobDir(id),
		CreatedAt:     time.Now(),
		UsePotentials: req.UsePotentials,
	}

	for _, dir := range []string{j.OutputDir, filepath.Dir(j.InputPath)} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return job.Job{}, fmt.Errorf("can't make directory for %s: %w", id, err)
		}
	}
	if err := fasta.WriteFile(j.InputPath, req.Sequences); err != nil {
		return job.Job{}, fmt.Errorf("can't write input for %s: %w", id, err)
	}

	e := s.Registry.Get(id)
	e.Channel.Append(job.NewMessage(job.KindLifecycle, msgInitializing))
	e.Logger.Logf("[INFO] %s %d sequences", msgInitializing, len(req.Sequences))
	s.Metrics.JobSubmitted()
	log.Printf("[INFO] job %s submitted, %d sequences, potentials %v", id, len(req.Sequences), req.UsePotentials)

	s.group.Go(func(context.Context) {
		if err := s.ctx.Err(); err != nil {
			// interrupted while queued, never started
			e.Logger.Logf("[ERROR] prediction interrupted before start: %v", err)
			e.Channel.Append(job.NewFinal(job.KindError, msgUnexpected))
			s.Metrics.JobSkipped(OutcomeError)
			log.Printf("[WARN] job %s interrupted before start", id)
			return
		}
		st := time.Now()
		s.Metrics.JobStarted()
		res := s.Runner.Run(s.ctx, j, e)
		s.Metrics.JobFinished(res, time.Since(st).Seconds())
		log.Printf("[INFO] job %s finished, %s in %v", id, res, time.Since(st).Truncate(time.Millisecond))
	})
	return j, nil
}

// Poll drains pending messages of the job. Returns false for unknown job.
func (s *Service) Poll(id string) (Poll, bool) {
	e, ok := s.Registry.Lookup(id)
	if !ok {
		return Poll{}, false
	}
	msgs := e.Channel.Drain()
	return Poll{Messages: msgs, Finished: e.Channel.Delivered()}, true
}

// Wait blocks until all submitted jobs are finished
func (s *Service) Wait() {
	s.group.Wait()
}
