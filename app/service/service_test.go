package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labfold/boltzweb/app/fasta"
	"github.com/labfold/boltzweb/app/job"
	"github.com/labfold/boltzweb/app/service"
	"github.com/labfold/boltzweb/app/service/mocks"
)

func newParams(t *testing.T, runner service.Runner) service.Params {
	t.Helper()
	tmp := t.TempDir()
	layout := job.Layout{InputDir: filepath.Join(tmp, "inputs"), OutputDir: filepath.Join(tmp, "outputs")}
	reg := job.NewRegistry(layout.LogPath)
	t.Cleanup(func() { _ = reg.Close() })
	return service.Params{Runner: runner, Registry: reg, Layout: layout}
}

func finishing(text string) *mocks.RunnerMock {
	return &mocks.RunnerMock{RunFunc: func(_ context.Context, j job.Job, e *job.Entry) service.Outcome {
		e.Channel.Append(job.NewMessage(job.KindLifecycle, "Starting prediction..."))
		e.Channel.Append(job.NewFinal(job.KindDownloadReady, text+j.ID))
		return service.OutcomeSuccess
	}}
}

var protein = []fasta.Sequence{{Type: fasta.Protein, Data: "MKT"}, {Type: fasta.SMILES, Data: "CCO"}}

func TestService_Submit(t *testing.T) {
	runner := finishing("download_ready:")
	p := newParams(t, runner)
	p.NewID = func() string { return "job1" }
	svc := service.NewService(context.Background(), p)

	j, err := svc.Submit(context.Background(), service.SubmitRequest{Sequences: protein, UsePotentials: true})
	require.NoError(t, err)
	svc.Wait()

	assert.Equal(t, "job1", j.ID)
	assert.True(t, j.UsePotentials)
	assert.Equal(t, p.Layout.InputPath("job1"), j.InputPath)
	assert.Equal(t, p.Layout.JobDir("job1"), j.OutputDir)
	assert.DirExists(t, j.OutputDir)

	data, err := os.ReadFile(j.InputPath)
	require.NoError(t, err)
	assert.Equal(t, ">A|protein\nMKT\n>B|smiles\nCCO\n", string(data))

	require.Len(t, runner.RunCalls(), 1)
	assert.Equal(t, j, runner.RunCalls()[0].J)

	poll, ok := svc.Poll("job1")
	require.True(t, ok)
	assert.Equal(t, []string{"Initializing prediction...", "Starting prediction...", "download_ready:job1"}, texts(poll.Messages))
	assert.True(t, poll.Finished)

	poll, ok = svc.Poll("job1")
	require.True(t, ok)
	assert.Empty(t, poll.Messages, "drained messages are gone")
	assert.NotNil(t, poll.Messages)
	assert.True(t, poll.Finished)
}

func TestService_SubmitDoesNotWaitForJob(t *testing.T) {
	release := make(chan struct{})
	runner := &mocks.RunnerMock{RunFunc: func(_ context.Context, _ job.Job, e *job.Entry) service.Outcome {
		<-release
		e.Channel.Append(job.NewFinal(job.KindError, "Error: Prediction failed with return code 1"))
		return service.OutcomeFailed
	}}
	svc := service.NewService(context.Background(), newParams(t, runner))

	st := time.Now()
	j, err := svc.Submit(context.Background(), service.SubmitRequest{Sequences: protein})
	require.NoError(t, err)
	assert.Less(t, time.Since(st), time.Second)

	poll, ok := svc.Poll(j.ID)
	require.True(t, ok)
	assert.Equal(t, []string{"Initializing prediction..."}, texts(poll.Messages))
	assert.False(t, poll.Finished)

	close(release)
	svc.Wait()
	poll, _ = svc.Poll(j.ID)
	assert.Equal(t, []string{"Error: Prediction failed with return code 1"}, texts(poll.Messages))
	assert.True(t, poll.Finished)
}

func TestService_PollUnknown(t *testing.T) {
	p := newParams(t, finishing(""))
	svc := service.NewService(context.Background(), p)
	_, ok := svc.Poll("nope")
	assert.False(t, ok)
	assert.Equal(t, 0, p.Registry.Len(), "poll does not register jobs")
}

func TestService_SubmitErrors(t *testing.T) {
	runner := finishing("")
	p := newParams(t, runner)
	svc := service.NewService(context.Background(), p)

	_, err := svc.Submit(context.Background(), service.SubmitRequest{})
	require.ErrorIs(t, err, service.ErrNoSequences)

	many := make([]fasta.Sequence, 27)
	for i := range many {
		many[i] = fasta.Sequence{Type: fasta.DNA, Data: "ATCG"}
	}
	_, err = svc.Submit(context.Background(), service.SubmitRequest{Sequences: many})
	require.ErrorIs(t, err, fasta.ErrTooManySequences)

	p.NewID = func() string { return "../etc" }
	svc = service.NewService(context.Background(), p)
	_, err = svc.Submit(context.Background(), service.SubmitRequest{Sequences: protein})
	require.Error(t, err)

	svc.Wait()
	assert.Empty(t, runner.RunCalls())
	assert.Equal(t, 0, p.Registry.Len())
}

func TestService_MaxJobs(t *testing.T) {
	var active, peak int32
	var mu sync.Mutex
	runner := &mocks.RunnerMock{RunFunc: func(_ context.Context, _ job.Job, e *job.Entry) service.Outcome {
		n := atomic.AddInt32(&active, 1)
		mu.Lock()
		if n > peak {
			peak = n
		}
		mu.Unlock()
		time.Sleep(50 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		e.Channel.Append(job.NewFinal(job.KindInfo, "Prediction finished, but CIF file not found."))
		return service.OutcomeMissing
	}}
	p := newParams(t, runner)
	p.MaxJobs = 2
	svc := service.NewService(context.Background(), p)

	ids := map[string]bool{}
	for range 6 {
		j, err := svc.Submit(context.Background(), service.SubmitRequest{Sequences: protein})
		require.NoError(t, err)
		ids[j.ID] = true
	}
	svc.Wait()

	assert.Len(t, ids, 6, "ids are unique")
	assert.Len(t, runner.RunCalls(), 6)
	assert.LessOrEqual(t, peak, int32(2))
	for id := range ids {
		poll, ok := svc.Poll(id)
		require.True(t, ok)
		assert.True(t, poll.Finished)
	}
}

func TestService_ProbeFailure(t *testing.T) {
	prober := &mocks.ProberMock{ProbeFunc: func(context.Context) (string, error) {
		return "", errors.New("nvidia-smi exited with 9")
	}}
	spawned := filepath.Join(t.TempDir(), "spawned")
	binary := filepath.Join(t.TempDir(), "boltz")
	require.NoError(t, os.WriteFile(binary, []byte("#!/bin/sh\ntouch "+spawned+"\n"), 0o700)) //nolint:gosec // test executable

	p := newParams(t, nil)
	p.Runner = &service.Launcher{Binary: binary, Prober: prober, Layout: p.Layout, Detector: service.NewDetector(3, time.Millisecond)}
	svc := service.NewService(context.Background(), p)

	j, err := svc.Submit(context.Background(), service.SubmitRequest{Sequences: protein})
	require.NoError(t, err)

	var got []job.Message
	require.Eventually(t, func() bool {
		poll, ok := svc.Poll(j.ID)
		if !ok {
			return false
		}
		got = append(got, poll.Messages...)
		return poll.Finished
	}, 5*time.Second, 10*time.Millisecond)
	svc.Wait()

	require.Len(t, got, 2)
	assert.Equal(t, "Initializing prediction...", got[0].Text)
	assert.Equal(t, job.KindError, got[1].Kind)
	assert.Equal(t, "Error: No GPU access detected. Ensure NVIDIA drivers and CUDA are installed.", got[1].Text)
	assert.Len(t, prober.ProbeCalls(), 1)
	assert.NoFileExists(t, spawned)

	e, ok := p.Registry.Lookup(j.ID)
	require.True(t, ok)
	require.NoError(t, e.Logger.Close())
	logData, err := os.ReadFile(p.Layout.LogPath(j.ID))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(logData), "ERROR"))
}

func TestService_Metrics(t *testing.T) {
	p := newParams(t, finishing("download_ready:"))
	p.Metrics = service.NewMetrics()
	svc := service.NewService(context.Background(), p)

	for range 2 {
		_, err := svc.Submit(context.Background(), service.SubmitRequest{Sequences: protein})
		require.NoError(t, err)
	}
	svc.Wait()

	expected := `
# HELP boltzweb_jobs_finished_total Number of finished prediction jobs by outcome.
# TYPE boltzweb_jobs_finished_total counter
boltzweb_jobs_finished_total{outcome="success"} 2
# HELP boltzweb_jobs_running Number of prediction processes currently running.
# TYPE boltzweb_jobs_running gauge
boltzweb_jobs_running 0
# HELP boltzweb_jobs_submitted_total Number of accepted prediction jobs.
# TYPE boltzweb_jobs_submitted_total counter
boltzweb_jobs_submitted_total 2
`
	require.NoError(t, testutil.GatherAndCompare(p.Metrics.Registry, strings.NewReader(expected),
		"boltzweb_jobs_submitted_total", "boltzweb_jobs_running", "boltzweb_jobs_finished_total"))
}

func TestService_InterruptedWhileQueued(t *testing.T) {
	started, release := make(chan struct{}), make(chan struct{})
	runner := &mocks.RunnerMock{RunFunc: func(_ context.Context, _ job.Job, e *job.Entry) service.Outcome {
		close(started)
		<-release
		e.Channel.Append(job.NewFinal(job.KindError, "Error: Unexpected error running prediction"))
		return service.OutcomeError
	}}
	p := newParams(t, runner)
	p.MaxJobs = 1
	p.Metrics = service.NewMetrics()
	ids := []string{"running", "queued"}
	var n atomic.Int32
	p.NewID = func() string { return ids[n.Add(1)-1] }
	ctx, cancel := context.WithCancel(context.Background())
	svc := service.NewService(ctx, p)

	_, err := svc.Submit(context.Background(), service.SubmitRequest{Sequences: protein})
	require.NoError(t, err)
	<-started
	_, err = svc.Submit(context.Background(), service.SubmitRequest{Sequences: protein})
	require.NoError(t, err)

	cancel()
	close(release)
	svc.Wait()

	require.Len(t, runner.RunCalls(), 1, "queued job never runs after interrupt")
	poll, ok := svc.Poll("queued")
	require.True(t, ok)
	assert.Equal(t, []string{"Initializing prediction...", "Error: Unexpected error running prediction"}, texts(poll.Messages))
	assert.True(t, poll.Finished)
	assert.NotContains(t, texts(poll.Messages), "Error: No GPU access detected. Ensure NVIDIA drivers and CUDA are installed.")

	expected := `
# HELP boltzweb_jobs_finished_total Number of finished prediction jobs by outcome.
# TYPE boltzweb_jobs_finished_total counter
boltzweb_jobs_finished_total{outcome="error"} 2
# HELP boltzweb_jobs_running Number of prediction processes currently running.
# TYPE boltzweb_jobs_running gauge
boltzweb_jobs_running 0
`
	require.NoError(t, testutil.GatherAndCompare(p.Metrics.Registry, strings.NewReader(expected),
		"boltzweb_jobs_running", "boltzweb_jobs_finished_total"))
}

func texts(msgs []job.Message) []string {
	res := make([]string, 0, len(msgs))
	for _, m := range msgs {
		res = append(res, m.Text)
	}
	return res
}
