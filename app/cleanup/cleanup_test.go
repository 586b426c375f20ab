package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labfold/boltzweb/app/job"
)

func prepJob(t *testing.T, layout job.Layout, id string, age time.Duration) {
	t.Helper()
	require.NoError(t, os.MkdirAll(layout.JobDir(id), 0o750))
	require.NoError(t, os.MkdirAll(layout.InputDir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(layout.JobDir(id), "args.txt"), []byte("predict"), 0o600))
	require.NoError(t, os.WriteFile(layout.InputPath(id), []byte(">A|protein\nMKT\n"), 0o600))
	ts := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(layout.JobDir(id), ts, ts))
}

func TestCleaner_Sweep(t *testing.T) {
	tmp := t.TempDir()
	layout := job.Layout{InputDir: filepath.Join(tmp, "inputs"), OutputDir: filepath.Join(tmp, "outputs")}
	reg := job.NewRegistry(layout.LogPath)
	defer reg.Close()

	prepJob(t, layout, "old", 48*time.Hour)
	prepJob(t, layout, "fresh", time.Hour)
	prepJob(t, layout, "running", 48*time.Hour)
	prepJob(t, layout, "done", 48*time.Hour)
	require.NoError(t, os.MkdirAll(filepath.Join(layout.OutputDir, "misc"), 0o750))

	reg.Get("running").Channel.Append(job.NewMessage(job.KindLifecycle, "Starting prediction..."))
	reg.Get("done").Channel.Append(job.DownloadReady("done"))

	c := Cleaner{Layout: layout, Registry: reg, Retention: 24 * time.Hour}
	removed, err := c.Sweep(time.Now())
	require.NoError(t, err)
	sort.Strings(removed)
	assert.Equal(t, []string{"done", "old"}, removed)

	for _, id := range []string{"old", "done"} {
		assert.NoDirExists(t, layout.JobDir(id))
		assert.NoFileExists(t, layout.InputPath(id))
	}
	for _, id := range []string{"fresh", "running"} {
		assert.DirExists(t, layout.JobDir(id))
		assert.FileExists(t, layout.InputPath(id))
	}
	assert.DirExists(t, filepath.Join(layout.OutputDir, "misc"))

	_, ok := reg.Lookup("done")
	assert.False(t, ok, "removed job dropped from registry")
	_, ok = reg.Lookup("running")
	assert.True(t, ok)
}

func TestCleaner_SweepNoOutputDir(t *testing.T) {
	tmp := t.TempDir()
	layout := job.Layout{InputDir: filepath.Join(tmp, "inputs"), OutputDir: filepath.Join(tmp, "outputs")}
	c := Cleaner{Layout: layout, Registry: job.NewRegistry(layout.LogPath), Retention: time.Hour}
	removed, err := c.Sweep(time.Now())
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestCleaner_Run(t *testing.T) {
	tmp := t.TempDir()
	layout := job.Layout{InputDir: filepath.Join(tmp, "inputs"), OutputDir: filepath.Join(tmp, "outputs")}
	prepJob(t, layout, "old", 2*time.Hour)
	c := Cleaner{Layout: layout, Registry: job.NewRegistry(layout.LogPath), Retention: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, "@every 1s") }()

	require.Eventually(t, func() bool {
		_, err := os.Stat(layout.JobDir("old"))
		return os.IsNotExist(err)
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("cleaner not stopped")
	}
}

func TestCleaner_RunErrors(t *testing.T) {
	c := Cleaner{Layout: job.Layout{OutputDir: t.TempDir()}, Registry: job.NewRegistry(func(string) string { return "" })}
	require.Error(t, c.Run(context.Background(), "@hourly"), "retention not set")

	c.Retention = time.Hour
	err := c.Run(context.Background(), "not a schedule")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "can't schedule cleanup")
}
