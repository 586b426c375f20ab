package service

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	log "github.com/go-pkgz/lgr"

	"github.com/labfold/boltzweb/app/job"
)

// ErrTimeout returned when prediction process exceeded its run limit and was killed
var ErrTimeout = errors.New("prediction process timed out")

const maxLineSize = 1024 * 1024

// terminal and lifecycle texts of a job
const (
	msgStarting   = "Starting prediction..."
	msgNoGPU      = "Error: No GPU access detected. Ensure NVIDIA drivers and CUDA are installed."
	msgFailedFmt  = "Error: Prediction failed with return code %d"
	msgTimedOut   = "Error: Prediction process timed out"
	msgUnexpected = "Error: Unexpected error running prediction"
	msgSucceeded  = "Prediction completed successfully!"
	msgNoArtifact = "Prediction finished, but CIF file not found."
)

// Outcome of a single prediction run
type Outcome string

// run outcomes, also used as metrics labels
const (
	OutcomeSuccess       Outcome = "success"
	OutcomeMissing       Outcome = "missing"
	OutcomeFailed        Outcome = "failed"
	OutcomeTimeout       Outcome = "timeout"
	OutcomeNoAccelerator Outcome = "no_accelerator"
	OutcomeError         Outcome = "error"
)

// Launcher runs one prediction job from accelerator probe to terminal message.
// Everything observable about the run goes to the job's channel and log.
type Launcher struct {
	Binary     string        // boltz executable
	Prober     Prober        // accelerator precondition
	Layout     job.Layout    // artifact location
	Detector   *Detector     // artifact polling after zero exit
	MaxRuntime time.Duration // kill process tree after this, 0 for unlimited
	ExitDrain  time.Duration // force-close pipes held by orphans after exit
	TailLines  int           // stderr lines attached to failure record
	Mirror     *Mirror       // optional copy of raw output
}

type outLine struct {
	stream Stream
	text   string
	err    error
}

// Run executes the job and always leaves exactly one terminal message in the entry's channel.
// Never panics, failures are reported to the channel and the job log.
func (l *Launcher) Run(ctx context.Context, j job.Job, e *job.Entry) (res Outcome) {
	defer func() {
		if r := recover(); r != nil {
			e.Logger.Logf("[ERROR] unexpected failure running prediction %s: %v", j.ID, r)
			log.Printf("[WARN] prediction %s panicked: %v", j.ID, r)
			if !e.Channel.Terminated() {
				e.Channel.Append(job.NewFinal(job.KindError, msgUnexpected))
			}
			res = OutcomeError
		}
	}()

	e.Logger.Logf("[INFO] job %s, input %s, output %s, potentials %v", j.ID, j.InputPath, j.OutputDir, j.UsePotentials)

	details, err := l.Prober.Probe(ctx)
	if err != nil {
		e.Logger.Logf("[DEBUG] accelerator probe failed: %v %s", err, details)
		l.publish(e, "ERROR", job.NewFinal(job.KindError, msgNoGPU))
		return OutcomeNoAccelerator
	}
	if details != "" {
		e.Logger.Logf("[DEBUG] accelerator: %s", details)
	}

	tail, err := l.execute(ctx, j, e)
	if err != nil {
		return l.failed(e, err, tail)
	}
	e.Logger.Logf("[INFO] prediction process exited with code 0")

	path := l.Layout.ArtifactPath(j.ID)
	detector := l.Detector
	if detector == nil {
		detector = NewDetector(1, 0)
	}
	if detector.Wait(ctx, path) == ArtifactFound {
		l.publish(e, "INFO", job.NewMessage(job.KindLifecycle, msgSucceeded))
		l.publish(e, "INFO", job.DownloadReady(j.ID))
		return OutcomeSuccess
	}
	e.Logger.Logf("[WARN] structure %s not found after %d attempts", path, detector.Attempts)
	l.publish(e, "WARN", job.NewFinal(job.KindInfo, msgNoArtifact))
	return OutcomeMissing
}

// execute spawns boltz and streams both outputs until the process exits and all its output is consumed
func (l *Launcher) execute(ctx context.Context, j job.Job, e *job.Entry) (*Tail, error) {
	tail := NewTail(l.TailLines)
	args := CommandLine(l.Binary, j)

	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if l.MaxRuntime > 0 {
		runCtx, cancel = context.WithTimeout(ctx, l.MaxRuntime)
	}
	defer cancel()

	cmd := exec.CommandContext(runCtx, args[0], args[1:]...) //nolint:gosec // binary is operator configured, args are generated
	cmd.Cancel = func() error { return killTree(cmd.Process) }
	cmd.WaitDelay = l.ExitDrain
	outR, outW := io.Pipe()
	errR, errW := io.Pipe()
	cmd.Stdout, cmd.Stderr = outW, errW

	e.Logger.Logf("[INFO] run %s", strings.Join(args, " "))
	if err := cmd.Start(); err != nil {
		_ = outW.Close()
		_ = errW.Close()
		return tail, fmt.Errorf("failed to start %s: %w", l.Binary, err)
	}
	l.publish(e, "INFO", job.NewMessage(job.KindLifecycle, msgStarting))

	lines := make(chan outLine)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); scanLines(outR, Stdout, lines) }()
	go func() { defer wg.Done(); scanLines(errR, Stderr, lines) }()

	waitErr := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		_ = outW.Close()
		_ = errW.Close()
		waitErr <- err
	}()
	go func() { wg.Wait(); close(lines) }()

	for ln := range lines {
		l.handleLine(j, e, ln, tail)
	}

	err := <-waitErr
	if errors.Is(err, exec.ErrWaitDelay) {
		e.Logger.Logf("[WARN] output pipes still open %v after exit, closed", l.ExitDrain)
		err = nil
	}
	if err == nil {
		return tail, nil
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return tail, fmt.Errorf("%w after %v: %w", ErrTimeout, l.MaxRuntime, err)
	}
	if ctx.Err() != nil {
		return tail, fmt.Errorf("prediction interrupted: %w", ctx.Err())
	}
	return tail, err
}

// failed reports non-successful execution to the channel, details go to the job log only
func (l *Launcher) failed(e *job.Entry, err error, tail *Tail) Outcome {
	stderr := tail.String()
	if stderr != "" {
		stderr = ", last stderr lines:\n" + stderr
	}

	var exitErr *exec.ExitError
	switch {
	case errors.Is(err, ErrTimeout):
		e.Logger.Logf("[DEBUG] %v%s", err, stderr)
		l.publish(e, "ERROR", job.NewFinal(job.KindError, msgTimedOut))
		return OutcomeTimeout
	case errors.As(err, &exitErr):
		e.Logger.Logf("[DEBUG] %v%s", err, stderr)
		l.publish(e, "ERROR", job.NewFinal(job.KindError, fmt.Sprintf(msgFailedFmt, exitErr.ExitCode())))
		return OutcomeFailed
	default:
		e.Logger.Logf("[ERROR] unexpected error running prediction: %v%s", err, stderr)
		e.Channel.Append(job.NewFinal(job.KindError, msgUnexpected))
		return OutcomeError
	}
}

func (l *Launcher) handleLine(j job.Job, e *job.Entry, ln outLine, tail *Tail) {
	if ln.err != nil {
		e.Logger.Logf("[WARN] can't read %s, rest of it dropped: %v", ln.stream, ln.err)
		return
	}
	text := strings.TrimSpace(ln.text)
	if text == "" {
		return
	}
	if err := l.Mirror.Line(j.ID, ln.stream, text); err != nil {
		log.Printf("[WARN] %v", err)
	}
	if ln.stream == Stderr {
		tail.Add(text)
	}

	for i, m := range Classify(ln.stream, text) {
		switch {
		case m.Kind == job.KindError:
			l.publish(e, "ERROR", m)
		case m.Kind == job.KindInfo:
			l.publish(e, "INFO", m)
		case i == 0:
			l.publish(e, "DEBUG", m) // raw stdout line
		default:
			l.publish(e, "INFO", m)
		}
	}
}

// publish appends message to the channel and records it in the job log with the given level
func (l *Launcher) publish(e *job.Entry, level string, m job.Message) {
	e.Channel.Append(m)
	switch level {
	case "ERROR":
		e.Logger.Logf("[ERROR] %s", m.Text)
	case "WARN":
		e.Logger.Logf("[WARN] %s", m.Text)
	case "DEBUG":
		e.Logger.Logf("[DEBUG] %s", m.Text)
	default:
		e.Logger.Logf("[INFO] %s", m.Text)
	}
}

// scanLines sends lines of r to out until EOF. On read failure the error is sent
// and the rest of r discarded, so the writer side never blocks.
func scanLines(r io.Reader, stream Stream, out chan<- outLine) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	scanner.Split(splitLines)
	for scanner.Scan() {
		out <- outLine{stream: stream, text: scanner.Text()}
	}
	if err := scanner.Err(); err != nil {
		out <- outLine{stream: stream, err: err}
		_, _ = io.Copy(io.Discard, r)
	}
}

// splitLines is bufio.SplitFunc breaking on both \n and \r, progress bars redraw with bare \r
func splitLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
