package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/umputun/go-flags"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/labfold/boltzweb/app/cleanup"
	"github.com/labfold/boltzweb/app/job"
	"github.com/labfold/boltzweb/app/service"
	"github.com/labfold/boltzweb/app/web"
)

var opts struct {
	Listen       string        `short:"l" long:"listen" env:"BOLTZWEB_LISTEN" default:":8009" description:"web server listen address"`
	InputDir     string        `long:"input-dir" env:"BOLTZWEB_INPUT_DIR" default:"inputs" description:"generated FASTA inputs location"`
	OutputDir    string        `long:"output-dir" env:"BOLTZWEB_OUTPUT_DIR" default:"outputs" description:"prediction outputs location"`
	ShutdownWait time.Duration `long:"shutdown-wait" env:"BOLTZWEB_SHUTDOWN_WAIT" default:"0s" description:"max wait for running predictions on shutdown, 0 to wait for all"`
	Dbg          bool          `long:"dbg" env:"BOLTZWEB_DEBUG" description:"debug mode"`

	Boltz struct {
		Binary     string        `long:"binary" env:"BINARY" default:"boltz" description:"boltz executable"`
		MaxJobs    int           `long:"max-jobs" env:"MAX_JOBS" default:"4" description:"max concurrent predictions"`
		MaxRuntime time.Duration `long:"max-runtime" env:"MAX_RUNTIME" default:"6h" description:"kill prediction running longer, 0 for unlimited"`
		ExitDrain  time.Duration `long:"exit-drain" env:"EXIT_DRAIN" default:"300s" description:"max wait for output after prediction exit"`
		TailLines  int           `long:"tail-lines" env:"TAIL_LINES" default:"50" description:"stderr lines attached to failure record"`
		Mirror     bool          `long:"mirror" env:"MIRROR" description:"copy prediction output to stdout"`
	} `group:"boltz" namespace:"boltz" env-namespace:"BOLTZWEB_BOLTZ"`

	Probe struct {
		Command string        `long:"command" env:"COMMAND" default:"nvidia-smi -L" description:"accelerator probe command"`
		Timeout time.Duration `long:"timeout" env:"TIMEOUT" default:"5s" description:"accelerator probe timeout"`
	} `group:"probe" namespace:"probe" env-namespace:"BOLTZWEB_PROBE"`

	Detector struct {
		Attempts int           `long:"attempts" env:"ATTEMPTS" default:"300" description:"structure file checks after prediction exit"`
		Interval time.Duration `long:"interval" env:"INTERVAL" default:"100ms" description:"interval between structure file checks"`
	} `group:"detector" namespace:"detector" env-namespace:"BOLTZWEB_DETECTOR"`

	Web struct {
		AuthHash   string  `long:"auth-hash" env:"AUTH_HASH" description:"bcrypt hash of basic auth password, user boltz"`
		SubmitRate float64 `long:"submit-rate" env:"SUBMIT_RATE" default:"1" description:"max submissions per second per client, 0 for unlimited"`
		MaxBody    int64   `long:"max-body" env:"MAX_BODY" default:"1048576" description:"max submit request size"`
	} `group:"web" namespace:"web" env-namespace:"BOLTZWEB_WEB"`

	Cleanup struct {
		Retention time.Duration `long:"retention" env:"RETENTION" default:"0s" description:"remove jobs older than this, 0 to keep forever"`
		Schedule  string        `long:"schedule" env:"SCHEDULE" default:"@hourly" description:"cleanup cron schedule"`
	} `group:"cleanup" namespace:"cleanup" env-namespace:"BOLTZWEB_CLEANUP"`

	Log struct {
		Enabled         bool   `long:"enabled" env:"ENABLED" description:"enable logging to file"`
		Filename        string `long:"filename" env:"FILENAME" default:"boltzweb.log" description:"file name to log to"`
		MaxSize         int    `long:"max-size" env:"MAX_SIZE" default:"100" description:"maximum size in megabytes before rotation"`
		MaxBackups      int    `long:"max-backups" env:"MAX_BACKUPS" default:"7" description:"maximum number of old log files to retain"`
		MaxAge          int    `long:"max-age" env:"MAX_AGE" default:"0" description:"maximum number of days to retain old log files"`
		EnabledCompress bool   `long:"enabled-compress" env:"ENABLED_COMPRESS" description:"compress rotated log files"`
	} `group:"log" namespace:"log" env-namespace:"BOLTZWEB_LOG"`
}

var revision = "unknown"

func main() {
	fmt.Printf("boltzweb %s\n", revision)

	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(2)
	}
	setupLogs()

	defer func() {
		if x := recover(); x != nil {
			log.Printf("[WARN] run time panic:\n%v", x)
			panic(x)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	signals(cancel) // handle SIGQUIT, SIGINT and SIGTERM
	if err := run(ctx); err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}
}

// run wires everything together and blocks until ctx canceled and running predictions are done
func run(ctx context.Context) error {
	layout := job.Layout{InputDir: opts.InputDir, OutputDir: opts.OutputDir}
	for _, dir := range []string{layout.InputDir, layout.OutputDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("can't make %s: %w", dir, err)
		}
	}

	registry := job.NewRegistry(layout.LogPath)
	defer func() {
		if err := registry.Close(); err != nil {
			log.Printf("[WARN] failed to close job logs, %v", err)
		}
	}()

	launcher := &service.Launcher{
		Binary:     opts.Boltz.Binary,
		Prober:     service.CommandProbe{Command: strings.Fields(opts.Probe.Command), Timeout: opts.Probe.Timeout},
		Layout:     layout,
		Detector:   service.NewDetector(opts.Detector.Attempts, opts.Detector.Interval),
		MaxRuntime: opts.Boltz.MaxRuntime,
		ExitDrain:  opts.Boltz.ExitDrain,
		TailLines:  opts.Boltz.TailLines,
	}
	if opts.Boltz.Mirror {
		launcher.Mirror = service.NewMirror(os.Stdout)
	}

	// predictions outlive the web server, they are interrupted only after shutdown wait expires
	jobsCtx, jobsCancel := context.WithCancel(context.Background())
	defer jobsCancel()

	metrics := service.NewMetrics()
	svc := service.NewService(jobsCtx, service.Params{
		Runner:   launcher,
		Registry: registry,
		Layout:   layout,
		Metrics:  metrics,
		MaxJobs:  opts.Boltz.MaxJobs,
	})

	srv, err := web.New(web.Config{
		Jobs:         svc,
		Layout:       layout,
		Gatherer:     metrics.Registry,
		Version:      revision,
		PasswordHash: opts.Web.AuthHash,
		SubmitRate:   opts.Web.SubmitRate,
		MaxBodySize:  opts.Web.MaxBody,
	})
	if err != nil {
		return err
	}

	if opts.Cleanup.Retention > 0 {
		cleaner := &cleanup.Cleaner{Layout: layout, Registry: registry, Retention: opts.Cleanup.Retention}
		go func() {
			if err := cleaner.Run(ctx, opts.Cleanup.Schedule); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("[WARN] cleanup stopped, %v", err)
			}
		}()
	}

	log.Printf("[INFO] boltz %s, max jobs %d, inputs %s, outputs %s", opts.Boltz.Binary, opts.Boltz.MaxJobs,
		layout.InputDir, layout.OutputDir)
	srvErr := srv.Run(ctx, opts.Listen)

	log.Printf("[INFO] waiting for running predictions")
	waitJobs(svc, jobsCancel, opts.ShutdownWait)
	return srvErr
}

// waitJobs waits for running predictions, interrupting them after maxWait if set
func waitJobs(svc *service.Service, interrupt context.CancelFunc, maxWait time.Duration) {
	done := make(chan struct{})
	go func() {
		svc.Wait()
		close(done)
	}()
	if maxWait <= 0 {
		<-done
		return
	}
	select {
	case <-done:
	case <-time.After(maxWait):
		log.Printf("[WARN] predictions still running after %v, interrupting", maxWait)
		interrupt()
		<-done
	}
}

// setupLogs configures the app logger and returns where it writes to
func setupLogs() io.Writer {
	var out io.Writer = os.Stdout
	if opts.Log.Enabled {
		out = &lumberjack.Logger{
			Filename:   opts.Log.Filename,
			MaxSize:    opts.Log.MaxSize,
			MaxBackups: opts.Log.MaxBackups,
			MaxAge:     opts.Log.MaxAge,
			Compress:   opts.Log.EnabledCompress,
		}
	}

	logOpts := []log.Option{log.Msec, log.LevelBraces, log.Out(out)}
	if opts.Dbg {
		logOpts = append(logOpts, log.Debug, log.CallerFunc, log.CallerPkg, log.CallerFile)
	}
	log.Setup(logOpts...)
	return out
}

func signals(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	go func() {
		stacktrace := make([]byte, 8192)
		for sig := range sigChan {
			if sig == syscall.SIGQUIT { // catch SIGQUIT and print stack traces
				length := runtime.Stack(stacktrace, true)
				fmt.Println(string(stacktrace[:length]))
				continue
			}
			log.Printf("[INFO] %v received, shutting down", sig)
			cancel() // terminate on SIGINT and SIGTERM
		}
	}()
	signal.Notify(sigChan, syscall.SIGQUIT, syscall.SIGINT, syscall.SIGTERM)
}
