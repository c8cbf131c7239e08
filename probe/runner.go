// Package probe runs the whole pipeline: host introspection, probe program
// generation, sandbox launch, report fetch and cleanup.
package probe

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/isdmx/noimport/config"
	"github.com/isdmx/noimport/prober"
	"github.com/isdmx/noimport/sandbox"
)

// ModuleProber partitions module names into host-importable records and
// failures
type ModuleProber interface {
	Probe(ctx context.Context, names []string) ([]prober.ModuleRecord, []string, error)
}

// Result is the outcome of one run
type Result struct {
	// Report is the sandbox's answer verbatim, one unavailable name per line
	Report string
	// NotFound lists the modules that did not import on the host
	NotFound []string
	// Probed is the number of modules sent to the sandbox
	Probed int
}

// Runner orchestrates probe runs. Runs are serialized: they share one port.
type Runner struct {
	logger   *zap.Logger
	config   *config.Config
	prober   ModuleProber
	launcher *sandbox.Launcher
	fetcher  *sandbox.Fetcher
	fs       sandbox.FileSystem
	mu       sync.Mutex
}

// Option defines a functional option for Runner
type Option func(*Runner)

// WithFileSystem sets the FileSystem the workspace is created on
func WithFileSystem(fs sandbox.FileSystem) Option {
	return func(r *Runner) {
		r.fs = fs
	}
}

// New creates a Runner
func New(logger *zap.Logger, cfg *config.Config, p ModuleProber, launcher *sandbox.Launcher, fetcher *sandbox.Fetcher, opts ...Option) *Runner {
	r := &Runner{
		logger:   logger,
		config:   cfg,
		prober:   p,
		launcher: launcher,
		fetcher:  fetcher,
		fs:       sandbox.RealFileSystem{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run probes names on the host, then inside the sandbox, and returns the
// sandbox report. The workspace is always removed and the server always
// killed before Run returns, whatever the outcome; the server is killed
// first.
func (r *Runner) Run(ctx context.Context, names []string) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, notFound, err := r.prober.Probe(ctx, names)
	if err != nil {
		return Result{}, fmt.Errorf("probe host modules: %w", err)
	}
	for _, name := range notFound {
		r.logger.Debug("module not found locally", zap.String("module", name))
	}

	report, err := r.runSandbox(ctx, records)
	if err != nil {
		return Result{NotFound: notFound}, err
	}

	return Result{
		Report:   report,
		NotFound: notFound,
		Probed:   len(records),
	}, nil
}

func (r *Runner) runSandbox(ctx context.Context, records []prober.ModuleRecord) (report string, err error) {
	ws, err := sandbox.NewWorkspace(r.fs)
	if err != nil {
		return "", err
	}
	defer func() {
		if rmErr := ws.Remove(); rmErr != nil {
			r.logger.Error("failed to remove workspace", zap.String("path", ws.Dir()), zap.Error(rmErr))
			if err == nil {
				err = fmt.Errorf("remove workspace: %w", rmErr)
			}
		}
	}()

	manifest, err := sandbox.NewManifest(r.config).Render()
	if err != nil {
		return "", err
	}
	if err := ws.Write(manifest, sandbox.GenerateProgram(records)); err != nil {
		return "", err
	}
	r.logger.Info("workspace prepared", zap.String("path", ws.Dir()), zap.Int("modules", len(records)))

	port := r.config.Sandbox.Port
	proc, err := r.launcher.Launch(ctx, port, ws.Dir())
	if err != nil {
		return "", err
	}
	defer func() {
		if killErr := proc.Kill(); killErr != nil {
			r.logger.Error("failed to kill sandbox server", zap.Int("pid", proc.PID()), zap.Error(killErr))
		}
	}()

	return r.fetcher.Fetch(ctx, port)
}

// WriteResult writes the report verbatim to out and one line per module
// missing on the host to diag.
func WriteResult(out, diag io.Writer, res Result) error {
	for _, name := range res.NotFound {
		if _, err := fmt.Fprintf(diag, "Not found locally: %s\n", name); err != nil {
			return err
		}
	}
	_, err := io.WriteString(out, res.Report)
	return err
}
