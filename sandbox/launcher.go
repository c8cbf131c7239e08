package sandbox

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/isdmx/noimport/config"
)

// Placeholders expanded in LauncherConfig.Args
const (
	PortPlaceholder   = "{port}"
	AppDirPlaceholder = "{app_dir}"
)

// DefaultStartupTimeout bounds the wait for the readiness marker
const DefaultStartupTimeout = 30 * time.Second

// LauncherConfig describes how to start the sandbox server
type LauncherConfig struct {
	Command        string
	Args           []string
	Env            []string
	ReadyMarker    string
	StartupTimeout time.Duration
}

// Launcher starts sandbox servers and waits for them to become ready
type Launcher struct {
	logger *zap.Logger
	config LauncherConfig
}

// NewLauncher creates a Launcher. A zero StartupTimeout means
// DefaultStartupTimeout.
func NewLauncher(logger *zap.Logger, cfg LauncherConfig) *Launcher {
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = DefaultStartupTimeout
	}
	return &Launcher{logger: logger, config: cfg}
}

// NewLauncherFromConfig creates a Launcher from the sandbox section
func NewLauncherFromConfig(logger *zap.Logger, cfg *config.Config) *Launcher {
	return NewLauncher(logger, LauncherConfig{
		Command:        cfg.Sandbox.Command,
		Args:           cfg.Sandbox.Args,
		Env:            cfg.SandboxEnv(),
		ReadyMarker:    cfg.Sandbox.ReadyMarker,
		StartupTimeout: cfg.GetStartupTimeout(),
	})
}

// StartupError reports a server that never became ready. The process, if it
// was started, has already been killed and reaped.
type StartupError struct {
	PID   int
	State ReadinessState
	Err   error
}

func (e *StartupError) Error() string {
	msg := fmt.Sprintf("sandbox server did not start (state=%s", e.State)
	if e.PID > 0 {
		msg += fmt.Sprintf(", pid=%d", e.PID)
	}
	msg += ")"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StartupError) Unwrap() error {
	return e.Err
}

// Process is a running sandbox server
type Process struct {
	cmd     *exec.Cmd
	logger  *zap.Logger
	drained <-chan struct{}
	once    sync.Once
	err     error
}

// PID returns the server's process id
func (p *Process) PID() int {
	return p.cmd.Process.Pid
}

// Kill sends SIGKILL to the server's process group and reaps it. There is no
// graceful shutdown. Safe to call more than once.
func (p *Process) Kill() error {
	p.once.Do(func() {
		pid := p.cmd.Process.Pid
		if err := killProcessGroup(pid); err != nil && !errors.Is(err, syscall.ESRCH) {
			if killErr := p.cmd.Process.Kill(); killErr != nil && !errors.Is(killErr, os.ErrProcessDone) {
				p.err = fmt.Errorf("kill sandbox server %d: %w", pid, err)
			}
		}
		// Killed on purpose, the exit status carries nothing.
		_ = p.cmd.Wait()
		<-p.drained
		p.logger.Debug("sandbox server stopped", zap.Int("pid", pid))
	})
	return p.err
}

// Launch starts the sandbox server on port with appDir as its application
// root and blocks until the readiness marker shows up on the server's
// stderr. It fails if the stream ends first, if the startup timeout
// elapses, or if ctx is done; in every failure case the process is killed
// before returning a *StartupError.
func (l *Launcher) Launch(ctx context.Context, port int, appDir string) (*Process, error) {
	if err := checkPortFree(port); err != nil {
		return nil, err
	}

	args := expandArgs(l.config.Args, port, appDir)
	cmd := exec.Command(l.config.Command, args...) //nolint:gosec // sandbox command comes from config
	cmd.Env = append(os.Environ(), l.config.Env...)
	cmd.SysProcAttr = sysProcAttr()
	// Stdout stays detached: ours carries the report.
	cmd.Stdout = nil

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open sandbox stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, &StartupError{State: StateFailed, Err: err}
	}

	drained := make(chan struct{})
	proc := &Process{cmd: cmd, logger: l.logger, drained: drained}
	pid := cmd.Process.Pid
	l.logger.Info("sandbox server started",
		zap.Int("pid", pid),
		zap.Int("port", port),
		zap.String("command", l.config.Command),
		zap.Strings("args", args))

	lines := make(chan string)
	stop := make(chan struct{})
	go func() {
		defer close(drained)
		drain(stderr, lines, stop, l.logger.With(zap.Int("pid", pid)))
	}()

	readiness := NewReadiness(l.config.ReadyMarker)
	timer := time.NewTimer(l.config.StartupTimeout)
	defer timer.Stop()

	var cause error
	for !readiness.Done() {
		select {
		case line, ok := <-lines:
			if !ok {
				readiness.Closed()
				cause = errors.New("server output ended before the readiness marker")
				continue
			}
			l.logger.Debug("sandbox output", zap.Int("pid", pid), zap.String("line", line))
			readiness.Line(line)
		case <-timer.C:
			readiness.Expired()
			cause = fmt.Errorf("no readiness marker within %s", l.config.StartupTimeout)
		case <-ctx.Done():
			readiness.Abort()
			cause = ctx.Err()
		}
	}

	close(stop)

	if readiness.State() == StateReady {
		l.logger.Info("sandbox server ready", zap.Int("pid", pid), zap.Int("port", port))
		return proc, nil
	}

	l.logger.Error("sandbox server failed to start",
		zap.Int("pid", pid),
		zap.Stringer("state", readiness.State()),
		zap.Error(cause))
	if killErr := proc.Kill(); killErr != nil {
		l.logger.Warn("failed to kill sandbox server", zap.Int("pid", pid), zap.Error(killErr))
	}
	return nil, &StartupError{PID: pid, State: readiness.State(), Err: cause}
}

// drain forwards stderr lines until stop is closed, then keeps reading so the
// server never blocks on a full pipe. lines is closed when the stream ends.
func drain(r io.Reader, lines chan<- string, stop <-chan struct{}, logger *zap.Logger) {
	defer close(lines)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	forwarding := true
	for scanner.Scan() {
		line := scanner.Text()
		if forwarding {
			select {
			case lines <- line:
				continue
			case <-stop:
				forwarding = false
			}
		}
		logger.Debug("sandbox output", zap.String("line", line))
	}
	if err := scanner.Err(); err != nil {
		logger.Debug("sandbox output unreadable", zap.Error(err))
		_, _ = io.Copy(io.Discard, r)
	}
}

func expandArgs(args []string, port int, appDir string) []string {
	r := strings.NewReplacer(PortPlaceholder, strconv.Itoa(port), AppDirPlaceholder, appDir)
	out := make([]string, len(args))
	for i, arg := range args {
		out[i] = r.Replace(arg)
	}
	return out
}

// checkPortFree refuses ports that already have a listener: a leftover server
// there would answer the fetch instead of ours.
func checkPortFree(port int) error {
	ln, err := net.Listen("tcp", net.JoinHostPort("localhost", strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("sandbox port %d is not available: %w", port, err)
	}
	return ln.Close()
}
