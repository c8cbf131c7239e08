package prober

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
)

// CommandRunner defines an interface for executing system commands
type CommandRunner interface {
	RunCommand(ctx context.Context, args []string, stdin io.Reader) (stdout, stderr string, exitCode int, err error)
}

// RealCommandRunner implements CommandRunner using actual exec commands
type RealCommandRunner struct{}

// RunCommand executes the given command with arguments, feeding stdin to it.
// A non-zero exit is reported through exitCode, not err.
func (RealCommandRunner) RunCommand(ctx context.Context, args []string, stdin io.Reader) (stdout, stderr string, exitCode int, err error) {
	if len(args) < 1 {
		return "", "", 0, errors.New("no command provided")
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...) //nolint:gosec // interpreter path comes from config

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdin = stdin
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err = cmd.Run()

	if err != nil {
		var exitError *exec.ExitError
		if !errors.As(err, &exitError) {
			return "", "", 0, fmt.Errorf("run %s: %w", args[0], err)
		}
		exitCode = exitError.ExitCode()
	}

	return stdoutBuf.String(), stderrBuf.String(), exitCode, nil
}
