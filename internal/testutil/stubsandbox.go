// Package testutil provides a stub sandbox server for tests.
//
// The stub is the test binary itself: a package's TestMain calls
// RunStubSandboxIfRequested first, and tests point the launcher at
// StubSandbox(...). No App Engine SDK is needed.
package testutil

import (
	"bytes"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// ReadyMarker is the readiness text printed by the stub
const ReadyMarker = "Running application"

// Stub modes
const (
	// ModeServe serves the configured body on every path
	ModeServe = "serve"
	// ModeServeError answers every request with HTTP 500
	ModeServeError = "serve-error"
	// ModeSilent prints near-miss lines and never becomes ready
	ModeSilent = "silent"
	// ModeExit prints an error and exits before becoming ready
	ModeExit = "exit"
	// ModeCGI runs app.py with the interpreter named by body on every
	// request and serves its output, like the real sandbox does
	ModeCGI = "cgi"
)

const (
	envMode = "NOIMPORT_STUB_SANDBOX"
	envBody = "NOIMPORT_STUB_BODY"
)

// StubCommand is a command line for the sandbox launcher
type StubCommand struct {
	Command string
	Args    []string
	Env     []string
}

// StubSandbox returns the command that runs the stub in the given mode
func StubSandbox(mode, body string) StubCommand {
	return StubCommand{
		Command: os.Args[0],
		Args:    []string{"{port}", "{app_dir}"},
		Env:     []string{envMode + "=" + mode, envBody + "=" + body},
	}
}

// RunStubSandboxIfRequested turns the process into the stub server when it
// was started through StubSandbox. It never returns in that case.
func RunStubSandboxIfRequested() {
	mode := os.Getenv(envMode)
	if mode == "" {
		return
	}
	os.Exit(runStub(mode, os.Getenv(envBody), os.Args[1:]))
}

func runStub(mode, body string, args []string) int {
	if len(args) != 2 {
		fmt.Fprintf(os.Stderr, "ERROR usage: stub <port> <app_dir>, got %q\n", args)
		return 2
	}
	port, appDir := args[0], args[1]

	fmt.Fprintln(os.Stderr, "INFO Starting stub sandbox")
	if _, err := os.Stat(filepath.Join(appDir, "app.yaml")); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR no app.yaml in %s: %v\n", appDir, err)
		return 3
	}

	switch mode {
	case ModeExit:
		fmt.Fprintln(os.Stderr, "ERROR stub sandbox crashed")
		return 1
	case ModeSilent:
		fmt.Fprintln(os.Stderr, "INFO Application not Running yet")
		fmt.Fprintln(os.Stderr, "INFO running application checks")
		time.Sleep(10 * time.Minute)
		return 0
	}

	ln, err := net.Listen("tcp", net.JoinHostPort("localhost", port))
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR listen: %v\n", err)
		return 4
	}
	fmt.Fprintf(os.Stderr, "INFO %s dev~stub on port %s\n", ReadyMarker, port)

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		switch mode {
		case ModeServeError:
			http.Error(w, "Traceback (most recent call last):", http.StatusInternalServerError)
		case ModeCGI:
			serveCGI(w, body, filepath.Join(appDir, "app.py"))
		default:
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte(body))
		}
	})
	if err := http.Serve(ln, handler); err != nil { //nolint:gosec // test stub
		fmt.Fprintf(os.Stderr, "ERROR serve: %v\n", err)
		return 5
	}
	return 0
}

func serveCGI(w http.ResponseWriter, interpreter, script string) {
	var stderr bytes.Buffer
	cmd := exec.Command(interpreter, script)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		http.Error(w, fmt.Sprintf("%v\n%s", err, stderr.String()), http.StatusInternalServerError)
		return
	}

	header, payload, ok := strings.Cut(string(out), "\n\n")
	if !ok {
		http.Error(w, "malformed CGI output", http.StatusInternalServerError)
		return
	}
	for _, line := range strings.Split(header, "\n") {
		if key, value, found := strings.Cut(line, ":"); found {
			w.Header().Set(strings.TrimSpace(key), strings.TrimSpace(value))
		}
	}
	_, _ = w.Write([]byte(payload))
}

// FreePort returns a local TCP port that was free a moment ago
func FreePort(t testing.TB) int {
	t.Helper()
	ln, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatalf("find free port: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

// ProcessGone reports whether no process with pid exists any more
func ProcessGone(pid int) bool {
	return processGone(pid)
}
