// Package prober discovers which modules import on the host interpreter and
// which public attributes each of them exposes.
//
// Importing a module runs its top-level code on the host. That is accepted:
// the probed names come from the standard library catalog.
package prober

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/isdmx/noimport/config"
)

// ModuleRecord is a module that imported on the host together with its
// public attribute names, in dir() order. Records are not mutated once
// returned.
type ModuleRecord struct {
	Name       string
	Attributes []string
}

// Prober imports candidate modules on the host interpreter
type Prober struct {
	logger      *zap.Logger
	interpreter string
	cmdRunner   CommandRunner
}

// Option defines a functional option for Prober
type Option func(*Prober)

// WithCommandRunner sets the CommandRunner used to start the interpreter
func WithCommandRunner(cmdRunner CommandRunner) Option {
	return func(p *Prober) {
		p.cmdRunner = cmdRunner
	}
}

// New creates a Prober running the given interpreter
func New(logger *zap.Logger, interpreter string, opts ...Option) *Prober {
	p := &Prober{
		logger:      logger,
		interpreter: interpreter,
		cmdRunner:   RealCommandRunner{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewFromConfig creates a Prober for probe.interpreter
func NewFromConfig(logger *zap.Logger, cfg *config.Config) *Prober {
	return New(logger, cfg.Probe.Interpreter)
}

// Probe imports every name in order and partitions them: each input name
// ends up exactly once in either records or failed. Duplicates are kept.
// An error means the interpreter itself failed, which is fatal.
func (p *Prober) Probe(ctx context.Context, names []string) (records []ModuleRecord, failed []string, err error) {
	// Names that cannot travel on the line protocol can never import.
	sendable := make([]string, 0, len(names))
	unsendable := make(map[int]bool)
	for i, name := range names {
		if name == "" || strings.ContainsAny(name, "\r\n") {
			unsendable[i] = true
			continue
		}
		sendable = append(sendable, name)
	}

	var results []probeResult
	if len(sendable) > 0 {
		results, err = p.introspect(ctx, sendable)
		if err != nil {
			return nil, nil, err
		}
	}

	next := 0
	for i, name := range names {
		if unsendable[i] {
			failed = append(failed, name)
			continue
		}
		res := results[next]
		next++
		if res.imported {
			records = append(records, ModuleRecord{Name: name, Attributes: res.attrs})
		} else {
			failed = append(failed, name)
		}
	}

	p.logger.Info("host introspection finished",
		zap.Int("requested", len(names)),
		zap.Int("imported", len(records)),
		zap.Int("failed", len(failed)))

	return records, failed, nil
}

type probeResult struct {
	name     string
	imported bool
	attrs    []string
}

func (p *Prober) introspect(ctx context.Context, names []string) ([]probeResult, error) {
	args := []string{p.interpreter, "-c", introspectScript}
	stdin := strings.NewReader(strings.Join(names, "\n") + "\n")

	p.logger.Debug("running host introspection",
		zap.String("interpreter", p.interpreter),
		zap.Int("modules", len(names)))

	stdout, stderr, exitCode, err := p.cmdRunner.RunCommand(ctx, args, stdin)
	if err != nil {
		return nil, fmt.Errorf("host introspection: %w", err)
	}
	if exitCode != 0 {
		return nil, fmt.Errorf("host introspection exited with code %d: %s", exitCode, lastLine(stderr))
	}

	results, err := parseRecords(stdout)
	if err != nil {
		return nil, err
	}

	if len(results) != len(names) {
		return nil, fmt.Errorf("host introspection answered %d of %d modules", len(results), len(names))
	}
	for i, res := range results {
		if res.name != names[i] {
			return nil, fmt.Errorf("host introspection out of order: got %q, want %q", res.name, names[i])
		}
	}
	return results, nil
}

func parseRecords(out string) ([]probeResult, error) {
	var results []probeResult
	scanner := bufio.NewScanner(strings.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}
		kind, payload, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("malformed introspection line %d: %q", lineNo, line)
		}
		value, err := hex.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("malformed introspection line %d: %w", lineNo, err)
		}

		switch kind {
		case "M":
			results = append(results, probeResult{name: string(value), imported: true, attrs: []string{}})
		case "F":
			results = append(results, probeResult{name: string(value)})
		case "A":
			if len(results) == 0 || !results[len(results)-1].imported {
				return nil, fmt.Errorf("introspection line %d: attribute without module", lineNo)
			}
			last := &results[len(results)-1]
			last.attrs = append(last.attrs, string(value))
		default:
			return nil, fmt.Errorf("unknown introspection record %q on line %d", kind, lineNo)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read introspection output: %w", err)
	}
	return results, nil
}

func lastLine(s string) string {
	s = strings.TrimRight(s, "\n")
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
