// Package testutil fakes external processes for unit tests.
//
// A package under test exposes an exec-command hook (usually a functional
// option); tests replace it with ExecRecorder.CommandFunc, which re-runs the
// test binary in helper mode instead of the real program. Every test package
// using the recorder must declare:
//
//	func TestHelperProcess(t *testing.T) { testutil.HelperProcess() }
package testutil

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
)

const (
	envWantHelper = "GO_WANT_HELPER_PROCESS"
	envExitCode   = "GO_HELPER_EXIT_CODE"
	envStdout     = "GO_HELPER_STDOUT"
	envStderr     = "GO_HELPER_STDERR"
	envStdinFile  = "GO_HELPER_STDIN_FILE"
)

type (
	// Response scripts what a faked program prints and how it exits.
	Response struct {
		Stdout   string
		Stderr   string
		ExitCode int
		// CaptureStdin makes the fake drain its stdin so tests can inspect
		// what the caller wrote.
		CaptureStdin bool
	}

	// Invocation is one recorded call.
	Invocation struct {
		Name  string
		Args  []string
		Dir   string
		Stdin string
	}

	// ExecRecorder records invocations and answers them with scripted
	// responses keyed by program name. Programs without a response exit 0
	// silently.
	ExecRecorder struct {
		mu          sync.Mutex
		t           *testing.T
		responses   map[string]Response
		missing     map[string]bool
		invocations []*record
	}

	record struct {
		inv       Invocation
		cmd       *exec.Cmd
		stdinFile string
	}
)

// NewExecRecorder creates a recorder bound to t.
func NewExecRecorder(t *testing.T) *ExecRecorder {
	t.Helper()
	return &ExecRecorder{
		t:         t,
		responses: make(map[string]Response),
		missing:   make(map[string]bool),
	}
}

// On scripts the response for a program name.
func (r *ExecRecorder) On(name string, resp Response) *ExecRecorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[name] = resp
	return r
}

// Missing makes a program behave as if it were not installed.
func (r *ExecRecorder) Missing(name string) *ExecRecorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.missing[name] = true
	return r
}

// CommandFunc returns a drop-in replacement for exec.CommandContext.
func (r *ExecRecorder) CommandFunc() func(ctx context.Context, name string, args ...string) *exec.Cmd {
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		r.mu.Lock()
		defer r.mu.Unlock()

		rec := &record{inv: Invocation{Name: name, Args: append([]string(nil), args...)}}
		r.invocations = append(r.invocations, rec)

		if r.missing[name] {
			// Resolved through PATH, so Start fails with exec.ErrNotFound.
			rec.cmd = exec.CommandContext(ctx, "fmcmd-test-missing-"+filepath.Base(name))
			return rec.cmd
		}

		resp := r.responses[name]
		var stdinFile string
		if resp.CaptureStdin {
			stdinFile = filepath.Join(r.t.TempDir(), "stdin")
			rec.stdinFile = stdinFile
		}

		cs := []string{"-test.run=TestHelperProcess", "--", name}
		cs = append(cs, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = []string{
			envWantHelper + "=1",
			envExitCode + "=" + strconv.Itoa(resp.ExitCode),
			envStdout + "=" + resp.Stdout,
			envStderr + "=" + resp.Stderr,
			envStdinFile + "=" + stdinFile,
		}
		rec.cmd = cmd
		return cmd
	}
}

// Invocations returns every recorded call with captured stdin filled in.
func (r *ExecRecorder) Invocations() []Invocation {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Invocation, 0, len(r.invocations))
	for _, rec := range r.invocations {
		inv := rec.inv
		inv.Dir = rec.cmd.Dir
		if rec.stdinFile != "" {
			if data, err := os.ReadFile(rec.stdinFile); err == nil {
				inv.Stdin = string(data)
			}
		}
		out = append(out, inv)
	}
	return out
}

// Calls returns the recorded calls of a single program.
func (r *ExecRecorder) Calls(name string) []Invocation {
	var calls []Invocation
	for _, inv := range r.Invocations() {
		if inv.Name == name {
			calls = append(calls, inv)
		}
	}
	return calls
}

// HelperProcess is the body of TestHelperProcess. It does nothing unless the
// test binary was started by an ExecRecorder.
func HelperProcess() {
	if os.Getenv(envWantHelper) != "1" {
		return
	}

	if path := os.Getenv(envStdinFile); path != "" {
		data, _ := io.ReadAll(os.Stdin)
		_ = os.WriteFile(path, data, 0o600)
	}

	if stdout := os.Getenv(envStdout); stdout != "" {
		fmt.Fprint(os.Stdout, stdout)
	}
	if stderr := os.Getenv(envStderr); stderr != "" {
		fmt.Fprint(os.Stderr, stderr)
	}

	code, _ := strconv.Atoi(os.Getenv(envExitCode))
	os.Exit(code)
}
