// Package executor runs the external tools the bootstrap sequence depends on
// (python, uv, copier, pre-commit) as typed argument vectors, with output
// capture and context support. Failures are fail-fast: a non-zero exit is
// reported as an error and nothing is retried.
package executor

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/blakeNaccarato/boilercv/errors"
)

// Result holds the output from a command execution.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes a single external program with an argument vector.
// Implementations must not interpret arguments through a shell.
type Runner interface {
	Run(ctx context.Context, program string, args []string, opts ...Option) (*Result, error)
}

// RunnerFunc adapts a function to the Runner interface, for tests.
type RunnerFunc func(ctx context.Context, program string, args []string, opts ...Option) (*Result, error)

// Run implements Runner.
func (f RunnerFunc) Run(ctx context.Context, program string, args []string, opts ...Option) (*Result, error) {
	return f(ctx, program, args, opts...)
}

// Options configures command execution behavior.
type Options struct {
	// Output handling
	CaptureStdout     bool
	CaptureStderr     bool
	RedirectToConsole bool

	// Working directory
	WorkingDir string

	// Environment variables (appended to current env)
	Env map[string]string

	// Logger receives a debug line per invocation. Never nil after defaults.
	Logger *slog.Logger
}

// Option is a function that modifies Options.
type Option func(*Options)

// DefaultOptions returns default execution options.
func DefaultOptions() *Options {
	return &Options{
		CaptureStdout: true,
		CaptureStderr: true,
		Env:           make(map[string]string),
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithWorkingDir sets the working directory for the command.
func WithWorkingDir(dir string) Option {
	return func(o *Options) { o.WorkingDir = dir }
}

// WithEnv appends environment variables to the current environment.
func WithEnv(env map[string]string) Option {
	return func(o *Options) {
		for k, v := range env {
			o.Env[k] = v
		}
	}
}

// WithConsole streams output to the console in addition to capturing it.
func WithConsole() Option {
	return func(o *Options) { o.RedirectToConsole = true }
}

// WithLogger sets the logger used for per-invocation debug lines.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// Local implements Runner against the host OS.
type Local struct {
	options *Options
}

// NewLocal creates a Runner with base options applied to every invocation.
func NewLocal(opts ...Option) *Local {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	return &Local{options: options}
}

// Run implements Runner.
func (l *Local) Run(ctx context.Context, program string, args []string, opts ...Option) (*Result, error) {
	options := l.mergeOptions(opts...)
	options.Logger.Debug("running command", "program", program, "args", args)

	cmd := exec.CommandContext(ctx, program, args...)
	setupCommand(cmd, options)
	stdoutBuf, stderrBuf := setupOutputCapture(cmd, options)

	err := cmd.Run()
	result := createResult(stdoutBuf, stderrBuf, err)

	if err != nil {
		return result, &CommandError{
			Program: program,
			Args:    args,
			Result:  result,
			cause:   err,
		}
	}
	return result, nil
}

func (l *Local) mergeOptions(opts ...Option) *Options {
	merged := *l.options
	merged.Env = make(map[string]string, len(l.options.Env))
	for k, v := range l.options.Env {
		merged.Env[k] = v
	}
	for _, opt := range opts {
		opt(&merged)
	}
	return &merged
}

// setupCommand configures the exec.Cmd with working directory and environment.
func setupCommand(cmd *exec.Cmd, options *Options) {
	if options.WorkingDir != "" {
		cmd.Dir = options.WorkingDir
	}
	if len(options.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range options.Env {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
		}
	}
}

// setupOutputCapture configures stdout and stderr writers for the command.
func setupOutputCapture(cmd *exec.Cmd, options *Options) (*bytes.Buffer, *bytes.Buffer) {
	var stdoutBuf, stderrBuf bytes.Buffer

	stdoutWriters := []io.Writer{}
	if options.CaptureStdout {
		stdoutWriters = append(stdoutWriters, &stdoutBuf)
	}
	if options.RedirectToConsole {
		stdoutWriters = append(stdoutWriters, os.Stdout)
	}
	if len(stdoutWriters) > 0 {
		cmd.Stdout = io.MultiWriter(stdoutWriters...)
	}

	stderrWriters := []io.Writer{}
	if options.CaptureStderr {
		stderrWriters = append(stderrWriters, &stderrBuf)
	}
	if options.RedirectToConsole {
		stderrWriters = append(stderrWriters, os.Stderr)
	}
	if len(stderrWriters) > 0 {
		cmd.Stderr = io.MultiWriter(stderrWriters...)
	}

	return &stdoutBuf, &stderrBuf
}

// createResult creates a Result from command execution and error.
func createResult(stdoutBuf, stderrBuf *bytes.Buffer, err error) *Result {
	result := &Result{
		Stdout: stdoutBuf.String(),
		Stderr: stderrBuf.String(),
	}

	var exitErr *exec.ExitError
	switch {
	case err != nil && stderrors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	case err == nil:
		result.ExitCode = 0
	default:
		result.ExitCode = -1
	}

	return result
}

// CommandError reports a failed external command, carrying enough detail to
// surface the triggering command to the operator.
type CommandError struct {
	Program string
	Args    []string
	Result  *Result
	cause   error
}

// Error implements error.
func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s %s exited with code %d", e.Program, strings.Join(e.Args, " "), e.Result.ExitCode)
	if stderr := strings.TrimSpace(e.Result.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

// Unwrap lets errors.Is match both the sentinel and the underlying exec error.
func (e *CommandError) Unwrap() []error {
	return []error{errors.ErrExternalCommand, e.cause}
}
