// Package resolve determines which Python interpreter a run executes
// through: a system-wide interpreter in CI, or a version-pinned virtual
// environment locally, creating and validating the environment as needed.
package resolve

import (
	"context"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/adrg/xdg"

	"github.com/blakeNaccarato/boilercv/errors"
	"github.com/blakeNaccarato/boilercv/executor"
	"github.com/blakeNaccarato/boilercv/fsys"
)

// VenvDir is the project-local virtual environment directory.
const VenvDir = ".venv"

// Environment describes the resolved interpreter. It is created once per
// invocation and read-only thereafter; every subsequent command runs through
// its interpreter.
type Environment struct {
	// Python is the interpreter path.
	Python string

	// Scripts is the executable directory adjacent to the interpreter,
	// where the environment's tools (uv, copier, dvc, pre-commit) land.
	Scripts string

	// CI reports whether this is a system interpreter in a CI context.
	CI bool
}

// Options configures interpreter resolution.
type Options struct {
	// FS is the project filesystem, rooted at WorkDir. REQUIRED.
	FS fsys.Filesystem

	// Runner executes interpreter probes and environment creation. REQUIRED.
	Runner executor.Runner

	// Version is the requested interpreter version, major.minor. REQUIRED.
	Version string

	// WorkDir is the OS path of the project root. Defaults to ".".
	WorkDir string

	// CI selects the system-interpreter path.
	CI bool

	// DataHome is where uv keeps managed interpreters.
	// Defaults to the XDG data home.
	DataHome string

	// LookPath resolves a program on PATH. Defaults to exec.LookPath.
	LookPath func(string) (string, error)

	// Glob matches OS paths outside the project root, used for the
	// managed-interpreter search. Defaults to filepath.Glob.
	Glob func(string) ([]string, error)

	// GOOS overrides the platform for path layout, for tests.
	GOOS string

	// Logger receives resolution progress. Defaults to a discard logger.
	Logger *slog.Logger
}

// Validate checks that the Options are properly configured.
func (o *Options) Validate() error {
	if o.FS == nil {
		return errors.WrapError(errors.ErrInvalidConfig, "FS is required")
	}
	if o.Runner == nil {
		return errors.WrapError(errors.ErrInvalidConfig, "Runner is required")
	}
	if o.Version == "" {
		return errors.WrapError(errors.ErrInvalidConfig, "Version is required")
	}
	return nil
}

func (o *Options) applyDefaults() {
	if o.WorkDir == "" {
		o.WorkDir = "."
	}
	if o.DataHome == "" {
		o.DataHome = xdg.DataHome
	}
	if o.LookPath == nil {
		o.LookPath = exec.LookPath
	}
	if o.Glob == nil {
		o.Glob = filepath.Glob
	}
	if o.GOOS == "" {
		o.GOOS = runtime.GOOS
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
}

// Resolve returns the environment descriptor for this run.
//
// In CI the system interpreter matching the requested version is used
// directly and nothing is installed. Locally an existing virtual environment
// is validated against the requested version; a mismatched environment is
// deleted and recreated exactly once before the mismatch becomes fatal.
func Resolve(ctx context.Context, opts Options) (*Environment, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts.applyDefaults()

	requested, err := semver.NewVersion(opts.Version)
	if err != nil {
		return nil, errors.WrapErrorf(errors.ErrInvalidConfig, "version %q: %v", opts.Version, err)
	}

	if opts.CI {
		python, err := findSystem(ctx, &opts, requested)
		if err != nil {
			return nil, err
		}
		return &Environment{Python: python, Scripts: filepath.Dir(python), CI: true}, nil
	}

	// Self-healing is bounded: one recreation, then the mismatch is fatal.
	for attempt := 0; attempt < 2; attempt++ {
		exists, err := opts.FS.Exists(VenvDir)
		if err != nil {
			return nil, err
		}
		if !exists {
			if err := createVenv(ctx, &opts, requested); err != nil {
				return nil, err
			}
		}

		python := venvPython(opts.WorkDir, opts.GOOS)
		reported, err := probeVersion(ctx, opts.Runner, python)
		if err != nil {
			return nil, err
		}
		if sameMinor(reported, requested) {
			return &Environment{Python: python, Scripts: filepath.Dir(python)}, nil
		}

		opts.Logger.Warn(
			"virtual environment reports wrong version, recreating",
			"requested", opts.Version,
			"reported", reported.String(),
		)
		if err := opts.FS.RemoveAll(VenvDir); err != nil {
			return nil, err
		}
	}

	return nil, errors.WrapErrorf(
		errors.ErrVersionMismatch,
		"recreated %s but it still does not report Python %s; remove it and check your Python %s install",
		VenvDir, opts.Version, opts.Version,
	)
}

func createVenv(ctx context.Context, opts *Options, requested *semver.Version) error {
	python, err := findSystem(ctx, opts, requested)
	if err != nil {
		return err
	}
	opts.Logger.Info("creating virtual environment", "python", python)
	_, err = opts.Runner.Run(
		ctx,
		python, []string{"-m", "venv", VenvDir},
		executor.WithWorkingDir(opts.WorkDir),
	)
	return err
}

// findSystem locates a system interpreter matching the requested
// major.minor, searching PATH first and the uv managed-interpreter
// directory second.
func findSystem(ctx context.Context, opts *Options, requested *semver.Version) (string, error) {
	names := []string{"python" + opts.Version, "python3", "python"}
	if opts.GOOS == "windows" {
		names = []string{"python", "py"}
	}
	for _, name := range names {
		path, err := opts.LookPath(name)
		if err != nil {
			continue
		}
		if matches(ctx, opts.Runner, path, requested) {
			return path, nil
		}
	}

	for _, path := range managedCandidates(opts) {
		if matches(ctx, opts.Runner, path, requested) {
			return path, nil
		}
	}

	return "", errors.WrapErrorf(
		errors.ErrInterpreterNotFound,
		"no Python %s on PATH or under %s; install Python %s and re-run",
		opts.Version, filepath.Join(opts.DataHome, "uv", "python"), opts.Version,
	)
}

// managedCandidates lists interpreters installed by uv, newest layout:
// <data>/uv/python/cpython-<version>.<patch>-<platform>/bin/python<version>.
func managedCandidates(opts *Options) []string {
	pattern := filepath.Join(
		opts.DataHome, "uv", "python",
		"cpython-"+opts.Version+".*",
		"bin", "python"+opts.Version,
	)
	if opts.GOOS == "windows" {
		pattern = filepath.Join(
			opts.DataHome, "uv", "python",
			"cpython-"+opts.Version+".*",
			"python.exe",
		)
	}
	matches, err := opts.Glob(pattern)
	if err != nil {
		return nil
	}
	return matches
}

func matches(ctx context.Context, runner executor.Runner, python string, requested *semver.Version) bool {
	reported, err := probeVersion(ctx, runner, python)
	if err != nil {
		return false
	}
	return sameMinor(reported, requested)
}

// probeVersion reports the interpreter's version. Older interpreters print
// it to stderr, so both streams are checked.
func probeVersion(ctx context.Context, runner executor.Runner, python string) (*semver.Version, error) {
	result, err := runner.Run(ctx, python, []string{"--version"})
	if err != nil {
		return nil, err
	}
	raw := strings.TrimSpace(result.Stdout)
	if raw == "" {
		raw = strings.TrimSpace(result.Stderr)
	}
	fields := strings.Fields(raw)
	if len(fields) < 2 {
		return nil, errors.WrapErrorf(errors.ErrInterpreterNotFound, "%s reported unparseable version %q", python, raw)
	}
	version, err := semver.NewVersion(fields[1])
	if err != nil {
		return nil, errors.WrapErrorf(errors.ErrInterpreterNotFound, "%s reported unparseable version %q: %v", python, raw, err)
	}
	return version, nil
}

func sameMinor(reported, requested *semver.Version) bool {
	return reported.Major() == requested.Major() && reported.Minor() == requested.Minor()
}

// venvPython returns the interpreter path inside the virtual environment.
func venvPython(workDir, goos string) string {
	if goos == "windows" {
		return filepath.Join(workDir, VenvDir, "Scripts", "python.exe")
	}
	return filepath.Join(workDir, VenvDir, "bin", "python")
}

// ScriptsDir returns the executable directory of a virtual environment.
func ScriptsDir(workDir, goos string) string {
	if goos == "windows" {
		return filepath.Join(workDir, VenvDir, "Scripts")
	}
	return filepath.Join(workDir, VenvDir, "bin")
}

// ExeSuffix returns the executable suffix for the platform.
func ExeSuffix(goos string) string {
	if goos == "windows" {
		return ".exe"
	}
	return ""
}
