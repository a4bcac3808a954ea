// Package uv drives the uv package manager through the resolved
// interpreter: bootstrapping it with pip, compiling or fetching dependency
// locks, and applying a lock to the environment.
package uv

import (
	"context"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/blakeNaccarato/boilercv/errors"
	"github.com/blakeNaccarato/boilercv/executor"
	"github.com/blakeNaccarato/boilercv/fsys"
	"github.com/blakeNaccarato/boilercv/locks"
	"github.com/blakeNaccarato/boilercv/resolve"
)

// Requirement source files consumed by bootstrap and compile.
const (
	// PinFile pins the uv version for bootstrapping installs.
	PinFile = "requirements/uv.in"

	// DevFile holds development tools and editable local installs.
	DevFile = "requirements/dev.in"

	// NodepsFile holds requirements appended to locks without having their
	// own dependencies solved.
	NodepsFile = "requirements/nodeps.in"

	// Pyproject is the project's main dependency specification.
	Pyproject = "pyproject.toml"
)

// Options configures the uv driver.
type Options struct {
	// Env is the resolved environment. REQUIRED.
	Env *resolve.Environment

	// FS is the project filesystem. REQUIRED.
	FS fsys.Filesystem

	// Runner executes uv and pip. REQUIRED.
	Runner executor.Runner

	// Store names and persists lock artifacts. REQUIRED.
	Store *locks.Store

	// Version is the Python version locks are compiled for. REQUIRED.
	Version string

	// Now stamps compiles with an upper bound on release recency.
	// Defaults to time.Now.
	Now func() time.Time

	// Logger receives progress lines. Defaults to a discard logger.
	Logger *slog.Logger
}

// Validate checks that the Options are properly configured.
func (o *Options) Validate() error {
	switch {
	case o.Env == nil:
		return errors.WrapError(errors.ErrInvalidConfig, "Env is required")
	case o.FS == nil:
		return errors.WrapError(errors.ErrInvalidConfig, "FS is required")
	case o.Runner == nil:
		return errors.WrapError(errors.ErrInvalidConfig, "Runner is required")
	case o.Store == nil:
		return errors.WrapError(errors.ErrInvalidConfig, "Store is required")
	case o.Version == "":
		return errors.WrapError(errors.ErrInvalidConfig, "Version is required")
	}
	return nil
}

func (o *Options) applyDefaults() {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
}

// UV invokes uv and pip through the resolved interpreter, so the tools
// always operate on the environment the resolver chose.
type UV struct {
	opts   Options
	python *executor.Tool
}

// New creates a UV driver.
func New(opts Options) (*UV, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts.applyDefaults()
	return &UV{
		opts:   opts,
		python: executor.NewTool(opts.Runner, opts.Env.Python),
	}, nil
}

// Bootstrap installs the pinned uv version with pip, then installs the
// project's own tooling in editable mode through uv. Re-running after a
// template update is safe: both installs are idempotent.
func (u *UV) Bootstrap(ctx context.Context) error {
	u.opts.Logger.Info("bootstrapping uv")
	pipArgs := []string{"-m", "pip", "install", "--requirement", PinFile}
	if u.opts.Env.CI {
		pipArgs = append(pipArgs, "--break-system-packages")
	}
	if _, err := u.python.Run(ctx, pipArgs...); err != nil {
		return err
	}

	devArgs := append(u.pipInstallArgs(), "--requirement", DevFile)
	_, err := u.python.Run(ctx, devArgs...)
	return err
}

// Compile regenerates the lock artifact from the source specifications and
// returns its path. Nodeps requirements are appended without solving.
func (u *UV) Compile(ctx context.Context, highest bool) (string, error) {
	resolution := "lowest-direct"
	if highest {
		resolution = "highest"
	}
	u.opts.Logger.Info("compiling lock", "resolution", resolution)

	args := []string{
		"-m", "uv", "pip", "compile",
		"--python-version", u.opts.Version,
		"--resolution", resolution,
		"--exclude-newer", u.opts.Now().UTC().Format(time.RFC3339),
		"--all-extras",
		Pyproject, DevFile, PinFile,
	}
	result, err := u.python.Run(ctx, args...)
	if err != nil {
		return "", err
	}

	content := result.Stdout
	if ok, err := u.opts.FS.Exists(NodepsFile); err != nil {
		return "", err
	} else if ok {
		nodeps, err := u.opts.FS.ReadFile(NodepsFile)
		if err != nil {
			return "", err
		}
		content = locks.AppendNodeps(content, string(nodeps))
	}
	return u.opts.Store.WriteArtifact(highest, content)
}

// Fetch populates the lock artifact from the committed combined lock and
// returns its path.
func (u *UV) Fetch(_ context.Context, highest bool) (string, error) {
	return u.opts.Store.Fetch(highest)
}

// Persist writes the current artifact into the committed combined lock.
func (u *UV) Persist(_ context.Context, highest bool) error {
	return u.opts.Store.Persist(highest)
}

// Combine merges per-platform artifacts into the combined lock and returns
// the lock path.
func (u *UV) Combine(_ context.Context) (string, error) {
	return u.opts.Store.Combine()
}

// Apply installs the lock artifact into the environment. With exclude empty
// the environment is synchronized destructively, removing anything the
// artifact does not list. A non-empty exclude switches to an additive
// install with that requirement dropped, leaving the named tool untouched.
func (u *UV) Apply(ctx context.Context, artifact, exclude string) error {
	target := artifact
	if exclude != "" {
		content, err := u.opts.FS.ReadFile(artifact)
		if err != nil {
			return err
		}
		target = partialPath(artifact)
		if err := u.opts.FS.WriteFile(target, []byte(locks.Exclude(string(content), exclude)), 0o644); err != nil {
			return err
		}
		u.opts.Logger.Info("installing additively", "artifact", target, "excluding", exclude)
		args := append(u.pipInstallArgs(), "--requirement", target)
		_, err = u.python.Run(ctx, args...)
		return err
	}

	u.opts.Logger.Info("synchronizing environment", "artifact", artifact)
	args := []string{"-m", "uv", "pip", "sync", artifact}
	args = append(args, u.systemArgs()...)
	_, err := u.python.Run(ctx, args...)
	return err
}

func (u *UV) pipInstallArgs() []string {
	args := []string{"-m", "uv", "pip", "install"}
	return append(args, u.systemArgs()...)
}

// systemArgs selects system-wide installs in CI, where no virtual
// environment exists.
func (u *UV) systemArgs() []string {
	if u.opts.Env.CI {
		return []string{"--system", "--break-system-packages"}
	}
	return nil
}

// partialPath names the filtered artifact written next to the original.
func partialPath(artifact string) string {
	ext := path.Ext(artifact)
	return strings.TrimSuffix(artifact, ext) + "_partial" + ext
}
