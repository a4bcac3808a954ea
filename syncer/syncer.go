// Package syncer sequences the dependency-sync operations: bootstrap,
// pre-sync housekeeping, lock acquisition, the resource-guard check, the
// install/sync apply step, and post-sync housekeeping. It decides what runs
// from the sync flags and the environment; the work itself happens in
// collaborators consumed through narrow interfaces.
package syncer

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"

	"github.com/blakeNaccarato/boilercv/errors"
	"github.com/blakeNaccarato/boilercv/fsys"
	"github.com/blakeNaccarato/boilercv/guard"
	"github.com/blakeNaccarato/boilercv/locks"
	"github.com/blakeNaccarato/boilercv/resolve"
	"github.com/blakeNaccarato/boilercv/submodule"
)

// Flags select which sync operations run. They are supplied by the caller
// and immutable for the run.
type Flags struct {
	// Highest resolves dependencies to their highest permitted versions
	// instead of lowest-direct.
	Highest bool

	// Compile regenerates the lock from source specifications rather than
	// fetching the existing artifact.
	Compile bool

	// Lock additionally persists a freshly compiled artifact into the
	// committed lock. Implies Compile; persisting happens only in CI.
	Lock bool

	// NoPreSync skips pre-sync housekeeping.
	NoPreSync bool

	// NoPostSync skips post-sync housekeeping.
	NoPostSync bool

	// Combine merges per-platform artifacts instead of running a sync.
	Combine bool
}

// DefaultFlags returns the flag defaults for the given CI context: pre- and
// post-sync housekeeping runs locally and is skipped in CI.
func DefaultFlags(ci bool) Flags {
	return Flags{NoPreSync: ci, NoPostSync: ci}
}

// Bootstrapper installs the package-management tooling.
type Bootstrapper interface {
	Bootstrap(ctx context.Context) error
}

// Templater re-applies the project scaffolding template at a revision.
type Templater interface {
	Update(ctx context.Context, revision string) error
}

// Submodules synchronizes git submodules and reports their pinned commits.
type Submodules interface {
	Sync(ctx context.Context) error
	Pins() ([]submodule.Pin, error)
}

// Locker compiles, fetches, persists, combines, and applies lock artifacts.
type Locker interface {
	Compile(ctx context.Context, highest bool) (string, error)
	Fetch(ctx context.Context, highest bool) (string, error)
	Persist(ctx context.Context, highest bool) error
	Combine(ctx context.Context) (string, error)
	Apply(ctx context.Context, artifact, exclude string) error
}

// DevConfig regenerates local editor and dev-tool configuration.
type DevConfig interface {
	Sync() error
}

// Hooks installs missing source-control hooks.
type Hooks interface {
	Install(ctx context.Context) error
}

// Pair couples a source dependency to one whose pin must track it.
type Pair struct {
	Src string
	Dst string
}

// Options configures the Orchestrator.
type Options struct {
	// Env is the resolved environment. REQUIRED.
	Env *resolve.Environment

	// FS is the project filesystem. REQUIRED.
	FS fsys.Filesystem

	// Boot, Submods, Locks, DevCfg, and HookInst are the step
	// collaborators. REQUIRED.
	Boot     Bootstrapper
	Submods  Submodules
	Locks    Locker
	DevCfg   DevConfig
	HookInst Hooks

	// Template re-applies scaffolding in CI. REQUIRED when Env.CI.
	Template Templater

	// TemplateRevision is the revision bootstrap applies in CI.
	TemplateRevision string

	// GuardPath is the tool binary probed before the apply step.
	GuardPath string

	// GuardName is the requirement excluded when GuardPath is locked.
	GuardName string

	// Probe overrides the lock probe. Defaults to guard.IsLocked.
	Probe func(string) (bool, error)

	// Pairs are coupled dependency pins kept in sync during pre-sync.
	Pairs []Pair

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
	case o.Boot == nil:
		return errors.WrapError(errors.ErrInvalidConfig, "Boot is required")
	case o.Submods == nil:
		return errors.WrapError(errors.ErrInvalidConfig, "Submods is required")
	case o.Locks == nil:
		return errors.WrapError(errors.ErrInvalidConfig, "Locks is required")
	case o.DevCfg == nil:
		return errors.WrapError(errors.ErrInvalidConfig, "DevCfg is required")
	case o.HookInst == nil:
		return errors.WrapError(errors.ErrInvalidConfig, "HookInst is required")
	case o.Env.CI && o.Template == nil:
		return errors.WrapError(errors.ErrInvalidConfig, "Template is required in CI")
	}
	return nil
}

func (o *Options) applyDefaults() {
	if o.Probe == nil {
		o.Probe = guard.IsLocked
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
}

// Result reports what a sync run did.
type Result struct {
	// Artifact is the lock artifact applied, or the combined lock when
	// Combined is set.
	Artifact string

	// Additive reports that the guard degraded the apply step to an
	// additive install.
	Additive bool

	// Combined reports that this run merged artifacts instead of syncing.
	Combined bool
}

// Orchestrator sequences one sync run. Failures are fatal and abort the
// remaining sequence.
type Orchestrator struct {
	opts Options
}

// New creates an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts.applyDefaults()
	return &Orchestrator{opts: opts}, nil
}

// Sync runs the sequence selected by flags.
func (o *Orchestrator) Sync(ctx context.Context, flags Flags) (*Result, error) {
	if err := o.bootstrap(ctx); err != nil {
		return nil, err
	}

	if !flags.NoPreSync {
		if err := o.preSync(ctx); err != nil {
			return nil, err
		}
	}

	if flags.Combine {
		return o.combine(ctx)
	}

	artifact, err := o.acquire(ctx, flags)
	if err != nil {
		return nil, err
	}

	additive, err := o.apply(ctx, artifact)
	if err != nil {
		return nil, err
	}

	if !flags.NoPostSync {
		if err := o.postSync(ctx); err != nil {
			return nil, err
		}
	}

	return &Result{Artifact: artifact, Additive: additive}, nil
}

func (o *Orchestrator) bootstrap(ctx context.Context) error {
	if err := o.opts.Boot.Bootstrap(ctx); err != nil {
		return err
	}
	if !o.opts.Env.CI {
		return nil
	}
	// The template may move the uv pin, so bootstrap runs again after it.
	if err := o.opts.Template.Update(ctx, o.opts.TemplateRevision); err != nil {
		return err
	}
	return o.opts.Boot.Bootstrap(ctx)
}

func (o *Orchestrator) preSync(ctx context.Context) error {
	o.opts.Logger.Info("synchronizing submodules")
	if err := o.opts.Submods.Sync(ctx); err != nil {
		return err
	}
	pins, err := o.opts.Submods.Pins()
	if err != nil {
		return err
	}
	if err := o.syncSources(pins); err != nil {
		return err
	}
	if o.opts.Env.CI {
		for _, pin := range pins {
			if pin.Name == submodule.TemplateName {
				return o.opts.Template.Update(ctx, pin.Commit)
			}
		}
	}
	return nil
}

// syncSources rewrites the requirement sources: coupled pins track their
// source dependency, and commit-pinned requirements track their submodule.
func (o *Orchestrator) syncSources(pins []submodule.Pin) error {
	files := []string{"pyproject.toml"}
	ins, err := o.opts.FS.Glob("requirements/*.in")
	if err != nil {
		return err
	}
	files = append(files, ins...)

	for _, file := range files {
		ok, err := o.opts.FS.Exists(file)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		data, err := o.opts.FS.ReadFile(file)
		if err != nil {
			return err
		}
		original := string(data)
		content := original
		for _, pair := range o.opts.Pairs {
			content = locks.SyncPaired(content, pair.Src, pair.Dst)
		}
		for _, pin := range pins {
			content = locks.SyncPinned(content, pin.Name, pin.Commit)
		}
		if content != original {
			o.opts.Logger.Info("updating requirement source", "file", file)
			if err := o.opts.FS.WriteFile(file, []byte(content), 0o644); err != nil {
				return err
			}
		}
	}
	return nil
}

func (o *Orchestrator) combine(ctx context.Context) (*Result, error) {
	if !o.opts.Env.CI {
		o.opts.Logger.Warn("combining locks is a CI operation, skipping")
		return &Result{Combined: true}, nil
	}
	path, err := o.opts.Locks.Combine(ctx)
	if err != nil {
		return nil, err
	}
	return &Result{Artifact: path, Combined: true}, nil
}

func (o *Orchestrator) acquire(ctx context.Context, flags Flags) (string, error) {
	if flags.Compile || flags.Lock {
		artifact, err := o.opts.Locks.Compile(ctx, flags.Highest)
		if err != nil {
			return "", err
		}
		if flags.Lock && o.opts.Env.CI {
			if err := o.opts.Locks.Persist(ctx, flags.Highest); err != nil {
				return "", err
			}
		}
		return artifact, nil
	}
	artifact, err := o.opts.Locks.Fetch(ctx, flags.Highest)
	if stderrors.Is(err, errors.ErrLockMissing) {
		// A lock entry for this environment does not exist yet, so there
		// is nothing to fetch: compile one instead.
		o.opts.Logger.Info("no existing lock for this environment, compiling")
		return o.opts.Locks.Compile(ctx, flags.Highest)
	}
	return artifact, err
}

func (o *Orchestrator) apply(ctx context.Context, artifact string) (bool, error) {
	locked := false
	if o.opts.GuardPath != "" {
		var err error
		locked, err = o.opts.Probe(o.opts.GuardPath)
		if err != nil {
			return false, err
		}
	}
	exclude := ""
	if locked {
		exclude = o.opts.GuardName
		o.opts.Logger.Warn(
			"tool is held open by another process, installing additively",
			"path", o.opts.GuardPath,
			"hint", "close the process using it and re-run for a full sync",
		)
	}
	return locked, o.opts.Locks.Apply(ctx, artifact, exclude)
}

func (o *Orchestrator) postSync(ctx context.Context) error {
	o.opts.Logger.Info("regenerating local dev configs")
	if err := o.opts.DevCfg.Sync(); err != nil {
		return err
	}
	return o.opts.HookInst.Install(ctx)
}
