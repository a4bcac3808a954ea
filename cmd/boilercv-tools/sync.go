package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/blakeNaccarato/boilercv/config"
	"github.com/blakeNaccarato/boilercv/devcfg"
	"github.com/blakeNaccarato/boilercv/executor"
	"github.com/blakeNaccarato/boilercv/fsys"
	"github.com/blakeNaccarato/boilercv/locks"
	"github.com/blakeNaccarato/boilercv/resolve"
	"github.com/blakeNaccarato/boilercv/submodule"
	"github.com/blakeNaccarato/boilercv/syncer"
	"github.com/blakeNaccarato/boilercv/template"
	"github.com/blakeNaccarato/boilercv/uv"
)

// guardTool is the binary probed before applying the environment: dvc keeps
// a long-lived handle open while the pipeline runs, which blocks uninstalls
// on some platforms.
const guardTool = "dvc"

func newSyncCmd() *cobra.Command {
	var (
		flags     syncer.Flags
		pyVersion string
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize the environment with the project's locked dependencies",
		Long: `Sync bootstraps uv, resolves a matching Python environment, and installs
the locked dependency set into it. Local runs also refresh submodules,
requirement sources, dev-tool configs, and git hooks.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd, flags, pyVersion)
		},
	}

	cmd.Flags().StringVar(&pyVersion, "version", "",
		"interpreter version, major.minor (default read from the answers file)")
	cmd.Flags().BoolVar(&flags.Highest, "highest", false,
		"resolve dependencies to their highest permitted versions")
	cmd.Flags().BoolVar(&flags.Compile, "compile", false,
		"recompile the lock instead of fetching the existing artifact")
	cmd.Flags().BoolVar(&flags.Lock, "lock", false,
		"persist the compiled artifact to the committed lock (implies --compile)")
	cmd.Flags().BoolVar(&flags.NoPreSync, "no-pre-sync", false,
		"skip pre-sync housekeeping (default in CI)")
	cmd.Flags().BoolVar(&flags.NoPostSync, "no-post-sync", false,
		"skip post-sync housekeeping (default in CI)")
	cmd.Flags().BoolVar(&flags.Combine, "combine", false,
		"merge per-platform lock artifacts instead of syncing (CI only)")

	return cmd
}

func runSync(cmd *cobra.Command, flags syncer.Flags, pyVersion string) error {
	ctx := cmd.Context()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	workDir, err := os.Getwd()
	if err != nil {
		return err
	}
	fs := fsys.NewOS(workDir)

	cfg, err := config.Load(fs, config.LoadOptions{})
	if err != nil {
		return err
	}
	if pyVersion != "" {
		cfg.Version = pyVersion
	}

	// Housekeeping defaults follow the CI context unless set explicitly
	// on the command line.
	defaults := syncer.DefaultFlags(cfg.CI)
	if !cmd.Flags().Changed("no-pre-sync") {
		flags.NoPreSync = defaults.NoPreSync
	}
	if !cmd.Flags().Changed("no-post-sync") {
		flags.NoPostSync = defaults.NoPostSync
	}

	runner := executor.NewLocal(
		executor.WithWorkingDir(workDir),
		executor.WithConsole(),
		executor.WithLogger(logger),
	)

	env, err := resolve.Resolve(ctx, resolve.Options{
		FS:      fs,
		Runner:  runner,
		Version: cfg.Version,
		WorkDir: workDir,
		CI:      cfg.CI,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	driver, err := uv.New(uv.Options{
		Env:     env,
		FS:      fs,
		Runner:  runner,
		Store:   locks.NewStore(fs, cfg.Runner, cfg.Version),
		Version: cfg.Version,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	submods, err := submodule.Open(workDir)
	if err != nil {
		return err
	}

	suffix := resolve.ExeSuffix(runtime.GOOS)
	copier := executor.NewTool(runner, filepath.Join(env.Scripts, "copier"+suffix))
	precommit := executor.NewTool(runner, filepath.Join(env.Scripts, "pre-commit"+suffix))

	orchestrator, err := syncer.New(syncer.Options{
		Env:              env,
		FS:               fs,
		Boot:             driver,
		Submods:          submods,
		Locks:            driver,
		DevCfg:           devcfg.NewSyncer(fs),
		HookInst:         devcfg.NewHookInstaller(fs, precommit, logger),
		Template:         template.NewUpdater(copier),
		TemplateRevision: cfg.TemplateRevision,
		GuardPath:        filepath.Join(env.Scripts, guardTool+suffix),
		GuardName:        guardTool,
		Pairs:            []syncer.Pair{{Src: "pandas", Dst: "pandas-stubs"}},
		Logger:           logger,
	})
	if err != nil {
		return err
	}

	result, err := orchestrator.Sync(ctx, flags)
	if err != nil {
		return err
	}
	if result.Combined {
		logger.Info("combined lock artifacts", "path", result.Artifact)
	} else {
		logger.Info("environment synchronized",
			"artifact", result.Artifact, "additive", result.Additive)
	}
	return nil
}
