package devcfg_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blakeNaccarato/boilercv/devcfg"
	"github.com/blakeNaccarato/boilercv/executor"
	"github.com/blakeNaccarato/boilercv/fsys"
)

func countingRunner(calls *[][]string) executor.Runner {
	return executor.RunnerFunc(
		func(_ context.Context, _ string, args []string, _ ...executor.Option) (*executor.Result, error) {
			*calls = append(*calls, args)
			return &executor.Result{}, nil
		},
	)
}

func TestInstallRunsWhenHookMissing(t *testing.T) {
	fs := fsys.NewInMemory()
	var calls [][]string
	installer := devcfg.NewHookInstaller(fs, executor.NewTool(countingRunner(&calls), "pre-commit"), nil)

	require.NoError(t, installer.Install(context.Background()))
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"install"}, calls[0])
}

func TestInstallSkipsWhenHookPresent(t *testing.T) {
	fs := fsys.NewInMemory()
	require.NoError(t, fs.WriteFile(".git/hooks/pre-commit", []byte("#!/bin/sh\n"), 0o755))
	var calls [][]string
	installer := devcfg.NewHookInstaller(fs, executor.NewTool(countingRunner(&calls), "pre-commit"), nil)

	require.NoError(t, installer.Install(context.Background()))
	assert.Empty(t, calls)
}
