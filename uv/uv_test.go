package uv_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blakeNaccarato/boilercv/executor"
	"github.com/blakeNaccarato/boilercv/fsys"
	"github.com/blakeNaccarato/boilercv/locks"
	"github.com/blakeNaccarato/boilercv/resolve"
	"github.com/blakeNaccarato/boilercv/uv"
)

type call struct {
	program string
	args    []string
}

// recordingRunner records calls and replies with canned stdout per argv
// prefix.
func recordingRunner(calls *[]call, stdout map[string]string) executor.Runner {
	return executor.RunnerFunc(
		func(_ context.Context, program string, args []string, _ ...executor.Option) (*executor.Result, error) {
			*calls = append(*calls, call{program: program, args: args})
			for prefix, out := range stdout {
				if strings.HasPrefix(strings.Join(args, " "), prefix) {
					return &executor.Result{Stdout: out}, nil
				}
			}
			return &executor.Result{}, nil
		},
	)
}

func newUV(t *testing.T, fs *fsys.FS, env *resolve.Environment, calls *[]call, stdout map[string]string) *uv.UV {
	t.Helper()
	driver, err := uv.New(uv.Options{
		Env:     env,
		FS:      fs,
		Runner:  recordingRunner(calls, stdout),
		Store:   locks.NewStore(fs, "ubuntu-22.04", "3.11"),
		Version: "3.11",
		Now:     func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return driver
}

func localEnv() *resolve.Environment {
	return &resolve.Environment{Python: ".venv/bin/python", Scripts: ".venv/bin"}
}

func ciEnv() *resolve.Environment {
	return &resolve.Environment{Python: "/usr/bin/python3.11", Scripts: "/usr/bin", CI: true}
}

func TestBootstrapLocal(t *testing.T) {
	var calls []call
	driver := newUV(t, fsys.NewInMemory(), localEnv(), &calls, nil)

	require.NoError(t, driver.Bootstrap(context.Background()))

	require.Len(t, calls, 2)
	assert.Equal(t, ".venv/bin/python", calls[0].program)
	assert.Equal(t, []string{"-m", "pip", "install", "--requirement", uv.PinFile}, calls[0].args)
	assert.Equal(t, []string{"-m", "uv", "pip", "install", "--requirement", uv.DevFile}, calls[1].args)
}

func TestBootstrapCIBreaksSystemPackages(t *testing.T) {
	var calls []call
	driver := newUV(t, fsys.NewInMemory(), ciEnv(), &calls, nil)

	require.NoError(t, driver.Bootstrap(context.Background()))

	require.Len(t, calls, 2)
	assert.Contains(t, calls[0].args, "--break-system-packages")
	assert.Contains(t, calls[1].args, "--system")
}

func TestCompileWritesArtifactWithNodeps(t *testing.T) {
	fs := fsys.NewInMemory()
	require.NoError(t, fs.WriteFile(uv.NodepsFile, []byte("# no solve\ncine-tools==0.3.0\n"), 0o644))
	var calls []call
	driver := newUV(t, fs, localEnv(), &calls, map[string]string{
		"-m uv pip compile": "numpy==1.24.0\n",
	})

	artifact, err := driver.Compile(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, ".comps/requirements_ubuntu-22.04_3.11.txt", artifact)

	require.Len(t, calls, 1)
	joined := strings.Join(calls[0].args, " ")
	assert.Contains(t, joined, "--resolution lowest-direct")
	assert.Contains(t, joined, "--python-version 3.11")
	assert.Contains(t, joined, "--exclude-newer 2024-05-01T00:00:00Z")

	content, err := fs.ReadFile(artifact)
	require.NoError(t, err)
	assert.Equal(t, "numpy==1.24.0\ncine-tools==0.3.0\n", string(content))
}

func TestCompileHighestResolution(t *testing.T) {
	var calls []call
	driver := newUV(t, fsys.NewInMemory(), localEnv(), &calls, map[string]string{
		"-m uv pip compile": "numpy==2.0.0\n",
	})

	artifact, err := driver.Compile(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, ".comps/requirements_ubuntu-22.04_3.11_high.txt", artifact)
	assert.Contains(t, strings.Join(calls[0].args, " "), "--resolution highest")
}

func TestApplySync(t *testing.T) {
	fs := fsys.NewInMemory()
	require.NoError(t, fs.WriteFile(".comps/reqs.txt", []byte("numpy==1.24.0\n"), 0o644))
	var calls []call
	driver := newUV(t, fs, localEnv(), &calls, nil)

	require.NoError(t, driver.Apply(context.Background(), ".comps/reqs.txt", ""))

	require.Len(t, calls, 1)
	assert.Equal(t, []string{"-m", "uv", "pip", "sync", ".comps/reqs.txt"}, calls[0].args)
}

func TestApplyAdditiveExcludes(t *testing.T) {
	fs := fsys.NewInMemory()
	require.NoError(t, fs.WriteFile(".comps/reqs.txt", []byte("dvc==3.48.0\nnumpy==1.24.0\n"), 0o644))
	var calls []call
	driver := newUV(t, fs, localEnv(), &calls, nil)

	require.NoError(t, driver.Apply(context.Background(), ".comps/reqs.txt", "dvc"))

	require.Len(t, calls, 1)
	assert.Equal(
		t,
		[]string{"-m", "uv", "pip", "install", "--requirement", ".comps/reqs_partial.txt"},
		calls[0].args,
	)

	partial, err := fs.ReadFile(".comps/reqs_partial.txt")
	require.NoError(t, err)
	assert.Equal(t, "numpy==1.24.0\n", string(partial))
}

func TestFetchAndPersistRoundTrip(t *testing.T) {
	fs := fsys.NewInMemory()
	var calls []call
	driver := newUV(t, fs, localEnv(), &calls, map[string]string{
		"-m uv pip compile": "numpy==1.24.0\n",
	})

	_, err := driver.Compile(context.Background(), false)
	require.NoError(t, err)
	require.NoError(t, driver.Persist(context.Background(), false))

	// A fresh checkout fetches what was persisted.
	require.NoError(t, fs.Remove(".comps/requirements_ubuntu-22.04_3.11.txt"))
	artifact, err := driver.Fetch(context.Background(), false)
	require.NoError(t, err)

	content, err := fs.ReadFile(artifact)
	require.NoError(t, err)
	assert.Equal(t, "numpy==1.24.0\n", string(content))
}
