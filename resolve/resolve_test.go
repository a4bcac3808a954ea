package resolve_test

import (
	"context"
	stderrors "errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blakeNaccarato/boilercv/errors"
	"github.com/blakeNaccarato/boilercv/executor"
	"github.com/blakeNaccarato/boilercv/fsys"
	"github.com/blakeNaccarato/boilercv/resolve"
)

// fakePython simulates system interpreters and venv creation against an
// in-memory filesystem.
type fakePython struct {
	fs *fsys.FS

	// system maps interpreter paths to the version they report.
	system map[string]string

	// create returns the version the nth created venv will report.
	create func(n int) string

	creations int
	current   string
}

func (f *fakePython) runner() executor.Runner {
	return executor.RunnerFunc(
		func(_ context.Context, program string, args []string, _ ...executor.Option) (*executor.Result, error) {
			if len(args) == 3 && args[0] == "-m" && args[1] == "venv" {
				f.creations++
				f.current = f.create(f.creations)
				if err := f.fs.WriteFile(filepath.Join(resolve.VenvDir, "pyvenv.cfg"), []byte("home = /usr/bin\n"), 0o644); err != nil {
					return nil, err
				}
				return &executor.Result{}, nil
			}
			if len(args) == 1 && args[0] == "--version" {
				if v, ok := f.system[program]; ok {
					return &executor.Result{Stdout: "Python " + v + "\n"}, nil
				}
				if program == filepath.Join(resolve.VenvDir, "bin", "python") {
					return &executor.Result{Stdout: "Python " + f.current + "\n"}, nil
				}
			}
			return nil, fmt.Errorf("unexpected command %s %v: %w", program, args, errors.ErrExternalCommand)
		},
	)
}

func lookPath(available map[string]string) func(string) (string, error) {
	return func(name string) (string, error) {
		if path, ok := available[name]; ok {
			return path, nil
		}
		return "", fmt.Errorf("%s not found on PATH", name)
	}
}

func noGlob(string) ([]string, error) { return nil, nil }

func baseOptions(f *fakePython) resolve.Options {
	return resolve.Options{
		FS:       f.fs,
		Runner:   f.runner(),
		Version:  "3.11",
		LookPath: lookPath(map[string]string{"python3.11": "/usr/bin/python3.11"}),
		Glob:     noGlob,
		GOOS:     "linux",
	}
}

func TestCreatesEnvironmentWhenAbsent(t *testing.T) {
	f := &fakePython{
		fs:     fsys.NewInMemory(),
		system: map[string]string{"/usr/bin/python3.11": "3.11.9"},
		create: func(int) string { return "3.11.9" },
	}

	env, err := resolve.Resolve(context.Background(), baseOptions(f))
	require.NoError(t, err)

	assert.Equal(t, 1, f.creations)
	assert.Equal(t, filepath.Join(".venv", "bin", "python"), env.Python)
	assert.Equal(t, filepath.Join(".venv", "bin"), env.Scripts)
	assert.False(t, env.CI)
}

func TestReusesMatchingEnvironment(t *testing.T) {
	f := &fakePython{
		fs:     fsys.NewInMemory(),
		system: map[string]string{"/usr/bin/python3.11": "3.11.9"},
	}
	require.NoError(t, f.fs.WriteFile(filepath.Join(resolve.VenvDir, "pyvenv.cfg"), []byte("x"), 0o644))
	f.current = "3.11.4"

	env, err := resolve.Resolve(context.Background(), baseOptions(f))
	require.NoError(t, err)

	assert.Zero(t, f.creations)
	assert.Equal(t, filepath.Join(".venv", "bin", "python"), env.Python)
}

func TestRecreatesMismatchedEnvironmentOnce(t *testing.T) {
	f := &fakePython{
		fs:     fsys.NewInMemory(),
		system: map[string]string{"/usr/bin/python3.11": "3.11.9"},
		create: func(int) string { return "3.11.9" },
	}
	require.NoError(t, f.fs.WriteFile(filepath.Join(resolve.VenvDir, "pyvenv.cfg"), []byte("x"), 0o644))
	f.current = "3.12.1"

	env, err := resolve.Resolve(context.Background(), baseOptions(f))
	require.NoError(t, err)

	assert.Equal(t, 1, f.creations)
	assert.Equal(t, filepath.Join(".venv", "bin", "python"), env.Python)
}

func TestPersistentMismatchIsFatal(t *testing.T) {
	f := &fakePython{
		fs:     fsys.NewInMemory(),
		system: map[string]string{"/usr/bin/python3.11": "3.11.9"},
		create: func(int) string { return "3.12.1" },
	}
	require.NoError(t, f.fs.WriteFile(filepath.Join(resolve.VenvDir, "pyvenv.cfg"), []byte("x"), 0o644))
	f.current = "3.12.1"

	_, err := resolve.Resolve(context.Background(), baseOptions(f))
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrVersionMismatch))
	// Exactly one recreation before giving up.
	assert.Equal(t, 1, f.creations)
}

func TestCIUsesSystemInterpreter(t *testing.T) {
	f := &fakePython{
		fs:     fsys.NewInMemory(),
		system: map[string]string{"/usr/bin/python3.11": "3.11.9"},
	}
	opts := baseOptions(f)
	opts.CI = true

	env, err := resolve.Resolve(context.Background(), opts)
	require.NoError(t, err)

	assert.Zero(t, f.creations)
	assert.Equal(t, "/usr/bin/python3.11", env.Python)
	assert.Equal(t, "/usr/bin", env.Scripts)
	assert.True(t, env.CI)
}

func TestCIMissingInterpreterFails(t *testing.T) {
	f := &fakePython{fs: fsys.NewInMemory(), system: map[string]string{}}
	opts := baseOptions(f)
	opts.CI = true
	opts.LookPath = lookPath(nil)

	_, err := resolve.Resolve(context.Background(), opts)
	assert.True(t, stderrors.Is(err, errors.ErrInterpreterNotFound))
	assert.Contains(t, err.Error(), "install Python 3.11")
}

func TestSkipsWrongVersionSystemInterpreter(t *testing.T) {
	f := &fakePython{
		fs: fsys.NewInMemory(),
		system: map[string]string{
			"/usr/bin/python3":    "3.12.1",
			"/usr/bin/python3.11": "3.11.9",
		},
		create: func(int) string { return "3.11.9" },
	}
	opts := baseOptions(f)
	opts.LookPath = lookPath(map[string]string{
		"python3":    "/usr/bin/python3",
		"python3.11": "/usr/bin/python3.11",
	})

	env, err := resolve.Resolve(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(".venv", "bin", "python"), env.Python)
}

func TestManagedInterpreterFallback(t *testing.T) {
	managed := "/home/dev/.local/share/uv/python/cpython-3.11.9-linux-x86_64-gnu/bin/python3.11"
	f := &fakePython{
		fs:     fsys.NewInMemory(),
		system: map[string]string{managed: "3.11.9"},
	}
	opts := baseOptions(f)
	opts.CI = true
	opts.LookPath = lookPath(nil)
	opts.DataHome = "/home/dev/.local/share"
	opts.Glob = func(pattern string) ([]string, error) {
		assert.Contains(t, pattern, filepath.Join("uv", "python"))
		return []string{managed}, nil
	}

	env, err := resolve.Resolve(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, managed, env.Python)
}

func TestValidate(t *testing.T) {
	_, err := resolve.Resolve(context.Background(), resolve.Options{})
	assert.True(t, stderrors.Is(err, errors.ErrInvalidConfig))
}
