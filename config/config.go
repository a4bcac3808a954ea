// Package config loads the run configuration for the bootstrap tooling:
// the copier answers file pinning the project's Python version and template
// revision, plus the CI context derived from the process environment.
//
// The configuration is read once at startup and treated as an immutable
// snapshot for the duration of the run.
package config

import (
	"fmt"
	"os"
	"runtime"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/blakeNaccarato/boilercv/errors"
	"github.com/blakeNaccarato/boilercv/fsys"
)

const (
	// DefaultAnswersPath is where copier records its answers.
	DefaultAnswersPath = ".copier-answers.yml"

	// DefaultEnvFile is an optional env file loaded before the CI marker
	// is read, so local overrides survive shell restarts.
	DefaultEnvFile = ".env"

	// CIMarker is the environment variable marking a CI context.
	CIMarker = "CI"

	// NoCIOverride force-disables CI behavior for local testing of the
	// CI code paths.
	NoCIOverride = "BOILERCV_NO_CI"
)

// Config is the immutable run configuration.
type Config struct {
	// Version is the requested interpreter version, major.minor.
	Version string

	// TemplateRevision is the template revision recorded by copier.
	TemplateRevision string

	// CI reports whether this run is in a CI context.
	CI bool

	// Runner is the CI runner identifier for this platform, used to name
	// per-platform lock artifacts.
	Runner string
}

// LoadOptions configures configuration loading.
type LoadOptions struct {
	// AnswersPath overrides the copier answers file location.
	AnswersPath string

	// EnvFile overrides the env file location. Missing files are ignored.
	EnvFile string

	// Environ overrides environment lookup, for tests.
	// Defaults to os.Getenv.
	Environ func(string) string

	// GOOS overrides the platform used for runner mapping, for tests.
	GOOS string
}

func (o *LoadOptions) applyDefaults() {
	if o.AnswersPath == "" {
		o.AnswersPath = DefaultAnswersPath
	}
	if o.EnvFile == "" {
		o.EnvFile = DefaultEnvFile
	}
	if o.Environ == nil {
		o.Environ = os.Getenv
	}
	if o.GOOS == "" {
		o.GOOS = runtime.GOOS
	}
}

// answers models the subset of the copier answers file we consume.
type answers struct {
	PythonVersion string `yaml:"python_version"`
	Commit        string `yaml:"_commit"`
}

// Load reads the answers file and environment into a Config snapshot.
func Load(fs fsys.Filesystem, opts LoadOptions) (*Config, error) {
	opts.applyDefaults()

	data, err := fs.ReadFile(opts.AnswersPath)
	if err != nil {
		return nil, errors.WrapErrorf(errors.ErrInvalidConfig, "reading answers file %q", opts.AnswersPath)
	}
	var ans answers
	if err := yaml.Unmarshal(data, &ans); err != nil {
		return nil, errors.WrapErrorf(errors.ErrInvalidConfig, "parsing answers file %q: %v", opts.AnswersPath, err)
	}
	if ans.PythonVersion == "" {
		return nil, errors.WrapErrorf(errors.ErrInvalidConfig, "answers file %q has no python_version", opts.AnswersPath)
	}

	environ := envFileLookup(fs, opts.EnvFile, opts.Environ)

	runner, err := RunnerID(opts.GOOS)
	if err != nil {
		return nil, err
	}

	return &Config{
		Version:          ans.PythonVersion,
		TemplateRevision: ans.Commit,
		CI:               environ(CIMarker) != "" && environ(NoCIOverride) == "",
		Runner:           runner,
	}, nil
}

// envFileLookup layers an optional env file under the process environment:
// explicit environment variables win over file entries.
func envFileLookup(fs fsys.Filesystem, path string, environ func(string) string) func(string) string {
	fileEnv := map[string]string{}
	if data, err := fs.ReadFile(path); err == nil {
		if parsed, err := godotenv.Unmarshal(string(data)); err == nil {
			fileEnv = parsed
		}
	}
	return func(key string) string {
		if v := environ(key); v != "" {
			return v
		}
		return fileEnv[key]
	}
}

// RunnerID maps a platform to the GitHub Actions runner whose lock artifacts
// apply to it.
func RunnerID(goos string) (string, error) {
	switch goos {
	case "darwin":
		return "macos-13", nil
	case "linux":
		return "ubuntu-22.04", nil
	case "windows":
		return "windows-2022", nil
	default:
		return "", fmt.Errorf("unsupported platform %q: %w", goos, errors.ErrInvalidConfig)
	}
}
