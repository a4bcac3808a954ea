// Package devcfg regenerates local developer configuration that shadows
// pyproject.toml. The shadow files are gitignored: locally they take
// precedence, while CI and fresh clones fall back to pyproject.toml itself.
package devcfg

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/blakeNaccarato/boilercv/errors"
	"github.com/blakeNaccarato/boilercv/fsys"
)

const (
	// Pyproject is the source of truth for tool configuration.
	Pyproject = "pyproject.toml"

	// PyrightConfig is the generated pyright shadow configuration.
	PyrightConfig = "pyrightconfig.json"

	// PytestConfig is the generated pytest shadow configuration.
	PytestConfig = "pytest.ini"
)

// Syncer regenerates the shadow configuration files.
type Syncer struct {
	fs fsys.Filesystem

	// extraIncludes are local paths added to the pyright includes, such as
	// an editable local dependency's source tree.
	extraIncludes []string
}

// NewSyncer creates a Syncer. extraIncludes are added to the pyright include
// list so editable local dependencies participate in refactors.
func NewSyncer(fs fsys.Filesystem, extraIncludes ...string) *Syncer {
	return &Syncer{fs: fs, extraIncludes: extraIncludes}
}

// Sync writes both shadow configuration files from pyproject.toml.
// Local pytest runs get concurrent tests disabled, which would slow down the
// usual granular local test workflow.
func (s *Syncer) Sync() error {
	data, err := s.fs.ReadFile(Pyproject)
	if err != nil {
		return err
	}
	var pyproject map[string]any
	if err := toml.Unmarshal(data, &pyproject); err != nil {
		return errors.WrapErrorf(errors.ErrInvalidConfig, "parsing %s: %v", Pyproject, err)
	}

	if err := s.syncPyright(pyproject); err != nil {
		return err
	}
	return s.syncPytest(pyproject)
}

func (s *Syncer) syncPyright(pyproject map[string]any) error {
	pyright, err := toolTable(pyproject, "pyright")
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(AddPyrightIncludes(pyright, s.extraIncludes), "", "  ")
	if err != nil {
		return err
	}
	return s.fs.WriteFile(PyrightConfig, append(out, '\n'), 0o644)
}

func (s *Syncer) syncPytest(pyproject map[string]any) error {
	pytest, err := toolTable(pyproject, "pytest")
	if err != nil {
		return err
	}
	options, ok := pytest["ini_options"].(map[string]any)
	if !ok {
		return errors.WrapError(errors.ErrInvalidConfig, "pyproject.toml has no tool.pytest.ini_options")
	}
	if addopts, ok := options["addopts"].(string); ok {
		options["addopts"] = DisableConcurrentTests(addopts)
	}

	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := []string{"[pytest]"}
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s = %s", k, formatIniValue(options[k])))
	}
	content := strings.Join(lines, "\n") + "\n"
	return s.fs.WriteFile(PytestConfig, []byte(content), 0o644)
}

func toolTable(pyproject map[string]any, name string) (map[string]any, error) {
	tool, ok := pyproject["tool"].(map[string]any)
	if !ok {
		return nil, errors.WrapError(errors.ErrInvalidConfig, "pyproject.toml has no tool table")
	}
	table, ok := tool[name].(map[string]any)
	if !ok {
		return nil, errors.WrapErrorf(errors.ErrInvalidConfig, "pyproject.toml has no tool.%s table", name)
	}
	return table, nil
}

func formatIniValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = fmt.Sprintf("%v", item)
		}
		return strings.Join(parts, " ")
	default:
		return fmt.Sprintf("%v", v)
	}
}

// AddPyrightIncludes prepends the existing include list to the extra paths
// and returns a new configuration map.
func AddPyrightIncludes(config map[string]any, extra []string) map[string]any {
	out := make(map[string]any, len(config)+1)
	for k, v := range config {
		if k == "include" {
			continue
		}
		out[k] = v
	}
	includes := []any{}
	if existing, ok := config["include"].([]any); ok {
		includes = append(includes, existing...)
	}
	for _, path := range extra {
		includes = append(includes, path)
	}
	out["include"] = includes
	return out
}

var concurrencyFlag = regexp.MustCompile(`-n\s*\S+`)

// DisableConcurrentTests normalizes addopts to one line and forces pytest
// workers to zero.
func DisableConcurrentTests(addopts string) string {
	normalized := strings.Join(strings.Fields(addopts), " ")
	return concurrencyFlag.ReplaceAllString(normalized, "-n 0")
}
