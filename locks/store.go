// Package locks manages dependency lock artifacts: the per-platform compiled
// requirement sets under .comps and the combined, committed lock.json that
// maps artifact stems to their content.
package locks

import (
	"encoding/json"
	"path"
	"strings"

	"github.com/blakeNaccarato/boilercv/errors"
	"github.com/blakeNaccarato/boilercv/fsys"
)

const (
	// CompsDir holds platform-specific dependency compilations.
	CompsDir = ".comps"

	// LockFile is the combined lock for all platforms, committed to the repo.
	LockFile = "lock.json"
)

// Store reads and writes lock artifacts for one runner/version environment.
type Store struct {
	fs      fsys.Filesystem
	runner  string
	version string
}

// NewStore creates a Store for the given runner identifier and Python version.
func NewStore(fs fsys.Filesystem, runner, version string) *Store {
	return &Store{fs: fs, runner: runner, version: version}
}

// ArtifactName returns the artifact stem for this environment,
// e.g. requirements_ubuntu-22.04_3.11_high.
func (s *Store) ArtifactName(highest bool) string {
	parts := []string{"requirements", s.runner, s.version}
	if highest {
		parts = append(parts, "high")
	}
	return strings.Join(parts, "_")
}

// ArtifactPath returns the artifact path for this environment.
func (s *Store) ArtifactPath(highest bool) string {
	return path.Join(CompsDir, s.ArtifactName(highest)+".txt")
}

// WriteArtifact writes a freshly compiled artifact and returns its path.
func (s *Store) WriteArtifact(highest bool, content string) (string, error) {
	if err := s.fs.MkdirAll(CompsDir, 0o755); err != nil {
		return "", err
	}
	p := s.ArtifactPath(highest)
	if err := s.fs.WriteFile(p, []byte(content), 0o644); err != nil {
		return "", err
	}
	return p, nil
}

// ReadArtifact reads the current artifact content for this environment.
func (s *Store) ReadArtifact(highest bool) (string, error) {
	data, err := s.fs.ReadFile(s.ArtifactPath(highest))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Fetch populates the artifact from the combined lock and returns its path.
// Returns ErrLockMissing when the combined lock has no entry for this
// environment.
func (s *Store) Fetch(highest bool) (string, error) {
	combined, err := s.readCombined()
	if err != nil {
		return "", err
	}
	name := s.ArtifactName(highest)
	content, ok := combined[name]
	if !ok {
		return "", errors.WrapErrorf(errors.ErrLockMissing, "%s not in %s", name, LockFile)
	}
	return s.WriteArtifact(highest, content)
}

// Persist writes the current artifact into the combined lock, creating the
// lock if it does not exist yet.
func (s *Store) Persist(highest bool) error {
	content, err := s.ReadArtifact(highest)
	if err != nil {
		return err
	}
	combined, err := s.readCombined()
	if err != nil {
		return err
	}
	combined[s.ArtifactName(highest)] = content
	return s.writeCombined(combined)
}

// Combine merges every artifact under CompsDir into the combined lock and
// returns the lock path. Output is deterministic: stems sort lexically.
func (s *Store) Combine() (string, error) {
	matches, err := s.fs.Glob(path.Join(CompsDir, "requirements_*.txt"))
	if err != nil {
		return "", err
	}
	combined, err := s.readCombined()
	if err != nil {
		return "", err
	}
	for _, match := range matches {
		data, err := s.fs.ReadFile(match)
		if err != nil {
			return "", err
		}
		stem := strings.TrimSuffix(path.Base(match), ".txt")
		combined[stem] = string(data)
	}
	if err := s.writeCombined(combined); err != nil {
		return "", err
	}
	return LockFile, nil
}

func (s *Store) readCombined() (map[string]string, error) {
	ok, err := s.fs.Exists(LockFile)
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]string{}, nil
	}
	data, err := s.fs.ReadFile(LockFile)
	if err != nil {
		return nil, err
	}
	combined := map[string]string{}
	if err := json.Unmarshal(data, &combined); err != nil {
		return nil, errors.WrapErrorf(errors.ErrInvalidConfig, "parsing %s: %v", LockFile, err)
	}
	return combined, nil
}

func (s *Store) writeCombined(combined map[string]string) error {
	// encoding/json sorts map keys, keeping diffs stable across platforms.
	data, err := json.MarshalIndent(combined, "", "  ")
	if err != nil {
		return err
	}
	return s.fs.WriteFile(LockFile, append(data, '\n'), 0o644)
}
