// Package fsys provides the filesystem abstraction used by the bootstrap
// tooling. It wraps go-billy so production code runs against the OS
// filesystem while tests run against an in-memory one.
package fsys

import (
	"os"
)

// Filesystem is the set of filesystem operations the tooling needs.
// All paths are interpreted relative to the filesystem root.
type Filesystem interface {
	// Exists reports whether path exists, without distinguishing files
	// from directories.
	Exists(path string) (bool, error)

	// Glob returns the paths matching pattern, in lexical order.
	Glob(pattern string) ([]string, error)

	// MkdirAll creates a directory and any missing parents.
	MkdirAll(path string, perm os.FileMode) error

	// ReadFile reads a whole file.
	ReadFile(path string) ([]byte, error)

	// Remove removes a single file or empty directory.
	Remove(name string) error

	// RemoveAll removes a path and any children it contains.
	RemoveAll(path string) error

	// WriteFile writes a whole file, creating it if necessary.
	WriteFile(path string, data []byte, perm os.FileMode) error
}
