// Package guard probes whether a file is held open by another process, so
// the sync step can fall back to an additive install instead of failing
// while trying to replace a tool that is mid-write.
package guard

import (
	"os"

	"github.com/blakeNaccarato/boilercv/errors"
)

// IsLocked reports whether the file at path is exclusively held by another
// process. Nonexistent paths are never locked. Sharing violations and
// permission denials report locked; any other I/O error is fatal.
func IsLocked(path string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.WrapErrorf(errors.ErrGuardProbeFailed, "stat %q: %v", path, err)
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if isDenied(err) {
			return true, nil
		}
		return false, errors.WrapErrorf(errors.ErrGuardProbeFailed, "open %q: %v", path, err)
	}
	if err := f.Close(); err != nil {
		return false, errors.WrapErrorf(errors.ErrGuardProbeFailed, "close %q: %v", path, err)
	}
	return false, nil
}
