//go:build !windows

package guard

import (
	"errors"
	"os"
	"syscall"
)

// POSIX opens rarely conflict; a write-locked or unwritable file surfaces
// as a permission error, and mandatory locks as EAGAIN.
func isDenied(err error) bool {
	return os.IsPermission(err) || errors.Is(err, syscall.EAGAIN)
}
