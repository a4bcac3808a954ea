//go:build windows

package guard

import (
	"errors"
	"os"
	"syscall"
)

// Windows reports a file held open without write sharing as a sharing or
// lock violation rather than a permission error.
const (
	errorSharingViolation syscall.Errno = 32
	errorLockViolation    syscall.Errno = 33
)

func isDenied(err error) bool {
	if os.IsPermission(err) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == errorSharingViolation || errno == errorLockViolation
	}
	return false
}
