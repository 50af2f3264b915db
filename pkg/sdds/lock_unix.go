//go:build linux || darwin

package sdds

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/ajitpratap0/sdds/pkg/errors"
)

// lockFile takes an exclusive advisory lock without blocking
func lockFile(f *os.File) error {
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		if err == unix.EWOULDBLOCK {
			return errors.Newf(errors.ErrorTypeTransport, "file %s is locked by another writer", f.Name())
		}
		return errors.Wrapf(err, errors.ErrorTypeTransport, "failed to lock %s", f.Name())
	}
	return nil
}

// unlockFile releases a lock taken by lockFile
func unlockFile(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
