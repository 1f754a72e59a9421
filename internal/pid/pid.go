// Package pid guards against overlapping runs. Scheduled collections can
// pile up when a fleet is slow; the PID file makes the second invocation
// abort instead of doubling the load on the consoles.
package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"syscall"

	"codeberg.org/mutker/fleetinv/internal/errors"
)

const pidFile = "fleetinv.pid"

func path() string {
	return filepath.Join(os.TempDir(), pidFile)
}

// Write writes the current process ID to the PID file. When the file holds
// the PID of a live process, the run is refused with ErrAlreadyRunning; a
// stale file left by a dead process is replaced.
func Write() error {
	errFactory := errors.New()

	if raw, err := os.ReadFile(path()); err == nil {
		previous, err := strconv.Atoi(string(raw))
		if err != nil {
			return errFactory.Wrap(errors.ErrInternal, err)
		}

		process, err := os.FindProcess(previous)
		if err != nil {
			return errFactory.Wrap(errors.ErrInternal, err)
		}

		if process.Signal(syscall.Signal(0)) == nil {
			return errFactory.New(errors.ErrAlreadyRunning)
		}
	}

	if err := os.WriteFile(path(), []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

// Remove removes the PID file.
func Remove() error {
	errFactory := errors.New()

	if _, err := os.Stat(path()); os.IsNotExist(err) {
		return nil
	}

	if err := os.Remove(path()); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}
