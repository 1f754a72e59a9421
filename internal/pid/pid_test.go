package pid_test

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/mutker/fleetinv/internal/errors"
	"codeberg.org/mutker/fleetinv/internal/pid"
)

func pidPath(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("TMPDIR", dir)

	return filepath.Join(dir, "fleetinv.pid")
}

func TestWriteAndRemove(t *testing.T) {
	path := pidPath(t)

	require.NoError(t, pid.Write())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(raw))

	require.NoError(t, pid.Remove())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestWriteRefusesLiveProcess(t *testing.T) {
	pidPath(t)

	require.NoError(t, pid.Write())

	// The file now names this test process, which is very much alive.
	err := pid.Write()
	require.Error(t, err)
	assert.Equal(t, errors.ErrAlreadyRunning, errors.CodeOf(err))
}

func TestWriteReplacesStalePID(t *testing.T) {
	path := pidPath(t)

	// Far beyond the default pid_max, so no live process can own it.
	require.NoError(t, os.WriteFile(path, []byte("99999999"), 0o600))

	require.NoError(t, pid.Write())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(raw))
}

func TestRemoveMissingFile(t *testing.T) {
	pidPath(t)

	assert.NoError(t, pid.Remove())
}
