package pid_test

import (
	"os"
	"strconv"
	"testing"

	"codeberg.org/mutker/bluez-monitor/internal/errors"
	"codeberg.org/mutker/bluez-monitor/internal/pid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAndRemove(t *testing.T) {
	f := pid.NewAt(t.TempDir(), pid.DefaultName)

	require.NoError(t, f.Write())

	content, err := os.ReadFile(f.Path())
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(content))

	require.NoError(t, f.Remove())
	_, err = os.Stat(f.Path())
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, f.Remove(), "removing a missing file is not an error")
}

func TestWriteRefusesLiveProcess(t *testing.T) {
	f := pid.NewAt(t.TempDir(), pid.DefaultName)
	// The parent is the go test runner and is alive for the whole test.
	require.NoError(t, os.WriteFile(f.Path(), []byte(strconv.Itoa(os.Getppid())), 0o600))

	err := f.Write()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrAlreadyRunning))
}

func TestWriteReplacesStaleFile(t *testing.T) {
	f := pid.NewAt(t.TempDir(), pid.DefaultName)
	require.NoError(t, os.WriteFile(f.Path(), []byte("not a pid"), 0o600))

	require.NoError(t, f.Write())

	content, err := os.ReadFile(f.Path())
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(content))
}
