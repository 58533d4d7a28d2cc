package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"codeberg.org/mutker/bluez-monitor/internal/errors"
)

// DefaultName is the PID file name used by the monitor.
const DefaultName = "bluez-monitor.pid"

// File guards a single running instance through a PID file.
type File struct {
	path string
}

// New returns a File named name in the system temp directory.
func New(name string) *File {
	return NewAt(os.TempDir(), name)
}

// NewAt returns a File named name in dir.
func NewAt(dir, name string) *File {
	return &File{path: filepath.Join(dir, name)}
}

// Path returns the PID file location.
func (f *File) Path() string {
	return f.path
}

// Write records the current process ID. It fails with ErrAlreadyRunning when
// the file names a live process; a stale or unreadable file is replaced.
func (f *File) Write() error {
	errFactory := errors.New()

	if pid, ok := f.running(); ok {
		return errFactory.WithData(errors.ErrAlreadyRunning, pid)
	}

	err := os.WriteFile(f.path, []byte(strconv.Itoa(os.Getpid())), 0o600)
	if err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

// running reports the PID recorded in the file when that process is alive.
func (f *File) running() (int, bool) {
	bytes, err := os.ReadFile(f.path)
	if err != nil {
		return 0, false
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(bytes)))
	if err != nil || pid <= 0 || pid == os.Getpid() {
		return 0, false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return 0, false
	}

	// Signal 0 only checks that the process exists
	if err := process.Signal(syscall.Signal(0)); err != nil {
		return 0, false
	}

	return pid, true
}

// Remove removes the PID file.
func (f *File) Remove() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return errors.New().Wrap(errors.ErrInternal, err)
	}

	return nil
}
