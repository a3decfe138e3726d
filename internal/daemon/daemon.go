// Package daemon manages the PID file of a running teamclock server.
package daemon

import (
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
)

// ErrNotRunning is returned by Stop when no live server owns the PID file.
var ErrNotRunning = errors.New("server is not running")

type Daemon struct {
	pidFile string
}

func New(pidFile string) *Daemon {
	return &Daemon{pidFile: pidFile}
}

func (d *Daemon) PIDFile() string {
	return d.pidFile
}

// Acquire writes the current PID, refusing when another live process
// already holds the file.
func (d *Daemon) Acquire() error {
	running, pid, err := d.IsRunning()
	if err != nil {
		return err
	}
	if running && pid != os.Getpid() {
		return errors.Errorf("server is already running (PID: %d)", pid)
	}
	return d.WritePID()
}

func (d *Daemon) WritePID() error {
	err := os.WriteFile(d.pidFile, []byte(strconv.Itoa(os.Getpid())), 0o644)
	return errors.Wrap(err, "failed to write PID file")
}

// ReadPID returns 0 when there is no PID file.
func (d *Daemon) ReadPID() (int, error) {
	data, err := os.ReadFile(d.pidFile)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "failed to read PID file")
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, errors.Errorf("invalid PID in %s: %q", d.pidFile, data)
	}
	return pid, nil
}

func (d *Daemon) RemovePID() error {
	if err := os.Remove(d.pidFile); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to remove PID file")
	}
	return nil
}

// IsRunning reports whether the recorded process is alive. A stale PID
// file is removed.
func (d *Daemon) IsRunning() (bool, int, error) {
	pid, err := d.ReadPID()
	if err != nil || pid == 0 {
		return false, 0, err
	}
	if !alive(pid) {
		_ = d.RemovePID()
		return false, 0, nil
	}
	return true, pid, nil
}

// Stop sends SIGTERM and waits up to timeout for the process to exit. The
// server removes its own PID file on the way out.
func (d *Daemon) Stop(timeout time.Duration) (int, error) {
	running, pid, err := d.IsRunning()
	if err != nil {
		return 0, err
	}
	if !running {
		return 0, ErrNotRunning
	}
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			_ = d.RemovePID()
			return pid, ErrNotRunning
		}
		return pid, errors.Wrap(err, "failed to send SIGTERM")
	}

	deadline := time.Now().Add(timeout)
	for alive(pid) {
		if time.Now().After(deadline) {
			return pid, errors.Errorf("server (PID: %d) did not exit within %s", pid, timeout)
		}
		time.Sleep(100 * time.Millisecond)
	}
	return pid, d.RemovePID()
}

func alive(pid int) bool {
	err := syscall.Kill(pid, syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
