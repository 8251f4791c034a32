// Package lockfile guards a file-backed exchange log against a second
// FlowMentor process opening it.
//
// Locks use flock(2), so the kernel drops them when the holder exits,
// cleanly or not. A leftover lock file is therefore harmless.
package lockfile

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// Suffix is appended to the database path to form the lock path.
const Suffix = ".lock"

// ErrLocked reports that another process holds the lock.
var ErrLocked = errors.New("database is in use by another FlowMentor process")

// Lock is a held lock on one database file.
type Lock struct {
	file *os.File
	path string
}

// PathFor returns the lock path guarding a SQLite DSN. A "file:" scheme and
// query parameters are ignored.
func PathFor(dsn string) string {
	p := strings.TrimPrefix(dsn, "file:")
	p, _, _ = strings.Cut(p, "?")
	return p + Suffix
}

// Acquire takes an exclusive, non-blocking lock for the database at dsn.
// It fails with a *HeldError wrapping ErrLocked when another process holds it.
func Acquire(dsn string) (*Lock, error) {
	path := PathFor(dsn)
	slog.Debug("lockfile.Acquire: acquiring lock", "path", path)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", path, err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		held := &HeldError{Path: path, Holder: describeHolder(path), Cause: err}
		slog.Error("lockfile.Acquire: lock held by another process", "path", path, "holder", held.Holder)
		return nil, held
	}

	// Only the holder may rewrite the pid.
	if err := writePID(file); err != nil {
		slog.Warn("lockfile.Acquire: failed to record pid", "path", path, "error", err)
	}

	slog.Info("lockfile.Acquire: lock acquired", "path", path, "pid", os.Getpid())
	return &Lock{file: file, path: path}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Release drops the lock and removes the lock file. It is safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("lockfile.Release: failed to remove lock file", "path", l.path, "error", err)
	}
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		slog.Warn("lockfile.Release: failed to unlock", "path", l.path, "error", err)
	}
	err := l.file.Close()
	l.file = nil
	slog.Debug("lockfile.Release: lock released", "path", l.path)
	return err
}

// HeldError describes a lock owned by someone else.
type HeldError struct {
	Path   string
	Holder string
	Cause  error
}

func (e *HeldError) Error() string {
	msg := fmt.Sprintf("%v (lock file %s", ErrLocked, e.Path)
	if e.Holder != "" {
		msg += ", held by " + e.Holder
	}
	return msg + ")"
}

// Is reports ErrLocked so callers can use errors.Is.
func (e *HeldError) Is(target error) bool { return target == ErrLocked }

func (e *HeldError) Unwrap() error { return e.Cause }

func writePID(f *os.File) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	_, err := f.WriteAt([]byte(fmt.Sprintf("pid=%d\n", os.Getpid())), 0)
	return err
}

// describeHolder reads the holder pid from the lock file, if any.
func describeHolder(path string) string {
	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		return ""
	}
	pid := parsePID(string(data))
	if pid <= 0 {
		return ""
	}
	if processAlive(pid) {
		return fmt.Sprintf("pid %d", pid)
	}
	return fmt.Sprintf("pid %d, not running", pid)
}

// parsePID extracts N from a "pid=N" line. It returns 0 when absent.
func parsePID(content string) int {
	_, rest, ok := strings.Cut(content, "pid=")
	if !ok {
		return 0
	}
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	pid, err := strconv.Atoi(rest[:end])
	if err != nil {
		return 0
	}
	return pid
}

// processAlive sends signal 0 to pid.
func processAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
