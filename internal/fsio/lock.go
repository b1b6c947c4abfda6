// Package fsio provides the cross-process concurrency primitives the data
// directory depends on: an advisory lock file with stale-lock recovery, and
// atomic write-temp-then-rename publication.
//
// Many independent memorix processes (one per editor) share one directory.
// Correctness rests on two facts: O_EXCL file creation is atomic, and
// rename within a directory is atomic. Nothing here blocks readers —
// readers may see a pre-rename version of a file but never a torn one.
package fsio

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/AVIDS2/memorix/internal/memerr"
)

const (
	// LockFileName is the advisory lock inside the data directory.
	LockFileName = ".memorix.lock"

	lockRetryDelay  = 50 * time.Millisecond
	lockMaxAttempts = 60
	staleLockAge    = 10 * time.Second
)

type lockInfo struct {
	PID  int    `json:"pid"`
	Time string `json:"time"`
}

// Acquire atomically creates lockPath. On collision it waits and retries up
// to ~3 s, removing locks whose mtime is older than 10 s (a crashed owner).
// If every attempt fails it force-unlinks once and tries a final create;
// failing that it returns a LockTimeout.
//
// The lock file contents identify the owner for debugging only —
// correctness depends on O_EXCL, not on what is written.
func Acquire(lockPath string) error {
	for attempt := 0; attempt < lockMaxAttempts; attempt++ {
		if tryCreate(lockPath) {
			return nil
		}
		if removeIfStale(lockPath) {
			continue
		}
		time.Sleep(lockRetryDelay)
	}

	// Last resort: assume the owner is gone, take the lock by force.
	_ = os.Remove(lockPath)
	if tryCreate(lockPath) {
		return nil
	}
	return memerr.Newf(memerr.KindLockTimeout, "could not acquire %s after %d attempts", lockPath, lockMaxAttempts)
}

// Release removes the lock file. A missing lock is not an error.
func Release(lockPath string) {
	err := os.Remove(lockPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		// Best-effort by contract; the stale-lock path cleans up after us.
		return
	}
}

// WithLock acquires the directory lock, runs fn, and releases on every exit
// path including panics.
func WithLock(dir string, fn func() error) error {
	lockPath := filepath.Join(dir, LockFileName)
	if err := Acquire(lockPath); err != nil {
		return err
	}
	defer Release(lockPath)
	return fn()
}

func tryCreate(lockPath string) bool {
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return false
	}
	info := lockInfo{PID: os.Getpid(), Time: time.Now().UTC().Format(time.RFC3339)}
	data, _ := json.Marshal(info)
	_, _ = f.Write(data)
	_ = f.Close()
	return true
}

// removeIfStale unlinks the lock when its mtime is older than staleLockAge.
// Returns true when the caller should retry immediately.
func removeIfStale(lockPath string) bool {
	st, err := os.Stat(lockPath)
	if err != nil {
		// Lock vanished between attempts; retry now.
		return errors.Is(err, fs.ErrNotExist)
	}
	if time.Since(st.ModTime()) < staleLockAge {
		return false
	}
	if err := os.Remove(lockPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false
	}
	return true
}

// AtomicWrite writes data to path via a temp file in the same directory and
// an atomic rename. Callers must not point path across a filesystem
// boundary from its directory.
func AtomicWrite(path string, data []byte) error {
	tmp := fmt.Sprintf("%s.tmp.%d", path, os.Getpid())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
