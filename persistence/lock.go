package persistence

import "os"

// DirLock guards a data directory against concurrent Save/Load calls from
// separate processes (e.g. two CLI invocations pointed at the same --dir),
// complementing SaveToFile's single-process atomic-rename guarantee with an
// OS-level advisory lock. It holds an exclusive lock on a sentinel file
// inside the directory for as long as the lock is held; the platform-
// specific half of the lock/unlock call lives in lock_unix.go/lock_windows.go,
// the same os-specific split the teacher uses for its mmap backend.
type DirLock struct {
	f *os.File
}

// LockDir acquires an exclusive, non-blocking lock on a ".lock" sentinel
// file under dir, creating dir first if needed. It returns immediately
// with an error if another process already holds the lock.
func LockDir(dir string) (*DirLock, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(dirLockPath(dir), os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}

	if err := lockFile(f); err != nil {
		f.Close()
		return nil, err
	}

	return &DirLock{f: f}, nil
}

// Unlock releases the lock and closes the sentinel file. The sentinel file
// itself is left in place; only its lock state matters.
func (l *DirLock) Unlock() error {
	if err := unlockFile(l.f); err != nil {
		l.f.Close()
		return err
	}
	return l.f.Close()
}

func dirLockPath(dir string) string {
	return dir + string(os.PathSeparator) + ".lock"
}
