package persistence

import (
	"path/filepath"
	"testing"
)

func TestLockDirExcludesASecondLocker(t *testing.T) {
	dir := t.TempDir()

	first, err := LockDir(dir)
	if err != nil {
		t.Fatalf("first LockDir failed: %v", err)
	}

	if _, err := LockDir(dir); err == nil {
		t.Fatalf("second LockDir on the same directory should have failed while the first lock is held")
	}

	if err := first.Unlock(); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}

	second, err := LockDir(dir)
	if err != nil {
		t.Fatalf("LockDir after Unlock should succeed: %v", err)
	}
	if err := second.Unlock(); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
}

func TestLockDirCreatesMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")

	lock, err := LockDir(dir)
	if err != nil {
		t.Fatalf("LockDir on a missing directory failed: %v", err)
	}
	defer lock.Unlock()
}
