package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/hwameistor/bootrepair/pkg/apis/bootrepair/v1alpha1"
)

// DiskLock is an exclusive flock(2) on a per-disk lock file. The kernel drops
// it when the process dies, so a crashed session never blocks the disk.
type DiskLock struct {
	Disk string
	path string
	file *os.File
}

// LockDisk takes the lock of disk without blocking, ErrDiskBusy means another
// session holds it
func LockDisk(lockDir, disk string) (*DiskLock, error) {
	if err := os.MkdirAll(lockDir, 0750); err != nil {
		return nil, fmt.Errorf("create lock dir %s: %w", lockDir, err)
	}

	path := filepath.Join(lockDir, lockName(disk))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0640)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", path, err)
	}

	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		file.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w: %s", v1alpha1.ErrDiskBusy, disk)
		}
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}

	if err := file.Truncate(0); err == nil {
		fmt.Fprintf(file, "%d\n", os.Getpid())
	}
	return &DiskLock{Disk: disk, path: path, file: file}, nil
}

// Unlock releases the lock, calling it twice is harmless
func (l *DiskLock) Unlock() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	if closeErr := l.file.Close(); err == nil {
		err = closeErr
	}
	l.file = nil
	return err
}

// lockName turns /dev/disk/by-id/x or /dev/sda into a flat file name
func lockName(disk string) string {
	name := strings.TrimPrefix(filepath.Clean(disk), "/dev/")
	return strings.ReplaceAll(name, "/", "_") + ".lock"
}
