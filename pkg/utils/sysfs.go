package utils

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ReadSysFSFileAsInt64 reads a file from the sysfs filesystem and converts its content to int64.
// Suitable for numeric information such as device size, removable flag, etc.
func ReadSysFSFileAsInt64(sysFilePath string) (int64, error) {
	b, err := os.ReadFile(filepath.Clean(sysFilePath))
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(strings.TrimSpace(string(b)), 10, 64)
}

// IsPathExist returns true when pathname exists, symlinks are not followed
func IsPathExist(pathname string) bool {
	_, err := os.Lstat(pathname)
	return err == nil
}

// IsDirEmpty returns true when the directory doesn't exist or has no entries
func IsDirEmpty(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return true
	}
	return len(entries) == 0
}
