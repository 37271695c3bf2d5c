// Package filesys collects the filesystem helpers the catalog and the
// storage layers share: directory creation, whole-file reads and writes,
// existence checks, tolerant removal, and the atomic write-then-rename
// the catalog uses when rewriting table metadata.
package filesys

import (
	"errors"
	"os"
)

// ErrNotDir reports a path that exists but is not a directory where one
// was required.
var ErrNotDir = errors.New("path exists but is not a directory")

// CreateDir ensures dirPath exists as a directory with the given
// permission, creating parents as needed. An existing directory is left
// in place; force additionally resets its permission bits. An existing
// non-directory fails with ErrNotDir regardless of force.
func CreateDir(dirPath string, permission os.FileMode, force bool) error {
	stat, err := os.Stat(dirPath)
	if err == nil {
		if !stat.IsDir() {
			return ErrNotDir
		}
		if force {
			return os.Chmod(dirPath, permission)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return err
	}
	return os.MkdirAll(dirPath, permission)
}

// Exists reports whether a file or directory is present at path. Stat
// failures other than non-existence are returned so a permission problem
// isn't silently read as "absent".
func Exists(path string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ReadFile returns the full contents of the file at path.
func ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WriteFile writes contents to path with the given permission, creating
// the file or truncating whatever was there.
func WriteFile(path string, permission os.FileMode, contents []byte) error {
	return os.WriteFile(path, contents, permission)
}

// RemoveIfExists deletes the file at path, treating an already-absent
// file as success — the shape every index Clear() needs, where clearing
// twice must be as valid as clearing once.
func RemoveIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// AtomicWriteFile writes contents to path without ever leaving a reader
// able to observe a partially-written file: it writes to a sibling temp
// file in the same directory, then renames over the destination. Rename
// is atomic within one filesystem.
func AtomicWriteFile(path string, permission os.FileMode, contents []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, contents, permission); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
