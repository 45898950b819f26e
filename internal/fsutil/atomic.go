// Package fsutil provides the small set of filesystem primitives used
// by the pristine store: atomic whole-file replacement via
// temp-write-fsync-rename.
package fsutil

import (
	"os"
	"path/filepath"
)

// AtomicWriteFile writes data to path by first writing to a temp file in
// the same directory, fsyncing it, then renaming it into place. This
// guarantees a reader never observes a partially written file, and that
// a crash mid-write leaves the original file (or nothing) rather than a
// corrupt one.
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// AtomicMoveFile moves an existing file at srcPath into place at
// destPath, creating destPath's directory if necessary. Nothing in this
// module calls it; the pristine store installs through AtomicWriteFile.
func AtomicMoveFile(srcPath, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return err
	}
	return os.Rename(srcPath, destPath)
}
