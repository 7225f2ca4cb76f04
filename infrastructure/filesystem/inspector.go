package filesystem

import (
	"fmt"
	"os"

	"gdrive-backup/domain/backup"

	"golang.org/x/sys/unix"
)

// Inspector implements backup.LocalFiles using the os package
type Inspector struct{}

// NewInspector creates a new filesystem inspector
func NewInspector() *Inspector {
	return &Inspector{}
}

// Inspect returns the file size if path is a regular file the process can read and write
func (i *Inspector) Inspect(path string) (backup.SourceFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return backup.SourceFile{}, err
	}
	if !info.Mode().IsRegular() {
		return backup.SourceFile{}, fmt.Errorf("%s is not a regular file", path)
	}
	// the file is removed after upload, so write access is required too
	if err := unix.Access(path, unix.R_OK|unix.W_OK); err != nil {
		return backup.SourceFile{}, &os.PathError{Op: "access", Path: path, Err: err}
	}

	return backup.SourceFile{Path: path, Size: info.Size()}, nil
}

// Remove deletes the file
func (i *Inspector) Remove(path string) error {
	return os.Remove(path)
}

// Ensure Inspector implements backup.LocalFiles
var _ backup.LocalFiles = (*Inspector)(nil)
