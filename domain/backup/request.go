package backup

import (
	"context"
	"time"
)

// Request contains the parameters for one backup run
type Request struct {
	FilePath  string    // Explicit local file to upload
	UserID    string    // Account whose dated backup should be located or generated
	KeepLocal bool      // Keep the local file after a successful upload
	NotifyTo  string    // Address alerted on fatal failure (optional)
	Date      time.Time // Backup date used with UserID
}

// Validate checks that exactly one source is named
func (r Request) Validate() error {
	if r.FilePath != "" && r.UserID != "" {
		return Errorf(KindInvalidArguments, "use one of options, either --file or --user")
	}
	if r.FilePath == "" && r.UserID == "" {
		return Errorf(KindInvalidArguments, "a file to upload is required: --file=<path> or --user=<id>")
	}
	return nil
}

// Locator finds the backup file for a user and date, generating it if none exists yet
type Locator interface {
	Locate(ctx context.Context, userID string, date time.Time) (string, error)
}

// SourceFile describes a validated local backup file
type SourceFile struct {
	Path string
	Size int64
}

// LocalFiles validates and removes local backup files
type LocalFiles interface {
	// Inspect returns the file's size if it is a regular, readable and writable file
	Inspect(path string) (SourceFile, error)

	// Remove deletes the file after a successful upload
	Remove(path string) error
}
