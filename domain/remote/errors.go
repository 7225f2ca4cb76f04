package remote

import "errors"

var (
	// ErrQuotaUnavailable is returned when the storage quota cannot be read
	ErrQuotaUnavailable = errors.New("storage quota unavailable")

	// ErrObjectNotFound is returned when deleting an object that does not exist
	ErrObjectNotFound = errors.New("object not found")

	// ErrSessionClosed is returned when a chunk is sent to a finished or aborted session
	ErrSessionClosed = errors.New("upload session closed")
)
