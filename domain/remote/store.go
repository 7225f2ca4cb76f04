package remote

import (
	"context"
	"time"
)

// Store defines the operations the backup workflow needs from a remote object-storage service
// This is a port that can be implemented by different infrastructure adapters
type Store interface {
	// GetQuota returns the current account storage accounting
	GetQuota(ctx context.Context) (Quota, error)

	// ListObjects returns at most pageSize objects, oldest first by creation time
	ListObjects(ctx context.Context, pageSize int) ([]Object, error)

	// DeleteObject permanently deletes an object by ID
	DeleteObject(ctx context.Context, id string) error

	// CreateUploadSession initiates a resumable upload of size bytes under name
	CreateUploadSession(ctx context.Context, name string, size int64) (UploadSession, error)
}

// UploadSession is a service-side resumable upload accepting sequential chunks
type UploadSession interface {
	// UploadChunk submits the next chunk. done is true once the service has the whole object.
	UploadChunk(ctx context.Context, chunk []byte) (done bool, err error)

	// Abort discards the session and any bytes already received
	Abort(ctx context.Context) error
}

// Object represents metadata about a stored backup object
type Object struct {
	ID          string
	Name        string
	Size        int64
	CreatedTime time.Time
}
