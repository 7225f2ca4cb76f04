package distribution

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gdrive-backup/application/appctx"
	"gdrive-backup/domain/backup"
	"gdrive-backup/domain/remote"

	"go.uber.org/zap"
)

const (
	// DefaultChunkSize is the number of bytes submitted per upload chunk
	DefaultChunkSize = 10 * 1024 * 1024

	// DefaultReadSize caps a single underlying read
	DefaultReadSize = 8 * 1024

	maxConsecutiveEmptyReads = 100
)

// Uploader streams a local file to a resumable upload session in fixed-size chunks
type Uploader struct {
	env       *appctx.Env
	chunkSize int
	readSize  int
}

// UploaderOption is a functional option for configuring Uploader
type UploaderOption func(*Uploader)

// WithChunkSize sets the upload chunk size
func WithChunkSize(n int) UploaderOption {
	return func(u *Uploader) {
		u.chunkSize = n
	}
}

// WithReadSize sets the cap on each underlying read
func WithReadSize(n int) UploaderOption {
	return func(u *Uploader) {
		u.readSize = n
	}
}

// NewUploader creates a new uploader
func NewUploader(env *appctx.Env, opts ...UploaderOption) *Uploader {
	u := &Uploader{
		env:       env,
		chunkSize: DefaultChunkSize,
		readSize:  DefaultReadSize,
	}

	for _, opt := range opts {
		opt(u)
	}

	return u
}

// Upload sends localPath to the store as targetName. The session is aborted on
// any failure and the file is closed on every path.
func (u *Uploader) Upload(ctx context.Context, localPath, targetName string) (*remote.Transfer, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, backup.Wrap(backup.KindSourceUnavailable, err, "failed to open %s", localPath)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, backup.Wrap(backup.KindSourceUnavailable, err, "failed to stat %s", localPath)
	}

	transfer := &remote.Transfer{
		TargetName: targetName,
		TotalSize:  info.Size(),
		ChunkSize:  int64(u.chunkSize),
	}

	session, err := u.env.Store.CreateUploadSession(ctx, targetName, transfer.TotalSize)
	if err != nil {
		return transfer, backup.Wrap(backup.KindUploadFailed, err, "upload procedure failed for %s", targetName)
	}

	start := u.env.Now()
	for !transfer.Done {
		chunk, err := ReadChunk(f, u.chunkSize, u.readSize)
		if err != nil {
			u.abort(ctx, session)
			return transfer, backup.Wrap(backup.KindUploadFailed, err, "failed to read %s", localPath)
		}
		if len(chunk) == 0 {
			u.abort(ctx, session)
			return transfer, backup.Errorf(backup.KindIncompleteUpload,
				"file %s upload failed: input exhausted after %d of %d bytes", targetName, transfer.BytesSent, transfer.TotalSize)
		}

		fmt.Fprint(u.env.Output, ".")
		done, err := session.UploadChunk(ctx, chunk)
		transfer.Chunks++
		u.env.Metrics.RecordChunk(len(chunk))
		if err != nil {
			fmt.Fprintln(u.env.Output)
			u.abort(ctx, session)
			return transfer, backup.Wrap(backup.KindUploadFailed, err, "upload procedure failed at chunk %d", transfer.Chunks)
		}

		transfer.BytesSent += int64(len(chunk))
		transfer.Done = done
		u.env.Logger.Debug("Chunk sent",
			zap.Int("chunk", transfer.Chunks),
			zap.Int64("bytes_sent", transfer.BytesSent),
			zap.Int64("total", transfer.TotalSize),
		)
	}
	fmt.Fprintln(u.env.Output)

	u.env.Metrics.ObserveUpload(u.env.Now().Sub(start))
	return transfer, nil
}

func (u *Uploader) abort(ctx context.Context, session remote.UploadSession) {
	if err := session.Abort(ctx); err != nil {
		u.env.Logger.Warn("Failed to abort upload session", zap.Error(err))
	}
}

// ReadChunk reads from r until size bytes are collected or r is exhausted.
// No single read asks for more than readSize bytes, so the chunk size is
// independent of how much the source hands back per read.
func ReadChunk(r io.Reader, size, readSize int) ([]byte, error) {
	if readSize <= 0 || readSize > size {
		readSize = size
	}

	chunk := make([]byte, 0, size)
	empty := 0
	for len(chunk) < size {
		want := min(readSize, size-len(chunk))
		n, err := r.Read(chunk[len(chunk) : len(chunk)+want])
		chunk = chunk[:len(chunk)+n]

		if errors.Is(err, io.EOF) {
			return chunk, nil
		}
		if err != nil {
			return chunk, err
		}

		if n == 0 {
			empty++
			if empty >= maxConsecutiveEmptyReads {
				return chunk, io.ErrNoProgress
			}
			continue
		}
		empty = 0
	}
	return chunk, nil
}
