package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"gdrive-backup/domain/remote"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
)

// statusResumeIncomplete is returned while the session expects more bytes
const statusResumeIncomplete = 308

// resumableSession uploads one file through the Drive resumable protocol:
// the session URI accepts consecutive byte ranges until the last one completes the file.
type resumableSession struct {
	client     *http.Client
	sessionURI string
	total      int64
	offset     int64
	closed     bool
}

// startResumable initiates a session and returns it ready for the first chunk
func startResumable(ctx context.Context, client *http.Client, uploadURL string, meta *drive.File, size int64) (*resumableSession, error) {
	body, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to encode file metadata: %w", err)
	}

	u, err := url.Parse(uploadURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upload url: %w", err)
	}
	q := u.Query()
	q.Set("uploadType", "resumable")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("X-Upload-Content-Type", "application/octet-stream")
	req.Header.Set("X-Upload-Content-Length", strconv.FormatInt(size, 10))

	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to start upload session: %w", err)
	}
	defer drain(res)

	if err := googleapi.CheckResponse(res); err != nil {
		return nil, fmt.Errorf("failed to start upload session: %w", err)
	}
	location := res.Header.Get("Location")
	if location == "" {
		return nil, fmt.Errorf("failed to start upload session: no session URI returned")
	}

	return &resumableSession{
		client:     client,
		sessionURI: location,
		total:      size,
	}, nil
}

// UploadChunk implements remote.UploadSession
func (s *resumableSession) UploadChunk(ctx context.Context, chunk []byte) (bool, error) {
	if s.closed {
		return false, remote.ErrSessionClosed
	}
	if len(chunk) == 0 {
		return false, fmt.Errorf("empty chunk at offset %d", s.offset)
	}

	end := s.offset + int64(len(chunk)) - 1
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.sessionURI, bytes.NewReader(chunk))
	if err != nil {
		return false, err
	}
	req.ContentLength = int64(len(chunk))
	req.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", s.offset, end, s.total))

	res, err := s.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to upload bytes %d-%d: %w", s.offset, end, err)
	}
	defer drain(res)

	switch res.StatusCode {
	case http.StatusOK, http.StatusCreated:
		s.offset = end + 1
		s.closed = true
		return true, nil
	case statusResumeIncomplete:
		acked, err := committedBytes(res.Header.Get("Range"))
		if err != nil {
			return false, err
		}
		if acked != end+1 {
			return false, fmt.Errorf("server acknowledged %d bytes, expected %d", acked, end+1)
		}
		s.offset = acked
		return false, nil
	}

	if err := googleapi.CheckResponse(res); err != nil {
		return false, fmt.Errorf("failed to upload bytes %d-%d: %w", s.offset, end, err)
	}
	return false, fmt.Errorf("unexpected upload status %d", res.StatusCode)
}

// Abort implements remote.UploadSession. Drive answers a cancelled session with 499.
func (s *resumableSession) Abort(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.sessionURI, nil)
	if err != nil {
		return err
	}
	res, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to cancel upload session: %w", err)
	}
	drain(res)
	return nil
}

// committedBytes parses a "bytes=0-N" Range header into N+1. A missing header means nothing was stored.
func committedBytes(header string) (int64, error) {
	if header == "" {
		return 0, nil
	}
	_, last, ok := strings.Cut(strings.TrimPrefix(header, "bytes="), "-")
	if !ok {
		return 0, fmt.Errorf("malformed Range header %q", header)
	}
	n, err := strconv.ParseInt(last, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed Range header %q: %w", header, err)
	}
	return n + 1, nil
}

func drain(res *http.Response) {
	io.Copy(io.Discard, res.Body)
	res.Body.Close()
}

var _ remote.UploadSession = (*resumableSession)(nil)
