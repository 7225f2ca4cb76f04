// Package remotetest provides a scripted in-memory remote.Store for tests.
package remotetest

import (
	"context"
	"fmt"
	"strings"

	"gdrive-backup/domain/remote"
)

// Store is a remote.Store whose responses are scripted up front and whose
// calls are recorded in order.
type Store struct {
	Quotas     []remote.Quota   // Successive GetQuota results; the last one repeats
	QuotaErrs  map[int]error    // GetQuota errors by 0-based call index
	Objects    []remote.Object  // Listing, oldest first
	ListErr    error
	DeleteErrs map[string]error // DeleteObject errors by object ID
	CreateErr  error

	ChunkErrAt    int  // 1-based chunk number that fails; 0 disables
	NeverComplete bool // Sessions never report done

	Calls    []string          // "quota", "list", "delete:<id>", "create:<name>", "chunk:<n>", "abort"
	Deleted  []string          // Deleted object IDs in order
	Uploaded map[string][]byte // Completed uploads by name
	Chunks   []int             // Sizes of submitted chunks
	Aborted  bool

	quotaCalls int
}

// GetQuota implements remote.Store
func (s *Store) GetQuota(ctx context.Context) (remote.Quota, error) {
	s.Calls = append(s.Calls, "quota")
	call := s.quotaCalls
	s.quotaCalls++

	if err, ok := s.QuotaErrs[call]; ok {
		return remote.Quota{}, fmt.Errorf("%w: %v", remote.ErrQuotaUnavailable, err)
	}
	if len(s.Quotas) == 0 {
		return remote.Quota{Unlimited: true}, nil
	}
	if call >= len(s.Quotas) {
		return s.Quotas[len(s.Quotas)-1], nil
	}
	return s.Quotas[call], nil
}

// ListObjects implements remote.Store
func (s *Store) ListObjects(ctx context.Context, pageSize int) ([]remote.Object, error) {
	s.Calls = append(s.Calls, "list")
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	n := len(s.Objects)
	if pageSize > 0 && pageSize < n {
		n = pageSize
	}
	out := make([]remote.Object, n)
	copy(out, s.Objects[:n])
	return out, nil
}

// DeleteObject implements remote.Store
func (s *Store) DeleteObject(ctx context.Context, id string) error {
	s.Calls = append(s.Calls, "delete:"+id)
	if err, ok := s.DeleteErrs[id]; ok {
		return err
	}
	for i, o := range s.Objects {
		if o.ID == id {
			s.Objects = append(s.Objects[:i], s.Objects[i+1:]...)
			break
		}
	}
	s.Deleted = append(s.Deleted, id)
	return nil
}

// CreateUploadSession implements remote.Store
func (s *Store) CreateUploadSession(ctx context.Context, name string, size int64) (remote.UploadSession, error) {
	s.Calls = append(s.Calls, "create:"+name)
	if s.CreateErr != nil {
		return nil, s.CreateErr
	}
	return &session{store: s, name: name, size: size}, nil
}

// Count returns how many recorded calls start with prefix
func (s *Store) Count(prefix string) int {
	n := 0
	for _, c := range s.Calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// Mutations returns the recorded delete and upload calls
func (s *Store) Mutations() []string {
	var out []string
	for _, c := range s.Calls {
		if strings.HasPrefix(c, "delete:") || strings.HasPrefix(c, "create:") || strings.HasPrefix(c, "chunk:") {
			out = append(out, c)
		}
	}
	return out
}

type session struct {
	store  *Store
	name   string
	size   int64
	buf    []byte
	closed bool
}

func (s *session) UploadChunk(ctx context.Context, chunk []byte) (bool, error) {
	st := s.store
	if s.closed {
		return false, remote.ErrSessionClosed
	}
	st.Chunks = append(st.Chunks, len(chunk))
	n := len(st.Chunks)
	st.Calls = append(st.Calls, fmt.Sprintf("chunk:%d", n))

	if st.ChunkErrAt == n {
		return false, fmt.Errorf("chunk %d rejected", n)
	}

	s.buf = append(s.buf, chunk...)
	if st.NeverComplete || int64(len(s.buf)) < s.size {
		return false, nil
	}

	s.closed = true
	if st.Uploaded == nil {
		st.Uploaded = make(map[string][]byte)
	}
	st.Uploaded[s.name] = s.buf
	return true, nil
}

func (s *session) Abort(ctx context.Context) error {
	s.store.Calls = append(s.store.Calls, "abort")
	s.store.Aborted = true
	s.closed = true
	return nil
}

var _ remote.Store = (*Store)(nil)
