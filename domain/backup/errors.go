package backup

import (
	"errors"
	"fmt"
)

// Kind classifies a failed backup run
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidArguments
	KindBackupGeneration
	KindSourceUnavailable
	KindSourceEmpty
	KindQuotaUnavailable
	KindTooLarge
	KindListFailed
	KindReclaimLoopExceeded
	KindCandidatesExhausted
	KindDeleteFailed
	KindUploadFailed
	KindIncompleteUpload
)

var kindNames = map[Kind]string{
	KindUnknown:             "unknown",
	KindInvalidArguments:    "invalid arguments",
	KindBackupGeneration:    "backup generation failed",
	KindSourceUnavailable:   "source unavailable",
	KindSourceEmpty:         "source empty",
	KindQuotaUnavailable:    "quota unavailable",
	KindTooLarge:            "file exceeds total capacity",
	KindListFailed:          "listing failed",
	KindReclaimLoopExceeded: "reclaim loop exceeded",
	KindCandidatesExhausted: "no objects left to delete",
	KindDeleteFailed:        "delete failed",
	KindUploadFailed:        "upload failed",
	KindIncompleteUpload:    "incomplete upload",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a fatal, non-retryable backup failure
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

// Errorf creates an Error of the given kind with a formatted message
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error of the given kind around a cause
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind, so callers can write
// errors.Is(err, &backup.Error{Kind: backup.KindTooLarge})
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Msg == "" && t.Err == nil
}

// KindOf returns the kind of the first *Error in err's chain
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindUnknown
}
