package result

import (
	"fmt"

	"mediascan/internal/backend"
)

// ErrorKind classifies per-file scan failures.
type ErrorKind int

const (
	// KindUnrecognizedExtension means the file's extension maps to no media type.
	KindUnrecognizedExtension ErrorKind = iota + 1
	// KindFileOpenFailed means the backend could not open the file.
	KindFileOpenFailed
	// KindStreamProbeFailed means the container opened but could not be probed.
	KindStreamProbeFailed
	// KindDecodeFailed means no thumbnail frame could be decoded.
	KindDecodeFailed
	// KindInvalidParameters means the scan request itself was malformed.
	KindInvalidParameters
	// KindOutOfMemory means the backend reported an allocation failure.
	KindOutOfMemory
	// KindLimitExceeded means a registration list is full.
	KindLimitExceeded
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnrecognizedExtension:
		return "unrecognized_extension"
	case KindFileOpenFailed:
		return "file_open_failed"
	case KindStreamProbeFailed:
		return "stream_probe_failed"
	case KindDecodeFailed:
		return "decode_failed"
	case KindInvalidParameters:
		return "invalid_parameters"
	case KindOutOfMemory:
		return "out_of_memory"
	case KindLimitExceeded:
		return "limit_exceeded"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Error describes a failure to scan one file.
type Error struct {
	Path    string
	Kind    ErrorKind
	Message string
	// Code is the backend error code, 0 when there is none.
	Code int
	Err  error
}

// NewError builds an Error. When code is 0 it is taken from cause.
func NewError(path string, kind ErrorKind, message string, code int, cause error) *Error {
	if code == 0 && cause != nil {
		code = backend.Code(cause)
	}
	if kind != KindOutOfMemory && code == backend.CodeNoMemory {
		kind = KindOutOfMemory
	}
	return &Error{Path: path, Kind: kind, Message: message, Code: code, Err: cause}
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Code != 0 {
		msg = fmt.Sprintf("%s (%s)", msg, backend.ErrorText(e.Code))
	}
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Path, e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same Kind, so errors.Is can test for
// a kind using a bare &Error{Kind: ...} target.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Path == "" || t.Path == e.Path)
}
