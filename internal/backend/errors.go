package backend

import (
	"errors"
	"fmt"
)

// Error codes follow the negative-errno convention of libav so they can be
// reported alongside ffmpeg's own diagnostics.
const (
	CodeUnknown     = -1
	CodeNotFound    = -2
	CodeIO          = -5
	CodeNoMemory    = -12
	CodePermission  = -13
	CodeInvalidArg  = -22
	CodeEOF         = -541478725
	CodeInvalidData = -1094995529
	CodeNoDecoder   = -1128613112
)

// Error is a failure reported by a backend, with its numeric code.
type Error struct {
	Op   string
	Code int
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%d): %v", e.Op, ErrorText(e.Code), e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s (%d)", e.Op, ErrorText(e.Code), e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Code returns the backend code carried by err, or 0 when err has none.
func Code(err error) int {
	var be *Error
	if errors.As(err, &be) {
		return be.Code
	}
	return 0
}

// ErrorText describes a backend code.
func ErrorText(code int) string {
	switch code {
	case 0:
		return "success"
	case CodeNotFound:
		return "No such file or directory"
	case CodeIO:
		return "I/O error"
	case CodeNoMemory:
		return "Cannot allocate memory"
	case CodePermission:
		return "Permission denied"
	case CodeInvalidArg:
		return "Invalid argument"
	case CodeEOF:
		return "End of file"
	case CodeInvalidData:
		return "Invalid data found when processing input"
	case CodeNoDecoder:
		return "Decoder not found"
	default:
		return fmt.Sprintf("Error number %d occurred", code)
	}
}
