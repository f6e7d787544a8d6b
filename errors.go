package changefs

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"
)

// ErrorCode is a stable identifier for the kinds of errors this package
// and its drivers can produce. Part of the public API contract - values
// never change, only get added to.
type ErrorCode string

const (
	ErrCodeNotFound     ErrorCode = "CHANGEFS_NOT_FOUND"
	ErrCodeInvalidInput ErrorCode = "CHANGEFS_INVALID_INPUT"
	ErrCodeNotSupported ErrorCode = "CHANGEFS_NOT_SUPPORTED"
	ErrCodeAborted      ErrorCode = "CHANGEFS_ABORTED"
	ErrCodeClosed       ErrorCode = "CHANGEFS_CLOSED"
	ErrCodeIO           ErrorCode = "CHANGEFS_IO"
	ErrCodeInternal     ErrorCode = "CHANGEFS_INTERNAL"
)

func (c ErrorCode) String() string { return string(c) }

// PathError is the error type returned by Watch constructors and by the
// FileProvider adapters. No error ever crosses the ChangeToken boundary
// itself (spec: the protocol only signals change) - PathError is strictly
// for the surrounding I/O and registration calls.
type PathError struct {
	Op   string
	Path string
	Code ErrorCode
	Err  error
}

func (e *PathError) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(" ")
	}
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteString(": ")
	}
	if e.Code != "" {
		b.WriteString("[")
		b.WriteString(string(e.Code))
		b.WriteString("] ")
	}
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *PathError) Unwrap() error { return e.Err }

// Is lets errors.Is match a *PathError against the stdlib fs sentinels
// its code implies, the way fs.PathError does for os errors.
func (e *PathError) Is(target error) bool {
	if pe, ok := target.(*PathError); ok {
		return e.Code == pe.Code
	}
	switch e.Code {
	case ErrCodeNotFound:
		return target == fs.ErrNotExist || target == os.ErrNotExist
	case ErrCodeClosed:
		return target == fs.ErrClosed || target == os.ErrClosed
	case ErrCodeInvalidInput:
		return target == fs.ErrInvalid || target == os.ErrInvalid
	}
	return false
}

// NewPathError builds a PathError with an explicit code.
func NewPathError(op, path string, code ErrorCode, message string) *PathError {
	var err error
	if message != "" {
		err = errors.New(message)
	}
	return &PathError{Op: op, Path: path, Code: code, Err: err}
}

// WrapPathErr wraps err with path context, inferring the error code from
// well-known sentinels the way the teacher's WrapPathErr did.
func WrapPathErr(op, path string, err error) *PathError {
	return &PathError{Op: op, Path: path, Code: inferErrorCode(err), Err: err}
}

func inferErrorCode(err error) ErrorCode {
	switch {
	case err == nil:
		return ErrCodeInternal
	case errors.Is(err, os.ErrNotExist), errors.Is(err, fs.ErrNotExist):
		return ErrCodeNotFound
	case errors.Is(err, os.ErrClosed), errors.Is(err, fs.ErrClosed):
		return ErrCodeClosed
	case errors.Is(err, os.ErrInvalid), errors.Is(err, fs.ErrInvalid):
		return ErrCodeInvalidInput
	case errors.Is(err, context.Canceled):
		return ErrCodeAborted
	case errors.Is(err, ErrNotSupported):
		return ErrCodeNotSupported
	default:
		return ErrCodeIO
	}
}

// IsCode reports whether err is (or wraps) a *PathError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var pe *PathError
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

// IsNotFound reports whether err indicates a missing file or directory.
func IsNotFound(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || IsCode(err, ErrCodeNotFound)
}

var (
	// ErrNotSupported is returned by optional-capability shims (e.g. a
	// FileProvider with no native watch support) when asked to do
	// something the underlying backend cannot.
	ErrNotSupported = errors.New("changefs: operation not supported")

	// ErrNotAllowed names the case of a filter path that escapes a
	// watcher's root (absolute path, or ".." segment). PhysicalFilesWatcher
	// does not return it: such a filter gets the no-op token and a nil
	// error.
	ErrNotAllowed = errors.New("changefs: path escapes watch root")
)
