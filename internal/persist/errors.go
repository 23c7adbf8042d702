package persist

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes persistence errors.
type ErrorCode string

const (
	// ErrCodeNotFound indicates the file to load does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeBadExtension indicates a path without the expected extension.
	ErrCodeBadExtension ErrorCode = "BAD_EXTENSION"

	// ErrCodeNoMatchingData indicates a loaded document holds no variable
	// with the target's provenance tag.
	ErrCodeNoMatchingData ErrorCode = "NO_MATCHING_DATA"

	// ErrCodeDecode indicates a document that could not be parsed.
	ErrCodeDecode ErrorCode = "DECODE"

	// ErrCodeEncode indicates a store that could not be serialized or
	// written.
	ErrCodeEncode ErrorCode = "ENCODE"

	// ErrCodeExport indicates a failed workbook export.
	ErrCodeExport ErrorCode = "EXPORT"
)

// Error is returned by every failing persistence operation. Persistence
// errors are never swallowed.
type Error struct {
	Code ErrorCode
	Path string

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Path)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HasCode reports whether err is (or wraps) a persistence error with code.
func HasCode(err error, code ErrorCode) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

// IsNotFound reports whether err is a missing-file error.
func IsNotFound(err error) bool {
	return HasCode(err, ErrCodeNotFound)
}

// IsNoMatchingData reports whether err is a provenance filter that matched
// nothing.
func IsNoMatchingData(err error) bool {
	return HasCode(err, ErrCodeNoMatchingData)
}
