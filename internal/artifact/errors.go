package artifact

import (
	"errors"
	"fmt"
)

var (
	// ErrUnreadable marks an artifact that exists but could not be read.
	ErrUnreadable = errors.New("artifact unreadable")

	// ErrUnparsable marks an artifact whose contents could not be decoded.
	ErrUnparsable = errors.New("artifact unparsable")
)

// Error records which artifact failed and why. It matches ErrUnreadable or
// ErrUnparsable under errors.Is, as well as the underlying cause.
type Error struct {
	Kind error
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %s: %v", e.Kind, e.Path, e.Err)
}

// Unwrap exposes both the kind and the cause.
func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// Unreadable wraps err as an ErrUnreadable for path.
func Unreadable(path string, err error) error {
	return &Error{Kind: ErrUnreadable, Path: path, Err: err}
}

// Unparsable wraps err as an ErrUnparsable for path.
func Unparsable(path string, err error) error {
	return &Error{Kind: ErrUnparsable, Path: path, Err: err}
}
