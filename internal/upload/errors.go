package upload

import (
	"errors"
	"fmt"
)

// Kind classifies why an upload did not complete.
type Kind int

const (
	KindUnknown Kind = iota
	KindSelectionRequired
	KindNetwork
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindSelectionRequired:
		return "selection required"
	case KindNetwork:
		return "network failure"
	case KindValidation:
		return "validation failed"
	default:
		return "unknown"
	}
}

// ErrSelectionRequired is wrapped when an upload is attempted without a file.
var ErrSelectionRequired = errors.New("no file selected")

// Error is returned by uploaders for failures the widget can report.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the Kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var upErr *Error
	if errors.As(err, &upErr) {
		return upErr.Kind
	}
	return KindUnknown
}
