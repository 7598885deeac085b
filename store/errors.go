package store

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable wraps backend failures (connection refused, I/O errors, timeouts).
	ErrUnavailable = errors.New("credential store unavailable")
	// ErrEmptyKey is returned when a caller passes a blank key.
	ErrEmptyKey = errors.New("credential store: empty key")
	// ErrClosed is returned by stores that were closed explicitly.
	ErrClosed = errors.New("credential store closed")
	// ErrCorrupt is returned by reads of a document that no longer decodes.
	// It satisfies errors.Is(err, ErrUnavailable).
	ErrCorrupt = fmt.Errorf("%w: corrupt document", ErrUnavailable)
)
