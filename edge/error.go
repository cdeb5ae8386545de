package edge

import (
	"errors"
)

var (
	// ErrAborted is returned by an edge used after Abort.
	ErrAborted = errors.New("edge aborted")
	// ErrClosed is returned when closing an edge twice.
	ErrClosed = errors.New("edge already closed")
)
