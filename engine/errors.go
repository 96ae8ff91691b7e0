package engine

import "errors"

var (
	// ErrNoLayout is returned when geometry is needed but no Layout is attached.
	ErrNoLayout = errors.New("engine: no layout attached")
	// ErrDetached is returned for operations on nodes no longer in the document.
	ErrDetached = errors.New("engine: node is detached")
	// ErrUnknownMode is returned by registries asked for a mode they do not know.
	ErrUnknownMode = errors.New("engine: unknown mode")
)
