package engine

import "errors"

var (
	// ErrNotReady is returned by controller actions before Init.
	ErrNotReady = errors.New("engine: not initialized")
	// ErrDisposed is returned by actions after Dispose or Close.
	ErrDisposed = errors.New("engine: disposed")
	// ErrAlreadyInitialized is returned by a second Init.
	ErrAlreadyInitialized = errors.New("engine: already initialized")
	// ErrNodeNotFound means the node is not part of the current snapshot.
	ErrNodeNotFound = errors.New("engine: node not found")
	// ErrBookNotFound means the library has no book with that id.
	ErrBookNotFound = errors.New("engine: book not found")
	// ErrInvalidProgress means a progress value outside 0..100.
	ErrInvalidProgress = errors.New("engine: progress must be between 0 and 100")
)
