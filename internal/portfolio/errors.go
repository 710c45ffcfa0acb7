package portfolio

import "github.com/rotisserie/eris"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = eris.New("resource not found")
	// ErrConflict indicates a uniqueness constraint was violated.
	ErrConflict = eris.New("resource already exists")
)
