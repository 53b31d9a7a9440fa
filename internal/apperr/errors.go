package apperr

import "errors"

var (
	ErrUnresolved     = errors.New("unresolved module")
	ErrDuplicateEntry = errors.New("duplicate entry")
	ErrChunkNotFound  = errors.New("chunk not found")
)
