package index

import "errors"

var (
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrEmptyIndex        = errors.New("index has no chunks")
	ErrNotFound          = errors.New("index not found")
	ErrCorrupt           = errors.New("index file corrupt")
	ErrModelMismatch     = errors.New("index embedding model mismatch")
	ErrUnreachable       = errors.New("vector store unreachable")
)
