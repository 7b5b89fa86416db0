package domain

import "errors"

var (
	// ErrInvalidConfiguration reports option values the pipeline cannot run with,
	// such as overlap >= chunk_size or a non-positive top_k.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrEmptyInput reports a document without text or an index built from zero vectors.
	ErrEmptyInput = errors.New("empty input")
	// ErrRemoteService wraps any failure of the embedding or completion endpoint.
	ErrRemoteService = errors.New("remote service error")
	// ErrDimensionMismatch reports vectors whose length differs from the index dimension.
	ErrDimensionMismatch = errors.New("dimension mismatch")
)
