package memory

import "errors"

var (
	// ErrNothingToMemorize is returned when the input has no sentences
	ErrNothingToMemorize = errors.New("nothing to memorize")

	// ErrEmptyQuery is returned for a blank recall query
	ErrEmptyQuery = errors.New("recall query is empty")

	// ErrDimensionMismatch is returned when an embedding does not match the stored dimension
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmbeddingCount is returned when the provider returns the wrong number of vectors
	ErrEmbeddingCount = errors.New("embedding count mismatch")
)
