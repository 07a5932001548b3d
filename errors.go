package imagesift

import (
	"errors"
	"fmt"

	"github.com/visioform/imagesift/index"
)

var (
	// ErrNotFound is returned when a requested dataset, class or image does
	// not exist.
	ErrNotFound = errors.New("not found")

	// ErrIndexNotReady is returned when an operation runs before EnsureIndex
	// has provisioned the vector index.
	ErrIndexNotReady = errors.New("index not provisioned")

	// ErrEmptyQueryVector is returned when a similarity query is given a
	// nil or empty vector.
	ErrEmptyQueryVector = errors.New("query vector must not be empty")

	// ErrInvalidClusterCount is returned when a clustering request asks for
	// fewer than one cluster.
	ErrInvalidClusterCount = errors.New("cluster count must be positive")
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// ErrGenerationFailure indicates that the embedding generator failed for a
// specific image. During batch ingestion these are logged and counted, not
// propagated; single-image operations surface them.
//
// The original underlying error can be accessed via errors.Unwrap.
type ErrGenerationFailure struct {
	DatasetID string
	ImageID   string
	cause     error
}

func (e *ErrGenerationFailure) Error() string {
	return fmt.Sprintf("embedding generation failed for image %q in dataset %q: %v", e.ImageID, e.DatasetID, e.cause)
}

func (e *ErrGenerationFailure) Unwrap() error { return e.cause }

// ErrStorage indicates a failure in the storage layer (index, WAL, snapshot
// or blob store).
//
// The original underlying error can be accessed via errors.Unwrap.
type ErrStorage struct {
	Op    string
	cause error
}

func (e *ErrStorage) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.cause)
}

func (e *ErrStorage) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, index.ErrNotReady) {
		return fmt.Errorf("%w: %w", ErrIndexNotReady, err)
	}

	var dm *index.ErrDimensionMismatch
	if errors.As(err, &dm) {
		return &ErrDimensionMismatch{Expected: dm.Expected, Actual: dm.Actual, cause: err}
	}

	return err
}

func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ErrStorage{Op: op, cause: err}
}
