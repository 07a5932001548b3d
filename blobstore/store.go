// Package blobstore abstracts the object storage used for snapshot backups.
//
// Stores hold immutable snapshot blobs plus a mutable "CURRENT" pointer blob
// naming the latest committed snapshot. Backends exist for local disk,
// memory (tests), AWS S3 and MinIO; the S3 backend optionally commits the
// CURRENT pointer through DynamoDB for atomic multi-writer coordination.
package blobstore

import (
	"context"
	"errors"
)

// CurrentName is the well-known pointer blob naming the latest snapshot.
const CurrentName = "CURRENT"

// ErrNotFound is returned when a blob does not exist.
//
// Implementations must return an error that satisfies
// errors.Is(err, ErrNotFound).
var ErrNotFound = errors.New("blob not found")

// Store is an abstraction for reading and writing snapshot blobs.
type Store interface {
	// Put writes a blob, replacing any existing blob of the same name.
	Put(ctx context.Context, name string, data []byte) error

	// Get reads a blob. Returns ErrNotFound if it does not exist.
	Get(ctx context.Context, name string) ([]byte, error)

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns the names of blobs starting with prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}
