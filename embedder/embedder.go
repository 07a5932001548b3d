// Package embedder defines the embedding generation contract: an opaque
// external capability that turns an image reference into a fixed-length
// vector. The engine never assumes a specific model; callers inject an
// implementation (a remote embedding service, a local model runner, or a
// test double).
package embedder

import "context"

// Generator produces one embedding vector per image reference.
//
// Calls are potentially network-bound and rate-limited. Failures are
// per-call; the generator is not expected to retry.
type Generator interface {
	// Generate returns the embedding vector for the referenced image.
	Generate(ctx context.Context, imageRef string) ([]float32, error)

	// Dimension returns the length of the vectors this generator produces.
	Dimension() int
}

// GeneratorFunc adapts a function to the Generator interface with a fixed
// dimension.
type GeneratorFunc struct {
	Dim int
	Fn  func(ctx context.Context, imageRef string) ([]float32, error)
}

// Generate implements Generator.
func (g GeneratorFunc) Generate(ctx context.Context, imageRef string) ([]float32, error) {
	return g.Fn(ctx, imageRef)
}

// Dimension implements Generator.
func (g GeneratorFunc) Dimension() int {
	return g.Dim
}
