// Package imagesift provides a dataset vector-embedding engine for image
// classification datasets.
//
// The engine stores one embedding vector per image and answers the questions
// that matter when curating a dataset:
//
//   - Similarity search: which images look like this one?
//   - Duplicate detection: which images are near-copies of each other?
//   - Outlier detection: which images sit far from their class's centroid?
//   - Clustering: how does a dataset group into visual cohorts?
//
// Embeddings are produced by an injected external generator (package
// embedder) and dataset structure is resolved through an injected catalog
// (package catalog); the engine owns neither. Vectors live in a durable,
// filterable vector index (package index) with optional write-ahead logging
// and zstd-compressed snapshots, backed up to object storage through
// package blobstore.
//
// # Quick start
//
//	eng, err := imagesift.New(cat, gen)
//	if err != nil {
//	    panic(err)
//	}
//	defer eng.Close()
//
//	created, err := eng.GenerateEmbeddings(ctx, "dataset-1")
//	if err != nil {
//	    panic(err)
//	}
//
//	matches, err := eng.FindSimilar(ctx, queryVector, func(o *imagesift.SimilarOptions) {
//	    o.Threshold = 0.9
//	})
//
// All operations are safe for concurrent use; a single Engine handle is
// meant to be shared process-wide.
package imagesift
