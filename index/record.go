package index

// Metadata is an open key/value bag carried through the index opaquely
// (image width, height, format, size, provenance). The index never
// interprets it.
type Metadata map[string]any

// Record is one stored embedding: the vector for a single image of a
// dataset, plus the identifiers needed to scope searches.
//
// Records are immutable after insertion except for the Deleted tombstone,
// which every read path consults.
type Record struct {
	// ID is the index-assigned identifier, unique and monotonically
	// increasing in insertion order.
	ID uint64

	// DatasetID is the owning dataset (opaque foreign key).
	DatasetID string

	// ImageID identifies the source image within the dataset.
	ImageID string

	// ClassName is the label the image belongs to. Optional; class names are
	// only unique within a dataset.
	ClassName string

	// Vector is the embedding. Its length must equal the index dimension.
	Vector []float32

	// Metadata is carried through opaquely.
	Metadata Metadata

	// Deleted marks the record as logically removed. Deleted records are
	// invisible to Get and Query.
	Deleted bool
}

// Hit is a query result: a record paired with its similarity score in [0,1].
type Hit struct {
	Record

	// Score is the cosine similarity of the record to the query vector,
	// floored at 0.
	Score float32
}
