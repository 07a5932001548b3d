// Package catalog defines the dataset catalog contract the engine consumes:
// datasets contain classes, classes contain images. The catalog itself lives
// elsewhere (a database, an API); the engine only reads from it.
package catalog

import "context"

// Class is one label/category of a dataset.
type Class struct {
	ID   string
	Name string
}

// Image describes one image of a class, with the file properties carried
// into embedding metadata.
type Image struct {
	ID     string
	Width  int
	Height int
	Format string
	Size   int64
}

// Catalog resolves the classes of a dataset and the images of a class.
type Catalog interface {
	// GetClasses returns the classes of a dataset.
	GetClasses(ctx context.Context, datasetID string) ([]Class, error)

	// GetClassImages returns the images of one class of a dataset.
	GetClassImages(ctx context.Context, datasetID, classID string) ([]Image, error)
}
