package catalog

import (
	"context"
	"fmt"
	"sync"
)

// MemoryCatalog is an in-memory Catalog implementation, used in tests and
// examples and as a reference for the contract's semantics.
type MemoryCatalog struct {
	mu      sync.RWMutex
	classes map[string][]Class           // datasetID -> classes
	images  map[string]map[string][]Image // datasetID -> classID -> images
}

// NewMemoryCatalog creates an empty in-memory catalog.
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		classes: make(map[string][]Class),
		images:  make(map[string]map[string][]Image),
	}
}

// AddClass registers a class under a dataset.
func (c *MemoryCatalog) AddClass(datasetID string, class Class) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.classes[datasetID] = append(c.classes[datasetID], class)
	if c.images[datasetID] == nil {
		c.images[datasetID] = make(map[string][]Image)
	}
}

// AddImage registers an image under a dataset's class.
func (c *MemoryCatalog) AddImage(datasetID, classID string, img Image) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.images[datasetID] == nil {
		c.images[datasetID] = make(map[string][]Image)
	}
	c.images[datasetID][classID] = append(c.images[datasetID][classID], img)
}

// GetClasses implements Catalog.
func (c *MemoryCatalog) GetClasses(ctx context.Context, datasetID string) ([]Class, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	classes, ok := c.classes[datasetID]
	if !ok {
		return nil, fmt.Errorf("catalog: unknown dataset %q", datasetID)
	}
	out := make([]Class, len(classes))
	copy(out, classes)
	return out, nil
}

// GetClassImages implements Catalog.
func (c *MemoryCatalog) GetClassImages(ctx context.Context, datasetID, classID string) ([]Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	byClass, ok := c.images[datasetID]
	if !ok {
		return nil, fmt.Errorf("catalog: unknown dataset %q", datasetID)
	}
	images := byClass[classID]
	out := make([]Image, len(images))
	copy(out, images)
	return out, nil
}
