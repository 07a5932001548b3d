package index

import (
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/visioform/imagesift/hnsw"
)

// snapshot is the serialized form of the index. Tombstones are carried on
// the records themselves; bitmaps and posting lists are rebuilt on load.
type snapshot struct {
	Ready     bool
	Dimension int
	Records   []Record
	Graph     *hnsw.HNSW
}

// SaveTo writes a zstd-compressed snapshot of the index to w.
func (ix *Index) SaveTo(w io.Writer) error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("index: create snapshot writer: %w", err)
	}

	snap := snapshot{
		Ready:     ix.ready,
		Dimension: ix.dim,
		Records:   ix.records,
		Graph:     ix.graph,
	}
	if err := gob.NewEncoder(zw).Encode(snap); err != nil {
		_ = zw.Close()
		return fmt.Errorf("index: encode snapshot: %w", err)
	}
	return zw.Close()
}

// LoadFrom replaces the index contents with a snapshot previously written
// by SaveTo.
func (ix *Index) LoadFrom(r io.Reader) error {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return fmt.Errorf("index: create snapshot reader: %w", err)
	}
	defer zr.Close()

	var snap snapshot
	if err := gob.NewDecoder(zr).Decode(&snap); err != nil {
		return fmt.Errorf("index: decode snapshot: %w", err)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.ready = snap.Ready
	ix.dim = snap.Dimension
	ix.records = snap.Records
	ix.graph = snap.Graph
	ix.live = roaring.New()
	ix.postings = map[Field]map[string]*roaring.Bitmap{
		FieldDataset: {},
		FieldClass:   {},
		FieldImage:   {},
	}
	for i := range ix.records {
		rec := &ix.records[i]
		if rec.Deleted {
			continue
		}
		row := uint32(i)
		ix.live.Add(row)
		ix.addPosting(FieldDataset, rec.DatasetID, row)
		ix.addPosting(FieldClass, rec.ClassName, row)
		ix.addPosting(FieldImage, rec.ImageID, row)
	}
	return nil
}

// SaveToFile writes a snapshot to the given path.
func (ix *Index) SaveToFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("index: create snapshot file: %w", err)
	}
	if err := ix.SaveTo(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// LoadFromFile loads a snapshot from the given path.
func (ix *Index) LoadFromFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("index: open snapshot file: %w", err)
	}
	defer f.Close()
	return ix.LoadFrom(f)
}

// Checkpoint writes a snapshot to w and, on success, truncates the WAL:
// everything the log guarded is now captured by the snapshot.
func (ix *Index) Checkpoint(w io.Writer) error {
	if err := ix.SaveTo(w); err != nil {
		return err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.log == nil {
		return nil
	}
	return ix.log.Truncate()
}
