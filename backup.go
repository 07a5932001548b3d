package imagesift

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/visioform/imagesift/blobstore"
)

// Backup writes a snapshot of the index to the blob store under a
// timestamped name and commits it as the CURRENT snapshot. Returns the
// snapshot name.
//
// With a plain store the CURRENT pointer is a last-writer-wins object; the
// S3+DynamoDB store upgrades the commit to a conditional write so racing
// backup writers are detected.
func (e *Engine) Backup(ctx context.Context, store blobstore.Store) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := e.index.SaveTo(&buf); err != nil {
		return "", storageError("backup snapshot", err)
	}

	name := fmt.Sprintf("snapshots/%d.snap", time.Now().UnixNano())
	if err := store.Put(ctx, name, buf.Bytes()); err != nil {
		return "", storageError("backup upload", err)
	}
	if err := store.Put(ctx, blobstore.CurrentName, []byte(name)); err != nil {
		return "", storageError("backup commit", err)
	}

	e.logger.InfoContext(ctx, "backup completed", "snapshot", name, "bytes", buf.Len())
	return name, nil
}

// Restore replaces the index contents with the CURRENT snapshot from the
// blob store. A store without a committed snapshot yields ErrNotFound.
func (e *Engine) Restore(ctx context.Context, store blobstore.Store) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	name, err := store.Get(ctx, blobstore.CurrentName)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return fmt.Errorf("%w: no snapshot committed", ErrNotFound)
		}
		return storageError("restore resolve", err)
	}

	data, err := store.Get(ctx, string(name))
	if err != nil {
		return storageError("restore download", err)
	}

	if err := e.index.LoadFrom(bytes.NewReader(data)); err != nil {
		return storageError("restore load", err)
	}

	e.logger.InfoContext(ctx, "restore completed", "snapshot", string(name), "bytes", len(data))
	return nil
}
