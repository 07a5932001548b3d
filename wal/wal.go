// Package wal provides write-ahead logging for durability and crash recovery.
//
// Every mutation of the vector index (provision, insert, tombstone) is
// appended to the log before it is acknowledged. On startup the log is
// replayed to rebuild the in-memory state.
//
// Entries are gob-encoded and lz4 block-compressed, each framed with a
// length prefix and a CRC32 checksum. A truncated or corrupted tail entry
// ends replay without failing recovery.
package wal

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pierrec/lz4/v4"
)

const fileName = "imagesift.wal"

// frame header: compressed length, raw length, checksum of compressed payload.
const frameHeaderSize = 12

// Op identifies the kind of logged mutation.
type Op uint8

const (
	// OpProvision records the index dimension at provisioning time.
	OpProvision Op = iota + 1

	// OpInsert records a new embedding record.
	OpInsert

	// OpDelete records a tombstone for an image's embedding.
	OpDelete
)

// Entry is a single logged mutation.
type Entry struct {
	Op        Op
	Dimension int
	ID        uint64
	DatasetID string
	ImageID   string
	ClassName string
	Vector    []float32
	Metadata  map[string]any
}

// Options contains configuration options for the WAL.
type Options struct {
	// Path is the directory holding the log file. Created if missing.
	Path string

	// SyncOnWrite forces an fsync after every append. Durable but slow;
	// disabled by default, in which case data is flushed on Close.
	SyncOnWrite bool
}

// DefaultOptions contains the default configuration options for the WAL.
var DefaultOptions = Options{
	SyncOnWrite: false,
}

// WAL is an append-only log of index mutations.
type WAL struct {
	mu       sync.Mutex
	file     *os.File
	filePath string
	opts     Options
}

// Open opens or creates the WAL in the configured directory.
func Open(optFns ...func(o *Options)) (*WAL, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Path == "" {
		return nil, errors.New("wal: path is required")
	}

	if err := os.MkdirAll(opts.Path, 0o750); err != nil {
		return nil, fmt.Errorf("wal: create directory: %w", err)
	}

	filePath := filepath.Join(opts.Path, fileName)
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("wal: open file: %w", err)
	}

	return &WAL{
		file:     file,
		filePath: filePath,
		opts:     opts,
	}, nil
}

// FilePath returns the path to the log file.
func (w *WAL) FilePath() string {
	return w.filePath
}

// Append logs one entry. The entry is on disk (or at least in the page
// cache) before Append returns; with SyncOnWrite it is fsynced as well.
func (w *WAL) Append(e Entry) error {
	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(e); err != nil {
		return fmt.Errorf("wal: encode entry: %w", err)
	}

	compressed := make([]byte, lz4.CompressBlockBound(raw.Len()))
	n, err := lz4.CompressBlock(raw.Bytes(), compressed, nil)
	if err != nil {
		return fmt.Errorf("wal: compress entry: %w", err)
	}
	payload := compressed[:n]
	if n == 0 {
		// Incompressible payload; store raw (signaled by rawLen == compLen).
		payload = raw.Bytes()
	}

	var header [frameHeaderSize]byte
	binary.LittleEndian.PutUint32(header[0:4], uint32(len(payload)))
	binary.LittleEndian.PutUint32(header[4:8], uint32(raw.Len()))
	binary.LittleEndian.PutUint32(header[8:12], crc32.ChecksumIEEE(payload))

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return errors.New("wal: closed")
	}
	if _, err := w.file.Write(header[:]); err != nil {
		return fmt.Errorf("wal: write frame header: %w", err)
	}
	if _, err := w.file.Write(payload); err != nil {
		return fmt.Errorf("wal: write frame payload: %w", err)
	}
	if w.opts.SyncOnWrite {
		if err := w.file.Sync(); err != nil {
			return fmt.Errorf("wal: sync: %w", err)
		}
	}
	return nil
}

// Replay reads the log from the beginning and invokes fn for each entry.
// Replay stops silently at the first truncated or corrupted frame, keeping
// everything that was durably written before the crash.
func (w *WAL) Replay(fn func(Entry) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return errors.New("wal: closed")
	}
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("wal: seek: %w", err)
	}
	// Appends continue from the end of the valid prefix.
	defer func() {
		_, _ = w.file.Seek(0, io.SeekEnd)
	}()

	var header [frameHeaderSize]byte
	for {
		if _, err := io.ReadFull(w.file, header[:]); err != nil {
			return nil // clean EOF or truncated header
		}
		compLen := binary.LittleEndian.Uint32(header[0:4])
		rawLen := binary.LittleEndian.Uint32(header[4:8])
		sum := binary.LittleEndian.Uint32(header[8:12])

		payload := make([]byte, compLen)
		if _, err := io.ReadFull(w.file, payload); err != nil {
			return nil // truncated tail
		}
		if crc32.ChecksumIEEE(payload) != sum {
			return nil // corrupted tail
		}

		raw := payload
		if compLen != rawLen {
			raw = make([]byte, rawLen)
			if _, err := lz4.UncompressBlock(payload, raw); err != nil {
				return fmt.Errorf("wal: decompress entry: %w", err)
			}
		}

		var e Entry
		if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&e); err != nil {
			return fmt.Errorf("wal: decode entry: %w", err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
}

// Truncate discards all logged entries. Called after a snapshot has been
// durably written elsewhere (checkpoint).
func (w *WAL) Truncate() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return errors.New("wal: closed")
	}
	if err := w.file.Truncate(0); err != nil {
		return fmt.Errorf("wal: truncate: %w", err)
	}
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("wal: seek: %w", err)
	}
	return w.file.Sync()
}

// Close flushes and closes the log file.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.file.Sync()
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	w.file = nil
	return err
}
