// Package checkpoint archives trace entries already dropped by GC
// truncation to lz4-compressed gob files, for post-hoc inspection only.
// It is deliberately write-only: nothing here reloads an archived entry
// back into a live Trace, since the whole point of watermark-driven GC
// is that the operator never again needs what it's dropped.
package checkpoint

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pierrec/lz4/v4"

	"github.com/streamcore/rollup/internal/trace"
)

// chunkHeaderSize is the length, in bytes, of the uncompressed-length
// header prefixed to every chunk file. A header value of 0 means the
// chunk's body was stored raw because lz4 couldn't shrink it.
const chunkHeaderSize = 4

// Archive is a single-label, append-only sequence of lz4-compressed gob
// chunks under dir. Entries accumulate in memory until Spill's buffer
// reaches threshold, then flush to a new numbered chunk file; Flush forces
// an out-of-band write regardless of threshold.
//
// Unlike the teacher's spillstore, an Archive is never Collect-ed back
// into memory and cleaned up — the archived chunks are meant to outlive
// the process, so Inspect reads them back without deleting anything.
type Archive[PK any, TS any, Payload any] struct {
	mu        sync.Mutex
	dir       string
	label     string
	threshold int
	pending   []trace.Entry[PK, TS, Payload]
	chunkN    int
}

// NewArchive constructs an Archive writing chunks named "<label>_NNN.lz4"
// under dir. dir is created lazily on the first flush, so constructing an
// Archive that never receives a drop never touches the filesystem.
// threshold <= 0 disables batching: every Spill call flushes immediately.
func NewArchive[PK any, TS any, Payload any](dir, label string, threshold int) *Archive[PK, TS, Payload] {
	return &Archive[PK, TS, Payload]{dir: dir, label: label, threshold: threshold}
}

// Spill appends dropped to the archive's pending buffer, flushing to disk
// once the buffer reaches threshold entries.
func (a *Archive[PK, TS, Payload]) Spill(dropped []trace.Entry[PK, TS, Payload]) error {
	if len(dropped) == 0 {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.pending = append(a.pending, dropped...)

	if a.threshold > 0 && len(a.pending) < a.threshold {
		return nil
	}

	return a.flushLocked()
}

// Flush forces any buffered entries to disk regardless of threshold.
// No-op if nothing is pending.
func (a *Archive[PK, TS, Payload]) Flush() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.flushLocked()
}

// ChunkCount returns the number of chunk files written so far.
func (a *Archive[PK, TS, Payload]) ChunkCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.chunkN
}

// Dir returns the directory this archive writes chunks under, which may
// be empty if no flush has happened yet and dir was left blank at
// construction (a temp directory is only allocated lazily).
func (a *Archive[PK, TS, Payload]) Dir() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.dir
}

func (a *Archive[PK, TS, Payload]) flushLocked() error {
	if len(a.pending) == 0 {
		return nil
	}

	if a.dir == "" {
		dir, err := os.MkdirTemp("", "rollup-checkpoint-*")
		if err != nil {
			return fmt.Errorf("checkpoint: create spill dir: %w", err)
		}

		a.dir = dir
	} else if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("checkpoint: create spill dir: %w", err)
	}

	var raw bytes.Buffer

	if err := gob.NewEncoder(&raw).Encode(a.pending); err != nil {
		return fmt.Errorf("checkpoint: encode chunk %d: %w", a.chunkN, err)
	}

	if err := a.writeChunk(raw.Bytes()); err != nil {
		return err
	}

	a.chunkN++
	a.pending = a.pending[:0]

	return nil
}

func (a *Archive[PK, TS, Payload]) writeChunk(payload []byte) error {
	path := filepath.Join(a.dir, fmt.Sprintf("%s_%03d.lz4", a.label, a.chunkN))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("checkpoint: create chunk %d: %w", a.chunkN, err)
	}

	defer f.Close()

	compressed := make([]byte, lz4.CompressBlockBound(len(payload)))

	written, err := lz4.CompressBlock(payload, compressed, nil)
	if err != nil {
		return fmt.Errorf("checkpoint: compress chunk %d: %w", a.chunkN, err)
	}

	header := make([]byte, chunkHeaderSize)
	body := compressed[:written]

	if written == 0 {
		// Incompressible (or too small to benefit): store the gob bytes
		// raw, with a zero header marking that.
		body = payload
	} else {
		binary.LittleEndian.PutUint32(header, uint32(len(payload)))
	}

	if _, err := f.Write(header); err != nil {
		return fmt.Errorf("checkpoint: write chunk %d header: %w", a.chunkN, err)
	}

	if _, err := f.Write(body); err != nil {
		return fmt.Errorf("checkpoint: write chunk %d body: %w", a.chunkN, err)
	}

	return nil
}

// Inspect reads back every chunk this archive has flushed, decompressing
// and decoding them into the dropped entries they recorded. It is read-
// only: the entries it returns are for display or analysis, never for
// reinsertion into a live Trace.
func (a *Archive[PK, TS, Payload]) Inspect() ([]trace.Entry[PK, TS, Payload], error) {
	a.mu.Lock()
	dir, label, chunkN := a.dir, a.label, a.chunkN
	a.mu.Unlock()

	if dir == "" {
		return nil, nil
	}

	var all []trace.Entry[PK, TS, Payload]

	for i := range chunkN {
		path := filepath.Join(dir, fmt.Sprintf("%s_%03d.lz4", label, i))

		entries, err := readChunk[PK, TS, Payload](path)
		if err != nil {
			return nil, err
		}

		all = append(all, entries...)
	}

	return all, nil
}

func readChunk[PK any, TS any, Payload any](path string) ([]trace.Entry[PK, TS, Payload], error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: read chunk %s: %w", path, err)
	}

	if len(data) < chunkHeaderSize {
		return nil, fmt.Errorf("checkpoint: chunk %s is shorter than its header", path)
	}

	uncompressedLen := binary.LittleEndian.Uint32(data[:chunkHeaderSize])
	body := data[chunkHeaderSize:]

	raw := body
	if uncompressedLen != 0 {
		raw = make([]byte, uncompressedLen)
		if _, err := lz4.UncompressBlock(body, raw); err != nil {
			return nil, fmt.Errorf("checkpoint: decompress chunk %s: %w", path, err)
		}
	}

	var entries []trace.Entry[PK, TS, Payload]

	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&entries); err != nil {
		return nil, fmt.Errorf("checkpoint: decode chunk %s: %w", path, err)
	}

	return entries, nil
}
