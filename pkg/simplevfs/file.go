package simplevfs

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"io"
)

// DefaultChunkSize is the content chunk size used when a file object does
// not declare one.
const DefaultChunkSize = 512 * 1024

// File wraps a file-kind Object with append-only chunked content access.
//
// Content bytes live in the configured BlobStore under per-chunk keys; the
// attribute store only carries the size, chunk size, content hash and
// content-change marker. Write buffers locally; Flush uploads the affected chunks and
// commits the size attributes in the same transaction as any other staged
// attributes, so the content-last-changed marker advances exactly when
// content actually grew.
type File struct {
	*Object

	blob      BlobStore
	chunkSize int64

	// flushedSize is the committed content length; tail holds the bytes of
	// the last committed chunk when it is partially filled, so a later
	// flush can extend it in place.
	flushedSize int64
	tail        []byte
	pending     []byte

	// digest accumulates the committed content for the content-hash
	// attribute. Content is append-only, so the running state stays valid
	// across flushes.
	digest hash.Hash

	readOffset int64
}

func newFile(obj *Object, blob BlobStore) *File {
	return &File{
		Object:    obj,
		blob:      blob,
		chunkSize: DefaultChunkSize,
		digest:    sha256.New(),
	}
}

// loadTail restores content bookkeeping from the persisted snapshot.
func (f *File) loadTail(ctx context.Context) error {
	if cs, ok := f.baselineInt64(AttrChunkSize); ok && cs > 0 {
		f.chunkSize = cs
	}
	if size, ok := f.baselineInt64(AttrSize); ok {
		f.flushedSize = size
	}
	if f.mode == ModeRead {
		return nil
	}
	if f.flushedSize > 0 {
		committed, err := f.ReadAll(ctx)
		if err != nil {
			return err
		}
		f.digest.Write(committed)
		if rem := f.flushedSize % f.chunkSize; rem > 0 {
			f.tail = append([]byte(nil), committed[f.flushedSize-rem:]...)
		}
	}
	return nil
}

// baselineInt64 reads a persisted int64 attribute regardless of open mode;
// content bookkeeping must see history even on write-only handles.
func (f *File) baselineInt64(name string) (int64, bool) {
	rec, ok := f.baseline[name]
	if !ok {
		return 0, false
	}
	var v int64
	if err := json.Unmarshal(rec.Value, &v); err != nil {
		return 0, false
	}
	return v, true
}

// SetChunkSize declares the content chunk size. It can only change while no
// content has been written.
func (f *File) SetChunkSize(n int64) error {
	if n <= 0 {
		return &ObjectError{URN: f.urn, Op: "set_chunk_size",
			Err: fmt.Errorf("chunk size must be positive, got %d", n)}
	}
	if f.flushedSize > 0 || len(f.pending) > 0 {
		return &ObjectError{URN: f.urn, Op: "set_chunk_size",
			Err: fmt.Errorf("chunk size cannot change after content was written")}
	}
	f.chunkSize = n
	return nil
}

// ChunkSize returns the effective content chunk size.
func (f *File) ChunkSize() int64 { return f.chunkSize }

// Size returns the logical content length including unflushed writes.
func (f *File) Size() int64 { return f.flushedSize + int64(len(f.pending)) }

// Write appends content. Bytes are buffered until Flush.
func (f *File) Write(p []byte) (int, error) {
	if f.mode == ModeRead {
		return 0, &ObjectError{URN: f.urn, Op: "write", Err: ErrReadOnly}
	}
	f.pending = append(f.pending, p...)
	return len(p), nil
}

// Flush uploads buffered content to the blob store and commits the staged
// attribute transaction. The handle stays usable afterwards.
func (f *File) Flush(ctx context.Context) error {
	if len(f.pending) > 0 {
		data := append(append([]byte(nil), f.tail...), f.pending...)
		baseOffset := f.flushedSize - int64(len(f.tail))

		for off := int64(0); off < int64(len(data)); off += f.chunkSize {
			end := off + f.chunkSize
			if end > int64(len(data)) {
				end = int64(len(data))
			}
			idx := (baseOffset + off) / f.chunkSize
			if err := f.blob.Upload(ctx, f.chunkKey(idx), bytes.NewReader(data[off:end])); err != nil {
				return &ObjectError{URN: f.urn, Op: "flush", Err: err}
			}
		}

		f.digest.Write(f.pending)
		f.flushedSize += int64(len(f.pending))
		f.pending = nil
		if rem := f.flushedSize % f.chunkSize; rem > 0 {
			f.tail = append([]byte(nil), data[int64(len(data))-rem:]...)
		} else {
			f.tail = nil
		}

		if err := f.SetInt64(AttrSize, f.flushedSize); err != nil {
			return err
		}
		if err := f.SetString(AttrContentHash, hex.EncodeToString(f.digest.Sum(nil))); err != nil {
			return err
		}
		if _, ok := f.baseline[AttrChunkSize]; !ok {
			if err := f.SetInt64(AttrChunkSize, f.chunkSize); err != nil {
				return err
			}
		}
	}

	return f.Object.Close(ctx)
}

// Close flushes any buffered content and staged attributes.
func (f *File) Close(ctx context.Context) error {
	return f.Flush(ctx)
}

// Read fills p with committed content from the handle's current read
// position and advances it. Returns io.EOF at the end of committed content.
func (f *File) Read(ctx context.Context, p []byte) (int, error) {
	n, err := f.ReadAt(ctx, p, f.readOffset)
	f.readOffset += int64(n)
	return n, err
}

// ReadAt fills p with committed content starting at off. Unflushed writes are
// not visible. Returns io.EOF when fewer than len(p) bytes remain.
func (f *File) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, &ObjectError{URN: f.urn, Op: "read",
			Err: fmt.Errorf("negative offset %d", off)}
	}
	n := 0
	for n < len(p) && off < f.flushedSize {
		data, err := f.readChunk(ctx, off/f.chunkSize)
		if err != nil {
			return n, &ObjectError{URN: f.urn, Op: "read", Err: err}
		}
		if limit := f.flushedSize - (off/f.chunkSize)*f.chunkSize; limit < int64(len(data)) {
			data = data[:limit]
		}
		within := off % f.chunkSize
		if within >= int64(len(data)) {
			break
		}
		copied := copy(p[n:], data[within:])
		n += copied
		off += int64(copied)
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// ReadAll returns the committed content (unflushed writes excluded).
func (f *File) ReadAll(ctx context.Context) ([]byte, error) {
	var buf bytes.Buffer
	for offset := int64(0); offset < f.flushedSize; offset += f.chunkSize {
		data, err := f.readChunk(ctx, offset/f.chunkSize)
		if err != nil {
			return nil, &ObjectError{URN: f.urn, Op: "read", Err: err}
		}
		want := f.flushedSize - offset
		if want < int64(len(data)) {
			data = data[:want]
		}
		buf.Write(data)
	}
	if int64(buf.Len()) != f.flushedSize {
		return nil, &ObjectError{URN: f.urn, Op: "read",
			Err: fmt.Errorf("stored content truncated: have %d bytes, want %d", buf.Len(), f.flushedSize)}
	}
	return buf.Bytes(), nil
}

func (f *File) readChunk(ctx context.Context, idx int64) ([]byte, error) {
	rc, err := f.blob.Download(ctx, f.chunkKey(idx))
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (f *File) chunkKey(idx int64) string {
	return fmt.Sprintf("%s/%010d", f.urn, idx)
}
