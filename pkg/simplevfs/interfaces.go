package simplevfs

import (
	"context"
	"io"
	"time"
)

// AttributeRecord is one immutable stored attribute version.
type AttributeRecord struct {
	URN       URN       `json:"urn"`
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
	Value     []byte    `json:"value"`
}

// Store is the opaque persistence backend for versioned attribute records.
//
// Implementations must make all values of one WriteBatch visible atomically
// at the single given timestamp; partially written batches are never
// observable. Records are append-only. Tie-breaking of equal timestamps is
// the implementation's own policy. Backend I/O failures wrap
// ErrStoreUnavailable; the store performs no retries.
type Store interface {
	// WriteBatch persists all values as one atomic batch at ts.
	WriteBatch(ctx context.Context, urn URN, ts time.Time, values map[string][]byte) error

	// ReadLatest returns the record with the maximum timestamp <= asOf,
	// or ErrAttributeNotSet.
	ReadLatest(ctx context.Context, urn URN, name string, asOf time.Time) (*AttributeRecord, error)

	// ReadAll returns the full history of one attribute in ascending
	// timestamp order.
	ReadAll(ctx context.Context, urn URN, name string) ([]AttributeRecord, error)

	// ReadSnapshot returns, per attribute, the latest record as of asOf.
	ReadSnapshot(ctx context.Context, urn URN, asOf time.Time) (map[string]AttributeRecord, error)

	// Exists reports whether any record was ever written for the URN.
	Exists(ctx context.Context, urn URN) (bool, error)
}

// BlobStore is the interface for file content storage backends.
type BlobStore interface {
	// Upload stores the content under the given key, replacing any
	// previous content.
	Upload(ctx context.Context, objectKey string, reader io.Reader) error

	// Download retrieves the content stored under the given key.
	Download(ctx context.Context, objectKey string) (io.ReadCloser, error)

	// Exists reports whether content is stored under the given key.
	Exists(ctx context.Context, objectKey string) (bool, error)

	// Delete removes the content stored under the given key.
	Delete(ctx context.Context, objectKey string) error
}

// FlowStatus is the lifecycle state of a background collection operation.
type FlowStatus string

// Flow status constants (typed).
const (
	FlowRunning  FlowStatus = "running"
	FlowFinished FlowStatus = "finished"
	FlowErrored  FlowStatus = "errored"
)

// FlowRef is the opaque reference of a background operation owned by the
// flow-execution subsystem. This package only reads and writes the
// reference, never its lifecycle.
type FlowRef string

// FlowRunner is the external flow-execution subsystem.
type FlowRunner interface {
	// Start schedules a background operation of the given kind scoped to
	// the target URN and returns its reference immediately, never
	// awaiting completion.
	Start(ctx context.Context, kind string, target URN) (FlowRef, error)

	// Status reports the current state of a previously started operation.
	Status(ctx context.Context, ref FlowRef) (FlowStatus, error)
}

// Clock is an injectable wall-time source.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now().UTC() }

// WallClock returns the real-time clock used by default.
func WallClock() Clock { return wallClock{} }
