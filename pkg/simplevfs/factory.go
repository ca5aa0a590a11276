package simplevfs

import (
	"context"
	"fmt"
	"time"
)

// OpenMode controls the visibility baseline of an object handle.
type OpenMode string

// Open mode constants (typed).
const (
	// ModeRead opens for reading only; Set and Close-with-writes fail.
	ModeRead OpenMode = "r"
	// ModeReadWrite opens with the persisted snapshot visible for reads.
	ModeReadWrite OpenMode = "rw"
	// ModeWrite discards the in-memory visible baseline for staging
	// purposes. History is never erased; the persisted snapshot is still
	// consulted for derived-attribute comparison.
	ModeWrite OpenMode = "w"
)

// Factory creates and opens object handles over the configured store.
type Factory interface {
	// Create returns a handle with an empty buffered transaction. It
	// always succeeds locally and performs no existence check; the object
	// becomes addressable on its first successful Close.
	Create(ctx context.Context, urn URN, kind ObjectKind, mode OpenMode) (*Object, error)

	// Open loads the visible attribute snapshot for an existing object,
	// failing with ErrObjectNotFound when no record exists for the URN.
	Open(ctx context.Context, urn URN, kind ObjectKind, mode OpenMode, opts ...OpenOption) (*Object, error)

	// CreateFile and OpenFile wrap file-kind objects with chunked content
	// access through the configured blob store.
	CreateFile(ctx context.Context, urn URN, mode OpenMode) (*File, error)
	OpenFile(ctx context.Context, urn URN, mode OpenMode, opts ...OpenOption) (*File, error)
}

// OpenOption adjusts how a handle is opened.
type OpenOption func(*openOptions)

type openOptions struct {
	asOf time.Time
}

// AsOf pins the handle's visible snapshot to the given point in time instead
// of the clock's current time.
func AsOf(t time.Time) OpenOption {
	return func(o *openOptions) { o.asOf = t }
}

// factory implements the Factory interface
type factory struct {
	store      Store
	schema     *Schema
	flows      FlowRunner
	clock      Clock
	blobStores map[string]BlobStore
	defaultBS  string
}

// Option represents a functional option for configuring the factory
type Option func(*factory)

// WithStore sets the versioned attribute store backend.
func WithStore(store Store) Option {
	return func(f *factory) { f.store = store }
}

// WithSchema sets the attribute schema registry.
func WithSchema(schema *Schema) Option {
	return func(f *factory) { f.schema = schema }
}

// WithFlowRunner sets the flow-execution collaborator used by Update.
func WithFlowRunner(flows FlowRunner) Option {
	return func(f *factory) { f.flows = flows }
}

// WithClock sets the time source. Defaults to the wall clock.
func WithClock(clock Clock) Option {
	return func(f *factory) { f.clock = clock }
}

// WithBlobStore adds a content storage backend. The first registered backend
// becomes the default unless WithDefaultBlobStore overrides it.
func WithBlobStore(name string, store BlobStore) Option {
	return func(f *factory) {
		if f.blobStores == nil {
			f.blobStores = make(map[string]BlobStore)
		}
		f.blobStores[name] = store
		if f.defaultBS == "" {
			f.defaultBS = name
		}
	}
}

// WithDefaultBlobStore selects the backend used for file content.
func WithDefaultBlobStore(name string) Option {
	return func(f *factory) { f.defaultBS = name }
}

// New creates a new factory instance with the given options
func New(options ...Option) (Factory, error) {
	f := &factory{
		blobStores: make(map[string]BlobStore),
	}

	for _, option := range options {
		option(f)
	}

	if f.store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if f.schema == nil {
		f.schema = DefaultSchema()
	}
	if f.clock == nil {
		f.clock = WallClock()
	}

	return f, nil
}

func (f *factory) Create(ctx context.Context, urn URN, kind ObjectKind, mode OpenMode) (*Object, error) {
	if _, err := ParseURN(string(urn)); err != nil {
		return nil, err
	}
	if !f.schema.HasKind(kind) {
		return nil, &SchemaError{Kind: kind, Err: ErrUnknownKind}
	}

	return &Object{
		urn:      urn,
		kind:     kind,
		mode:     mode,
		schema:   f.schema,
		store:    f.store,
		flows:    f.flows,
		clock:    f.clock,
		openedAt: f.clock.Now(),
		baseline: make(map[string]AttributeRecord),
		staged:   make(map[string][]byte),
	}, nil
}

func (f *factory) Open(ctx context.Context, urn URN, kind ObjectKind, mode OpenMode, opts ...OpenOption) (*Object, error) {
	if _, err := ParseURN(string(urn)); err != nil {
		return nil, err
	}
	if !f.schema.HasKind(kind) {
		return nil, &SchemaError{Kind: kind, Err: ErrUnknownKind}
	}

	var options openOptions
	for _, opt := range opts {
		opt(&options)
	}
	asOf := options.asOf
	if asOf.IsZero() {
		asOf = f.clock.Now()
	}

	exists, err := f.store.Exists(ctx, urn)
	if err != nil {
		return nil, &ObjectError{URN: urn, Op: "open", Err: err}
	}
	if !exists {
		return nil, &ObjectError{URN: urn, Op: "open", Err: ErrObjectNotFound}
	}

	baseline, err := f.store.ReadSnapshot(ctx, urn, asOf)
	if err != nil {
		return nil, &ObjectError{URN: urn, Op: "open", Err: err}
	}

	return &Object{
		urn:      urn,
		kind:     kind,
		mode:     mode,
		schema:   f.schema,
		store:    f.store,
		flows:    f.flows,
		clock:    f.clock,
		openedAt: asOf,
		baseline: baseline,
		staged:   make(map[string][]byte),
	}, nil
}

// blobStore resolves the default content backend.
func (f *factory) blobStore() (BlobStore, error) {
	bs, ok := f.blobStores[f.defaultBS]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBlobStoreNotFound, f.defaultBS)
	}
	return bs, nil
}

func (f *factory) CreateFile(ctx context.Context, urn URN, mode OpenMode) (*File, error) {
	bs, err := f.blobStore()
	if err != nil {
		return nil, err
	}
	obj, err := f.Create(ctx, urn, KindFile, mode)
	if err != nil {
		return nil, err
	}
	return newFile(obj, bs), nil
}

func (f *factory) OpenFile(ctx context.Context, urn URN, mode OpenMode, opts ...OpenOption) (*File, error) {
	bs, err := f.blobStore()
	if err != nil {
		return nil, err
	}
	obj, err := f.Open(ctx, urn, KindFile, mode, opts...)
	if err != nil {
		return nil, err
	}
	file := newFile(obj, bs)
	if err := file.loadTail(ctx); err != nil {
		return nil, err
	}
	return file, nil
}
