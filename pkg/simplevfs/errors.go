package simplevfs

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrObjectNotFound indicates an Open on a URN with no stored records.
	ErrObjectNotFound = errors.New("object not found")

	// ErrInvalidURN indicates a malformed URN rejected before touching the store.
	ErrInvalidURN = errors.New("invalid urn")

	// ErrUnknownKind indicates an object kind not declared in the schema.
	ErrUnknownKind = errors.New("unknown object kind")

	// ErrUnknownAttribute indicates an attribute name not declared for the object kind.
	ErrUnknownAttribute = errors.New("unknown attribute")

	// ErrTypeMismatch indicates a value whose type does not match the attribute declaration.
	ErrTypeMismatch = errors.New("attribute type mismatch")

	// ErrAttributeNotSet indicates no record exists for the attribute at the requested time.
	ErrAttributeNotSet = errors.New("attribute not set")

	// ErrReadOnly indicates a mutation on a handle opened read-only.
	ErrReadOnly = errors.New("object opened read-only")

	// ErrStoreUnavailable indicates a persistence backend I/O failure.
	// Retryable by the caller; the store performs no retries itself.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrLockStatusUnavailable indicates the flow-status query failed
	// transiently. It always propagates; a lock whose status cannot be
	// determined is never treated as unlocked.
	ErrLockStatusUnavailable = errors.New("lock status unavailable")

	// ErrBlobStoreNotFound indicates a content storage backend was not configured.
	ErrBlobStoreNotFound = errors.New("blob store not found")
)

// ObjectError represents an error related to object handle operations
type ObjectError struct {
	URN URN
	Op  string
	Err error
}

func (e *ObjectError) Error() string {
	return fmt.Sprintf("object operation %s failed for %s: %v", e.Op, e.URN, e.Err)
}

func (e *ObjectError) Unwrap() error {
	return e.Err
}

// SchemaError represents a schema violation on set or get
type SchemaError struct {
	Kind      ObjectKind
	Attribute string
	Err       error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema violation on %s attribute %q: %v", e.Kind, e.Attribute, e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// StoreError represents a persistence backend failure
type StoreError struct {
	URN URN
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store operation %s failed for %s: %v", e.Op, e.URN, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
