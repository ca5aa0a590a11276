package simplevfs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/exp/maps"
)

// Object is a handle on one URN-addressed object: a point-in-time projection
// of its attribute history plus a private write buffer.
//
// Mutations stage into the buffer without side effect; Close commits all
// staged values as one atomically-visible batch at a single timestamp.
// Handles are not safe for concurrent use; each handle is one isolation
// unit, and its writes become visible only to handles opened after Close.
type Object struct {
	urn    URN
	kind   ObjectKind
	mode   OpenMode
	schema *Schema
	store  Store
	flows  FlowRunner
	clock  Clock

	openedAt time.Time
	baseline map[string]AttributeRecord
	staged   map[string][]byte
}

func (o *Object) URN() URN         { return o.urn }
func (o *Object) Kind() ObjectKind { return o.kind }
func (o *Object) Mode() OpenMode   { return o.mode }

// OpenTime returns the as-of time of the handle's visible snapshot (the
// creation time for handles returned by Create).
func (o *Object) OpenTime() time.Time { return o.openedAt }

// set validates against the schema and stages the serialized value. Staging
// has no side effect until Close.
func (o *Object) set(name string, value interface{}, want AttributeType) error {
	if o.mode == ModeRead {
		return &ObjectError{URN: o.urn, Op: "set", Err: ErrReadOnly}
	}
	def, err := o.schema.Lookup(o.kind, name)
	if err != nil {
		return err
	}
	if def.Type != want {
		return &SchemaError{Kind: o.kind, Attribute: name,
			Err: fmt.Errorf("%w: have %s, want %s", ErrTypeMismatch, want, def.Type)}
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return &SchemaError{Kind: o.kind, Attribute: name, Err: err}
	}
	o.staged[name] = raw
	return nil
}

// get returns the staged value if present, else the latest persisted value
// as of the handle's open time. Write-only handles see no persisted
// baseline.
func (o *Object) get(name string, want AttributeType) ([]byte, AttributeDef, error) {
	def, err := o.schema.Lookup(o.kind, name)
	if err != nil {
		return nil, def, err
	}
	if def.Type != want {
		return nil, def, &SchemaError{Kind: o.kind, Attribute: name,
			Err: fmt.Errorf("%w: have %s, want %s", ErrTypeMismatch, want, def.Type)}
	}
	if raw, ok := o.staged[name]; ok {
		return raw, def, nil
	}
	if o.mode != ModeWrite {
		if rec, ok := o.baseline[name]; ok {
			return rec.Value, def, nil
		}
	}
	return nil, def, nil
}

func (o *Object) SetString(name, value string) error {
	return o.set(name, value, TypeString)
}

func (o *Object) GetString(name string) (string, error) {
	raw, def, err := o.get(name, TypeString)
	if err != nil {
		return "", err
	}
	if raw == nil {
		if d, ok := def.Default.(string); ok {
			return d, nil
		}
		return "", nil
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", &SchemaError{Kind: o.kind, Attribute: name, Err: err}
	}
	return v, nil
}

func (o *Object) SetInt64(name string, value int64) error {
	return o.set(name, value, TypeInt64)
}

func (o *Object) GetInt64(name string) (int64, error) {
	raw, def, err := o.get(name, TypeInt64)
	if err != nil {
		return 0, err
	}
	if raw == nil {
		if d, ok := def.Default.(int64); ok {
			return d, nil
		}
		return 0, nil
	}
	var v int64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, &SchemaError{Kind: o.kind, Attribute: name, Err: err}
	}
	return v, nil
}

func (o *Object) SetTime(name string, value time.Time) error {
	return o.set(name, value, TypeTime)
}

func (o *Object) GetTime(name string) (time.Time, error) {
	raw, _, err := o.get(name, TypeTime)
	if err != nil {
		return time.Time{}, err
	}
	if raw == nil {
		return time.Time{}, nil
	}
	var v time.Time
	if err := json.Unmarshal(raw, &v); err != nil {
		return time.Time{}, &SchemaError{Kind: o.kind, Attribute: name, Err: err}
	}
	return v, nil
}

func (o *Object) SetStringList(name string, value []string) error {
	return o.set(name, value, TypeStringList)
}

func (o *Object) GetStringList(name string) ([]string, error) {
	raw, _, err := o.get(name, TypeStringList)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	var v []string
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, &SchemaError{Kind: o.kind, Attribute: name, Err: err}
	}
	return v, nil
}

func (o *Object) SetJSON(name string, value interface{}) error {
	return o.set(name, value, TypeJSON)
}

// GetJSON decodes the visible value into out, returning ErrAttributeNotSet
// (wrapped) when no value is visible.
func (o *Object) GetJSON(name string, out interface{}) error {
	raw, _, err := o.get(name, TypeJSON)
	if err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("%w: %s", ErrAttributeNotSet, name)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &SchemaError{Kind: o.kind, Attribute: name, Err: err}
	}
	return nil
}

// GetAll returns the full projected snapshot: the persisted baseline overlaid
// with staged values. Staged entries carry a zero timestamp until flushed.
func (o *Object) GetAll() map[string]AttributeRecord {
	var snap map[string]AttributeRecord
	if o.mode == ModeWrite {
		snap = make(map[string]AttributeRecord, len(o.staged))
	} else {
		snap = maps.Clone(o.baseline)
	}
	for name, raw := range o.staged {
		snap[name] = AttributeRecord{URN: o.urn, Name: name, Value: raw}
	}
	return snap
}

// History returns the full ordered version history of one attribute.
func (o *Object) History(ctx context.Context, name string) ([]AttributeRecord, error) {
	if _, err := o.schema.Lookup(o.kind, name); err != nil {
		return nil, err
	}
	return o.store.ReadAll(ctx, o.urn, name)
}

// Close flushes the buffered transaction: all staged values are written as
// one atomic batch stamped with the current time. Derived markers are
// computed before the write and included in the same batch. Close is
// idempotent; with an empty buffer it is a no-op. On store failure the
// buffer is retained so the flush can be retried.
func (o *Object) Close(ctx context.Context) error {
	if len(o.staged) == 0 {
		return nil
	}
	if o.mode == ModeRead {
		return &ObjectError{URN: o.urn, Op: "close", Err: ErrReadOnly}
	}

	ts := o.clock.Now()

	// A marker advances only when the attribute it tracks actually changed
	// value in this transaction, never merely because a flush occurred.
	for _, def := range o.schema.markers(o.kind) {
		staged, ok := o.staged[def.Tracks]
		if !ok {
			continue
		}
		if base, ok := o.baseline[def.Tracks]; ok && bytes.Equal(staged, base.Value) {
			continue
		}
		raw, err := json.Marshal(ts)
		if err != nil {
			return &ObjectError{URN: o.urn, Op: "close", Err: err}
		}
		o.staged[def.Name] = raw
	}

	if err := o.store.WriteBatch(ctx, o.urn, ts, o.staged); err != nil {
		return &ObjectError{URN: o.urn, Op: "close", Err: err}
	}

	for name, raw := range o.staged {
		o.baseline[name] = AttributeRecord{URN: o.urn, Name: name, Timestamp: ts, Value: raw}
	}
	o.staged = make(map[string][]byte)
	return nil
}
