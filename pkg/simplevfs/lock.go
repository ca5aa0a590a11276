package simplevfs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// FlowKindFetchFile is the collection flow kind started by Update to
// populate a file object's content.
const FlowKindFetchFile = "FetchFile"

// Update ensures a background collection operation is responsible for this
// object's content and returns its reference.
//
// The content lock is advisory: it records which in-flight operation owns
// content collection, and its validity is determined by querying the flow
// runner's current status, never by the record's age. Two racing Update
// calls are resolved only to the extent the store orders concurrent writes;
// this is deliberately not a strict mutual-exclusion primitive.
func (o *Object) Update(ctx context.Context) (FlowRef, error) {
	if o.flows == nil {
		return "", &ObjectError{URN: o.urn, Op: "update",
			Err: errors.New("no flow runner configured")}
	}
	if _, err := o.schema.Lookup(o.kind, AttrContentLock); err != nil {
		return "", err
	}

	held, err := o.currentLock(ctx)
	if err != nil {
		return "", err
	}
	if held != "" {
		status, err := o.flows.Status(ctx, held)
		if err != nil {
			// A lock whose status cannot be determined is never
			// treated as unlocked.
			return "", &ObjectError{URN: o.urn, Op: "update",
				Err: fmt.Errorf("%w: %v", ErrLockStatusUnavailable, err)}
		}
		if status == FlowRunning {
			return held, nil
		}
		// Finished or errored operations no longer hold the lock.
	}

	ref, err := o.flows.Start(ctx, FlowKindFetchFile, o.urn)
	if err != nil {
		// Propagated verbatim; no lock is written on failure.
		return "", err
	}

	raw, err := json.Marshal(string(ref))
	if err != nil {
		return "", &ObjectError{URN: o.urn, Op: "update", Err: err}
	}
	batch := map[string][]byte{AttrContentLock: raw}
	if err := o.store.WriteBatch(ctx, o.urn, o.clock.Now(), batch); err != nil {
		return "", &ObjectError{URN: o.urn, Op: "update", Err: err}
	}
	return ref, nil
}

// currentLock reads the latest persisted lock value directly from the store
// so back-to-back Update calls on one handle observe each other's flushes.
func (o *Object) currentLock(ctx context.Context) (FlowRef, error) {
	rec, err := o.store.ReadLatest(ctx, o.urn, AttrContentLock, o.clock.Now())
	if err != nil {
		if errors.Is(err, ErrAttributeNotSet) {
			return "", nil
		}
		return "", &ObjectError{URN: o.urn, Op: "update", Err: err}
	}
	var ref string
	if err := json.Unmarshal(rec.Value, &ref); err != nil {
		return "", &ObjectError{URN: o.urn, Op: "update", Err: err}
	}
	return FlowRef(ref), nil
}
