package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/tendant/simple-vfs/pkg/simplevfs"
)

// Flow is one scheduled background operation tracked by the runner.
type Flow struct {
	Ref    simplevfs.FlowRef
	Kind   string
	Target simplevfs.URN
	Status simplevfs.FlowStatus
}

// Runner implements simplevfs.FlowRunner in memory. It schedules nothing:
// started flows stay Running until moved by SetStatus. Suitable for tests
// and single-process development servers.
type Runner struct {
	mu    sync.Mutex
	flows map[simplevfs.FlowRef]*Flow
	order []simplevfs.FlowRef
}

// New creates a new in-memory flow runner
func New() *Runner {
	return &Runner{
		flows: make(map[simplevfs.FlowRef]*Flow),
	}
}

// Start records a new flow in Running state and returns its reference
// immediately.
func (r *Runner) Start(ctx context.Context, kind string, target simplevfs.URN) (simplevfs.FlowRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ref := simplevfs.FlowRef(fmt.Sprintf("%s/flows/F.%s", target, uuid.NewString()))
	r.flows[ref] = &Flow{
		Ref:    ref,
		Kind:   kind,
		Target: target,
		Status: simplevfs.FlowRunning,
	}
	r.order = append(r.order, ref)
	return ref, nil
}

// Status reports the current state of a flow.
func (r *Runner) Status(ctx context.Context, ref simplevfs.FlowRef) (simplevfs.FlowStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	flow, exists := r.flows[ref]
	if !exists {
		return "", fmt.Errorf("unknown flow %s", ref)
	}
	return flow.Status, nil
}

// SetStatus moves a flow to the given state.
func (r *Runner) SetStatus(ref simplevfs.FlowRef, status simplevfs.FlowStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	flow, exists := r.flows[ref]
	if !exists {
		return fmt.Errorf("unknown flow %s", ref)
	}
	flow.Status = status
	return nil
}

// Flows returns all started flows in start order.
func (r *Runner) Flows() []Flow {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]Flow, 0, len(r.order))
	for _, ref := range r.order {
		result = append(result, *r.flows[ref])
	}
	return result
}

// StartCount returns how many flows were started.
func (r *Runner) StartCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.order)
}
