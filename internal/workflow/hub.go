package workflow

import (
	"context"
	"sync"
)

// Hub stores the latest workflow snapshot and wakes waiters on each publish.
type Hub struct {
	mu      sync.Mutex
	cond    *sync.Cond
	latest  State
	version uint64
}

// NewHub constructs a hub seeded with the session start state at version 0.
func NewHub() *Hub {
	h := &Hub{latest: NewState()}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// Publish records state as the newest snapshot and returns its version.
func (h *Hub) Publish(state State) uint64 {
	h.mu.Lock()
	h.version++
	snapshot := state.Clone()
	snapshot.Version = h.version
	h.latest = snapshot
	version := h.version
	h.cond.Broadcast()
	h.mu.Unlock()
	return version
}

// Latest returns a copy of the newest snapshot.
func (h *Hub) Latest() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest.Clone()
}

// Wait blocks until a snapshot newer than since is published or ctx ends.
// On cancellation it returns the latest snapshot together with the context error.
func (h *Hub) Wait(ctx context.Context, since uint64) (State, error) {
	cancelWait := make(chan struct{})
	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				h.mu.Lock()
				h.cond.Broadcast()
				h.mu.Unlock()
			case <-cancelWait:
			}
		}()
	}
	defer close(cancelWait)

	h.mu.Lock()
	defer h.mu.Unlock()
	for h.version <= since {
		if err := ctx.Err(); err != nil {
			return h.latest.Clone(), err
		}
		h.cond.Wait()
	}
	return h.latest.Clone(), nil
}

// Subscribe streams snapshots newer than since until ctx ends. Slow readers
// skip intermediate versions and always receive the newest one.
func (h *Hub) Subscribe(ctx context.Context, since uint64) <-chan State {
	out := make(chan State)
	go func() {
		defer close(out)
		cursor := since
		for {
			state, err := h.Wait(ctx, cursor)
			if err != nil {
				return
			}
			cursor = state.Version
			select {
			case out <- state:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
