// Package status implements the lifecycle gate that every cache operation
// passes through before touching the store.
package status

import (
	"fmt"
	"sync/atomic"
)

// State is the lifecycle state of a cache.
type State int32

const (
	// Uninitialized is the state before Init. No operation is permitted.
	Uninitialized State = iota

	// Available is the only state in which operations may run.
	Available

	// Closed is terminal. There is no reopen.
	Closed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "UNINITIALIZED"
	case Available:
		return "AVAILABLE"
	case Closed:
		return "CLOSED"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// LifecycleError reports an operation attempted outside the Available state,
// or an invalid transition.
type LifecycleError struct {
	Current State
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("cache is %s", e.Current)
}

/*
Gate is the cache lifecycle state machine.

Transitions are monotonic: Uninitialized -> Available -> Closed. A single
atomic word holds the state, so concurrent callers during a transition either
observe the old state and complete, or see the new one. There are no
half-states.
*/
type Gate struct {
	state atomic.Int32
}

// NewGate returns a gate in the Uninitialized state.
func NewGate() *Gate {
	return &Gate{}
}

// Init moves the gate from Uninitialized to Available.
func (g *Gate) Init() error {
	if !g.state.CompareAndSwap(int32(Uninitialized), int32(Available)) {
		return &LifecycleError{Current: g.State()}
	}
	return nil
}

// Close moves the gate from Available to Closed.
func (g *Gate) Close() error {
	if !g.state.CompareAndSwap(int32(Available), int32(Closed)) {
		return &LifecycleError{Current: g.State()}
	}
	return nil
}

// CheckAvailable returns a LifecycleError unless the gate is Available.
// It is called at operation entry, before any store interaction.
func (g *Gate) CheckAvailable() error {
	if s := g.State(); s != Available {
		return &LifecycleError{Current: s}
	}
	return nil
}

// State returns the current lifecycle state.
func (g *Gate) State() State {
	return State(g.state.Load())
}
