// Package lifecycle implements the batch state machine.
package lifecycle

import (
	"fmt"

	"github.com/cardlake/cardlake/pkg/types"
)

// Transition table: from -> allowed tos
var validTransitions = map[types.BatchStatus][]types.BatchStatus{
	types.BatchPending:     {types.BatchStaged, types.BatchFailed},
	types.BatchStaged:      {types.BatchDimensioned, types.BatchFailed},
	types.BatchDimensioned: {types.BatchCommitted, types.BatchFailed},
	types.BatchCommitted:   {},
	types.BatchFailed:      {},
}

// CanTransition checks if transitioning from one batch status to another is valid.
func CanTransition(from, to types.BatchStatus) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Transition validates the move, or returns an error if the transition is invalid.
func Transition(from, to types.BatchStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	return nil
}

// IsTerminal returns true if the status is a terminal (final) state.
// A COMMITTED batch may still be re-run; re-runs start a fresh attempt
// at PENDING rather than transitioning the committed entry.
func IsTerminal(status types.BatchStatus) bool {
	return status == types.BatchCommitted || status == types.BatchFailed
}
