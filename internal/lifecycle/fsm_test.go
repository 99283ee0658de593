package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cardlake/cardlake/pkg/types"
)

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from  types.BatchStatus
		to    types.BatchStatus
		valid bool
	}{
		{types.BatchPending, types.BatchStaged, true},
		{types.BatchPending, types.BatchFailed, true},
		{types.BatchPending, types.BatchDimensioned, false},
		{types.BatchPending, types.BatchCommitted, false},
		{types.BatchStaged, types.BatchDimensioned, true},
		{types.BatchStaged, types.BatchFailed, true},
		{types.BatchStaged, types.BatchCommitted, false},
		{types.BatchDimensioned, types.BatchCommitted, true},
		{types.BatchDimensioned, types.BatchFailed, true},
		{types.BatchDimensioned, types.BatchStaged, false},
		{types.BatchCommitted, types.BatchPending, false},
		{types.BatchCommitted, types.BatchFailed, false},
		{types.BatchFailed, types.BatchPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.valid, CanTransition(tt.from, tt.to))
			err := Transition(tt.from, tt.to)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(types.BatchCommitted))
	assert.True(t, IsTerminal(types.BatchFailed))
	assert.False(t, IsTerminal(types.BatchPending))
	assert.False(t, IsTerminal(types.BatchStaged))
	assert.False(t, IsTerminal(types.BatchDimensioned))
}
