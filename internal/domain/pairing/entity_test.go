package pairing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPairKey_IsOrderIndependent(t *testing.T) {
	assert.Equal(t, PairKey("u1", "u2"), PairKey("u2", "u1"))
	assert.Equal(t, "2:u1|u2", PairKey("u2", "u1"))
}

func TestPairKey_SeparatorInIDs(t *testing.T) {
	assert.NotEqual(t, PairKey("a|b", "c"), PairKey("a", "b|c"))
	assert.NotEqual(t, PairKey("1:a", "b"), PairKey("1", "a|b"))
	assert.Equal(t, PairKey("a|b", "c"), PairKey("c", "a|b"))
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusPending, StatusAccepted))
	assert.True(t, CanTransition(StatusPending, StatusRejected))
	assert.True(t, CanTransition(StatusPending, StatusCancelled))
	assert.True(t, CanTransition(StatusAccepted, StatusCompleted))

	assert.False(t, CanTransition(StatusAccepted, StatusRejected))
	assert.False(t, CanTransition(StatusRejected, StatusPending))
	assert.False(t, CanTransition(StatusCompleted, StatusAccepted))
	assert.False(t, CanTransition(StatusPending, StatusCompleted))
}

func TestStatusClasses(t *testing.T) {
	assert.True(t, StatusPending.IsActive())
	assert.True(t, StatusAccepted.IsActive())
	assert.False(t, StatusRejected.IsActive())
	assert.True(t, StatusCompleted.IsTerminal())

	_, ok := ParseStatus("archived")
	assert.False(t, ok)
}
