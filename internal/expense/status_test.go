package expense

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.True(t, StatusApproved.IsTerminal())
	assert.True(t, StatusRejected.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.False(t, Status("bogus").IsTerminal())
	assert.False(t, Status("bogus").IsValid())
}

func TestResultStates(t *testing.T) {
	assert.False(t, ResultPending.IsTerminal())
	assert.True(t, ResultApproved.IsTerminal())
	assert.True(t, ResultCancelled.IsTerminal())

	assert.True(t, ResultApproved.Decided())
	assert.True(t, ResultRejected.Decided())
	assert.False(t, ResultCancelled.Decided(), "a cancelled row was closed, not decided")
	assert.False(t, ResultPending.Decided())
}

func TestDecisionMapping(t *testing.T) {
	assert.True(t, DecisionApprove.IsValid())
	assert.True(t, DecisionReject.IsValid())
	assert.False(t, Decision("escalate").IsValid())

	assert.Equal(t, ResultApproved, DecisionApprove.Result())
	assert.Equal(t, ResultRejected, DecisionReject.Result())
}
