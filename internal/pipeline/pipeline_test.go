package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func states(steps []Step) []StepState {
	out := make([]StepState, len(steps))
	for i, s := range steps {
		out[i] = s.State
	}
	return out
}

func TestRenderApproved(t *testing.T) {
	steps := Render(Approved)
	assert.Equal(t, []StepState{StateDone, StateDone, StateActive, StatePending}, states(steps))
	assert.Equal(t, "승인", steps[2].Label)
}

func TestRenderReceivedAndInstalled(t *testing.T) {
	assert.Equal(t, []StepState{StateActive, StatePending, StatePending, StatePending}, states(Render(Received)))
	assert.Equal(t, []StepState{StateDone, StateDone, StateDone, StateActive}, states(Render(Installed)))
}

func TestRenderUnknownLeavesAllPending(t *testing.T) {
	for _, status := range []string{"", "bogus"} {
		assert.Equal(t, []StepState{StatePending, StatePending, StatePending, StatePending}, states(Render(status)))
	}
}

func TestRenderRejectedShowsOneCompletedStep(t *testing.T) {
	steps := Render(Rejected)
	assert.Len(t, steps, 5)
	assert.Equal(t, []StepState{StateDone, StatePending, StatePending, StatePending, StateRejected}, states(steps))
	assert.Equal(t, Rejected, steps[4].Key)
}

func TestValid(t *testing.T) {
	assert.True(t, Valid(Installed))
	assert.True(t, Valid(Rejected))
	assert.False(t, Valid("cancelled"))
}
