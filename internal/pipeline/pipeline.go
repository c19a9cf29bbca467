// Package pipeline turns a client's pipeline status into the step sequence
// drawn on both dashboards.
package pipeline

import "github.com/referral-desk/referral-desk/internal/labels"

// Pipeline statuses.
const (
	Received  = "received"
	Reviewing = "reviewing"
	Approved  = "approved"
	Installed = "installed"
	Rejected  = "rejected"
)

// Stages is the fixed ordered list of normal stages.
var Stages = []string{Received, Reviewing, Approved, Installed}

// StepState is the visual state of one step.
type StepState string

const (
	StateDone     StepState = "done"
	StateActive   StepState = "active"
	StatePending  StepState = ""
	StateRejected StepState = "rejected"
)

// Step is one rendered stage.
type Step struct {
	Key   string
	Label string
	State StepState
}

// Valid reports whether status is a known pipeline status.
func Valid(status string) bool {
	if status == Rejected {
		return true
	}
	return indexOf(status) >= 0
}

// Render maps status onto steps. A rejected case always shows the first
// stage as done, the remaining stages pending, then a terminal rejected
// marker, no matter how far the case had progressed.
func Render(status string) []Step {
	if status == Rejected {
		steps := make([]Step, 0, len(Stages)+1)
		for i, key := range Stages {
			state := StatePending
			if i == 0 {
				state = StateDone
			}
			steps = append(steps, Step{Key: key, Label: labels.PipelineStatus(key), State: state})
		}
		return append(steps, Step{Key: Rejected, Label: labels.PipelineStatus(Rejected), State: StateRejected})
	}

	current := indexOf(status)
	steps := make([]Step, 0, len(Stages))
	for i, key := range Stages {
		state := StatePending
		switch {
		case current < 0:
		case i < current:
			state = StateDone
		case i == current:
			state = StateActive
		}
		steps = append(steps, Step{Key: key, Label: labels.PipelineStatus(key), State: state})
	}
	return steps
}

func indexOf(status string) int {
	for i, key := range Stages {
		if key == status {
			return i
		}
	}
	return -1
}
