package pipeline

import (
	"fmt"
	"log/slog"
)

// Execution state of a single stage.
type stageState string

const (
	statePending      stageState = "pending"
	stateProvisioning stageState = "provisioning"
	stateImporting    stageState = "importing"
	stateRunning      stageState = "running"
	stateSucceeded    stageState = "succeeded"
	stateFailed       stageState = "failed"
)

// Legal forward transitions. SUCCEEDED and FAILED are terminal; failure is
// reachable from every active state.
var stateTransitions = map[stageState][]stageState{
	statePending:      {stateProvisioning, stateFailed},
	stateProvisioning: {stateImporting, stateFailed},
	stateImporting:    {stateRunning, stateFailed},
	stateRunning:      {stateSucceeded, stateFailed},
}

// Reports whether the transition from s to next is legal.
func (s stageState) canAdvance(next stageState) bool {
	for _, allowed := range stateTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Tracks one stage's progress through the execution state machine.
type stageTracker struct {
	stage string
	state stageState
}

func newStageTracker(stage string) *stageTracker {
	return &stageTracker{stage: stage, state: statePending}
}

// Moves the stage to the next state.
func (t *stageTracker) advance(next stageState) error {
	if !t.state.canAdvance(next) {
		return fmt.Errorf("%w: illegal stage transition %s -> %s", ErrPipeline, t.state, next)
	}

	slog.Debug("stage state", "stage", t.stage, "from", t.state, "to", next)
	t.state = next
	return nil
}

// Marks the stage failed. Legal from every active state.
func (t *stageTracker) fail() {
	slog.Debug("stage state", "stage", t.stage, "from", t.state, "to", stateFailed)
	t.state = stateFailed
}
