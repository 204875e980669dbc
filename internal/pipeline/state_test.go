package pipeline

import (
	"errors"
	"testing"
)

func TestCanAdvance(t *testing.T) {
	tests := []struct {
		from, to stageState
		want     bool
	}{
		{statePending, stateProvisioning, true},
		{stateProvisioning, stateImporting, true},
		{stateImporting, stateRunning, true},
		{stateRunning, stateSucceeded, true},

		{statePending, stateFailed, true},
		{stateProvisioning, stateFailed, true},
		{stateImporting, stateFailed, true},
		{stateRunning, stateFailed, true},

		{statePending, stateRunning, false},
		{statePending, stateSucceeded, false},
		{stateProvisioning, stateRunning, false},
		{stateRunning, statePending, false},
		{stateSucceeded, stateFailed, false},
		{stateFailed, stateProvisioning, false},
	}

	for _, tt := range tests {
		if got := tt.from.canAdvance(tt.to); got != tt.want {
			t.Errorf("canAdvance(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestStageTracker(t *testing.T) {
	track := newStageTracker("build")

	for _, next := range []stageState{stateProvisioning, stateImporting, stateRunning, stateSucceeded} {
		if err := track.advance(next); err != nil {
			t.Fatalf("advance(%s): %v", next, err)
		}
	}

	if err := track.advance(stateRunning); err == nil {
		t.Error("advancing out of a terminal state succeeded")
	} else if !errors.Is(err, ErrPipeline) {
		t.Errorf("error = %v, want ErrPipeline", err)
	}
}

func TestStageTrackerFail(t *testing.T) {
	track := newStageTracker("build")
	if err := track.advance(stateProvisioning); err != nil {
		t.Fatal(err)
	}

	track.fail()

	if err := track.advance(stateImporting); err == nil {
		t.Error("advancing a failed stage succeeded")
	}
}
