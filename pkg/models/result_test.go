package models

import "testing"

func TestStepStatus_Terminal(t *testing.T) {
	tests := []struct {
		status StepStatus
		want   bool
	}{
		{StepStatusPending, false},
		{StepStatusRunning, false},
		{StepStatusCompleted, true},
		{StepStatusFailed, true},
		{StepStatusSkipped, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.Terminal(); got != tt.want {
				t.Errorf("StepStatus(%q).Terminal() = %v, want %v", tt.status, got, tt.want)
			}
			if !tt.status.Valid() {
				t.Errorf("StepStatus(%q).Valid() = false", tt.status)
			}
		})
	}
}

func TestWorkflowResult_Counts(t *testing.T) {
	r := WorkflowResult{StepResults: []StepResult{
		{StepID: "a", Status: StepStatusCompleted},
		{StepID: "b", Status: StepStatusFailed},
		{StepID: "c", Status: StepStatusSkipped},
		{StepID: "d", Status: StepStatusCompleted},
	}}

	completed, failed, skipped := r.Counts()
	if completed != 2 || failed != 1 || skipped != 1 {
		t.Errorf("Counts() = %d, %d, %d; want 2, 1, 1", completed, failed, skipped)
	}
	if r.StepResult("b") == nil || r.StepResult("z") != nil {
		t.Error("StepResult lookup mismatch")
	}
}
