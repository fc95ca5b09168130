package engine

import (
	"encoding/json"
	"fmt"
)

// PhaseStatus represents the overall status of a phase run.
type PhaseStatus string

const (
	// PhaseStatusNotStarted indicates the phase has been created but not run.
	PhaseStatusNotStarted PhaseStatus = "not_started"

	// PhaseStatusRunning indicates a task of the phase is executing.
	PhaseStatusRunning PhaseStatus = "running"

	// PhaseStatusSucceeded indicates every applicable task succeeded.
	PhaseStatusSucceeded PhaseStatus = "succeeded"

	// PhaseStatusFailed indicates a task failed and the phase stopped.
	PhaseStatusFailed PhaseStatus = "failed"
)

// IsTerminal returns true if the phase status represents a final state.
func (s PhaseStatus) IsTerminal() bool {
	return s == PhaseStatusSucceeded || s == PhaseStatusFailed
}

// Validate checks if the phase status is valid.
func (s PhaseStatus) Validate() error {
	switch s {
	case PhaseStatusNotStarted, PhaseStatusRunning, PhaseStatusSucceeded, PhaseStatusFailed:
		return nil
	default:
		return fmt.Errorf("invalid phase status: %s", s)
	}
}

// MarshalJSON implements custom JSON marshaling for type-safe enum serialization.
func (s PhaseStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements custom JSON unmarshaling with validation.
func (s *PhaseStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = PhaseStatus(str)
	return s.Validate()
}

// TaskStatus represents the outcome of a single task within a phase run.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not been reached yet.
	TaskStatusPending TaskStatus = "pending"

	// TaskStatusSkipped indicates the task's predicate did not apply.
	TaskStatusSkipped TaskStatus = "skipped"

	// TaskStatusRunning indicates the task is executing.
	TaskStatusRunning TaskStatus = "running"

	// TaskStatusSucceeded indicates the task completed successfully.
	TaskStatusSucceeded TaskStatus = "succeeded"

	// TaskStatusFailed indicates the task reported failure.
	TaskStatusFailed TaskStatus = "failed"
)

// IsTerminal returns true if the task status represents a final state.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusSkipped || s == TaskStatusSucceeded || s == TaskStatusFailed
}

// Validate checks if the task status is valid.
func (s TaskStatus) Validate() error {
	switch s {
	case TaskStatusPending, TaskStatusSkipped, TaskStatusRunning,
		TaskStatusSucceeded, TaskStatusFailed:
		return nil
	default:
		return fmt.Errorf("invalid task status: %s", s)
	}
}

// MarshalJSON implements custom JSON marshaling for type-safe enum serialization.
func (s TaskStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements custom JSON unmarshaling with validation.
func (s *TaskStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = TaskStatus(str)
	return s.Validate()
}
