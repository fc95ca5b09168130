package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/openfroyo/esinstall/pkg/model"
	"github.com/openfroyo/esinstall/pkg/stores"
)

// Session is the line-oriented log and progress sink owned by the host
// installer. The orchestrator hands each task a Session whose Progress
// calls are clamped to the task's tick budget.
type Session interface {
	// Log writes a single log line.
	Log(msg string)

	// ActionStart announces a new named action with its total tick count.
	ActionStart(totalTicks int, action, description string)

	// Progress advances the progress bar by ticks.
	Progress(ticks int, message string)
}

// TaskContext carries the per-phase collaborators every task reads from.
type TaskContext struct {
	// Model is the installation being acted on.
	Model *model.Installation

	// State is the persisted cross-process state.
	State *stores.InstallState

	// Session receives log lines and progress ticks.
	Session Session

	// Logger is the structured logger for the phase.
	Logger zerolog.Logger
}

// Logf writes a formatted line to the session.
func (tc *TaskContext) Logf(format string, args ...interface{}) {
	if tc.Session == nil {
		return
	}
	tc.Session.Log(fmt.Sprintf(format, args...))
}

// Task is a single named, ordered unit of work within a phase.
type Task interface {
	// Name identifies the task in logs, errors and the journal.
	Name() string

	// Order is the task's position within its phase. Unique per phase.
	Order() int

	// Applies reports whether the task should run for the installation.
	Applies(m *model.Installation) bool

	// NeedsElevation reports whether the task requires an elevated process.
	NeedsElevation() bool

	// Ticks is the task's share of the phase progress bar. It is asked
	// once per run, and only when Applies returned true.
	Ticks(m *model.Installation) int

	// Execute performs the work. Returning false or a non-nil error fails
	// the phase.
	Execute(ctx context.Context, tc *TaskContext) (bool, error)
}

// TaskInfo provides the static part of the Task interface and is meant to
// be embedded by concrete tasks.
type TaskInfo struct {
	TaskName   string
	TaskOrder  int
	Elevated   bool
	TotalTicks int
}

// Name implements Task.
func (i TaskInfo) Name() string { return i.TaskName }

// Order implements Task.
func (i TaskInfo) Order() int { return i.TaskOrder }

// NeedsElevation implements Task.
func (i TaskInfo) NeedsElevation() bool { return i.Elevated }

// Ticks implements Task.
func (i TaskInfo) Ticks(*model.Installation) int { return i.TotalTicks }

// FuncTask adapts plain functions into a Task.
type FuncTask struct {
	TaskInfo

	// AppliesFunc is the predicate. A nil predicate always applies.
	AppliesFunc func(m *model.Installation) bool

	// Run is the task body.
	Run func(ctx context.Context, tc *TaskContext) (bool, error)
}

// Applies implements Task.
func (t *FuncTask) Applies(m *model.Installation) bool {
	if t.AppliesFunc == nil {
		return true
	}
	return t.AppliesFunc(m)
}

// Execute implements Task.
func (t *FuncTask) Execute(ctx context.Context, tc *TaskContext) (bool, error) {
	if t.Run == nil {
		return true, nil
	}
	return t.Run(ctx, tc)
}
