package stores

import (
	"context"
	"time"
)

// PhaseRunRecord is a journaled phase execution.
type PhaseRunRecord struct {
	ID          string     `json:"id"`
	Phase       string     `json:"phase"`
	Status      string     `json:"status"`
	Version     string     `json:"version"`
	TraceID     string     `json:"trace_id,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DurationMS  int64      `json:"duration_ms"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`

	Tasks []*TaskRunRecord `json:"tasks,omitempty"`
}

// TaskRunRecord is the journaled outcome of one task of a phase run.
type TaskRunRecord struct {
	ID         string     `json:"id"`
	PhaseRunID string     `json:"phase_run_id"`
	Name       string     `json:"name"`
	Position   int        `json:"position"`
	Status     string     `json:"status"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	DurationMS int64      `json:"duration_ms"`
	Error      *string    `json:"error,omitempty"`
}

// Journal defines the persistence interface for phase run history.
type Journal interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Phase runs
	SavePhaseRun(ctx context.Context, run *PhaseRunRecord) error
	GetPhaseRun(ctx context.Context, id string) (*PhaseRunRecord, error)
	ListPhaseRuns(ctx context.Context, phase *string, limit, offset int) ([]*PhaseRunRecord, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
