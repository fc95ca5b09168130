package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// PhaseRun is the record of one phase execution.
type PhaseRun struct {
	// ID uniquely identifies this run.
	ID string `json:"id"`

	// Phase is the phase that ran.
	Phase PhaseKind `json:"phase"`

	// Status is the current status of the run.
	Status PhaseStatus `json:"status"`

	// TaskIndex is the index in the sequence of the task that ran last.
	TaskIndex int `json:"task_index"`

	// Tasks holds one result per task in the sequence.
	Tasks []TaskResult `json:"tasks"`

	// StartedAt is when the run started.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when the run reached a terminal status.
	CompletedAt time.Time `json:"completed_at,omitempty"`

	// Duration is the wall time of the run.
	Duration time.Duration `json:"duration"`

	// Progress is the final progress snapshot.
	Progress Progress `json:"progress"`

	// Err is the cause of a failed run.
	Err error `json:"-"`
}

// TaskResult is the outcome of a single task.
type TaskResult struct {
	Name      string        `json:"name"`
	Order     int           `json:"order"`
	Status    TaskStatus    `json:"status"`
	StartedAt time.Time     `json:"started_at,omitempty"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
}

// Observer receives phase and task outcomes, typically for metrics.
type Observer interface {
	TaskCompleted(phase PhaseKind, task string, status TaskStatus, d time.Duration)
	PhaseCompleted(phase PhaseKind, status PhaseStatus, d time.Duration)
}

// Recorder persists finished phase runs.
type Recorder interface {
	RecordPhase(ctx context.Context, run *PhaseRun) error
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithElevation overrides the elevation probe.
func WithElevation(probe func() bool) Option {
	return func(o *Orchestrator) { o.elevated = probe }
}

// WithObserver registers an observer for task and phase outcomes.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

// WithRecorder registers a recorder for finished phase runs.
func WithRecorder(rec Recorder) Option {
	return func(o *Orchestrator) { o.recorder = rec }
}

// WithTracer sets the tracer used for phase and task spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// WithProgress registers a callback for progress snapshots.
func WithProgress(fn func(Progress)) Option {
	return func(o *Orchestrator) { o.onProgress = fn }
}

// Orchestrator runs the tasks of a phase sequentially, stopping at the
// first failure.
type Orchestrator struct {
	elevated   func() bool
	observer   Observer
	recorder   Recorder
	tracer     trace.Tracer
	onProgress func(Progress)
	logger     zerolog.Logger
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(logger zerolog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		elevated: IsElevated,
		tracer:   noop.NewTracerProvider().Tracer("esinstall/engine"),
		logger:   logger.With().Str("component", "orchestrator").Logger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes every applicable task of phase in sequence. It returns the
// run record together with the first failure, if any.
func (o *Orchestrator) Run(ctx context.Context, phase *Phase, tc *TaskContext) (*PhaseRun, error) {
	if phase == nil {
		return nil, NewPermanentError("phase is nil", nil).WithCode(ErrCodeValidation)
	}
	if tc == nil || tc.Model == nil {
		return nil, NewPermanentError("task context has no installation model", nil).
			WithCode(ErrCodeValidation)
	}

	seq := phase.Sequence()
	run := &PhaseRun{
		ID:        uuid.New().String(),
		Phase:     phase.Kind,
		Status:    PhaseStatusNotStarted,
		TaskIndex: -1,
		Tasks:     make([]TaskResult, len(seq)),
	}

	applies := make([]bool, len(seq))
	ticks := make([]int, len(seq))
	total := 0
	for i, task := range seq {
		run.Tasks[i] = TaskResult{Name: task.Name(), Order: task.Order(), Status: TaskStatusPending}
		applies[i] = task.Applies(tc.Model)
		if applies[i] {
			ticks[i] = task.Ticks(tc.Model)
			total += ticks[i]
		}
	}

	ctx, span := o.tracer.Start(ctx, "phase."+string(phase.Kind),
		trace.WithAttributes(
			attribute.String("phase.run_id", run.ID),
			attribute.Int("phase.tasks", len(seq)),
		))
	defer span.End()

	log := o.logger.With().Str("phase", string(phase.Kind)).Str("run_id", run.ID).Logger()
	tracker := newProgressTracker(total, tc.Session, o.onProgress)

	run.StartedAt = time.Now()
	run.Status = PhaseStatusRunning
	log.Info().Int("tasks", len(seq)).Int("ticks", total).Msg("Phase started")

	for i, task := range seq {
		if !applies[i] {
			run.Tasks[i].Status = TaskStatusSkipped
			log.Debug().Str("task", task.Name()).Msg("Task does not apply, skipping")
			continue
		}

		if err := ctx.Err(); err != nil {
			run.Err = NewPermanentError("phase cancelled", err).
				WithCode(ErrCodeCancelled).
				WithOperation(string(phase.Kind))
			break
		}

		run.TaskIndex = i
		if err := o.runTask(ctx, phase.Kind, task, ticks[i], tc, tracker, &run.Tasks[i], log); err != nil {
			run.Err = err
			break
		}
	}

	run.CompletedAt = time.Now()
	run.Duration = run.CompletedAt.Sub(run.StartedAt)
	run.Progress = tracker.snapshot()
	if run.Err != nil {
		run.Status = PhaseStatusFailed
		span.RecordError(run.Err)
		span.SetStatus(codes.Error, run.Err.Error())
		log.Error().Err(run.Err).Dur("duration", run.Duration).Msg("Phase failed")
	} else {
		run.Status = PhaseStatusSucceeded
		span.SetStatus(codes.Ok, "")
		log.Info().Dur("duration", run.Duration).Msg("Phase succeeded")
	}

	if o.observer != nil {
		o.observer.PhaseCompleted(phase.Kind, run.Status, run.Duration)
	}
	if o.recorder != nil {
		// A journal failure must not mask the phase outcome.
		if err := o.recorder.RecordPhase(context.WithoutCancel(ctx), run); err != nil {
			log.Warn().Err(err).Msg("Failed to record phase run")
		}
	}

	return run, run.Err
}

func (o *Orchestrator) runTask(
	ctx context.Context,
	kind PhaseKind,
	task Task,
	ticks int,
	tc *TaskContext,
	tracker *progressTracker,
	result *TaskResult,
	log zerolog.Logger,
) (err error) {
	ctx, span := o.tracer.Start(ctx, "task."+task.Name(),
		trace.WithAttributes(
			attribute.String("task.name", task.Name()),
			attribute.Int("task.order", task.Order()),
		))
	defer span.End()

	result.Status = TaskStatusRunning
	result.StartedAt = time.Now()
	log = log.With().Str("task", task.Name()).Int("order", task.Order()).Logger()
	log.Info().Msg("Task started")

	defer func() {
		result.Duration = time.Since(result.StartedAt)
		if err != nil {
			result.Status = TaskStatusFailed
			result.Error = err.Error()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			log.Error().Err(err).Dur("duration", result.Duration).Msg("Task failed")
		} else {
			result.Status = TaskStatusSucceeded
			log.Info().Dur("duration", result.Duration).Msg("Task succeeded")
		}
		if o.observer != nil {
			o.observer.TaskCompleted(kind, task.Name(), result.Status, result.Duration)
		}
	}()

	if task.NeedsElevation() && !o.elevated() {
		return NewPermanentError("task requires an elevated process", nil).
			WithCode(ErrCodePermissionDenied).
			WithResource(task.Name())
	}

	tracker.begin(ticks)
	taskCtx := *tc
	taskCtx.Session = &taskSession{tracker: tracker}
	taskCtx.Logger = log

	ok, err := o.execute(ctx, task, &taskCtx)
	if err != nil {
		return Classify(fmt.Errorf("%s: %w", task.Name(), err))
	}
	if !ok {
		return NewPermanentError("task reported failure", nil).
			WithCode(ErrCodeTaskFailed).
			WithResource(task.Name())
	}

	tracker.finish()
	return nil
}

// execute runs the task body and turns a panic into a task failure.
func (o *Orchestrator) execute(ctx context.Context, task Task, tc *TaskContext) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = NewPermanentError(fmt.Sprintf("task panicked: %v", r), nil).
				WithCode(ErrCodeTaskFailed).
				WithResource(task.Name())
		}
	}()
	return task.Execute(ctx, tc)
}

// InstallWithRollback runs install and, when it fails, runs rollback. The
// install failure is returned; a rollback failure is joined to it.
func (o *Orchestrator) InstallWithRollback(
	ctx context.Context,
	install, rollback *Phase,
	tc *TaskContext,
) (*PhaseRun, error) {
	run, err := o.Run(ctx, install, tc)
	if err == nil {
		return run, nil
	}

	if tc.Session != nil {
		tc.Session.Log(fmt.Sprintf("Install failed, rolling back: %v", err))
	}

	// Rollback runs even when the install context was cancelled.
	if _, rbErr := o.Run(context.WithoutCancel(ctx), rollback, tc); rbErr != nil {
		return run, multierror.Append(err, fmt.Errorf("rollback: %w", rbErr))
	}
	return run, err
}
