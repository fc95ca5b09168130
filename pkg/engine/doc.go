// Package engine runs installer phases.
//
// # Overview
//
// An installation is driven as a sequence of separate phase invocations by
// the host installer: validate, install, rollback, commit and uninstall.
// Each phase is an ordered list of tasks. The orchestrator runs the tasks
// of one phase in order and stops at the first failure:
//
//	phase := engine.MustPhase(engine.PhaseInstall, storeState, certs, start)
//	run, err := engine.NewOrchestrator(logger).Run(ctx, phase, tc)
//
// Rollback runs its tasks from the highest order key down, so the last
// effect of an install is undone first.
//
// # Tasks
//
// A Task has a unique order within its phase, a predicate deciding whether
// it applies to the installation model, an optional elevation requirement
// and a tick budget. Execute returns false or an error to fail the phase.
// FuncTask adapts plain functions for small tasks and tests.
//
// # Progress
//
// The orchestrator sums the budgets of the applicable tasks and reports
// monotonic progress to the session sink. A task that reports more ticks
// than its budget is clamped, and one that reports fewer is credited the
// remainder when it succeeds.
//
// # Error Handling
//
// Errors are classified as transient or permanent through EngineError and
// carry a code such as TASK_FAILED or STATE_CORRUPT. FailureMessage builds
// the composite message shown to the user when a phase cannot continue.
package engine
