package engine

import (
	"fmt"
	"sort"
)

// PhaseKind names one of the lifecycle phases the host installer drives.
type PhaseKind string

const (
	// PhaseValidate checks arguments before anything is changed.
	PhaseValidate PhaseKind = "validate"

	// PhaseInstall performs the installation.
	PhaseInstall PhaseKind = "install"

	// PhaseRollback undoes a failed install.
	PhaseRollback PhaseKind = "rollback"

	// PhaseUninstall removes an installation.
	PhaseUninstall PhaseKind = "uninstall"

	// PhaseCommit finalizes a successful install.
	PhaseCommit PhaseKind = "commit"
)

// Validate checks if the phase kind is valid.
func (k PhaseKind) Validate() error {
	switch k {
	case PhaseValidate, PhaseInstall, PhaseRollback, PhaseUninstall, PhaseCommit:
		return nil
	default:
		return fmt.Errorf("invalid phase: %s", k)
	}
}

// Descending reports whether the phase runs its tasks from the highest
// order key down.
func (k PhaseKind) Descending() bool {
	return k == PhaseRollback
}

// Phase is an ordered list of tasks for one lifecycle phase.
type Phase struct {
	Kind  PhaseKind
	tasks []Task
}

// NewPhase creates a phase. It fails when two tasks share an order key.
func NewPhase(kind PhaseKind, tasks ...Task) (*Phase, error) {
	if err := kind.Validate(); err != nil {
		return nil, NewPermanentError("cannot build phase", err).WithCode(ErrCodeValidation)
	}

	seen := make(map[int]string, len(tasks))
	for _, t := range tasks {
		if prev, ok := seen[t.Order()]; ok {
			return nil, NewPermanentError(
				fmt.Sprintf("tasks %s and %s share order %d", prev, t.Name(), t.Order()), nil).
				WithCode(ErrCodeValidation).
				WithOperation(string(kind))
		}
		seen[t.Order()] = t.Name()
	}

	return &Phase{Kind: kind, tasks: append([]Task(nil), tasks...)}, nil
}

// MustPhase is like NewPhase but panics on error. For static task tables.
func MustPhase(kind PhaseKind, tasks ...Task) *Phase {
	p, err := NewPhase(kind, tasks...)
	if err != nil {
		panic(err)
	}
	return p
}

// Sequence returns the tasks in execution order.
func (p *Phase) Sequence() []Task {
	seq := append([]Task(nil), p.tasks...)
	desc := p.Kind.Descending()
	sort.Slice(seq, func(i, j int) bool {
		if desc {
			return seq[i].Order() > seq[j].Order()
		}
		return seq[i].Order() < seq[j].Order()
	})
	return seq
}

// Len returns the number of tasks in the phase.
func (p *Phase) Len() int {
	return len(p.tasks)
}
