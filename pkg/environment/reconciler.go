package environment

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Discover returns the value of name from the highest-priority scope that
// has a non-blank value, along with that scope.
func Discover(store Store, name string) (string, Scope, error) {
	for _, scope := range Precedence {
		v, err := store.Get(name, scope)
		if err != nil {
			return "", "", fmt.Errorf("failed to read %s at %s scope: %w", name, scope, err)
		}
		if strings.TrimSpace(v) != "" {
			return v, scope, nil
		}
	}
	return "", "", nil
}

// ProductState is a snapshot of the product variables at machine scope.
type ProductState struct {
	Home         string
	NewConfigDir string
	OldConfigDir string
}

// Reconciler ensures machine-scope variables exist without ever replacing
// a value that is already there.
type Reconciler struct {
	store  Store
	logger zerolog.Logger
}

// NewReconciler creates a reconciler over store.
func NewReconciler(store Store, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		store:  store,
		logger: logger.With().Str("component", "env_reconciler").Logger(),
	}
}

// Store returns the underlying store.
func (r *Reconciler) Store() Store {
	return r.store
}

// Ensure sets name to desired at machine scope when it is absent or blank.
// It reports whether it changed anything. Calling it again is a no-op.
func (r *Reconciler) Ensure(name, desired string) (bool, error) {
	current, err := r.store.Get(name, ScopeMachine)
	if err != nil {
		return false, fmt.Errorf("failed to read machine variable %s: %w", name, err)
	}

	if strings.TrimSpace(current) != "" {
		r.logger.Info().Str("variable", name).Str("value", current).
			Msg("Machine variable already set, leaving it alone")
		return false, nil
	}

	if err := r.store.Set(name, ScopeMachine, desired); err != nil {
		return false, err
	}
	r.logger.Info().Str("variable", name).Str("value", desired).Msg("Machine variable set")
	return true, nil
}

// Restore puts a machine variable back to a previously recorded value. An
// empty previous value removes the variable.
func (r *Reconciler) Restore(name, previous string) (bool, error) {
	current, err := r.store.Get(name, ScopeMachine)
	if err != nil {
		return false, fmt.Errorf("failed to read machine variable %s: %w", name, err)
	}
	if current == previous {
		return false, nil
	}
	if err := r.store.Set(name, ScopeMachine, previous); err != nil {
		return false, err
	}
	r.logger.Info().Str("variable", name).Str("restored", previous).Msg("Machine variable restored")
	return true, nil
}

// Discover returns the effective value of name honoring scope precedence.
func (r *Reconciler) Discover(name string) (string, Scope, error) {
	return Discover(r.store, name)
}

// ProductState reads the product variables at machine scope.
func (r *Reconciler) ProductState() (ProductState, error) {
	var (
		st  ProductState
		err error
	)
	if st.Home, err = r.store.Get(HomeVariable, ScopeMachine); err != nil {
		return st, err
	}
	if st.NewConfigDir, err = r.store.Get(NewConfigVariable, ScopeMachine); err != nil {
		return st, err
	}
	if st.OldConfigDir, err = r.store.Get(OldConfigVariable, ScopeMachine); err != nil {
		return st, err
	}
	return st, nil
}
