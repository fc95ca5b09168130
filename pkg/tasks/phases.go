package tasks

import (
	"fmt"

	"github.com/openfroyo/esinstall/pkg/engine"
)

// ValidatePhase checks the model and the Java runtime.
func ValidatePhase(d Deps) *engine.Phase {
	return engine.MustPhase(engine.PhaseValidate,
		NewValidateArguments(d),
		NewProbeJavaRuntime(d),
	)
}

// InstallPhase records rollback state, then brings the node up and
// provisions it.
func InstallPhase(d Deps) *engine.Phase {
	return engine.MustPhase(engine.PhaseInstall,
		NewStoreTemporaryState(d),
		NewInstallCerts(d),
		NewStartService(d),
		NewSetupXPackLicense(d),
		NewSetupXPackPasswords(d),
	)
}

// RollbackPhase undoes a failed install. It runs in descending order.
func RollbackPhase(d Deps) *engine.Phase {
	return engine.MustPhase(engine.PhaseRollback,
		NewRollbackDirectories(),
		NewRollbackEnvironmentVariables(d),
		NewRollbackService(d),
	)
}

// UninstallPhase removes plugins and then directories.
func UninstallPhase(d Deps) *engine.Phase {
	return engine.MustPhase(engine.PhaseUninstall,
		NewUninstallPlugins(d),
		NewUninstallDirectories(),
	)
}

// CommitPhase makes the environment permanent and drops the temp state.
func CommitPhase(d Deps) *engine.Phase {
	return engine.MustPhase(engine.PhaseCommit,
		NewEnsureEnvironmentVariables(d),
		NewCleanupInstall(),
	)
}

// PhaseFor builds the phase of the given kind.
func PhaseFor(kind engine.PhaseKind, d Deps) (*engine.Phase, error) {
	switch kind {
	case engine.PhaseValidate:
		return ValidatePhase(d), nil
	case engine.PhaseInstall:
		return InstallPhase(d), nil
	case engine.PhaseRollback:
		return RollbackPhase(d), nil
	case engine.PhaseUninstall:
		return UninstallPhase(d), nil
	case engine.PhaseCommit:
		return CommitPhase(d), nil
	default:
		return nil, engine.NewPermanentError(fmt.Sprintf("unknown phase %q", kind), nil).
			WithCode(engine.ErrCodeValidation)
	}
}
