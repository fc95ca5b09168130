package tasks

import (
	"context"

	"github.com/openfroyo/esinstall/pkg/engine"
	"github.com/openfroyo/esinstall/pkg/environment"
	"github.com/openfroyo/esinstall/pkg/model"
	"github.com/openfroyo/esinstall/pkg/process"
)

// ValidateArguments checks the installation model, reporting every failure
// at once, and records the service and environment state it starts from.
type ValidateArguments struct {
	engine.TaskInfo
	deps Deps
}

// NewValidateArguments creates the task.
func NewValidateArguments(d Deps) *ValidateArguments {
	return &ValidateArguments{
		TaskInfo: engine.TaskInfo{TaskName: NameValidateArguments, TaskOrder: 1},
		deps:     d,
	}
}

// Applies implements engine.Task.
func (t *ValidateArguments) Applies(*model.Installation) bool { return true }

// Execute implements engine.Task.
func (t *ValidateArguments) Execute(_ context.Context, tc *engine.TaskContext) (bool, error) {
	m := tc.Model
	tc.Logf("Existing Version Installed: %t", m.ExistingVersionInstalled())
	tc.Logf("Current Version: %s", m.Version)
	tc.Logf("Existing Version: %s", m.ExistingVersion)

	if err := m.Validate(); err != nil {
		return false, validation(engine.FailureHeader, err)
	}

	st, err := recordServiceState(tc, t.deps.Services)
	if err != nil {
		return false, err
	}
	tc.Logf("Service registered: %t", st.Installed)
	tc.Logf("Service running: %t", st.Running)

	ps, err := t.deps.Env.ProductState()
	if err != nil {
		return false, err
	}
	m.Discovered[environment.HomeVariable] = ps.Home
	m.Discovered[environment.NewConfigVariable] = ps.NewConfigDir
	m.Discovered[environment.OldConfigVariable] = ps.OldConfigDir
	tc.Logf("%s: %s", environment.OldConfigVariable, ps.OldConfigDir)
	tc.Logf("%s: %s", environment.HomeVariable, ps.Home)
	tc.Logf("%s: %s", environment.NewConfigVariable, ps.NewConfigDir)
	return true, nil
}

// ProbeJavaRuntime finds the Java runtime the node will use and asks it for
// its version. Only a missing runtime fails the task; a runtime that does
// not answer cleanly is logged and tolerated.
type ProbeJavaRuntime struct {
	engine.TaskInfo
	deps Deps
}

// NewProbeJavaRuntime creates the task.
func NewProbeJavaRuntime(d Deps) *ProbeJavaRuntime {
	return &ProbeJavaRuntime{
		TaskInfo: engine.TaskInfo{TaskName: NameProbeJavaRuntime, TaskOrder: 2},
		deps:     d,
	}
}

// Applies implements engine.Task.
func (t *ProbeJavaRuntime) Applies(*model.Installation) bool { return true }

// Execute implements engine.Task.
func (t *ProbeJavaRuntime) Execute(ctx context.Context, tc *engine.TaskContext) (bool, error) {
	home, err := environment.DiscoverRuntimeHome(t.deps.Env.Store(), t.deps.Registry)
	if err != nil {
		return false, err
	}
	if !home.Found() {
		return false, validation("JAVA_HOME is not set and no Java runtime is registered", nil).
			WithResource(environment.JavaHomeVariable)
	}

	tc.Model.Discovered[environment.JavaHomeVariable] = home.Home
	tc.Logf("Java home: %s (from %s)", home.Home, home.Source)
	if home.Uses32Bit() {
		tc.Logf("Using a 32-bit Java runtime")
	}

	// A runtime that prints its banner to stderr still yields a version.
	info, err := process.JavaVersionProbe(ctx, t.deps.Runner, home.Executable())
	if info != nil && info.Version != nil {
		tc.Logf("Java version: %s (64-bit: %t)", info.Version, info.Is64Bit)
	}
	if err != nil {
		tc.Logger.Warn().Err(err).Str("java", home.Executable()).Msg("Java version probe failed")
		if info == nil || info.Version == nil {
			tc.Logf("Could not determine the Java version: %v", err)
		}
	}
	return true, nil
}
