package tasks

import (
	"context"

	"github.com/openfroyo/esinstall/pkg/engine"
	"github.com/openfroyo/esinstall/pkg/environment"
	"github.com/openfroyo/esinstall/pkg/model"
)

// EnsureEnvironmentVariables makes sure the config directory variable and
// ES_HOME exist at machine scope. Values already present are kept.
type EnsureEnvironmentVariables struct {
	engine.TaskInfo
	deps Deps
}

// NewEnsureEnvironmentVariables creates the task.
func NewEnsureEnvironmentVariables(d Deps) *EnsureEnvironmentVariables {
	return &EnsureEnvironmentVariables{
		TaskInfo: engine.TaskInfo{TaskName: NameEnsureEnvironmentVariables, TaskOrder: 1, Elevated: true},
		deps:     d,
	}
}

// Applies implements engine.Task.
func (t *EnsureEnvironmentVariables) Applies(*model.Installation) bool { return true }

// Execute implements engine.Task.
func (t *EnsureEnvironmentVariables) Execute(_ context.Context, tc *engine.TaskContext) (bool, error) {
	m := tc.Model
	tc.Logf("Existing Version Installed: %t", m.ExistingVersionInstalled())
	tc.Logf("Current Version: %s", m.Version)
	tc.Logf("Existing Version: %s", m.ExistingVersion)

	names, err := environment.NamesFor(m.Version)
	if err != nil {
		return false, validation("cannot select environment variables", err)
	}

	vars := []struct {
		name  string
		value string
	}{
		{names.ConfigDir, m.Locations.ConfigDir},
		{names.Home, m.Locations.InstallDir},
	}
	for _, v := range vars {
		tc.Logf("%s: Setting %s", NameEnsureEnvironmentVariables, v.name)
		changed, err := t.deps.Env.Ensure(v.name, v.value)
		if err != nil {
			return false, err
		}
		if !changed {
			tc.Logf("%s already set, leaving it unchanged", v.name)
		}
		current, _, err := t.deps.Env.Discover(v.name)
		if err != nil {
			return false, err
		}
		m.Discovered[v.name] = current
	}
	return true, nil
}

// CleanupInstall removes the temporary installation directory, state
// included, once the install is committed.
type CleanupInstall struct {
	engine.TaskInfo
}

// NewCleanupInstall creates the task.
func NewCleanupInstall() *CleanupInstall {
	return &CleanupInstall{
		TaskInfo: engine.TaskInfo{TaskName: NameCleanupInstall, TaskOrder: 2},
	}
}

// Applies implements engine.Task.
func (t *CleanupInstall) Applies(*model.Installation) bool { return true }

// Execute implements engine.Task.
func (t *CleanupInstall) Execute(_ context.Context, tc *engine.TaskContext) (bool, error) {
	TempDirectory(tc.Model).CleanUp(tc.Logger)
	tc.Logf("Temporary installation directory cleaned up")
	return true, nil
}
