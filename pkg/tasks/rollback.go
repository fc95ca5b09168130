package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/openfroyo/esinstall/pkg/engine"
	"github.com/openfroyo/esinstall/pkg/environment"
	"github.com/openfroyo/esinstall/pkg/model"
	"github.com/openfroyo/esinstall/pkg/stores"
)

const directoriesTicks = 1000

// RollbackDirectories undoes the on-disk effects of a failed install. An
// upgrade gets its config and plugins directories restored from the temp
// backup; a fresh install has its data, logs and config directories
// removed. The node log is dumped to the session before it goes.
type RollbackDirectories struct {
	engine.TaskInfo
}

// NewRollbackDirectories creates the task.
func NewRollbackDirectories() *RollbackDirectories {
	return &RollbackDirectories{
		TaskInfo: engine.TaskInfo{TaskName: NameRollbackDirectories, TaskOrder: 1, TotalTicks: directoriesTicks},
	}
}

// Applies implements engine.Task.
func (t *RollbackDirectories) Applies(*model.Installation) bool { return true }

// Execute implements engine.Task.
func (t *RollbackDirectories) Execute(_ context.Context, tc *engine.TaskContext) (bool, error) {
	m := tc.Model
	if m.ExistingVersionInstalled() {
		if err := restoreConfig(tc); err != nil {
			return false, err
		}
		if err := restorePlugins(tc); err != nil {
			return false, err
		}
		return true, nil
	}

	loc := m.Locations
	if !dirExists(loc.ConfigDir) {
		return true, nil
	}
	tc.Session.ActionStart(directoriesTicks, NameRollbackDirectories, "Removing data, logs, and config directory")

	if dirExists(loc.DataDir) {
		if err := removeDirectory(tc, loc.DataDir); err != nil {
			return false, err
		}
	} else {
		tc.Logf("Data Directory does not exist, skipping %s", loc.DataDir)
	}

	if dirExists(loc.LogsDir) {
		dumpNodeLog(tc, loc.LogsDir)
		if err := removeDirectory(tc, loc.LogsDir); err != nil {
			return false, err
		}
	} else {
		tc.Logf("Logs Directory does not exist, skipping %s", loc.LogsDir)
	}

	if dirExists(loc.ConfigDir) {
		if err := removeDirectory(tc, loc.ConfigDir); err != nil {
			return false, err
		}
	} else {
		tc.Logf("Config Directory does not exist, skipping %s", loc.ConfigDir)
	}

	tc.Session.Progress(directoriesTicks, "data, logs, and config directories removed")
	tc.Logf("data, logs, and config directories removed")
	return true, nil
}

func removeDirectory(tc *engine.TaskContext, dir string) error {
	tc.Logf("Attempting to delete %s", dir)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete %s: %w", dir, err)
	}
	tc.Session.Progress(directoriesTicks, fmt.Sprintf("%s removed", dir))
	return nil
}

// dumpNodeLog copies the cluster log into the session so the reason the
// node failed survives the directory removal.
func dumpNodeLog(tc *engine.TaskContext, logsDir string) {
	logFile := filepath.Join(logsDir, tc.Model.Node.ClusterName) + ".log"
	if !fileExists(logFile) {
		tc.Logf("Elasticsearch log file not found: %s", logFile)
		return
	}
	tc.Logf("Elasticsearch log file found: %s", logFile)
	content, err := os.ReadFile(logFile)
	if err != nil {
		tc.Logger.Warn().Err(err).Str("file", logFile).Msg("Failed to read node log")
		return
	}
	tc.Logf("%s", content)
}

func restoreConfig(tc *engine.TaskContext) error {
	backup := TempDirectory(tc.Model).Join("config")
	if !dirExists(backup) {
		return nil
	}
	configDir := tc.Model.Locations.ConfigDir
	tc.Logf("Restoring config directory")
	if err := os.RemoveAll(configDir); err != nil {
		return fmt.Errorf("failed to delete %s: %w", configDir, err)
	}
	if err := copyDir(backup, configDir); err != nil {
		return err
	}
	return os.RemoveAll(backup)
}

func restorePlugins(tc *engine.TaskContext) error {
	backup := TempDirectory(tc.Model).Join("plugins")
	if !dirExists(backup) {
		return nil
	}
	pluginsDir := filepath.Join(tc.Model.Locations.InstallDir, "plugins")
	tc.Logf("Restoring plugins directory")

	// Plugins the failed install may have added go first.
	if err := emptyDir(pluginsDir); err != nil {
		return fmt.Errorf("failed to clear %s: %w", pluginsDir, err)
	}
	if err := copyDir(backup, pluginsDir); err != nil {
		return err
	}
	return os.RemoveAll(backup)
}

// RollbackEnvironmentVariables puts the product machine variables back to
// the values recorded before install. A variable that had no recorded value
// did not exist and is removed.
type RollbackEnvironmentVariables struct {
	engine.TaskInfo
	deps Deps
}

// NewRollbackEnvironmentVariables creates the task.
func NewRollbackEnvironmentVariables(d Deps) *RollbackEnvironmentVariables {
	return &RollbackEnvironmentVariables{
		TaskInfo: engine.TaskInfo{TaskName: NameRollbackEnvironmentVariables, TaskOrder: 2, Elevated: true},
		deps:     d,
	}
}

// Applies implements engine.Task.
func (t *RollbackEnvironmentVariables) Applies(*model.Installation) bool { return true }

// Execute implements engine.Task.
func (t *RollbackEnvironmentVariables) Execute(_ context.Context, tc *engine.TaskContext) (bool, error) {
	// Without a snapshot there is nothing trustworthy to restore to.
	if !tc.State.Store().Exists(stores.KeySeesService) {
		tc.Logf("No temporary state recorded, leaving environment variables unchanged")
		return true, nil
	}

	recorded := []struct {
		name string
		get  func() (string, error)
	}{
		{environment.HomeVariable, tc.State.HomeDirectoryMachineVariable},
		{environment.NewConfigVariable, tc.State.NewConfigDirectoryMachineVariable},
		{environment.OldConfigVariable, tc.State.OldConfigDirectoryMachineVariable},
	}
	for _, r := range recorded {
		previous, err := r.get()
		if err != nil {
			return false, err
		}
		changed, err := t.deps.Env.Restore(r.name, previous)
		if err != nil {
			return false, err
		}
		if changed {
			tc.Logf("Restored %s to %q", r.name, previous)
		}
	}
	return true, nil
}

// RollbackService stops the node service when install started it.
type RollbackService struct {
	engine.TaskInfo
	deps Deps
}

// NewRollbackService creates the task.
func NewRollbackService(d Deps) *RollbackService {
	return &RollbackService{
		TaskInfo: engine.TaskInfo{TaskName: NameRollbackService, TaskOrder: 3, Elevated: true},
		deps:     d,
	}
}

// Applies implements engine.Task.
func (t *RollbackService) Applies(m *model.Installation) bool { return m.ServiceStartedAfterInstall() }

// Execute implements engine.Task.
func (t *RollbackService) Execute(_ context.Context, tc *engine.TaskContext) (bool, error) {
	name := tc.Model.Service.Name
	if tc.State.Store().Exists(stores.KeyServiceRunning) {
		wasRunning, err := tc.State.ServiceRunning()
		if err != nil {
			return false, err
		}
		if wasRunning {
			tc.Logf("Service %s was running before install, leaving it running", name)
			return true, nil
		}
	}

	st, err := t.deps.Services.State(name)
	if err != nil {
		return false, err
	}
	if !st.Running {
		return true, nil
	}
	if err := t.deps.Services.Stop(name); err != nil {
		return false, err
	}
	tc.Logf("Service %s stopped", name)
	return true, nil
}
