package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/openfroyo/esinstall/pkg/engine"
	"github.com/openfroyo/esinstall/pkg/environment"
	"github.com/openfroyo/esinstall/pkg/model"
	"github.com/openfroyo/esinstall/pkg/process"
)

// Per-plugin progress: before removal, the removal itself, after removal.
const (
	pluginStartTicks  = 20
	pluginRemoveTicks = 1930
	pluginDoneTicks   = 50
	ticksPerPlugin    = pluginStartTicks + pluginRemoveTicks + pluginDoneTicks
)

// UninstallPlugins removes every plugin of the previous installation with
// the plugin tool, so plugin-owned files outside the install directory are
// purged too.
type UninstallPlugins struct {
	engine.TaskInfo
	deps Deps
}

// NewUninstallPlugins creates the task.
func NewUninstallPlugins(d Deps) *UninstallPlugins {
	return &UninstallPlugins{
		TaskInfo: engine.TaskInfo{TaskName: NameUninstallPlugins, TaskOrder: 1},
		deps:     d,
	}
}

// Applies implements engine.Task. It always applies; the reasons for having
// nothing to do are logged by Execute.
func (t *UninstallPlugins) Applies(*model.Installation) bool { return true }

// Ticks implements engine.Task. The budget covers the plugins installed
// when the phase starts.
func (t *UninstallPlugins) Ticks(m *model.Installation) int {
	return len(installedPlugins(m.Locations.PreviousInstallDir)) * ticksPerPlugin
}

// Execute implements engine.Task.
func (t *UninstallPlugins) Execute(ctx context.Context, tc *engine.TaskContext) (bool, error) {
	m := tc.Model
	installDir := m.Locations.PreviousInstallDir
	if !dirExists(installDir) {
		tc.Logf("No existing plugins to remove because no previous install directory")
		return true, nil
	}
	plugins := installedPlugins(installDir)
	if len(plugins) == 0 {
		tc.Logf("No existing plugins to remove")
		return true, nil
	}

	tool := m.Plugins.Tool
	if !filepath.IsAbs(tool) {
		tool = filepath.Join(installDir, tool)
	}
	env := map[string]string{
		environment.NewConfigVariable: m.Locations.ConfigDir,
		environment.OldConfigVariable: m.Locations.ConfigDir,
	}
	policy := process.StrictExitPolicy{Logger: tc.Logger}

	tc.Session.ActionStart(len(plugins)*ticksPerPlugin, NameUninstallPlugins, "Removing existing Elasticsearch plugins")
	for _, p := range plugins {
		tc.Session.Progress(pluginStartTicks, fmt.Sprintf("removing %s", p))

		res, err := t.deps.Runner.Run(ctx, process.Command{
			Path:    tool,
			ArgList: []string{"remove", p, "--purge"},
			Env:     env,
		})
		if err != nil {
			return false, err
		}
		for _, line := range res.Stdout() {
			tc.Logger.Info().Str("plugin", p).Msg(line)
		}
		if err := policy.Evaluate(res); err != nil {
			return false, fmt.Errorf("failed to remove plugin %s: %w", p, err)
		}

		tc.Session.Progress(pluginRemoveTicks, fmt.Sprintf("removing %s", p))
		tc.Session.Progress(pluginDoneTicks, fmt.Sprintf("removed %s", p))
	}
	return true, nil
}

// installedPlugins lists the plugin directories of an installation, sorted.
func installedPlugins(installDir string) []string {
	if installDir == "" {
		return nil
	}
	entries, err := os.ReadDir(filepath.Join(installDir, "plugins"))
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out
}

// UninstallDirectories removes the install, config and logs directories.
// The data directory survives unless the model asks for it to go.
type UninstallDirectories struct {
	engine.TaskInfo
}

// NewUninstallDirectories creates the task.
func NewUninstallDirectories() *UninstallDirectories {
	return &UninstallDirectories{
		TaskInfo: engine.TaskInfo{TaskName: NameUninstallDirectories, TaskOrder: 2, TotalTicks: directoriesTicks},
	}
}

// Applies implements engine.Task.
func (t *UninstallDirectories) Applies(*model.Installation) bool { return true }

// Execute implements engine.Task.
func (t *UninstallDirectories) Execute(_ context.Context, tc *engine.TaskContext) (bool, error) {
	m := tc.Model
	loc := m.Locations
	tc.Session.ActionStart(directoriesTicks, NameUninstallDirectories, "Removing directories")

	keep := ""
	if !m.Uninstall.RemoveData {
		keep = filepath.Clean(loc.DataDir)
		tc.Logf("Keeping data directory %s", loc.DataDir)
	}

	dirs := []struct {
		label string
		path  string
	}{
		{"Logs", loc.LogsDir},
		{"Config", loc.ConfigDir},
		{"Data", loc.DataDir},
		{"Install", loc.InstallDir},
	}
	for _, d := range dirs {
		if d.path == "" {
			continue
		}
		path := filepath.Clean(d.path)
		if path == keep {
			continue
		}
		if !dirExists(path) {
			tc.Logf("%s Directory does not exist, skipping %s", d.label, path)
			continue
		}
		if err := removeKeeping(path, keep); err != nil {
			return false, fmt.Errorf("failed to delete %s: %w", path, err)
		}
		tc.Logf("%s removed", path)
	}

	tc.Session.Progress(directoriesTicks, "directories removed")
	return true, nil
}

// removeKeeping deletes dir, except for keep when keep lies inside it. The
// directories leading to keep are left in place.
func removeKeeping(dir, keep string) error {
	if keep == "" || !within(dir, keep) {
		return os.RemoveAll(dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		child := filepath.Join(dir, e.Name())
		if child == keep {
			continue
		}
		if e.IsDir() {
			if err := removeKeeping(child, keep); err != nil {
				return err
			}
			continue
		}
		if err := os.Remove(child); err != nil {
			return err
		}
	}
	return nil
}

// within reports whether path lies strictly below dir.
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == "." || rel == ".." {
		return false
	}
	return !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
