// Package tasks holds the concrete installer tasks and the phases they make
// up. Every task acts on the machine only through the collaborators in Deps,
// so tests substitute in-memory stores and fake service managers.
package tasks

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/openfroyo/esinstall/pkg/engine"
	"github.com/openfroyo/esinstall/pkg/environment"
	"github.com/openfroyo/esinstall/pkg/model"
	"github.com/openfroyo/esinstall/pkg/process"
	"github.com/openfroyo/esinstall/pkg/provision"
	"github.com/openfroyo/esinstall/pkg/stores"
)

// Task names, also used as session action names.
const (
	NameValidateArguments            = "ValidateArguments"
	NameProbeJavaRuntime             = "ProbeJavaRuntime"
	NameStoreTemporaryState          = "StoreTemporaryState"
	NameInstallCerts                 = "InstallCerts"
	NameStartService                 = "StartService"
	NameSetupXPackLicense            = "SetupXPackLicense"
	NameSetupXPackPasswords          = "SetupXPackPasswords"
	NameRollbackDirectories          = "RollbackDirectories"
	NameRollbackEnvironmentVariables = "RollbackEnvironmentVariables"
	NameRollbackService              = "RollbackService"
	NameUninstallPlugins             = "UninstallPlugins"
	NameUninstallDirectories         = "UninstallDirectories"
	NameEnsureEnvironmentVariables   = "EnsureEnvironmentVariables"
	NameCleanupInstall               = "CleanupInstall"
)

// Deps are the collaborators tasks act through.
type Deps struct {
	// Env reads and reconciles environment variables.
	Env *environment.Reconciler

	// Registry is the Java runtime fallback lookup.
	Registry environment.RegistryLookup

	// Services probes and drives the node service.
	Services ServiceController

	// Runner starts external tools.
	Runner *process.Runner

	// Client talks to the node. When nil, one is built from the model.
	Client *provision.Client

	Logger zerolog.Logger
}

// client returns the node client reporting progress to s.
func (d Deps) client(m *model.Installation, s engine.Session) *provision.Client {
	c := d.Client
	if c == nil {
		c = provision.NewClient(m.Node.NetworkHost, m.Node.HTTPPort, d.Logger)
	}
	return c.WithSession(s)
}

// TempDirectory is the per-installation temp directory for m. The state
// store lives at its root.
func TempDirectory(m *model.Installation) stores.TempDirectory {
	return stores.NewTempDirectory(m.Locations.TempDir, m.ProductName)
}

func dirExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// copyDir copies the tree at src into dst, creating dst.
func copyDir(src, dst string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	if err := os.CopyFS(dst, os.DirFS(src)); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	return nil
}

// emptyDir removes everything inside dir but keeps dir itself.
func emptyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// recordServiceState stores what the service manager reports about the
// node service.
func recordServiceState(tc *engine.TaskContext, services ServiceController) (ServiceState, error) {
	st, err := services.State(tc.Model.Service.Name)
	if err != nil {
		return st, err
	}
	if err := tc.State.SetSeesService(st.Installed); err != nil {
		return st, err
	}
	if err := tc.State.SetServiceRunning(st.Running); err != nil {
		return st, err
	}
	return st, nil
}

// validation wraps err as a permanent validation failure.
func validation(msg string, err error) *engine.EngineError {
	return engine.NewPermanentError(msg, err).WithCode(engine.ErrCodeValidation)
}
