package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/openfroyo/esinstall/pkg/engine"
	"github.com/openfroyo/esinstall/pkg/environment"
	"github.com/openfroyo/esinstall/pkg/model"
	"github.com/openfroyo/esinstall/pkg/process"
	"github.com/openfroyo/esinstall/pkg/provision"
)

const (
	certsTicks     = 1000
	licenseTicks   = 600
	passwordsTicks = 1200
)

// StoreTemporaryState persists what a rollback needs to put the machine
// back: whether the service existed and ran, and the product variables as
// they were. On upgrade it also backs up the config and plugins
// directories.
type StoreTemporaryState struct {
	engine.TaskInfo
	deps Deps
}

// NewStoreTemporaryState creates the task.
func NewStoreTemporaryState(d Deps) *StoreTemporaryState {
	return &StoreTemporaryState{
		TaskInfo: engine.TaskInfo{TaskName: NameStoreTemporaryState, TaskOrder: 1},
		deps:     d,
	}
}

// Applies implements engine.Task.
func (t *StoreTemporaryState) Applies(*model.Installation) bool { return true }

// Execute implements engine.Task.
func (t *StoreTemporaryState) Execute(_ context.Context, tc *engine.TaskContext) (bool, error) {
	if _, err := recordServiceState(tc, t.deps.Services); err != nil {
		return false, err
	}

	ps, err := t.deps.Env.ProductState()
	if err != nil {
		return false, err
	}
	writes := []struct {
		value string
		set   func(string) error
	}{
		{ps.Home, tc.State.SetHomeDirectoryMachineVariable},
		{ps.NewConfigDir, tc.State.SetNewConfigDirectoryMachineVariable},
		{ps.OldConfigDir, tc.State.SetOldConfigDirectoryMachineVariable},
	}
	for _, w := range writes {
		if w.value == "" {
			continue
		}
		if err := w.set(w.value); err != nil {
			return false, err
		}
	}

	if tc.Model.ExistingVersionInstalled() {
		if err := t.backup(tc); err != nil {
			return false, err
		}
	}

	tc.Logf("--- Installation Temporary State ---")
	tc.Logf("%s", tc.State)
	return true, nil
}

func (t *StoreTemporaryState) backup(tc *engine.TaskContext) error {
	tmp := TempDirectory(tc.Model)
	dirs := []struct {
		name string
		src  string
	}{
		{"config", tc.Model.Locations.ConfigDir},
		{"plugins", filepath.Join(tc.Model.Locations.InstallDir, "plugins")},
	}
	for _, d := range dirs {
		dst := tmp.Join(d.name)
		if !dirExists(d.src) || dirExists(dst) {
			continue
		}
		if err := copyDir(d.src, dst); err != nil {
			return err
		}
		tc.Logf("Backed up %s directory to %s", d.name, dst)
	}
	return nil
}

// InstallCerts generates the TLS certificates with the certificate tool.
type InstallCerts struct {
	engine.TaskInfo
	deps Deps
}

// NewInstallCerts creates the task.
func NewInstallCerts(d Deps) *InstallCerts {
	return &InstallCerts{
		TaskInfo: engine.TaskInfo{TaskName: NameInstallCerts, TaskOrder: 2, TotalTicks: certsTicks},
		deps:     d,
	}
}

// Applies implements engine.Task.
func (t *InstallCerts) Applies(m *model.Installation) bool { return m.NeedsCertificates() }

// Execute implements engine.Task.
func (t *InstallCerts) Execute(ctx context.Context, tc *engine.TaskContext) (bool, error) {
	m := tc.Model
	tc.Session.ActionStart(certsTicks, NameInstallCerts, "Setting up X-Pack TLS certificates")

	configVar, err := environment.ConfigDirVariable(m.Version)
	if err != nil {
		return false, err
	}
	tool := m.Certificates.Tool
	if !filepath.IsAbs(tool) {
		tool = filepath.Join(m.Locations.InstallDir, tool)
	}

	if _, err := process.CertGen(ctx, t.deps.Runner, process.CertGenRequest{
		Tool:        tool,
		InputFile:   m.Certificates.InputFile,
		OutputFile:  m.Certificates.OutputFile,
		Env:         map[string]string{configVar: m.Locations.ConfigDir},
		StderrFatal: m.Certificates.StderrFatal,
	}, tc.Logger); err != nil {
		return false, err
	}

	tc.Session.Progress(certsTicks, "Generated X-Pack TLS certificates")
	return true, nil
}

// StartService starts the registered node service.
type StartService struct {
	engine.TaskInfo
	deps Deps
}

// NewStartService creates the task.
func NewStartService(d Deps) *StartService {
	return &StartService{
		TaskInfo: engine.TaskInfo{TaskName: NameStartService, TaskOrder: 3, Elevated: true},
		deps:     d,
	}
}

// Applies implements engine.Task.
func (t *StartService) Applies(m *model.Installation) bool { return m.ServiceStartedAfterInstall() }

// Execute implements engine.Task.
func (t *StartService) Execute(_ context.Context, tc *engine.TaskContext) (bool, error) {
	name := tc.Model.Service.Name
	st, err := t.deps.Services.State(name)
	if err != nil {
		return false, err
	}
	if !st.Installed {
		return false, engine.NewPermanentError(fmt.Sprintf("service %s is not registered", name), nil).
			WithCode(engine.ErrCodeTaskFailed).
			WithResource(name)
	}
	if st.Running {
		tc.Logf("Service %s is already running", name)
		return true, nil
	}

	if err := t.deps.Services.Start(name); err != nil {
		return false, err
	}
	tc.Logf("Service %s started", name)
	return true, nil
}

// SetupXPackLicense waits for the node and uploads the license file.
type SetupXPackLicense struct {
	engine.TaskInfo
	deps Deps
}

// NewSetupXPackLicense creates the task.
func NewSetupXPackLicense(d Deps) *SetupXPackLicense {
	return &SetupXPackLicense{
		TaskInfo: engine.TaskInfo{TaskName: NameSetupXPackLicense, TaskOrder: 4, TotalTicks: licenseTicks},
		deps:     d,
	}
}

// Applies implements engine.Task.
func (t *SetupXPackLicense) Applies(m *model.Installation) bool { return m.NeedsLicense() }

// Execute implements engine.Task.
func (t *SetupXPackLicense) Execute(ctx context.Context, tc *engine.TaskContext) (bool, error) {
	m := tc.Model
	tc.Session.ActionStart(licenseTicks, NameSetupXPackLicense, "Setting up X-Pack license")

	license, err := os.ReadFile(m.XPack.LicenseFile)
	if err != nil {
		return false, fmt.Errorf("failed to read license file: %w", err)
	}

	client := t.deps.client(m, tc.Session)
	password := m.XPack.BootstrapPassword
	if err := client.WaitForReady(ctx, password); err != nil {
		return false, err
	}
	if err := client.PutLicense(ctx, password, license); err != nil {
		return false, err
	}
	return true, nil
}

// SetupXPackPasswords waits for the node and sets the built-in account
// passwords.
type SetupXPackPasswords struct {
	engine.TaskInfo
	deps Deps
}

// NewSetupXPackPasswords creates the task.
func NewSetupXPackPasswords(d Deps) *SetupXPackPasswords {
	return &SetupXPackPasswords{
		TaskInfo: engine.TaskInfo{TaskName: NameSetupXPackPasswords, TaskOrder: 5, TotalTicks: passwordsTicks},
		deps:     d,
	}
}

// Applies implements engine.Task.
func (t *SetupXPackPasswords) Applies(m *model.Installation) bool { return m.NeedsPasswords() }

// Execute implements engine.Task.
func (t *SetupXPackPasswords) Execute(ctx context.Context, tc *engine.TaskContext) (bool, error) {
	m := tc.Model
	tc.Session.ActionStart(passwordsTicks, NameSetupXPackPasswords, "Setting up X-Pack passwords")

	client := t.deps.client(m, tc.Session)
	bootstrap := m.XPack.BootstrapPassword
	if err := client.WaitForReady(ctx, bootstrap); err != nil {
		return false, err
	}
	if err := client.RotatePasswords(ctx, bootstrap, provision.BuiltinAccounts(m)); err != nil {
		return false, err
	}
	return true, nil
}
