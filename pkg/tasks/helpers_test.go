package tasks

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/openfroyo/esinstall/pkg/engine"
	"github.com/openfroyo/esinstall/pkg/environment"
	"github.com/openfroyo/esinstall/pkg/model"
	"github.com/openfroyo/esinstall/pkg/process"
	"github.com/openfroyo/esinstall/pkg/stores"
)

// fakeServices is a scripted ServiceController.
type fakeServices struct {
	state   ServiceState
	err     error
	started []string
	stopped []string
}

func (f *fakeServices) State(string) (ServiceState, error) {
	return f.state, f.err
}

func (f *fakeServices) Start(name string) error {
	f.started = append(f.started, name)
	f.state.Running = true
	return nil
}

func (f *fakeServices) Stop(name string) error {
	f.stopped = append(f.stopped, name)
	f.state.Running = false
	return nil
}

var errServiceManager = errors.New("service manager unavailable")

// recordingSession captures everything tasks send to the session.
type recordingSession struct {
	lines   []string
	actions []string
	ticks   int
}

func (s *recordingSession) Log(msg string) { s.lines = append(s.lines, msg) }

func (s *recordingSession) ActionStart(_ int, _, description string) {
	s.actions = append(s.actions, description)
}

func (s *recordingSession) Progress(ticks int, _ string) { s.ticks += ticks }

func (s *recordingSession) logged(substr string) bool {
	for _, l := range s.lines {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

// fixture bundles a model, its task context and the fakes behind Deps.
type fixture struct {
	model    *model.Installation
	tc       *engine.TaskContext
	session  *recordingSession
	env      *environment.MapStore
	services *fakeServices
	deps     Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	m := &model.Installation{Version: "6.2.0"}
	m.Locations.InstallDir = filepath.Join(t.TempDir(), "elasticsearch")
	m.Locations.TempDir = t.TempDir()
	m.ApplyDefaults()

	f := &fixture{
		model:    m,
		session:  &recordingSession{},
		env:      environment.NewMapStore(),
		services: &fakeServices{},
	}
	f.tc = &engine.TaskContext{
		Model:   m,
		State:   stores.NewInstallState(stores.NewMemoryStore()),
		Session: f.session,
		Logger:  zerolog.Nop(),
	}
	f.deps = Deps{
		Env:      environment.NewReconciler(f.env, zerolog.Nop()),
		Registry: environment.StaticRegistry{},
		Services: f.services,
		Runner:   process.NewRunner(zerolog.Nop()),
		Logger:   zerolog.Nop(),
	}
	return f
}

func (f *fixture) machine(name string) string {
	v, _ := f.env.Get(name, environment.ScopeMachine)
	return v
}

func mkdirs(t *testing.T, dirs ...string) {
	t.Helper()
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
