package tasks

import (
	"errors"
	"fmt"

	"github.com/kardianos/service"
)

// ServiceState is what the service manager reports about the node service.
type ServiceState struct {
	Installed bool
	Running   bool
}

// ServiceController probes and drives the node service. The service itself
// is registered by the host installer; tasks only observe, start and stop it.
type ServiceController interface {
	State(name string) (ServiceState, error)
	Start(name string) error
	Stop(name string) error
}

// SystemServices controls services through the platform service manager.
type SystemServices struct{}

// NewSystemServices returns a controller for the platform service manager.
func NewSystemServices() *SystemServices {
	return &SystemServices{}
}

// nodeProgram satisfies service.Interface. This process never runs as the
// service, so both hooks are no-ops.
type nodeProgram struct{}

func (nodeProgram) Start(service.Service) error { return nil }
func (nodeProgram) Stop(service.Service) error  { return nil }

func (SystemServices) open(name string) (service.Service, error) {
	return service.New(nodeProgram{}, &service.Config{Name: name})
}

// State implements ServiceController. A platform without a service manager
// reports the service as not installed.
func (s SystemServices) State(name string) (ServiceState, error) {
	svc, err := s.open(name)
	if errors.Is(err, service.ErrNoServiceSystemDetected) {
		return ServiceState{}, nil
	}
	if err != nil {
		return ServiceState{}, fmt.Errorf("failed to open service %s: %w", name, err)
	}

	status, err := svc.Status()
	if errors.Is(err, service.ErrNotInstalled) {
		return ServiceState{}, nil
	}
	if err != nil {
		return ServiceState{}, fmt.Errorf("failed to query service %s: %w", name, err)
	}
	return ServiceState{Installed: true, Running: status == service.StatusRunning}, nil
}

// Start implements ServiceController.
func (s SystemServices) Start(name string) error {
	svc, err := s.open(name)
	if err != nil {
		return fmt.Errorf("failed to open service %s: %w", name, err)
	}
	if err := svc.Start(); err != nil {
		return fmt.Errorf("failed to start service %s: %w", name, err)
	}
	return nil
}

// Stop implements ServiceController.
func (s SystemServices) Stop(name string) error {
	svc, err := s.open(name)
	if err != nil {
		return fmt.Errorf("failed to open service %s: %w", name, err)
	}
	if err := svc.Stop(); err != nil {
		return fmt.Errorf("failed to stop service %s: %w", name, err)
	}
	return nil
}
