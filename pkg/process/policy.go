package process

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/openfroyo/esinstall/pkg/engine"
)

// Policy decides whether a finished process succeeded.
type Policy interface {
	Evaluate(r *Result) error
}

// ProbePolicy treats a run as successful when the exit code is zero or
// negative and stderr carried no non-empty line.
type ProbePolicy struct{}

// Evaluate implements Policy.
func (ProbePolicy) Evaluate(r *Result) error {
	stderr := r.NonEmptyStderr()
	if r.ExitCode <= 0 && len(stderr) == 0 {
		return nil
	}
	return failure(r, fmt.Sprintf("probe failed with exit code %d and %d stderr line(s)", r.ExitCode, len(stderr)), stderr)
}

// StrictExitPolicy treats a run as successful when the exit code is zero.
// Stderr lines are logged and only fail the run when StderrFatal is set.
type StrictExitPolicy struct {
	StderrFatal bool
	Logger      zerolog.Logger
}

// Evaluate implements Policy.
func (p StrictExitPolicy) Evaluate(r *Result) error {
	stderr := r.NonEmptyStderr()
	for _, line := range stderr {
		p.Logger.Warn().Str("command", r.Command.Path).Msg(line)
	}
	if r.ExitCode != 0 {
		return failure(r, fmt.Sprintf("exited with code %d", r.ExitCode), stderr)
	}
	if p.StderrFatal && len(stderr) > 0 {
		return failure(r, "wrote to stderr", stderr)
	}
	return nil
}

func failure(r *Result, msg string, stderr []string) error {
	e := engine.NewPermanentError(msg, nil).
		WithCode(engine.ErrCodeProcessFailed).
		WithResource(r.Command.Path).
		WithDetail("exit_code", r.ExitCode)
	if len(stderr) > 0 {
		e = e.WithDetail("stderr", strings.Join(stderr, "\n"))
	}
	return e
}
