package process

import (
	"context"

	"github.com/rs/zerolog"
)

// CertGenRequest describes a certificate generation run.
type CertGenRequest struct {
	// Tool is the certificate utility executable.
	Tool string

	// InputFile is the instances description the tool reads.
	InputFile string

	// OutputFile is the archive the tool writes.
	OutputFile string

	// Env is layered on the process environment, e.g. the config dir.
	Env map[string]string

	// StderrFatal fails the run on any stderr output.
	StderrFatal bool
}

// CertGen runs the certificate utility in silent mode under
// StrictExitPolicy. Output lines are logged as they arrive.
func CertGen(ctx context.Context, runner *Runner, req CertGenRequest, logger zerolog.Logger) (*Result, error) {
	res, err := runner.Run(ctx, Command{
		Path:    req.Tool,
		ArgList: []string{"--in", req.InputFile, "--out", req.OutputFile, "--silent"},
		Env:     req.Env,
	})
	if err != nil {
		return res, err
	}

	for _, line := range res.Stdout() {
		logger.Info().Str("tool", "certgen").Msg(line)
	}
	return res, StrictExitPolicy{StderrFatal: req.StderrFatal, Logger: logger}.Evaluate(res)
}
