// Package process runs external programs and captures their console output
// line by line while they run.
package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	shlex "github.com/anmitsu/go-shlex"
	"github.com/rs/zerolog"
)

// Stream identifies the output stream a line came from.
type Stream string

const (
	Stdout Stream = "stdout"
	Stderr Stream = "stderr"
)

// ConsoleOut is one line of child output.
type ConsoleOut struct {
	Stream Stream
	// Seq orders lines across both streams in arrival order.
	Seq  int64
	Text string
}

// IsError reports whether the line came from stderr.
func (c ConsoleOut) IsError() bool {
	return c.Stream == Stderr
}

// Output is a goroutine-safe, append-only sequence of lines.
type Output struct {
	mu    sync.Mutex
	lines []ConsoleOut
}

func (o *Output) append(line ConsoleOut) {
	o.mu.Lock()
	o.lines = append(o.lines, line)
	o.mu.Unlock()
}

// Lines returns a copy of the captured lines in arrival order.
func (o *Output) Lines() []ConsoleOut {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := append([]ConsoleOut(nil), o.lines...)
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// Command describes a program invocation.
type Command struct {
	// Path is the executable.
	Path string

	// Args is an argument string split with shell-like quoting. No shell
	// is involved, so nothing is expanded.
	Args string

	// ArgList is used verbatim instead of Args when set.
	ArgList []string

	// Env overrides are layered on top of the current environment.
	Env map[string]string

	// Dir is the working directory.
	Dir string
}

// Argv returns the arguments the program will receive.
func (c Command) Argv() ([]string, error) {
	if c.ArgList != nil {
		return c.ArgList, nil
	}
	if strings.TrimSpace(c.Args) == "" {
		return nil, nil
	}
	// Backslashes are path separators on Windows, not escapes.
	args, err := shlex.Split(c.Args, runtime.GOOS != "windows")
	if err != nil {
		return nil, fmt.Errorf("failed to parse arguments %q: %w", c.Args, err)
	}
	return args, nil
}

func (c Command) String() string {
	if c.ArgList != nil {
		return strings.TrimSpace(c.Path + " " + strings.Join(c.ArgList, " "))
	}
	return strings.TrimSpace(c.Path + " " + c.Args)
}

// Result is the outcome of a finished process.
type Result struct {
	Command  Command
	ExitCode int
	Output   []ConsoleOut
	Duration time.Duration
}

// Stdout returns stdout lines.
func (r *Result) Stdout() []string {
	return r.filter(Stdout)
}

// Stderr returns stderr lines.
func (r *Result) Stderr() []string {
	return r.filter(Stderr)
}

// NonEmptyStderr returns stderr lines that contain more than whitespace.
func (r *Result) NonEmptyStderr() []string {
	var out []string
	for _, l := range r.Stderr() {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}

func (r *Result) filter(s Stream) []string {
	var out []string
	for _, l := range r.Output {
		if l.Stream == s {
			out = append(out, l.Text)
		}
	}
	return out
}

// outputGrace bounds how long output is read after cancellation.
const outputGrace = 2 * time.Second

// Runner starts processes and captures their output.
type Runner struct {
	// OnLine, when set, receives every line as it arrives. It is called
	// from the reader goroutines and must be safe for concurrent use.
	OnLine func(ConsoleOut)

	// Observe, when set, is called once per finished process.
	Observe func(cmd Command, exitCode int, d time.Duration)

	logger zerolog.Logger
}

// NewRunner creates a runner.
func NewRunner(logger zerolog.Logger) *Runner {
	return &Runner{logger: logger.With().Str("component", "process").Logger()}
}

// Run starts the command, closes its stdin, reads both output streams to
// the end and waits for exit. A non-zero exit code is not an error here;
// policies decide what counts as success. Cancelling ctx kills the child.
func (r *Runner) Run(ctx context.Context, c Command) (*Result, error) {
	argv, err := c.Argv()
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, c.Path, argv...)
	cmd.Dir = c.Dir
	cmd.WaitDelay = outputGrace
	killProcessTree(cmd)
	if len(c.Env) > 0 {
		env := os.Environ()
		for k, v := range c.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		cmd.Env = env
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stderr: %w", err)
	}

	log := r.logger.With().Str("command", c.String()).Logger()
	log.Debug().Msg("Starting process")

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", c.Path, err)
	}
	_ = stdin.Close()

	var (
		out Output
		seq atomic.Int64
		wg  sync.WaitGroup
	)
	wg.Add(2)
	go r.read(&wg, stdout, Stdout, &out, &seq)
	go r.read(&wg, stderr, Stderr, &out, &seq)

	// Both pipes must be drained before Wait closes them. A grandchild
	// can hold them open past cancellation, so after ctx is done the
	// readers get outputGrace to finish.
	drained := make(chan struct{})
	go func() {
		wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		select {
		case <-drained:
		case <-time.After(outputGrace):
			log.Warn().Msg("Process output still open after cancellation, abandoning readers")
		}
	}
	waitErr := cmd.Wait()

	result := &Result{
		Command:  c,
		Output:   out.Lines(),
		Duration: time.Since(start),
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, fmt.Errorf("process %s cancelled: %w", c.Path, ctxErr)
	}

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
		result.ExitCode = 0
	case errors.As(waitErr, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		return result, fmt.Errorf("failed to wait for %s: %w", c.Path, waitErr)
	}

	if r.Observe != nil {
		r.Observe(c, result.ExitCode, result.Duration)
	}
	log.Debug().Int("exit_code", result.ExitCode).Dur("duration", result.Duration).
		Int("lines", len(result.Output)).Msg("Process exited")
	return result, nil
}

func (r *Runner) read(wg *sync.WaitGroup, rd io.Reader, stream Stream, out *Output, seq *atomic.Int64) {
	defer wg.Done()
	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := ConsoleOut{
			Stream: stream,
			Seq:    seq.Add(1),
			Text:   strings.TrimRight(scanner.Text(), "\r"),
		}
		out.append(line)
		if r.OnLine != nil {
			r.OnLine(line)
		}
	}
	if err := scanner.Err(); err != nil {
		r.logger.Warn().Err(err).Str("stream", string(stream)).Msg("Stopped reading process output")
		// Keep draining so the child never blocks on a full pipe.
		_, _ = io.Copy(io.Discard, rd)
	}
}
