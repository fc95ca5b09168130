package telemetry

import (
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/openfroyo/esinstall/pkg/engine"
)

// Session is the log and progress sink handed to tasks. Every line goes to
// the structured logger and, when set, to Out as plain text so the host
// installer can relay it.
type Session struct {
	// Out receives one plain line per Log call. Optional.
	Out io.Writer

	// OnProgress, when set, is called after every Progress call with the
	// running total for the current action.
	OnProgress func(action string, done, total int)

	mu     sync.Mutex
	logger zerolog.Logger
	action string
	done   int
	total  int
}

var _ engine.Session = (*Session)(nil)

// NewSession creates a session sink that logs through logger.
func NewSession(logger zerolog.Logger, out io.Writer) *Session {
	return &Session{Out: out, logger: logger.With().Str("component", "session").Logger()}
}

// Log writes a single log line.
func (s *Session) Log(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Info().Str("action", s.action).Msg(msg)
	if s.Out != nil {
		fmt.Fprintln(s.Out, msg)
	}
}

// ActionStart begins a new named action and resets the tick counter.
func (s *Session) ActionStart(totalTicks int, action, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.action = action
	s.total = totalTicks
	s.done = 0
	s.logger.Info().Str("action", action).Int("ticks", totalTicks).Msg(description)
}

// Progress advances the current action by ticks.
func (s *Session) Progress(ticks int, message string) {
	s.mu.Lock()
	s.done += ticks
	action, done, total := s.action, s.done, s.total
	s.mu.Unlock()

	ev := s.logger.Debug().Str("action", action).Int("done", done).Int("total", total)
	if message != "" {
		ev.Msg(message)
	} else {
		ev.Send()
	}
	if s.OnProgress != nil {
		s.OnProgress(action, done, total)
	}
}

// Snapshot returns the current action and its tick counters.
func (s *Session) Snapshot() (action string, done, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.action, s.done, s.total
}
