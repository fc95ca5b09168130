package engine

import "sync"

// Progress is a snapshot of phase progress in ticks.
type Progress struct {
	Done  int
	Total int
}

// Percent returns progress as a value between 0 and 100.
func (p Progress) Percent() float64 {
	if p.Total <= 0 {
		return 100
	}
	return float64(p.Done) * 100 / float64(p.Total)
}

// progressTracker keeps phase progress monotonic. Each task gets a budget
// equal to its Ticks; ticks reported beyond that budget are dropped and
// unused budget is credited when the task finishes.
type progressTracker struct {
	mu      sync.Mutex
	total   int
	done    int
	budget  int
	used    int
	notify  func(Progress)
	session Session
}

func newProgressTracker(total int, session Session, notify func(Progress)) *progressTracker {
	return &progressTracker{total: total, session: session, notify: notify}
}

func (p *progressTracker) begin(budget int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if budget < 0 {
		budget = 0
	}
	p.budget = budget
	p.used = 0
}

// advance records ticks against the current task and returns how many were
// accepted.
func (p *progressTracker) advance(ticks int) int {
	p.mu.Lock()
	if ticks <= 0 {
		p.mu.Unlock()
		return 0
	}
	if remaining := p.budget - p.used; ticks > remaining {
		ticks = remaining
	}
	p.used += ticks
	p.done += ticks
	snapshot := Progress{Done: p.done, Total: p.total}
	p.mu.Unlock()

	if ticks > 0 && p.notify != nil {
		p.notify(snapshot)
	}
	return ticks
}

// finish credits whatever budget the current task left unused.
func (p *progressTracker) finish() int {
	p.mu.Lock()
	rest := p.budget - p.used
	p.mu.Unlock()
	return p.advance(rest)
}

func (p *progressTracker) snapshot() Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Progress{Done: p.done, Total: p.total}
}

// taskSession forwards to the phase session with clamped progress.
type taskSession struct {
	tracker *progressTracker
}

func (s *taskSession) Log(msg string) {
	if s.tracker.session != nil {
		s.tracker.session.Log(msg)
	}
}

func (s *taskSession) ActionStart(totalTicks int, action, description string) {
	if s.tracker.session != nil {
		s.tracker.session.ActionStart(totalTicks, action, description)
	}
}

func (s *taskSession) Progress(ticks int, message string) {
	accepted := s.tracker.advance(ticks)
	if accepted > 0 && s.tracker.session != nil {
		s.tracker.session.Progress(accepted, message)
	}
}
