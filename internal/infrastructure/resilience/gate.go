package resilience

import (
	"sync"
	"time"
)

// State represents the gate state
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures the gate behavior
type Settings struct {
	// MaxFailures is the number of consecutive failures that opens the gate
	MaxFailures uint32
	// Timeout is the period of the open state until transitioning to half-open
	Timeout time.Duration
	// Probes is the number of attempts let through while half-open
	Probes uint32
	// OnStateChange is called whenever the state changes, with the lock released
	OnStateChange func(name string, from State, to State)
	// Now overrides the clock; tests use it
	Now func() time.Time
}

// Counts holds the statistics for the gate
type Counts struct {
	Attempts            uint64
	Rejected            uint64
	TotalFailures       uint64
	ConsecutiveFailures uint32
}

// Gate is a circuit breaker for callers that cannot wrap their work in a
// closure: Allow is asked before an attempt and Record reports its outcome.
// The worker pipe uses it so a wedged reader stops costing a write timeout per
// event.
type Gate struct {
	name     string
	settings Settings

	mu       sync.Mutex
	state    State
	counts   Counts
	expiry   time.Time
	inflight uint32
}

// New creates a gate with the given settings
func New(name string, settings Settings) *Gate {
	if settings.MaxFailures == 0 {
		settings.MaxFailures = 5
	}
	if settings.Timeout == 0 {
		settings.Timeout = 2 * time.Second
	}
	if settings.Probes == 0 {
		settings.Probes = 1
	}
	if settings.Now == nil {
		settings.Now = time.Now
	}

	return &Gate{
		name:     name,
		settings: settings,
		state:    StateClosed,
	}
}

// Name returns the name of the gate
func (g *Gate) Name() string {
	return g.name
}

// State returns the current state of the gate
func (g *Gate) State() State {
	g.mu.Lock()
	state, fire := g.currentState(g.settings.Now())
	g.mu.Unlock()

	fire()
	return state
}

// Counts returns a copy of the internal counts
func (g *Gate) Counts() Counts {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.counts
}

// Allow reports whether an attempt may proceed. Every true result must be
// followed by exactly one Record.
func (g *Gate) Allow() bool {
	g.mu.Lock()
	state, fire := g.currentState(g.settings.Now())

	allowed := true
	switch state {
	case StateOpen:
		allowed = false
	case StateHalfOpen:
		if g.inflight >= g.settings.Probes {
			allowed = false
		} else {
			g.inflight++
		}
	}

	if allowed {
		g.counts.Attempts++
	} else {
		g.counts.Rejected++
	}
	g.mu.Unlock()

	fire()
	return allowed
}

// Record reports the outcome of an allowed attempt
func (g *Gate) Record(success bool) {
	g.mu.Lock()
	now := g.settings.Now()
	state, fire := g.currentState(now)

	if state == StateHalfOpen && g.inflight > 0 {
		g.inflight--
	}

	var changed func()
	if success {
		g.counts.ConsecutiveFailures = 0
		if state == StateHalfOpen {
			changed = g.setState(StateClosed, now)
		}
	} else {
		g.counts.TotalFailures++
		g.counts.ConsecutiveFailures++
		switch state {
		case StateClosed:
			if g.counts.ConsecutiveFailures >= g.settings.MaxFailures {
				changed = g.setState(StateOpen, now)
			}
		case StateHalfOpen:
			changed = g.setState(StateOpen, now)
		}
	}
	g.mu.Unlock()

	fire()
	if changed != nil {
		changed()
	}
}

// currentState advances an expired open gate to half-open. The returned func
// runs the state change callback and must be called without the lock.
func (g *Gate) currentState(now time.Time) (State, func()) {
	if g.state == StateOpen && !g.expiry.After(now) {
		return StateHalfOpen, g.setState(StateHalfOpen, now)
	}
	return g.state, func() {}
}

// setState changes the state of the gate
func (g *Gate) setState(state State, now time.Time) func() {
	if g.state == state {
		return func() {}
	}

	prev := g.state
	g.state = state
	g.inflight = 0

	switch state {
	case StateClosed:
		g.counts.ConsecutiveFailures = 0
		g.expiry = time.Time{}
	case StateOpen:
		g.expiry = now.Add(g.settings.Timeout)
	case StateHalfOpen:
		g.expiry = time.Time{}
	}

	cb := g.settings.OnStateChange
	name := g.name
	return func() {
		if cb != nil {
			cb(name, prev, state)
		}
	}
}
