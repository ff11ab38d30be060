package supervisor

import (
	"errors"
	"time"

	"github.com/GriffinCanCode/modhost/internal/shared/id"
)

// State is the lifecycle state of the worker process
type State int

const (
	NotStarted State = iota
	Starting
	Running
	Terminating
	Exited
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Terminating:
		return "terminating"
	case Exited:
		return "exited"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Output stream names used as the "stream" log field
const (
	Stdout = "stdout"
	Stderr = "stderr"
)

var ErrNotRunning = errors.New("worker not running")

// Config describes the worker executable and pipe policy
type Config struct {
	Command string
	Args    []string
	Dir     string
	Env     []string

	// WriteTimeout bounds a single stdin write; a slower reader loses the event
	WriteTimeout time.Duration
	// StopGrace is how long Stop waits after SIGTERM before killing
	StopGrace time.Duration

	// GateFailures consecutive write failures stop further writes for GateTimeout
	GateFailures uint32
	GateTimeout  time.Duration
}

// Info is a snapshot of the worker process
type Info struct {
	ID        id.WorkerID `json:"id,omitempty"`
	PID       int         `json:"pid,omitempty"`
	Path      string      `json:"path,omitempty"`
	Args      []string    `json:"args,omitempty"`
	State     State       `json:"state"`
	ExitCode  *int        `json:"exit_code,omitempty"`
	StartedAt time.Time   `json:"started_at,omitzero"`
	ExitedAt  time.Time   `json:"exited_at,omitzero"`
	LastError string      `json:"last_error,omitempty"`
}

// ProcessStats is a health observation of the running worker
type ProcessStats struct {
	PID        int32         `json:"pid"`
	RSSBytes   uint64        `json:"rss_bytes"`
	CPUPercent float64       `json:"cpu_percent"`
	Threads    int32         `json:"threads"`
	Uptime     time.Duration `json:"uptime"`
}
