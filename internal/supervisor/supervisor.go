package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/GriffinCanCode/modhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/modhost/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/modhost/internal/shared/id"
	"github.com/GriffinCanCode/modhost/internal/telemetry"
	"go.uber.org/zap"
)

// Supervisor owns the worker process: spawn, stdin writes, output capture and
// termination. All methods are safe for concurrent use and none of them block
// on the worker.
type Supervisor struct {
	cfg     Config
	logger  *zap.Logger
	metrics *monitoring.Metrics

	mu        sync.Mutex
	state     State
	info      Info
	cmd       *exec.Cmd
	stdin     *os.File
	gate      *resilience.Gate
	done      chan struct{}
	stopTimer *time.Timer

	// serializes stdin writes so lines never interleave
	writeMu sync.Mutex

	terminate func(*os.Process) error
}

// Option configures a Supervisor
type Option func(*Supervisor)

// WithMetrics records worker metrics
func WithMetrics(m *monitoring.Metrics) Option {
	return func(s *Supervisor) {
		s.metrics = m
	}
}

// New creates a supervisor. The worker is not spawned until Start.
func New(cfg Config, logger *zap.Logger, opts ...Option) *Supervisor {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Millisecond
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = 3 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Supervisor{
		cfg:       cfg,
		logger:    logger,
		state:     NotStarted,
		terminate: terminate,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.info.State = NotStarted
	return s
}

// Start spawns the worker unless one is already running. A missing or
// unstartable executable is logged and reported as false; the host keeps
// running without a worker.
func (s *Supervisor) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Running, Starting:
		return true
	case Terminating:
		s.logger.Warn("worker is still terminating; start ignored")
		return false
	}

	path, err := exec.LookPath(s.cfg.Command)
	if err != nil {
		s.failSpawnLocked("worker executable not found; continuing without worker", err)
		return false
	}

	prev := s.state
	s.state = Starting

	cmd := exec.Command(path, s.cfg.Args...)
	cmd.Dir = s.cfg.Dir
	if len(s.cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), s.cfg.Env...)
	}
	configureCommand(cmd)

	// stdin is our own pipe so writes can carry a deadline
	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		s.state = prev
		s.failSpawnLocked("failed to create worker stdin", err)
		return false
	}
	cmd.Stdin = stdinR

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdinR.Close()
		stdinW.Close()
		s.state = prev
		s.failSpawnLocked("failed to wire worker stdout", err)
		return false
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdinR.Close()
		stdinW.Close()
		s.state = prev
		s.failSpawnLocked("failed to wire worker stderr", err)
		return false
	}

	if err := cmd.Start(); err != nil {
		stdinR.Close()
		stdinW.Close()
		s.state = prev
		s.failSpawnLocked("failed to spawn worker; continuing without worker", err)
		return false
	}
	// the child holds its own copy
	stdinR.Close()

	wid := id.NewWorkerID()
	s.cmd = cmd
	s.stdin = stdinW
	s.done = make(chan struct{})
	s.stopTimer = nil
	s.gate = resilience.New("worker-stdin", resilience.Settings{
		MaxFailures: s.cfg.GateFailures,
		Timeout:     s.cfg.GateTimeout,
		OnStateChange: func(name string, from, to resilience.State) {
			s.logger.Warn("worker write gate changed",
				zap.String("worker", wid.String()),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	s.state = Running
	s.info = Info{
		ID:        wid,
		PID:       cmd.Process.Pid,
		Path:      path,
		Args:      append([]string(nil), s.cfg.Args...),
		State:     Running,
		StartedAt: time.Now(),
	}
	s.metrics.IncWorkerStarts()

	s.logger.Info("worker started",
		zap.String("worker", wid.String()),
		zap.Int("pid", cmd.Process.Pid),
		zap.String("path", path),
		zap.Strings("args", s.cfg.Args),
	)

	var streams sync.WaitGroup
	streams.Add(2)
	go s.capture(wid, Stdout, stdout, &streams)
	go s.capture(wid, Stderr, stderr, &streams)
	go s.monitor(wid, cmd, s.done, &streams)

	return true
}

func (s *Supervisor) failSpawnLocked(msg string, err error) {
	s.info.LastError = err.Error()
	s.info.State = s.state
	s.metrics.RecordWorkerExit("spawn_failed")
	s.logger.Warn(msg,
		zap.String("command", s.cfg.Command),
		zap.Error(err),
	)
}

// monitor waits for both output streams to drain, then reaps the process
func (s *Supervisor) monitor(wid id.WorkerID, cmd *exec.Cmd, done chan struct{}, streams *sync.WaitGroup) {
	streams.Wait()
	waitErr := cmd.Wait()

	code := -1
	if cmd.ProcessState != nil {
		code = cmd.ProcessState.ExitCode()
	}

	s.mu.Lock()
	requested := s.state == Terminating
	s.state = Exited
	s.info.State = Exited
	s.info.ExitCode = &code
	s.info.ExitedAt = time.Now()
	if s.stopTimer != nil {
		s.stopTimer.Stop()
	}
	s.closeStdinLocked()
	close(done)
	s.mu.Unlock()

	fields := []zap.Field{
		zap.String("worker", wid.String()),
		zap.Int("exit_code", code),
	}

	switch {
	case requested:
		s.metrics.RecordWorkerExit("stopped")
		s.logger.Info("worker stopped", fields...)
	case code == 0:
		s.metrics.RecordWorkerExit("exited")
		s.logger.Warn("worker exited on its own", fields...)
	default:
		s.metrics.RecordWorkerExit("failed")
		if waitErr != nil {
			fields = append(fields, zap.Error(waitErr))
		}
		s.logger.Warn("worker exited unexpectedly", fields...)
	}
}

// Send writes one event line to the worker. The event is dropped, with a
// warning, if the worker is not running, the write gate is open, or the pipe
// does not accept the line within WriteTimeout.
func (s *Supervisor) Send(ev telemetry.Event) bool {
	line, err := telemetry.Encode(ev)
	if err != nil {
		s.drop(ev, "encode", err)
		return false
	}

	s.mu.Lock()
	if s.state != Running {
		s.mu.Unlock()
		s.drop(ev, "not_running", nil)
		return false
	}
	w, gate := s.stdin, s.gate
	s.mu.Unlock()

	if !gate.Allow() {
		s.drop(ev, "gate_open", nil)
		return false
	}

	s.writeMu.Lock()
	err = s.writeLine(w, line)
	s.writeMu.Unlock()

	gate.Record(err == nil)
	if err != nil {
		s.drop(ev, "write_failed", err)
		return false
	}

	s.metrics.RecordTelemetry(true, "")
	return true
}

func (s *Supervisor) writeLine(w *os.File, line []byte) error {
	if err := w.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil && !errors.Is(err, os.ErrNoDeadline) {
		return err
	}

	n, err := w.Write(line)
	if err != nil {
		return err
	}
	if n != len(line) {
		return io.ErrShortWrite
	}
	return nil
}

func (s *Supervisor) drop(ev telemetry.Event, reason string, err error) {
	s.metrics.RecordTelemetry(false, reason)

	fields := []zap.Field{
		zap.String("reason", reason),
		zap.String("key", ev.Key),
		zap.String("action", string(ev.Action)),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	s.logger.Warn("telemetry event dropped", fields...)
}

// Stop requests termination and returns immediately. stdin is closed and the
// worker is signalled once; if it has not exited after StopGrace it is killed.
// Calling Stop again, or on a worker that is not running, does nothing.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Running && s.state != Starting {
		return
	}

	s.state = Terminating
	s.info.State = Terminating
	s.closeStdinLocked()

	proc := s.cmd.Process
	wid := s.info.ID
	if err := s.terminate(proc); err != nil && !errors.Is(err, os.ErrProcessDone) {
		s.logger.Warn("failed to signal worker", zap.String("worker", wid.String()), zap.Error(err))
	}

	done := s.done
	s.stopTimer = time.AfterFunc(s.cfg.StopGrace, func() {
		select {
		case <-done:
			return
		default:
		}
		s.logger.Warn("worker did not exit within grace period; killing",
			zap.String("worker", wid.String()),
			zap.Duration("grace", s.cfg.StopGrace),
		)
		if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			s.logger.Warn("failed to kill worker", zap.String("worker", wid.String()), zap.Error(err))
		}
	})

	s.logger.Info("worker stop requested", zap.String("worker", wid.String()))
}

func (s *Supervisor) closeStdinLocked() {
	if s.stdin == nil {
		return
	}
	s.stdin.Close()
	s.stdin = nil
}

// Wait blocks until the current worker has exited or ctx is done
func (s *Supervisor) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if done == nil {
		return ErrNotRunning
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for worker exit: %w", ctx.Err())
	}
}

// State returns the current lifecycle state
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Info returns a snapshot of the worker process
func (s *Supervisor) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := s.info
	info.State = s.state
	info.Args = append([]string(nil), s.info.Args...)
	if s.info.ExitCode != nil {
		code := *s.info.ExitCode
		info.ExitCode = &code
	}
	return info
}

// GateState reports the write gate state; closed when no worker was spawned
func (s *Supervisor) GateState() resilience.State {
	s.mu.Lock()
	gate := s.gate
	s.mu.Unlock()

	if gate == nil {
		return resilience.StateClosed
	}
	return gate.State()
}
