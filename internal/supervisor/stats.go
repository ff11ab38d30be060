package supervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// Stats samples resource usage of the running worker
func (s *Supervisor) Stats(ctx context.Context) (ProcessStats, error) {
	s.mu.Lock()
	running := s.state == Running
	pid := s.info.PID
	started := s.info.StartedAt
	s.mu.Unlock()

	if !running {
		return ProcessStats{}, ErrNotRunning
	}

	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return ProcessStats{}, fmt.Errorf("inspect worker %d: %w", pid, err)
	}

	stats := ProcessStats{
		PID:    int32(pid),
		Uptime: time.Since(started),
	}

	mem, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		return ProcessStats{}, fmt.Errorf("worker memory: %w", err)
	}
	stats.RSSBytes = mem.RSS

	// cpu and thread counts are best effort; some platforms deny them
	if cpu, err := p.CPUPercentWithContext(ctx); err == nil {
		stats.CPUPercent = cpu
	}
	if threads, err := p.NumThreadsWithContext(ctx); err == nil {
		stats.Threads = threads
	}

	return stats, nil
}
