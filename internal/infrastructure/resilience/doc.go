/*
Package resilience provides a circuit breaker gate for graceful degradation.

# Overview

The worker pipe is written with a short deadline. When the worker stops
reading, every write would burn the full deadline before failing. The gate
counts consecutive failures and, once open, rejects attempts outright until a
timeout passes and a probe is allowed through.

# Usage

	gate := resilience.New("worker-stdin", resilience.Settings{
		MaxFailures: 5,
		Timeout:     2 * time.Second,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("gate state changed", zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})

	if !gate.Allow() {
		return false // dropped
	}
	_, err := w.Write(line)
	gate.Record(err == nil)

# Pattern

	Closed --[failures]-> Open --[timeout]-> Half-Open --[success]-> Closed
	                                           |
	                                    [failure]
	                                           |
	                                           v
	                                         Open
*/
package resilience
