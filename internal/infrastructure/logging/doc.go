// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Every host component logs through a named child (supervisor, bridge,
// sandbox, extension, window, server) so worker output, page console lines
// and injection results can be filtered by origin.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Component("supervisor").Info("worker started", zap.Int("pid", pid))
//	logger.Error("Failed to load content", zap.Error(err))
package logging
