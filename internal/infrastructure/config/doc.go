// Package config provides 12-factor configuration management for the host.
//
// Configuration is loaded from environment variables with defaults, or from a
// YAML file when one is passed with -config. CLI flags override either source.
//
// Configuration Sections:
//   - Worker: worker executable, pipe write timeout, stop grace, write gate
//   - Window: content file and external link allow-list
//   - Extensions: module directory and suffix
//   - Bridge: asset root and image extension allow-list
//   - Sandbox: injection and callback limits, waitFor polling policy
//   - Prefs: preference file location
//   - Server: control server settings (port, host)
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Control server on %s\n", cfg.Server.Addr())
//
// Environment Variables:
//   - WORKER_CMD, WORKER_ARGS, WORKER_WRITE_TIMEOUT, WORKER_STOP_GRACE
//   - CONTENT_PATH, ALLOW_EXTERNAL, MODS_DIR, APP_ROOT, PREFS_PATH
//   - PORT, HOST, LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST
package config
