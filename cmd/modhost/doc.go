// Package main is the entry point for the modhost privileged host.
//
// The host loads a local content page into a sandboxed page runtime, injects
// the user's extension modules into it on every load, exposes the capability
// bridge to page code and supervises the telemetry worker.
//
// Architecture:
//
//	content page + mods/*.js → sandbox page ← bridge (quit, fullscreen, readImages, telemetry)
//	                                              ↓
//	                                    keylog-worker (stdin pipe)
//
// Configuration:
//   - Environment variables (envconfig tags, see internal/infrastructure/config)
//   - -config file.yaml (read over defaults instead of the environment)
//   - CLI flags override either
//
// Usage:
//
//	./modhost -content index.html -mods mods
//	./modhost -config modhost.yaml -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
