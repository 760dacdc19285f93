package engine

// This file serves as the main entry point for the Metrics module.
// The implementation has been split into multiple files:
// - metrics_core.go: Metrics struct, registration and the process-wide instance
// - metrics_methods.go: recording helpers used by the pool and health monitor
