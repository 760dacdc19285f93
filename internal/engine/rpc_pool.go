package engine

// This file serves as the main entry point for the provider pool module.
// The implementation is split across:
// - rpc_pool_manager.go: Manager, lazy pool init, custom providers, snapshots
// - rpc_pool_core.go: ProviderPool selection and endpoint stats
// - rpc_pool_requests.go: Execute / ExecuteWithRetry with failover and backoff
// - rpc_pool_health.go: per-network HealthMonitor loop
// - rpc_auth.go: authenticated URL construction
// - rpc_types.go / rpc_interface.go: Handle and the client it wraps
