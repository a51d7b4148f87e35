// Package config provides 12-factor configuration management for entityfs.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables for development flexibility.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Logging: Log level and output format
//   - Storage: Root directory for mounts and persisted uploads
//   - Persist: Chunk size, flush threshold and throughput cap of the streaming persister
//   - Mount: Whether real directories are snapshotted with fastwalk
//   - RateLimit: Per-IP or global rate limiting configuration
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Persisting into %s\n", cfg.Storage.Root)
//
// Environment Variables:
//   - PORT, HOST, STORAGE_ROOT, MOUNT_SNAPSHOT
//   - LOG_LEVEL, LOG_DEV
//   - PERSIST_CHUNK_SIZE, PERSIST_FLUSH_THRESHOLD, PERSIST_BYTES_PER_SECOND
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED, RATE_LIMIT_GLOBAL
package config
