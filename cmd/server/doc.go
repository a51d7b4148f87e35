// Package main is the entry point for the entityfs server.
//
// The server mounts directories below its storage root as entity trees and serves
// them over HTTP: manifests, glob and content search, tar archives, and directory
// uploads that are streamed back to disk.
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Production mode
//	./server -port 8000 -storage /var/lib/entityfs
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
