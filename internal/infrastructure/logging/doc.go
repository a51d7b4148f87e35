// Package logging provides structured logging using uber/zap.
//
// Two modes are available:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Components such as the filesystem mounter and the persister take a *Logger and fall back
// to a no-op logger when none is given (OrNop), so library callers are never forced to
// configure logging.
//
// Example Usage:
//
//	logger := logging.FromLevel(cfg.Logging.Level, cfg.Logging.Development)
//	logger.Info("Mounted folder", zap.String("path", root.Path()), zap.Int("files", n))
//	logger.Error("Persist failed", zap.Error(err))
package logging
