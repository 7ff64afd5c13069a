// Package logger provides a structured logging interface for the dataset builder.
//
// It wraps zerolog with:
// - Multiple log levels (Debug, Info, Warn, Error)
// - Structured logging with fields
// - Colored console output on stderr
// - Optional append-only file output
// - A global logger instance for easy access
// - NopLogger and TestLogger for tests
//
// Basic Usage:
//
//	err := logger.Initialize(&cfg.Logging)
//
//	logger.Info("Build started")
//	logger.WithField("folder", "paper_cup").Info("Category started")
//	logger.WithError(err).Error("Failed to create category directory")
//
// Structured Usage:
//
//	log := logger.GetLogger().WithField("component", "crawler")
//	log.InfoWithFields("Category finished", map[string]interface{}{
//	    "downloaded": 500,
//	    "duration":   time.Minute,
//	})
package logger
