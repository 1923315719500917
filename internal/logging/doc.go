// Package logging provides structured logging for multiworker.
//
// This package wraps Go's log/slog to provide JSON-formatted logs with
// persistent attributes. A turn fans out to several concurrent model calls,
// so every entry can be tagged with the turn, the worker and the phase that
// produced it and filtered afterwards.
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. Child loggers
// created via With* methods share the underlying writer. [RotatingWriter]
// guards the file with a mutex during rotation.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/path/to/logs", "INFO", logging.DefaultRotationConfig())
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	turnLogger := logger.WithTurn(turnID).WithPhase("collecting")
//	turnLogger.WithWorker("Worker-2").Warn("attempt failed", "attempt", 1, "error", err)
//
// Output:
//
//	{"time":"...","level":"WARN","msg":"attempt failed","turn_id":"...","phase":"collecting","worker":"Worker-2","attempt":1,"error":"..."}
//
// # Log Rotation
//
// Files rotate when they would exceed MaxSizeMB. Backups are named
// debug.log.1 (newest) through debug.log.N (oldest).
//
// # Testing
//
// Use [NopLogger] to discard output, or [NewLoggerWithWriter] with a buffer
// to assert on entries.
//
// # Configuration
//
//	logging:
//	  enabled: true
//	  level: info
//	  max_size_mb: 10
//	  max_backups: 3
//	  dir: ~/.config/multiworker/logs
package logging
