// Package logger provides structured logging capabilities.
//
// The logger package sets up the application's zap logger. All log output
// goes to stderr so that stdout stays reserved for the probe report.
//
// Usage:
//
//	logger, err := logger.New("production", "info")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	logger.Info("sandbox ready", zap.Int("pid", pid))
package logger
