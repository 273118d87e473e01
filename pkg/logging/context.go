package logging

import (
	"log/slog"
)

// WithTable creates a logger with table context. Use this for metadata
// and storage operations.
//
// Example:
//
//	log := logging.WithTable("employee")
//	log.Info("table operation", "action", "create")
func WithTable(tableName string) *slog.Logger {
	return GetLogger().With("table", tableName)
}

// WithDatabase creates a logger with database context.
func WithDatabase(name string) *slog.Logger {
	return GetLogger().With("database", name)
}

// WithEngine creates a logger with storage engine context.
//
// Example:
//
//	log := logging.WithEngine("flatfile", "employee")
//	log.Debug("scan", "rows", count)
func WithEngine(engine, tableName string) *slog.Logger {
	return GetLogger().With("engine", engine, "table", tableName)
}

// WithComponent creates a logger with component/subsystem context.
//
// Example:
//
//	log := logging.WithComponent("server")
//	log.Info("component initialized")
func WithComponent(component string) *slog.Logger {
	return GetLogger().With("component", component)
}

// WithError creates a logger with error context in structured form.
//
// Example:
//
//	log := logging.WithError(err)
//	log.Error("operation failed", "operation", "insert")
func WithError(err error) *slog.Logger {
	return GetLogger().With("error", err.Error())
}
