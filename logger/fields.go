package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for consistent structured logging.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Identity and context
	FieldRunID     = "run_id"
	FieldRequestID = "request_id"

	// Components
	FieldComponent = "component"
	FieldProvider  = "provider"
	FieldModel     = "model"

	// Pipeline
	FieldStage     = "stage"
	FieldRole      = "role"
	FieldThreat    = "threat"
	FieldDependsOn = "depends_on"
	FieldBlueprint = "blueprint"

	// Operations
	FieldMethod = "method"
	FieldPath   = "path"

	// Timing
	FieldDurationMS = "duration_ms"

	// Errors
	FieldError     = "error"
	FieldErrorType = "error_type"

	// Counts and sizes
	FieldCount  = "count"
	FieldSize   = "size"
	FieldLength = "length"

	// Status
	FieldStatus = "status"

	// Files and network
	FieldFile    = "file"
	FieldAddress = "address"
	FieldPort    = "port"
)

// Context keys for propagating logging context
type contextKey string

const (
	runIDKey     contextKey = "logger_run_id"
	requestIDKey contextKey = "logger_request_id"
	componentKey contextKey = "logger_component"
)

// WithRunID adds a pipeline run ID to the context for logging
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// WithRequestID adds a request ID to the context for logging
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithComponent adds a component name to the context for logging
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentKey, component)
}

// RunIDFromContext returns the run ID stored by WithRunID, or ""
func RunIDFromContext(ctx context.Context) string {
	runID, _ := ctx.Value(runIDKey).(string)
	return runID
}

// FieldsFromContext extracts logging fields from context.
// Returns key-value pairs suitable for use with Infow/Errorw/etc.
func FieldsFromContext(ctx context.Context) []interface{} {
	var fields []interface{}

	if runID, ok := ctx.Value(runIDKey).(string); ok && runID != "" {
		fields = append(fields, FieldRunID, runID)
	}
	if requestID, ok := ctx.Value(requestIDKey).(string); ok && requestID != "" {
		fields = append(fields, FieldRequestID, requestID)
	}
	if component, ok := ctx.Value(componentKey).(string); ok && component != "" {
		fields = append(fields, FieldComponent, component)
	}

	return fields
}

// LoggerFromContext returns a logger with fields extracted from context.
// Falls back to base when it is non-nil, else the global logger.
func LoggerFromContext(ctx context.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	if base == nil {
		base = Logger
	}
	fields := FieldsFromContext(ctx)
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}

// ComponentLogger returns a named logger for a specific component.
// This is the preferred way to get a logger for dependency injection.
//
// Example:
//
//	type Executor struct {
//	    logger *zap.SugaredLogger
//	}
//
//	func NewExecutor() *Executor {
//	    return &Executor{
//	        logger: logger.ComponentLogger("pipeline"),
//	    }
//	}
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}
