// Package logging provides standardized logging utilities for the vfsoverlay project.
// This file defines structured logging functions for errors.
//
// Structured logging with context is a powerful way to add consistent contextual
// information to log entries. This file provides functions for logging at different
// levels (warn, info, debug, trace) with context.
//
// This file is part of the consolidated logging package structure, which includes:
//   - logger.go: Core logger implementation and level management
//   - context.go: Context-aware logging functionality
//   - method.go: Method entry/exit logging (both with and without context)
//   - error.go: Error logging functionality
//   - performance.go: Performance optimization utilities
//   - constants.go: Constants used throughout the logging package
//   - console_writer.go: Console writer functionality
//   - structured_logging.go (this file): Structured logging functions
package logging

// LogErrorAsWarnWithContext logs an error as a warning with the given context
func LogErrorAsWarnWithContext(err error, ctx LogContext, msg string) {
	if err == nil {
		return
	}

	// Check if warn level is enabled before performing operations
	if !IsLevelEnabled(WarnLevel) {
		return
	}

	// Get the logger with context
	logger := ctx.Logger()

	// Create the warning event
	event := logger.Warn().Err(err)

	// Log the message
	event.Msg(msg)
}

// LogInfoWithContext logs an info message with the given context
func LogInfoWithContext(ctx LogContext, msg string) {
	// Check if info level is enabled before performing operations
	if !IsLevelEnabled(InfoLevel) {
		return
	}

	// Get the logger with context
	logger := ctx.Logger()

	// Log the message
	logger.Info().Msg(msg)
}

// LogDebugWithContext logs a debug message with the given context
func LogDebugWithContext(ctx LogContext, msg string) {
	// Check if debug level is enabled before performing operations
	if !IsLevelEnabled(DebugLevel) {
		return
	}

	// Get the logger with context
	logger := ctx.Logger()

	// Log the message
	logger.Debug().Msg(msg)
}

// LogTraceWithContext logs a trace message with the given context
func LogTraceWithContext(ctx LogContext, msg string) {
	// Check if trace level is enabled before performing operations
	if !IsLevelEnabled(TraceLevel) {
		return
	}

	// Get the logger with context
	logger := ctx.Logger()

	// Log the message
	logger.Trace().Msg(msg)
}

