// Package logging provides standardized logging utilities for the vfsoverlay project.
// This file defines method logging functionality, both with and without context.
//
// Method logging is called directly at the top and every return point of a
// hot-path operation (InodeMap/FileInode/TreeInode, mirroring how the teacher
// wraps its FUSE handlers in internal/fs/file_operations.go) rather than
// through a reflection-based call wrapper — callers own their own return
// points, so LogMethodEntry/LogMethodExit are the only primitives needed:
//   - Standard method logging: LogMethodEntry, LogMethodExit
//   - Context-aware method logging: LogMethodEntryWithContext, LogMethodExitWithContext
//
// This file is part of the consolidated logging package structure, which includes:
//   - logger.go: Core logger implementation and level management
//   - context.go: Context-aware logging functionality
//   - method.go (this file): Method entry/exit logging (both with and without context)
//   - error.go: Error logging functionality
//   - performance.go: Performance optimization utilities
package logging

import (
	"bytes"
	"fmt"
	"reflect"
	"runtime"
	"time"
)

// getCurrentGoroutineID extracts the calling goroutine's ID from the runtime
// stack trace. The first line of the trace has the form "goroutine N [state]:".
// Returns "unknown" if the format can't be parsed.
func getCurrentGoroutineID() string {
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]

	start := bytes.IndexByte(buf, ' ')
	if start < 0 {
		return "unknown"
	}
	start++

	end := bytes.IndexAny(buf[start:], " [")
	if end < 0 {
		return "unknown"
	}

	return string(buf[start : start+end])
}

// LogMethodEntry logs the entry of a method with its parameters
// It returns the method name and start time for use with LogMethodExit
func LogMethodEntry(methodName string, params ...interface{}) (string, time.Time) {
	startTime := time.Now()

	// Only perform expensive operations if debug logging is enabled
	if !IsLevelEnabled(DebugLevel) {
		return methodName, startTime
	}

	event := Debug().
		Str(FieldMethod, methodName).
		Str(FieldPhase, PhaseEntry).
		Str(FieldGoroutine, getCurrentGoroutineID())

	// Log parameters if any
	if len(params) > 0 {
		for i, param := range params {
			// Skip logging for large data structures or sensitive information
			if param == nil {
				event = event.Interface(FieldParam+fmt.Sprintf("%d", i+1), nil)
			} else {
				// Get the type of the parameter
				paramType := reflect.TypeOf(param)

				// Handle different types of parameters
				switch {
				case isPointerToByteSlice(paramType):
					// For []byte pointers, just log the length
					byteSlice := reflect.ValueOf(param).Elem().Interface().([]byte)
					event = event.Int(FieldParam+fmt.Sprintf("%d_size", i+1), len(byteSlice))
				default:
					// For other types, log the value
					event = event.Interface(FieldParam+fmt.Sprintf("%d", i+1), param)
				}
			}
		}
	}

	event.Msg(MsgMethodCalled)
	return methodName, startTime
}

// LogMethodExit logs the exit of a method with its return values
func LogMethodExit(methodName string, duration time.Duration, returns ...interface{}) {
	// Only perform expensive operations if debug logging is enabled
	if !IsLevelEnabled(DebugLevel) {
		return
	}

	event := Debug().
		Str(FieldMethod, methodName).
		Str(FieldPhase, PhaseExit).
		Str(FieldGoroutine, getCurrentGoroutineID()).
		Dur(FieldDuration, duration)

	// Log return values if any
	if len(returns) > 0 {
		for i, ret := range returns {
			// Skip logging for large data structures or sensitive information
			if ret == nil {
				event = event.Interface(FieldReturn+fmt.Sprintf("%d", i+1), nil)
			} else {
				// Get the type of the return value
				retType := reflect.TypeOf(ret)
				retKind := getTypeKind(retType)

				// Handle different types of return values
				switch {
				case isPointerToByteSlice(retType):
					// For []byte pointers, just log the length
					byteSlice := reflect.ValueOf(ret).Elem().Interface().([]byte)
					event = event.Int(FieldReturn+fmt.Sprintf("%d_size", i+1), len(byteSlice))
				case retKind == reflect.Struct || (retKind == reflect.Ptr && getTypeKind(getTypeElem(retType)) == reflect.Struct):
					// For structs, log a simplified representation
					if retKind == reflect.Ptr {
						if reflect.ValueOf(ret).IsNil() {
							event = event.Str(FieldReturn+fmt.Sprintf("%d", i+1), "nil")
						} else {
							typeName := getTypeElem(retType).Name()
							event = event.Str(FieldReturn+fmt.Sprintf("%d", i+1), fmt.Sprintf("[%s object]", typeName))
						}
					} else {
						typeName := retType.Name()
						if typeName == "" {
							// Anonymous struct: use its literal type description.
							typeName = retType.String()
						}
						event = event.Str(FieldReturn+fmt.Sprintf("%d", i+1), fmt.Sprintf("[%s object]", typeName))
					}
				default:
					// For other types, log the value
					event = event.Interface(FieldReturn+fmt.Sprintf("%d", i+1), ret)
				}
			}
		}
	}

	event.Msg(MsgMethodCompleted)
}

// LogMethodEntryWithContext logs the entry of a method with context
func LogMethodEntryWithContext(methodName string, ctx LogContext) (string, time.Time, Logger, LogContext) {
	startTime := time.Now()

	// Create a logger with the context
	logger := WithLogContext(ctx)

	// Only perform expensive operations if debug logging is enabled
	if !IsLevelEnabled(DebugLevel) {
		return methodName, startTime, logger, ctx
	}

	// Get the current goroutine ID
	goroutineID := getCurrentGoroutineID()

	// Log method entry
	logger.Debug().
		Str(FieldMethod, methodName).
		Str(FieldPhase, PhaseEntry).
		Str(FieldGoroutine, goroutineID).
		Msg(MsgMethodCalled)

	return methodName, startTime, logger, ctx
}

// LogMethodExitWithContext logs the exit of a method with context
func LogMethodExitWithContext(methodName string, startTime time.Time, logger Logger, ctx LogContext, returns ...interface{}) {
	// Only perform expensive operations if debug logging is enabled
	if !IsLevelEnabled(DebugLevel) {
		return
	}

	duration := time.Since(startTime)

	// Get the current goroutine ID
	goroutineID := getCurrentGoroutineID()

	// Create log event
	event := logger.Debug().
		Str(FieldMethod, methodName).
		Str(FieldPhase, PhaseExit).
		Str(FieldGoroutine, goroutineID).
		Dur(FieldDuration, duration)

	// Log return values if any
	for i, ret := range returns {
		if ret == nil {
			event = event.Interface(FieldReturn+fmt.Sprintf("%d", i+1), nil)
		} else {
			// Get the type of the return value
			retType := reflect.TypeOf(ret)
			retKind := getTypeKind(retType)

			// Handle different types of return values
			switch {
			case isPointerToByteSlice(retType):
				// For []byte pointers, just log the length
				byteSlice := reflect.ValueOf(ret).Elem().Interface().([]byte)
				event = event.Int(FieldReturn+fmt.Sprintf("%d_size", i+1), len(byteSlice))
			case retKind == reflect.Struct || (retKind == reflect.Ptr && getTypeKind(getTypeElem(retType)) == reflect.Struct):
				// For structs, log a simplified representation
				if retKind == reflect.Ptr {
					if reflect.ValueOf(ret).IsNil() {
						event = event.Str(FieldReturn+fmt.Sprintf("%d", i+1), "nil")
					} else {
						typeName := getTypeElem(retType).Name()
						event = event.Str(FieldReturn+fmt.Sprintf("%d", i+1), fmt.Sprintf("[%s object]", typeName))
					}
				} else {
					typeName := retType.Name()
					event = event.Str(FieldReturn+fmt.Sprintf("%d", i+1), fmt.Sprintf("[%s object]", typeName))
				}
			default:
				// For other types, log the value
				event = event.Interface(FieldReturn+fmt.Sprintf("%d", i+1), ret)
			}
		}
	}

	event.Msg(MsgMethodCompleted)
}

// LogMethodReturnWithContext logs the exit of a method with context
// Deprecated: Use LogMethodExitWithContext instead
func LogMethodReturnWithContext(methodName string, startTime time.Time, logger Logger, ctx LogContext, returns ...interface{}) {
	LogMethodExitWithContext(methodName, startTime, logger, ctx, returns...)
}
