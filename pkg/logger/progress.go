package logger

import (
	"sync"
	"time"
)

// ProgressFunc receives a completion percentage in [0,100] and a short
// status message.
type ProgressFunc func(percent int, message string)

// ProgressTracker reports staged progress for a long-running analysis.
// Percentages never go backwards and are clamped to [0,100].
type ProgressTracker struct {
	logger    Logger
	operation string
	callback  ProgressFunc
	current   int
	startTime time.Time
	mutex     sync.Mutex
}

// NewProgressTracker creates a tracker that logs each step and forwards it
// to callback when one is supplied.
func NewProgressTracker(operation string, logger Logger, callback ProgressFunc) *ProgressTracker {
	if logger == nil {
		logger = GetGlobalLogger()
	}
	return &ProgressTracker{
		logger:    logger.WithComponent("progress"),
		operation: operation,
		callback:  callback,
		startTime: time.Now(),
	}
}

// Report moves progress to percent with message
func (p *ProgressTracker) Report(percent int, message string) {
	p.mutex.Lock()
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	if percent < p.current {
		percent = p.current
	}
	p.current = percent
	p.mutex.Unlock()

	p.logger.WithFields(Fields{
		"operation": p.operation,
		"percent":   percent,
	}).Debug(message)

	if p.callback != nil {
		p.callback(percent, message)
	}
}

// Current returns the last reported percentage
func (p *ProgressTracker) Current() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.current
}

// Complete reports 100% and logs the elapsed time
func (p *ProgressTracker) Complete(message string) {
	p.Report(100, message)
	p.logger.WithFields(Fields{
		"operation": p.operation,
		"duration":  time.Since(p.startTime).String(),
	}).Info("Operation completed")
}

// OperationLogger provides structured logging for operations with timing
type OperationLogger struct {
	logger    Logger
	operation string
	fields    Fields
	startTime time.Time
}

// NewOperationLogger creates a new operation logger
func NewOperationLogger(operation string, logger Logger) *OperationLogger {
	if logger == nil {
		logger = GetGlobalLogger()
	}

	ol := &OperationLogger{
		logger:    logger.WithComponent("operation"),
		operation: operation,
		fields:    make(Fields),
		startTime: time.Now(),
	}

	ol.logger.WithField("operation", operation).Debug("Starting operation")
	return ol
}

// WithField adds a field to the operation context
func (ol *OperationLogger) WithField(key string, value interface{}) *OperationLogger {
	ol.fields[key] = value
	return ol
}

func (ol *OperationLogger) merged(extra Fields) Fields {
	fields := Fields{"operation": ol.operation}
	for k, v := range ol.fields {
		fields[k] = v
	}
	for k, v := range extra {
		fields[k] = v
	}
	return fields
}

// Step logs a step within the operation
func (ol *OperationLogger) Step(step string) {
	ol.logger.WithFields(ol.merged(Fields{"step": step})).Debug("Operation step")
}

// Success completes the operation successfully
func (ol *OperationLogger) Success(message string) {
	ol.logger.WithFields(ol.merged(Fields{
		"duration": time.Since(ol.startTime).String(),
		"status":   "success",
	})).Info(message)
}

// Error completes the operation with an error
func (ol *OperationLogger) Error(err error, message string) {
	ol.logger.WithError(err).WithFields(ol.merged(Fields{
		"duration": time.Since(ol.startTime).String(),
		"status":   "error",
	})).Error(message)
}

// Warning logs a warning during the operation
func (ol *OperationLogger) Warning(message string) {
	ol.logger.WithFields(ol.merged(nil)).Warn(message)
}
