// Package utils holds small cross-cutting helpers.
package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// Timer measures the duration of an operation and logs it on Stop.
type Timer struct {
	start time.Time
	name  string
	log   zerolog.Logger
}

// NewTimer starts a timer for the named operation.
func NewTimer(name string, log zerolog.Logger) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
		log:   log,
	}
}

// Stop stops the timer and logs the duration. Operations over 30s are
// logged at warn level.
func (t *Timer) Stop() time.Duration {
	duration := time.Since(t.start)

	t.log.Debug().
		Str("operation", t.name).
		Dur("duration_ms", duration).
		Msg("Performance measurement")

	if duration > 30*time.Second {
		t.log.Warn().
			Str("operation", t.name).
			Dur("duration", duration).
			Msg("Slow operation detected (>30s)")
	}

	return duration
}

// OperationTimer provides a defer-friendly way to measure operation duration
//
// Usage:
//
//	func MyFunction() {
//	    defer utils.OperationTimer("my_function", log)()
//	}
func OperationTimer(operation string, log zerolog.Logger) func() {
	start := time.Now()

	return func() {
		duration := time.Since(start)

		log.Debug().
			Str("operation", operation).
			Dur("duration_ms", duration).
			Msg("Operation completed")

		if duration > 30*time.Second {
			log.Warn().
				Str("operation", operation).
				Dur("duration", duration).
				Msg("Slow operation detected")
		}
	}
}
