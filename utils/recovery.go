package utils

import (
	"fmt"
	"runtime/debug"
)

// PanicHandler receives the recovered value after the panic has been logged
type PanicHandler func(recovered interface{})

// RecoverFromPanic recovers from panics, logs them with a stack trace and hands
// the value to onPanic (which may be nil). It must be deferred directly.
func RecoverFromPanic(logger *Logger, context string, onPanic PanicHandler) {
	if r := recover(); r != nil {
		logger.Error("Panic recovered in %s: %v\nStack trace:\n%s", context, r, string(debug.Stack()))
		if onPanic != nil {
			onPanic(r)
		}
	}
}

// SafeGo runs fn on its own goroutine with panic recovery.
// The returned channel is closed once fn has returned or panicked.
func SafeGo(logger *Logger, context string, fn func(), onPanic PanicHandler) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer RecoverFromPanic(logger, context, onPanic)
		fn()
	}()
	return done
}

// WrapError wraps an error with additional context
func WrapError(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}
