package threadz

import (
	"fmt"
	"runtime"
)

// PanicError wraps a value recovered from a panicking callable together
// with the stack of the thread that panicked.
//
// A panic never escapes the spawned thread. It is recorded as the run's
// result and returned by [Thread.Err] once the thread has been joined.
type PanicError struct {
	// Value is the original value passed to panic().
	Value any

	// Stack is the stack trace of the spawned thread at the point of panic.
	Stack string
}

// Error returns the panic value followed by the captured stack.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v\n\n%s", e.Value, e.Stack)
}

// Unwrap returns the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

func newPanicError(v any) *PanicError {
	buf := make([]byte, 8192)
	n := runtime.Stack(buf, false)
	return &PanicError{
		Value: v,
		Stack: string(buf[:n]),
	}
}
