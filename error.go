package threadz

import (
	"errors"
	"fmt"
	"time"
)

// Code identifies which lifecycle rule a failed operation ran into.
// Callers branch on the code (or on the matching sentinel via errors.Is),
// never on the wrapped platform cause.
type Code int

const (
	// AlreadyStarted: Start on a handle that still owns a thread.
	AlreadyStarted Code = iota + 1
	// CreationFailed: the platform refused to create the thread.
	CreationFailed
	// NotJoinable: Join without a live, non-detached thread.
	NotJoinable
	// NotCancelable: Cancel without a live, non-detached thread.
	NotCancelable
	// CancelFailed: the platform cancel call reported an error.
	CancelFailed
	// NotDetachable: Detach without a live, non-detached thread.
	NotDetachable
	// DetachFailed: the platform detach call reported an error.
	DetachFailed
	// InvalidCallable: the callable and its arguments do not fit together.
	InvalidCallable
)

// Sentinel errors, one per Code. *Error values match them with errors.Is.
var (
	ErrAlreadyStarted  = errors.New("thread already started")
	ErrCreationFailed  = errors.New("failed to create thread")
	ErrNotJoinable     = errors.New("thread is not joinable")
	ErrNotCancelable   = errors.New("thread is not cancelable")
	ErrCancelFailed    = errors.New("failed to cancel thread")
	ErrNotDetachable   = errors.New("thread is not detachable")
	ErrDetachFailed    = errors.New("failed to detach thread")
	ErrInvalidCallable = errors.New("invalid callable")
)

var sentinels = map[Code]error{
	AlreadyStarted:  ErrAlreadyStarted,
	CreationFailed:  ErrCreationFailed,
	NotJoinable:     ErrNotJoinable,
	NotCancelable:   ErrNotCancelable,
	CancelFailed:    ErrCancelFailed,
	NotDetachable:   ErrNotDetachable,
	DetachFailed:    ErrDetachFailed,
	InvalidCallable: ErrInvalidCallable,
}

// String returns the stable message for the code.
func (c Code) String() string {
	if s, ok := sentinels[c]; ok {
		return s.Error()
	}
	return fmt.Sprintf("threadz.Code(%d)", int(c))
}

// Operation names reported in Error.Op.
const (
	OpBind   = "bind"
	OpStart  = "start"
	OpJoin   = "join"
	OpDetach = "detach"
	OpCancel = "cancel"
)

// Error is the single error type returned by Thread operations.
// It records which operation failed, on which thread, and why.
type Error struct {
	Timestamp time.Time
	Err       error // platform or binding cause, may be nil
	Op        string
	Name      string
	ID        NativeID
	Code      Code
}

// Error returns the stable message for the code, followed by the cause when
// one is present.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code.String()
}

// Message returns the stable message without any cause attached.
func (e *Error) Message() string {
	return e.Code.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's code.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Code]
	return ok && s == target
}

// CodeOf returns the Code of the first *Error in err's chain.
func CodeOf(err error) (Code, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te.Code, true
	}
	return 0, false
}
