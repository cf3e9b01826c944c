package threadz

import (
	"runtime"
	"strconv"
)

// NativeID is the operating system's identifier for a thread. The zero
// value means "no underlying thread".
type NativeID uint64

// IsZero reports whether id refers to no thread.
func (id NativeID) IsZero() bool {
	return id == 0
}

// String formats the id in decimal.
func (id NativeID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Platform is the native threading primitive a Thread delegates to.
//
// Spawn creates a thread, applies attr on it, and runs entry there with
// the thread's id. It returns once the thread exists; entry may not have
// started yet. When Spawn returns an error, entry never runs.
//
// Cancel and Detach forward the matching lifecycle request for a thread
// previously returned by Spawn. A non-nil error leaves the handle's state
// unchanged.
type Platform interface {
	Spawn(attr *Attr, entry func(NativeID)) (NativeID, error)
	Cancel(id NativeID) error
	Detach(id NativeID) error
}

// NativePlatform runs every spawned callable on its own OS thread.
//
// The spawned goroutine locks itself to its OS thread and never unlocks,
// so no other goroutine is scheduled there and the runtime retires the
// thread when the callable returns. Attributes are applied on that thread
// before Spawn returns.
var NativePlatform Platform = nativePlatform{}

type nativePlatform struct{}

type spawnResult struct {
	err error
	id  NativeID
}

func (nativePlatform) Spawn(attr *Attr, entry func(NativeID)) (NativeID, error) {
	if err := attr.Validate(); err != nil {
		return 0, err
	}

	ready := make(chan spawnResult, 1)
	go func() {
		runtime.LockOSThread()
		if err := applyAttr(attr); err != nil {
			// Exiting while locked discards the thread along with
			// whatever partial settings were applied to it.
			ready <- spawnResult{err: err}
			return
		}
		id := currentThreadID()
		ready <- spawnResult{id: id}
		entry(id)
	}()

	r := <-ready
	return r.id, r.err
}

// Cancel is a no-op: a goroutine cannot be preempted from outside. The
// Thread cancels the callable's context after this returns.
func (nativePlatform) Cancel(NativeID) error {
	return nil
}

// Detach is a no-op: the runtime reclaims a finished thread on its own.
func (nativePlatform) Detach(NativeID) error {
	return nil
}
