//go:build !linux && !windows

package threadz

import (
	"errors"
	"sync/atomic"
)

var errUnsupportedAttr = errors.New("cpu affinity and nice are not supported on this platform")

// Without a portable thread id syscall, ids are handed out in spawn order.
var lastThreadID atomic.Uint64

func currentThreadID() NativeID {
	return NativeID(lastThreadID.Add(1))
}

func applyAttr(attr *Attr) error {
	if attr == nil {
		return nil
	}
	if len(attr.CPUs) > 0 || attr.Nice != nil {
		return errUnsupportedAttr
	}
	return nil
}
