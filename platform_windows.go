//go:build windows

package threadz

import (
	"errors"

	"golang.org/x/sys/windows"
)

var errUnsupportedAttr = errors.New("cpu affinity and nice are not supported on windows")

func currentThreadID() NativeID {
	return NativeID(windows.GetCurrentThreadId())
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
