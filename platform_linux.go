//go:build linux

package threadz

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func currentThreadID() NativeID {
	return NativeID(unix.Gettid())
}

// applyAttr must run on the locked thread it configures.
func applyAttr(attr *Attr) error {
	if attr == nil {
		return nil
	}
	if len(attr.CPUs) > 0 {
		var set unix.CPUSet
		set.Zero()
		for _, cpu := range attr.CPUs {
			set.Set(cpu)
		}
		// pid 0 addresses the calling thread.
		if err := unix.SchedSetaffinity(0, &set); err != nil {
			return fmt.Errorf("sched_setaffinity: %w", err)
		}
	}
	if attr.Nice != nil {
		if err := unix.Setpriority(unix.PRIO_PROCESS, unix.Gettid(), *attr.Nice); err != nil {
			return fmt.Errorf("setpriority: %w", err)
		}
	}
	return nil
}
