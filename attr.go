package threadz

import "fmt"

// Nice values accepted by Attr.Nice.
const (
	MinNice = -20
	MaxNice = 19
)

// maxCPU bounds Attr.CPUs; it matches the size of the kernel's default
// affinity mask.
const maxCPU = 1024

// Attr holds creation-time tunables for a thread. It is applied once, on
// the spawned thread, before the callable runs. A Thread keeps the pointer
// it is given and never modifies the Attr.
//
// Platforms that cannot honor a field fail the start with CreationFailed
// rather than ignoring it.
type Attr struct {
	// Nice sets the scheduling priority of the thread when non-nil.
	// Lowering it below the process value usually needs privileges.
	Nice *int

	// Name labels the thread in traces and events. It defaults to the
	// handle's name.
	Name string

	// CPUs pins the thread to the listed CPUs when non-empty.
	CPUs []int
}

// Validate reports attribute values no platform could apply.
func (a *Attr) Validate() error {
	if a == nil {
		return nil
	}
	for _, cpu := range a.CPUs {
		if cpu < 0 || cpu >= maxCPU {
			return fmt.Errorf("cpu %d out of range [0, %d)", cpu, maxCPU)
		}
	}
	if a.Nice != nil && (*a.Nice < MinNice || *a.Nice > MaxNice) {
		return fmt.Errorf("nice %d out of range [%d, %d]", *a.Nice, MinNice, MaxNice)
	}
	return nil
}

// IsZero reports whether a requests nothing beyond a default thread.
func (a *Attr) IsZero() bool {
	return a == nil || (a.Nice == nil && len(a.CPUs) == 0 && a.Name == "")
}

// NiceValue returns a pointer to n, for use with Attr.Nice.
func NiceValue(n int) *int {
	return &n
}
