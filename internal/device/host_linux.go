//go:build linux

package device

import (
	"strconv"

	"golang.org/x/sys/unix"
)

// fillPlatform adds the kernel release and total memory reported by the
// kernel.
func fillPlatform(a *Attributes) {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err == nil {
		if rel := unix.ByteSliceToString(uts.Release[:]); rel != "" {
			a.Set(SlotKernelVersion, rel)
		}
	}

	var si unix.Sysinfo_t
	if err := unix.Sysinfo(&si); err == nil {
		total := uint64(si.Totalram) * uint64(si.Unit)
		a.Set(SlotMemorySize, strconv.FormatUint(total/(1<<20), 10)+" MiB")
	}
}
