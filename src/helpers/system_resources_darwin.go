//go:build darwin

package helpers

import (
	"os/exec"
	"strconv"
	"strings"
)

// GetTotalSystemMemoryMB asks sysctl for hw.memsize. Returns 0 when the
// value cannot be determined; the caller falls back to a fixed limit.
func GetTotalSystemMemoryMB() int {
	out, err := exec.Command("sysctl", "-n", "hw.memsize").Output()
	if err != nil {
		return 0
	}

	total, err := strconv.ParseInt(strings.TrimSpace(string(out)), 10, 64)
	if err != nil {
		return 0
	}
	return int(total / 1024 / 1024)
}
