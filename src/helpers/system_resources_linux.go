//go:build linux

package helpers

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

// GetTotalSystemMemoryMB reads MemTotal from /proc/meminfo. Returns 0 when
// the value cannot be determined; the caller falls back to a fixed limit.
func GetTotalSystemMemoryMB() int {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "MemTotal:") {
			continue
		}

		// Line format: "MemTotal:       16316412 kB"
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0
		}
		kb, err := strconv.Atoi(fields[1])
		if err != nil {
			return 0
		}
		return kb / 1024
	}
	return 0
}
