//go:build windows

package helpers

import (
	"syscall"
	"unsafe"
)

// memoryStatusEx mirrors the win32 MEMORYSTATUSEX layout expected by
// GlobalMemoryStatusEx. Only ullTotalPhys is consumed here, but the struct
// must be complete for dwLength to be right.
type memoryStatusEx struct {
	dwLength                uint32
	dwMemoryLoad            uint32
	ullTotalPhys            uint64
	ullAvailPhys            uint64
	ullTotalPageFile        uint64
	ullAvailPageFile        uint64
	ullTotalVirtual         uint64
	ullAvailVirtual         uint64
	ullAvailExtendedVirtual uint64
}

// GetTotalSystemMemoryMB queries GlobalMemoryStatusEx. Returns 0 when the
// value cannot be determined; the caller falls back to a fixed limit.
func GetTotalSystemMemoryMB() int {
	kernel32, err := syscall.LoadDLL("kernel32.dll")
	if err != nil {
		return 0
	}
	defer kernel32.Release()

	proc, err := kernel32.FindProc("GlobalMemoryStatusEx")
	if err != nil {
		return 0
	}

	var status memoryStatusEx
	status.dwLength = uint32(unsafe.Sizeof(status))

	ret, _, _ := proc.Call(uintptr(unsafe.Pointer(&status)))
	if ret == 0 {
		return 0
	}
	return int(status.ullTotalPhys / 1024 / 1024)
}
