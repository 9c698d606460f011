package system

import (
	"errors"
	"fmt"

	"github.com/shirou/gopsutil/v3/mem"
)

// ErrInsufficientMemory is returned when the host cannot fit an allocation.
var ErrInsufficientMemory = errors.New("insufficient memory")

// availableMemory is swapped in tests.
var availableMemory = func() (uint64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.Available, nil
}

// EnsureMemory checks that need bytes fit in the host's available memory.
// When the host cannot be queried the check passes.
func EnsureMemory(need uint64) error {
	avail, err := availableMemory()
	if err != nil || avail == 0 {
		return nil
	}
	if need > avail {
		return fmt.Errorf("%w: need %d MiB, %d MiB available", ErrInsufficientMemory, need>>20, avail>>20)
	}
	return nil
}

// RGBABytes is the size of an RGBA buffer of w x h pixels.
func RGBABytes(w, h int) uint64 {
	if w <= 0 || h <= 0 {
		return 0
	}
	return uint64(w) * uint64(h) * 4
}
