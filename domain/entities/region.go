package entities

import (
	"fmt"
	"strings"
)

// RegionHandle is the opaque identifier of a shared region.
// The zero handle is never issued.
type RegionHandle uint32

func (h RegionHandle) String() string {
	return fmt.Sprintf("shm#%d", uint32(h))
}

// RegionState is the lifecycle state of a shared region.
type RegionState uint8

const (
	RegionUnregistered RegionState = iota
	RegionRegistered
	RegionReleased
)

func (s RegionState) String() string {
	switch s {
	case RegionUnregistered:
		return "unregistered"
	case RegionRegistered:
		return "registered"
	case RegionReleased:
		return "released"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// MemFlags restricts the directions a shared region may be referenced in.
type MemFlags uint8

const (
	// MemInput allows the task to read the region.
	MemInput MemFlags = 1 << iota
	// MemOutput allows the task to write the region.
	MemOutput
)

// MemInOut allows both directions.
const MemInOut = MemInput | MemOutput

// Allows reports whether a memref of kind k may reference a region with f.
func (f MemFlags) Allows(k ParamKind) bool {
	if k.Readable() && f&MemInput == 0 {
		return false
	}
	if k.Writable() && f&MemOutput == 0 {
		return false
	}
	return true
}

func (f MemFlags) String() string {
	var parts []string
	if f&MemInput != 0 {
		parts = append(parts, "input")
	}
	if f&MemOutput != 0 {
		parts = append(parts, "output")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}
