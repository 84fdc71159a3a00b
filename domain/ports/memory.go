package ports

// Memory is a bounds-checked byte store a parameter slot can reference.
// Read returns a view of exactly byteCount bytes, or false when the range
// is out of bounds; it never returns a shorter view.
type Memory interface {
	// Size returns the current size in bytes.
	Size() uint32
	Read(offset, byteCount uint32) ([]byte, bool)
	Write(offset uint32, v []byte) bool
}

// GrowableMemory is a Memory that can be extended in 64 KiB pages.
// A wazero api.Memory satisfies it.
type GrowableMemory interface {
	Memory
	Grow(deltaPages uint32) (previousPages uint32, ok bool)
}
