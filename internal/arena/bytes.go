package arena

// Bytes adapts a fixed byte slice to ports.Memory. Shared regions use it
// to expose their storage to the task without copying.
type Bytes []byte

// Size returns the length of the slice.
func (b Bytes) Size() uint32 {
	return uint32(len(b)) //nolint:gosec // G115: region sizes are uint32
}

// Read returns a view of the range, capped so appends cannot reach past it.
func (b Bytes) Read(offset, byteCount uint32) ([]byte, bool) {
	end := uint64(offset) + uint64(byteCount)
	if end > uint64(len(b)) {
		return nil, false
	}
	return b[offset:end:end], true
}

// Write copies v into the slice at offset.
func (b Bytes) Write(offset uint32, v []byte) bool {
	end := uint64(offset) + uint64(len(v))
	if end > uint64(len(b)) {
		return false
	}
	copy(b[offset:end], v)
	return true
}

// Growable wraps a byte slice as a ports.GrowableMemory bounded by
// maxPages. It backs arenas in tests and where no wazero runtime is wanted.
type Growable struct {
	buf      []byte
	maxPages uint32
}

// NewGrowable returns a memory of initialPages pages that may grow up to
// maxPages.
func NewGrowable(initialPages, maxPages uint32) *Growable {
	return &Growable{buf: make([]byte, int(initialPages)*PageSize), maxPages: maxPages}
}

func (g *Growable) Size() uint32 {
	return uint32(len(g.buf)) //nolint:gosec // G115: bounded by maxPages
}

func (g *Growable) Read(offset, byteCount uint32) ([]byte, bool) {
	return Bytes(g.buf).Read(offset, byteCount)
}

func (g *Growable) Write(offset uint32, v []byte) bool {
	return Bytes(g.buf).Write(offset, v)
}

// Grow extends the memory by deltaPages zeroed pages.
func (g *Growable) Grow(deltaPages uint32) (uint32, bool) {
	prev := uint32(len(g.buf) / PageSize) //nolint:gosec // G115: bounded by maxPages
	if uint64(prev)+uint64(deltaPages) > uint64(g.maxPages) {
		return prev, false
	}
	g.buf = append(g.buf, make([]byte, int(deltaPages)*PageSize)...)
	return prev, true
}
