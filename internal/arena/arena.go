// Package arena manages the task memory a session marshals temporary
// memory references into.
//
// Allocation is a bump pointer over a ports.GrowableMemory. Everything
// allocated during one invocation is released at once by Reset, which also
// scrubs the bytes so nothing survives into the next invocation.
package arena

import (
	"errors"
	"fmt"

	"github.com/splitworld/tee-sdk/domain/ports"
)

// PageSize is the growth unit of the underlying memory.
const PageSize = 64 * 1024

// alignment of every allocation.
const alignment = 8

// base is the first allocatable offset. Offset 0 is kept unused so a zero
// Span never aliases live data.
const base = alignment

// ErrExhausted is returned when an allocation does not fit the limit.
var ErrExhausted = errors.New("arena: memory exhausted")

// Span is an allocated range of the arena.
type Span struct {
	Offset uint32
	Length uint32
}

// End returns the offset one past the span.
func (s Span) End() uint64 {
	return uint64(s.Offset) + uint64(s.Length)
}

// Arena is a bump allocator. It is not safe for concurrent use; a session
// serializes its invocations.
type Arena struct {
	mem   ports.GrowableMemory
	limit uint64
	next  uint32
}

// New creates an arena over mem that never grows past limit bytes.
func New(mem ports.GrowableMemory, limit uint64) *Arena {
	return &Arena{mem: mem, limit: limit, next: base}
}

// Memory returns the memory spans refer to.
func (a *Arena) Memory() ports.GrowableMemory {
	return a.mem
}

// Used returns the bytes currently allocated, including the reserved prefix.
func (a *Arena) Used() uint32 {
	return a.next
}

// Alloc reserves size bytes. A zero size yields the zero Span.
func (a *Arena) Alloc(size uint32) (Span, error) {
	if size == 0 {
		return Span{}, nil
	}

	off := alignUp(a.next)
	end := uint64(off) + uint64(size)
	if end > a.limit || end > uint64(^uint32(0)) {
		return Span{}, fmt.Errorf("%w: need %d bytes at offset %d, limit %d", ErrExhausted, size, off, a.limit)
	}

	if cur := uint64(a.mem.Size()); end > cur {
		pages := (end - cur + PageSize - 1) / PageSize
		if _, ok := a.mem.Grow(uint32(pages)); !ok {
			return Span{}, fmt.Errorf("%w: cannot grow by %d pages", ErrExhausted, pages)
		}
	}

	a.next = uint32(end)
	return Span{Offset: off, Length: size}, nil
}

// Reset zeroes every allocated byte and makes the whole arena available
// again.
func (a *Arena) Reset() {
	if a.next > base {
		if view, ok := a.mem.Read(base, a.next-base); ok {
			clear(view)
		}
	}
	a.next = base
}

func alignUp(off uint32) uint32 {
	return (off + alignment - 1) &^ (alignment - 1)
}
