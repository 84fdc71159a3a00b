package ta

import (
	"crypto/subtle"
	"fmt"
	"io"
	"log/slog"
)

// InputBuffer is a read-only view of a buffer slot. All lengths are
// bounded by the declared capacity.
type InputBuffer struct {
	view []byte
}

// Len returns the declared capacity.
func (b InputBuffer) Len() uint32 {
	return uint32(len(b.view)) //nolint:gosec // G115: capacity is uint32
}

// Bytes returns a copy of the whole buffer. The copy is stable even if the
// host modifies shared memory afterwards.
func (b InputBuffer) Bytes() []byte {
	out := make([]byte, len(b.view))
	copy(out, b.view)
	return out
}

// ReadAt implements io.ReaderAt.
func (b InputBuffer) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, BadParameters("negative offset")
	}
	if off >= int64(len(b.view)) {
		return 0, io.EOF
	}
	n := copy(p, b.view[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Range returns a copy of n bytes at off, failing when the range leaves
// the declared capacity.
func (b InputBuffer) Range(off, n uint32) ([]byte, error) {
	end := uint64(off) + uint64(n)
	if end > uint64(len(b.view)) {
		return nil, BadParameters("range [%d, %d) exceeds capacity %d", off, end, len(b.view))
	}
	out := make([]byte, n)
	copy(out, b.view[off:end])
	return out, nil
}

// CString returns the bytes up to the first NUL, or the whole buffer when
// there is none. A string longer than maxLen fails.
func (b InputBuffer) CString(maxLen uint32) (string, error) {
	n := len(b.view)
	for i, c := range b.view {
		if c == 0 {
			n = i
			break
		}
	}
	if uint64(n) > uint64(maxLen) {
		return "", BadParameters("string of %d bytes exceeds %d", n, maxLen)
	}
	return string(b.view[:n]), nil
}

// Equal compares the buffer with secret in constant time.
func (b InputBuffer) Equal(secret []byte) bool {
	return subtle.ConstantTimeCompare(b.view, secret) == 1
}

// LogValue never exposes content.
func (b InputBuffer) LogValue() slog.Value {
	return slog.GroupValue(slog.Int("capacity", len(b.view)))
}

// OutputBuffer writes into a buffer slot. A write that does not fit in the
// remaining capacity fails with BadParameters and writes nothing.
type OutputBuffer struct {
	view []byte
	st   *slotState
}

// Cap returns the declared capacity.
func (b *OutputBuffer) Cap() uint32 {
	return uint32(len(b.view)) //nolint:gosec // G115: capacity is uint32
}

// Len returns the bytes produced so far.
func (b *OutputBuffer) Len() uint32 {
	return b.st.used
}

// Available returns the capacity left after Len.
func (b *OutputBuffer) Available() uint32 {
	return b.Cap() - b.st.used
}

// Write appends p. It implements io.Writer.
func (b *OutputBuffer) Write(p []byte) (int, error) {
	if uint64(len(p)) > uint64(b.Available()) {
		return 0, BadParameters("write of %d bytes exceeds remaining capacity %d", len(p), b.Available())
	}
	n := copy(b.view[b.st.used:], p)
	b.st.used += uint32(n) //nolint:gosec // G115: n <= capacity
	b.st.written = true
	return n, nil
}

// WriteString appends s.
func (b *OutputBuffer) WriteString(s string) (int, error) {
	return b.Write([]byte(s))
}

// WriteAt writes p at off. Len becomes the high-water mark of all writes.
func (b *OutputBuffer) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || uint64(off)+uint64(len(p)) > uint64(len(b.view)) {
		return 0, BadParameters("write of %d bytes at %d exceeds capacity %d", len(p), off, len(b.view))
	}
	n := copy(b.view[off:], p)
	if end := uint32(off) + uint32(n); end > b.st.used { //nolint:gosec // G115: bounded by capacity
		b.st.used = end
	}
	b.st.written = true
	return n, nil
}

// Printf appends formatted text.
func (b *OutputBuffer) Printf(format string, args ...any) error {
	_, err := b.Write(fmt.Appendf(nil, format, args...))
	return err
}

// Reset zeroes the buffer and marks it empty.
func (b *OutputBuffer) Reset() {
	clear(b.view)
	b.st.used = 0
	b.st.written = true
}

// LogValue never exposes content.
func (b *OutputBuffer) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("capacity", len(b.view)),
		slog.Uint64("used", uint64(b.st.used)),
	)
}
