package host

import (
	"io"
	"log/slog"
	"sync"

	"github.com/splitworld/tee-sdk/domain/entities"
	"github.com/splitworld/tee-sdk/domain/errors"
)

// SharedMemory is a region of host memory the task can reference by
// handle. It is created Unregistered, becomes usable in invocations once
// registered to a Session, and is permanently invalid once Released.
//
// The region's lock is held by an invocation that references it, so host
// access blocks while the task works on it.
type SharedMemory struct {
	owner   *Context
	session *Session
	buf     []byte

	mu        sync.RWMutex
	handle    entities.RegionHandle
	size      uint32
	flags     entities.MemFlags
	state     entities.RegionState
	destroyed bool
}

// Handle returns the region's handle.
func (m *SharedMemory) Handle() entities.RegionHandle {
	return m.handle
}

// Size returns the region's size in bytes.
func (m *SharedMemory) Size() uint32 {
	return m.size
}

// Flags returns the directions the region may be referenced in.
func (m *SharedMemory) Flags() entities.MemFlags {
	return m.flags
}

// State returns the lifecycle state.
func (m *SharedMemory) State() entities.RegionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Session returns the session the region is registered to, or nil.
func (m *SharedMemory) Session() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// usable reports an error for a released or destroyed region.
// The caller holds m.mu.
func (m *SharedMemory) usable(op string) error {
	if m.state == entities.RegionReleased || m.destroyed {
		return errors.New(entities.CodeInvalidHandle, entities.OriginAPI, op, errors.ErrReleased)
	}
	return nil
}

func (m *SharedMemory) bounds(op string, off int64, n int) error {
	if off < 0 || uint64(off)+uint64(n) > uint64(m.size) {
		return errors.Newf(entities.CodeBadParameters, entities.OriginAPI, op,
			"range [%d, +%d) exceeds size %d", off, n, m.size)
	}
	return nil
}

// ReadAt implements io.ReaderAt over the region.
func (m *SharedMemory) ReadAt(p []byte, off int64) (int, error) {
	op := "read " + m.handle.String()
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.usable(op); err != nil {
		return 0, err
	}
	if off == int64(m.size) && len(p) > 0 {
		return 0, io.EOF
	}
	if err := m.bounds(op, off, 0); err != nil {
		return 0, err
	}
	n := copy(p, m.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements io.WriterAt. A write past the end writes nothing.
func (m *SharedMemory) WriteAt(p []byte, off int64) (int, error) {
	op := "write " + m.handle.String()
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.usable(op); err != nil {
		return 0, err
	}
	if err := m.bounds(op, off, len(p)); err != nil {
		return 0, err
	}
	return copy(m.buf[off:], p), nil
}

// Bytes returns a copy of the region's content.
func (m *SharedMemory) Bytes() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.usable("read " + m.handle.String()); err != nil {
		return nil, err
	}
	out := make([]byte, len(m.buf))
	copy(out, m.buf)
	return out, nil
}

// Release invalidates the handle and scrubs the content. The region is
// detached from its session. Releasing twice fails with InvalidHandle.
func (m *SharedMemory) Release() error {
	op := "release " + m.handle.String()
	m.mu.Lock()
	if err := m.usable(op); err != nil {
		m.mu.Unlock()
		return err
	}
	s := m.session
	m.invalidate()
	m.mu.Unlock()

	if s != nil {
		s.forget(m.handle)
	}
	m.owner.logger.Debug("shared memory released", slog.String("handle", m.handle.String()))
	return nil
}

// Destroy reclaims the storage; see Context.Destroy.
func (m *SharedMemory) Destroy() error {
	return m.owner.Destroy(m.handle)
}

// invalidate moves the region to Released. The caller holds m.mu.
func (m *SharedMemory) invalidate() {
	clear(m.buf)
	m.state = entities.RegionReleased
	m.session = nil
}

// reclaim drops the storage of an Unregistered or Released region.
func (m *SharedMemory) reclaim(op string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.destroyed {
		return errors.Newf(entities.CodeInvalidHandle, entities.OriginAPI, op, "already destroyed")
	}
	if m.state == entities.RegionRegistered {
		return errors.New(entities.CodeBadState, entities.OriginAPI, op, errors.ErrRegionRegistered)
	}
	m.invalidate()
	m.buf = nil
	m.destroyed = true
	return nil
}

// discard reclaims the region whatever its state. Used at finalization,
// after every session is closed.
func (m *SharedMemory) discard() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidate()
	m.buf = nil
	m.destroyed = true
}
