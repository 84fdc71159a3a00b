package host

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/splitworld/tee-sdk/domain/entities"
	"github.com/splitworld/tee-sdk/domain/errors"
	"github.com/splitworld/tee-sdk/infrastructure/wazero"
	"github.com/splitworld/tee-sdk/internal/arena"
	"github.com/splitworld/tee-sdk/ta"
)

// Session is a connection to one trusted application. It serves one
// invocation at a time; concurrent callers wait up to the configured
// InvokeTimeout and then fail with Busy.
type Session struct {
	owner      *Context
	inst       ta.Instance
	dispatcher *ta.Dispatcher
	mem        *wazero.Memory
	arena      *arena.Arena
	sem        *semaphore.Weighted
	logger     *slog.Logger
	desc       ta.Descriptor

	mu      sync.Mutex
	regions map[entities.RegionHandle]*SharedMemory
	id      uint32
	closed  bool
}

// ID returns the session id, unique within its Context.
func (s *Session) ID() uint32 {
	return s.id
}

// App returns the UUID of the trusted application.
func (s *Session) App() uuid.UUID {
	return s.desc.UUID
}

// Closed reports whether Close has run.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Regions returns the handles registered to the session in ascending order.
func (s *Session) Regions() []entities.RegionHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	hs := make([]entities.RegionHandle, 0, len(s.regions))
	for h := range s.regions {
		hs = append(hs, h)
	}
	slices.Sort(hs)
	return hs
}

// Register attaches shm to the session. A region is registered to at most
// one session; registering it again fails with BadState. A nil session or
// region fails with InvalidHandle.
func (s *Session) Register(shm *SharedMemory) error {
	if shm == nil {
		return errors.Newf(entities.CodeInvalidHandle, entities.OriginAPI, "register", "nil region")
	}
	op := "register " + shm.handle.String()
	if s == nil {
		return errors.Newf(entities.CodeInvalidHandle, entities.OriginAPI, op, "nil session")
	}
	if shm.owner != s.owner {
		return errors.Newf(entities.CodeInvalidHandle, entities.OriginAPI, op, "region belongs to another context")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New(entities.CodeInvalidHandle, entities.OriginAPI, op, errors.ErrSessionClosed)
	}

	shm.mu.Lock()
	defer shm.mu.Unlock()
	if err := shm.usable(op); err != nil {
		return err
	}
	if shm.state == entities.RegionRegistered {
		return errors.New(entities.CodeBadState, entities.OriginAPI, op, errors.ErrAlreadyRegistered)
	}
	shm.state = entities.RegionRegistered
	shm.session = s
	s.regions[shm.handle] = shm
	s.logger.Debug("shared memory registered", slog.String("handle", shm.handle.String()))
	return nil
}

func (s *Session) forget(h entities.RegionHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.regions, h)
}

// Close waits for an in-flight invocation, releases every region still
// registered to the session and invalidates it. Closing twice fails with
// InvalidHandle.
func (s *Session) Close(ctx context.Context) error {
	op := "close session"
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return errors.New(entities.CodeCancel, entities.OriginAPI, op, err)
	}
	defer s.sem.Release(1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New(entities.CodeInvalidHandle, entities.OriginAPI, op, errors.ErrSessionClosed)
	}
	s.closed = true
	regions := s.regions
	s.regions = nil
	s.mu.Unlock()

	for _, shm := range regions {
		shm.mu.Lock()
		if shm.session == s && shm.state == entities.RegionRegistered {
			shm.invalidate()
		}
		shm.mu.Unlock()
	}

	if closer, ok := s.inst.(ta.SessionCloser); ok {
		closer.CloseSession(ctx, s.id)
	}
	var err error
	if cerr := s.mem.Close(ctx); cerr != nil {
		err = errors.New(entities.CodeGeneric, entities.OriginComms, op, cerr)
	}
	s.owner.removeSession(s.id)
	s.logger.Info("session closed", slog.Int("released_regions", len(regions)))
	return err
}

// InvokeCommand runs command cmd of the trusted application with the
// parameters in op. On success the value and Used fields of op's writable
// slots are updated; on failure op is left as it was.
func (s *Session) InvokeCommand(ctx context.Context, cmd entities.CommandID, op *Operation) error {
	if op == nil {
		op = &Operation{}
	}
	name := cmd.String()
	if c, ok := s.dispatcher.Lookup(cmd); ok {
		name = c.Name
	}

	ctx, span := s.owner.startSpan(ctx, s, name, op)
	start := time.Now()
	err := s.invoke(ctx, cmd, name, op)
	elapsed := time.Since(start)
	s.owner.endSpan(span, err)

	if err != nil {
		s.logger.Warn("invocation failed",
			slog.String("command", name),
			slog.String("code", errors.CodeOf(err).Name()),
			slog.String("origin", errors.OriginOf(err).String()),
		)
	}
	if s.owner.observer != nil {
		s.owner.observer(s.record(cmd, name, op, err, elapsed))
	}
	return err
}

func (s *Session) invoke(ctx context.Context, cmd entities.CommandID, name string, op *Operation) error {
	opName := "invoke " + name

	waitCtx, cancel := context.WithTimeout(ctx, s.owner.config.InvokeTimeout)
	err := s.sem.Acquire(waitCtx, 1)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return errors.New(entities.CodeCancel, entities.OriginAPI, opName, ctx.Err())
		}
		return errors.Newf(entities.CodeBusy, entities.OriginAPI, opName,
			"session busy for %s", s.owner.config.InvokeTimeout)
	}
	defer s.sem.Release(1)

	if s.Closed() {
		return errors.New(entities.CodeInvalidHandle, entities.OriginAPI, opName, errors.ErrSessionClosed)
	}

	unlock := lockRegions(op)
	defer unlock()

	for i := range op.Params {
		if err := s.checkParam(opName, i, &op.Params[i]); err != nil {
			return err
		}
	}

	s.arena.Reset()
	defer s.arena.Reset()

	m, err := s.marshal(opName, op)
	if err != nil {
		return err
	}
	p := ta.NewParams(op.Signature(), m.slots)
	if err := s.dispatcher.Invoke(ctx, s.id, cmd, p); err != nil {
		return err
	}
	s.unmarshal(op, p, m)
	return nil
}

// lockRegions locks every distinct region referenced by op in handle
// order and returns the matching unlock.
func lockRegions(op *Operation) func() {
	var regions []*SharedMemory
	for _, p := range op.Params {
		if p.Region != nil && !slices.Contains(regions, p.Region) {
			regions = append(regions, p.Region)
		}
	}
	slices.SortFunc(regions, func(a, b *SharedMemory) int { return cmp.Compare(a.handle, b.handle) })
	for _, r := range regions {
		r.mu.Lock()
	}
	return func() {
		for i := len(regions) - 1; i >= 0; i-- {
			regions[i].mu.Unlock()
		}
	}
}

// checkParam validates slot i before anything crosses. Region locks are
// held by the caller.
func (s *Session) checkParam(opName string, i int, p *Param) error {
	bad := func(format string, args ...any) error {
		return errors.Newf(entities.CodeBadParameters, entities.OriginAPI, opName,
			"slot %d: "+format, append([]any{i}, args...)...)
	}
	if !p.Kind.Valid() {
		return bad("invalid kind %d", uint8(p.Kind))
	}
	if !p.Kind.IsBuffer() {
		if p.Temp != nil || p.Region != nil || p.Size != 0 {
			return bad("%s carries a buffer", p.Kind)
		}
		return nil
	}
	switch {
	case p.Temp != nil && p.Region != nil:
		return bad("both temporary buffer and region set")
	case p.Region != nil:
		return s.checkRegion(opName, i, p)
	case uint64(p.Size) > uint64(len(p.Temp)):
		return bad("declared size %d exceeds buffer length %d", p.Size, len(p.Temp))
	}
	return nil
}

func (s *Session) checkRegion(opName string, i int, p *Param) error {
	r := p.Region
	if r.state == entities.RegionReleased || r.destroyed {
		return errors.Newf(entities.CodeInvalidHandle, entities.OriginAPI, opName,
			"slot %d: %s: %w", i, r.handle, errors.ErrReleased)
	}
	if r.state != entities.RegionRegistered || r.session != s {
		return errors.Newf(entities.CodeInvalidHandle, entities.OriginAPI, opName,
			"slot %d: %s is not registered to this session", i, r.handle)
	}
	if uint64(p.Offset)+uint64(p.Size) > uint64(r.size) {
		return errors.Newf(entities.CodeBadParameters, entities.OriginAPI, opName,
			"slot %d: range [%d, +%d) exceeds %s size %d", i, p.Offset, p.Size, r.handle, r.size)
	}
	if !r.flags.Allows(p.Kind) {
		return errors.Newf(entities.CodeBadParameters, entities.OriginAPI, opName,
			"slot %d: %s not allowed on %s region", i, p.Kind, r.flags)
	}
	return nil
}

// marshaled records where each temporary buffer was placed in task memory.
type marshaled struct {
	slots [entities.NumParams]ta.Slot
	spans [entities.NumParams]arena.Span
}

func (s *Session) marshal(opName string, op *Operation) (*marshaled, error) {
	m := &marshaled{}
	for i, p := range op.Params {
		switch {
		case !p.Kind.IsBuffer():
			m.slots[i] = ta.Slot{Value: p.Value}
			if !p.Kind.Readable() {
				m.slots[i].Value = entities.Value{}
			}
		case p.Region != nil:
			m.slots[i] = ta.Slot{Memory: arena.Bytes(p.Region.buf), Offset: p.Offset, Size: p.Size}
		case p.Size == 0:
			m.slots[i] = ta.Slot{}
		default:
			span, err := s.arena.Alloc(p.Size)
			if err != nil {
				return nil, errors.New(entities.CodeOutOfMemory, entities.OriginComms, opName, err)
			}
			if p.Kind.Readable() && !s.mem.Write(span.Offset, p.Temp[:p.Size]) {
				return nil, errors.Newf(entities.CodeGeneric, entities.OriginComms, opName,
					"slot %d: copy into task memory failed", i)
			}
			m.spans[i] = span
			m.slots[i] = ta.Slot{Memory: s.mem, Offset: span.Offset, Size: p.Size}
		}
	}
	return m, nil
}

func (s *Session) unmarshal(op *Operation, p *ta.Params, m *marshaled) {
	for i := range op.Params {
		prm := &op.Params[i]
		if !prm.Kind.Writable() {
			continue
		}
		res := p.Result(i)
		if !prm.Kind.IsBuffer() {
			prm.Value = res.Value
			continue
		}
		prm.Used = res.Used
		if prm.Region != nil || res.Used == 0 {
			continue
		}
		if view, ok := s.mem.Read(m.spans[i].Offset, res.Used); ok {
			copy(prm.Temp, view)
		}
	}
}
