package host

import (
	"cmp"
	"context"
	stdErrors "errors"
	"log/slog"
	"math"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/splitworld/tee-sdk/config"
	"github.com/splitworld/tee-sdk/domain/entities"
	"github.com/splitworld/tee-sdk/domain/errors"
	"github.com/splitworld/tee-sdk/infrastructure/wazero"
	"github.com/splitworld/tee-sdk/internal/arena"
	"github.com/splitworld/tee-sdk/ta"
	"github.com/splitworld/tee-sdk/wireformat"
)

const tracerName = "github.com/splitworld/tee-sdk/host"

// appEntry is an installed trusted application and, once a session has
// been opened against it, its single instance.
type appEntry struct {
	inst ta.Instance
	desc ta.Descriptor
}

// Context is the host's connection to the trusted side. It owns the
// installed trusted applications, every open Session and every shared
// region. It is safe for concurrent use.
type Context struct {
	logger   *slog.Logger
	tracer   trace.Tracer
	observer func(wireformat.InvocationWire)
	runtime  *wazero.Runtime
	apps     map[uuid.UUID]*appEntry
	sessions map[uint32]*Session
	regions  map[entities.RegionHandle]*SharedMemory
	config   entities.Config

	mu          sync.Mutex
	sharedTotal uint64
	nextSession uint32
	nextRegion  uint32
	finalized   bool
}

// InitializeContext validates the configuration and starts the task memory
// runtime. Any failure is ContextInitFailed.
func InitializeContext(ctx context.Context, opts ...Option) (*Context, error) {
	const op = "initialize context"
	b := &contextBuilder{
		config: entities.DefaultConfig(),
		logger: slog.New(slog.DiscardHandler),
		tracer: otel.GetTracerProvider(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if len(b.errors) > 0 {
		return nil, errors.New(entities.CodeContextInitFailed, entities.OriginAPI, op, b.errors[0])
	}
	if err := config.Validate(b.config); err != nil {
		return nil, errors.New(entities.CodeContextInitFailed, entities.OriginAPI, op, err)
	}

	rt, err := wazero.NewRuntime(ctx, wazero.WithMemoryLimitPages(b.config.ArenaPages))
	if err != nil {
		return nil, errors.New(entities.CodeContextInitFailed, entities.OriginComms, op, err)
	}

	apps := make(map[uuid.UUID]*appEntry, len(b.apps))
	for _, d := range b.apps {
		apps[d.UUID] = &appEntry{desc: d}
	}

	c := &Context{
		logger:   b.logger,
		tracer:   b.tracer.Tracer(tracerName),
		observer: b.observer,
		runtime:  rt,
		apps:     apps,
		sessions: make(map[uint32]*Session),
		regions:  make(map[entities.RegionHandle]*SharedMemory),
		config:   b.config,
	}
	c.logger.Debug("context initialized",
		slog.Int("apps", len(apps)),
		slog.Uint64("arena_pages", uint64(b.config.ArenaPages)),
	)
	return c, nil
}

// Config returns the validated configuration.
func (c *Context) Config() entities.Config {
	return c.config
}

// TrustedApps returns the installed application descriptors sorted by name.
func (c *Context) TrustedApps() []ta.Descriptor {
	out := make([]ta.Descriptor, 0, len(c.apps))
	for _, e := range c.apps {
		out = append(out, e.desc)
	}
	slices.SortFunc(out, func(a, b ta.Descriptor) int { return cmp.Compare(a.Name, b.Name) })
	return out
}

// OpenSession connects to the trusted application id. The application is
// instantiated on its first session.
func (c *Context) OpenSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	const op = "open session"

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.finalized {
		return nil, errors.Newf(entities.CodeContextInitFailed, entities.OriginAPI, op, "context finalized")
	}
	app, ok := c.apps[id]
	if !ok {
		return nil, errors.Newf(entities.CodeSessionOpenFailed, entities.OriginTEE, op, "no trusted app %s", id)
	}
	if len(c.sessions) >= c.config.MaxSessions {
		return nil, errors.Newf(entities.CodeSessionOpenFailed, entities.OriginTEE, op,
			"session limit %d reached", c.config.MaxSessions)
	}
	if c.nextSession == math.MaxUint32 {
		return nil, errors.Newf(entities.CodeSessionOpenFailed, entities.OriginTEE, op, "session ids exhausted")
	}
	if app.inst == nil {
		inst, err := app.desc.New(ctx)
		if err != nil {
			return nil, errors.New(entities.CodeSessionOpenFailed, entities.OriginTrustedApp, op, err)
		}
		if inst == nil || inst.Dispatcher() == nil {
			return nil, errors.Newf(entities.CodeSessionOpenFailed, entities.OriginTrustedApp, op,
				"trusted app %q has no dispatcher", app.desc.Name)
		}
		app.inst = inst
	}

	mem, err := c.runtime.NewMemory(ctx)
	if err != nil {
		return nil, errors.New(entities.CodeSessionOpenFailed, entities.OriginComms, op, err)
	}

	c.nextSession++
	s := &Session{
		owner:      c,
		inst:       app.inst,
		dispatcher: app.inst.Dispatcher(),
		desc:       app.desc,
		mem:        mem,
		arena:      arena.New(mem, uint64(c.config.ArenaPages)*arena.PageSize),
		sem:        semaphore.NewWeighted(1),
		regions:    make(map[entities.RegionHandle]*SharedMemory),
		id:         c.nextSession,
	}
	s.logger = c.logger.With(slog.Uint64("session", uint64(s.id)), slog.String("app", app.desc.Name))

	if opener, ok := app.inst.(ta.SessionOpener); ok {
		if err := opener.OpenSession(ctx, s.id); err != nil {
			_ = mem.Close(ctx)
			return nil, errors.New(entities.CodeSessionOpenFailed, entities.OriginTrustedApp, op, err)
		}
	}

	c.sessions[s.id] = s
	s.logger.Info("session opened")
	return s, nil
}

func (c *Context) removeSession(id uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, id)
}

// Sessions returns the ids of open sessions in ascending order.
func (c *Context) Sessions() []uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]uint32, 0, len(c.sessions))
	for id := range c.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// AllocateSharedMemory creates an Unregistered region of size bytes.
func (c *Context) AllocateSharedMemory(size uint32, flags entities.MemFlags) (*SharedMemory, error) {
	const op = "allocate shared memory"
	if size == 0 {
		return nil, errors.Newf(entities.CodeBadParameters, entities.OriginAPI, op, "size must be positive")
	}
	if flags&entities.MemInOut == 0 || flags&^entities.MemInOut != 0 {
		return nil, errors.Newf(entities.CodeBadParameters, entities.OriginAPI, op, "invalid flags %d", uint8(flags))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.finalized:
		return nil, errors.Newf(entities.CodeBadState, entities.OriginAPI, op, "context finalized")
	case size > c.config.MaxRegionSize:
		return nil, errors.Newf(entities.CodeOutOfMemory, entities.OriginAPI, op,
			"size %d exceeds limit %d", size, c.config.MaxRegionSize)
	case len(c.regions) >= c.config.MaxRegions:
		return nil, errors.Newf(entities.CodeOutOfMemory, entities.OriginAPI, op,
			"region limit %d reached", c.config.MaxRegions)
	case c.sharedTotal+uint64(size) > c.config.MaxSharedTotal:
		return nil, errors.Newf(entities.CodeOutOfMemory, entities.OriginAPI, op,
			"shared memory total would exceed %d", c.config.MaxSharedTotal)
	case c.nextRegion == math.MaxUint32:
		return nil, errors.Newf(entities.CodeOutOfMemory, entities.OriginAPI, op, "region handles exhausted")
	}

	c.nextRegion++
	shm := &SharedMemory{
		owner:  c,
		buf:    make([]byte, size),
		handle: entities.RegionHandle(c.nextRegion),
		size:   size,
		flags:  flags,
		state:  entities.RegionUnregistered,
	}
	c.regions[shm.handle] = shm
	c.sharedTotal += uint64(size)
	c.logger.Debug("shared memory allocated",
		slog.String("handle", shm.handle.String()),
		slog.Uint64("size", uint64(size)),
		slog.String("flags", flags.String()),
	)
	return shm, nil
}

// Region returns the live region named by h. Unknown, destroyed and
// released handles fail with InvalidHandle.
func (c *Context) Region(h entities.RegionHandle) (*SharedMemory, error) {
	op := "lookup " + h.String()
	shm := c.lookupRegion(h)
	if shm == nil {
		return nil, errors.Newf(entities.CodeInvalidHandle, entities.OriginAPI, op, "unknown handle")
	}
	if shm.State() == entities.RegionReleased {
		return nil, errors.New(entities.CodeInvalidHandle, entities.OriginAPI, op, errors.ErrReleased)
	}
	return shm, nil
}

func (c *Context) lookupRegion(h entities.RegionHandle) *SharedMemory {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.regions[h]
}

// Register attaches region h to session s.
func (c *Context) Register(h entities.RegionHandle, s *Session) error {
	shm := c.lookupRegion(h)
	if shm == nil {
		return errors.Newf(entities.CodeInvalidHandle, entities.OriginAPI, "register "+h.String(), "unknown handle")
	}
	return s.Register(shm)
}

// Release invalidates region h. Every later use of h fails.
func (c *Context) Release(h entities.RegionHandle) error {
	shm := c.lookupRegion(h)
	if shm == nil {
		return errors.Newf(entities.CodeInvalidHandle, entities.OriginAPI, "release "+h.String(), "unknown handle")
	}
	return shm.Release()
}

// Destroy reclaims the storage of region h. A Registered region must be
// released first.
func (c *Context) Destroy(h entities.RegionHandle) error {
	op := "destroy " + h.String()
	shm := c.lookupRegion(h)
	if shm == nil {
		return errors.Newf(entities.CodeInvalidHandle, entities.OriginAPI, op, "unknown handle")
	}
	if err := shm.reclaim(op); err != nil {
		return err
	}

	c.mu.Lock()
	if c.regions[h] == shm {
		delete(c.regions, h)
		c.sharedTotal -= uint64(shm.size)
	}
	c.mu.Unlock()

	c.logger.Debug("shared memory destroyed", slog.String("handle", h.String()))
	return nil
}

// Finalize closes every session, reclaims every region and destroys the
// trusted application instances. A second call fails with InvalidHandle.
func (c *Context) Finalize(ctx context.Context) error {
	const op = "finalize context"

	c.mu.Lock()
	if c.finalized {
		c.mu.Unlock()
		return errors.Newf(entities.CodeInvalidHandle, entities.OriginAPI, op, "already finalized")
	}
	c.finalized = true
	sessions := make([]*Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		sessions = append(sessions, s)
	}
	c.mu.Unlock()

	slices.SortFunc(sessions, func(a, b *Session) int { return cmp.Compare(a.id, b.id) })
	var errs []error
	for _, s := range sessions {
		if err := s.Close(ctx); err != nil && !stdErrors.Is(err, errors.ErrInvalidHandle) {
			errs = append(errs, err)
		}
	}

	c.mu.Lock()
	regions := c.regions
	c.regions = make(map[entities.RegionHandle]*SharedMemory)
	c.sharedTotal = 0
	c.mu.Unlock()
	for _, shm := range regions {
		shm.discard()
	}

	for _, app := range c.apps {
		if d, ok := app.inst.(ta.Destroyer); ok {
			d.Destroy(ctx)
		}
		app.inst = nil
	}

	if err := c.runtime.Close(ctx); err != nil {
		errs = append(errs, errors.New(entities.CodeGeneric, entities.OriginComms, op, err))
	}
	c.logger.Debug("context finalized", slog.Int("sessions", len(sessions)), slog.Int("regions", len(regions)))
	return stdErrors.Join(errs...)
}
