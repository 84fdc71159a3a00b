// Package hello is a demonstration trusted application that hands a
// secret to the host only in sealed form, ingests host buffers strictly
// within their declared capacities, and checks a sealed value placed in
// shared memory against the secret.
package hello

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/splitworld/tee-sdk/domain/entities"
	"github.com/splitworld/tee-sdk/domain/ports"
	"github.com/splitworld/tee-sdk/infrastructure/sealer"
	"github.com/splitworld/tee-sdk/ta"
)

// UUID identifies the application.
var UUID = uuid.MustParse("8aaaf200-2450-11e4-abe2-0002a5d5c51b")

// Name is the application's display name.
const Name = "hello"

// Commands.
const (
	CmdOutput       entities.CommandID = 0
	CmdInput        entities.CommandID = 1
	CmdSharedMemory entities.CommandID = 2
)

// Expected signatures.
var (
	OutputSignature = entities.Sig(entities.KindValueInOut, entities.KindBufferInOut,
		entities.KindBufferInOut, entities.KindBufferInOut)
	InputSignature = entities.Sig(entities.KindValueIn, entities.KindBufferIn,
		entities.KindBufferInOut, entities.KindBufferInOut)
	SharedMemorySignature = entities.Sig(entities.KindBufferInOut, entities.KindNone,
		entities.KindNone, entities.KindNone)
)

const (
	secret    = "123456"
	iv        = "abcd"
	version   = 100
	scratchSz = 1000

	// Limits of the INPUT command.
	minIndex       = 3
	maxIndex       = 20
	maxRefSize     = 10000
	maxIngestSize  = scratchSz
	maxCompareSize = scratchSz
)

// Messages written by SHARED_MEMORY.
const (
	Pass = "Pass!"
	Fail = "Fail!"
)

type config struct {
	logger *slog.Logger
	sealer ports.Sealer
	hooks  []ta.StateHook
	delay  time.Duration
}

// Option configures the application.
type Option func(*config)

// WithLogger sets the logger for the application and its dispatcher.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithSealer replaces the per-instance random key sealer.
func WithSealer(s ports.Sealer) Option {
	return func(c *config) {
		c.sealer = s
	}
}

// WithSharedMemoryDelay makes SHARED_MEMORY wait d between taking its
// snapshot and checking it, leaving the host time to modify the region.
func WithSharedMemoryDelay(d time.Duration) Option {
	return func(c *config) {
		c.delay = d
	}
}

// WithStateHook observes the state transitions of every invocation.
func WithStateHook(h ta.StateHook) Option {
	return func(c *config) {
		if h != nil {
			c.hooks = append(c.hooks, h)
		}
	}
}

// App is an instance of the application.
type App struct {
	dispatcher *ta.Dispatcher
	sealer     ports.Sealer
	logger     *slog.Logger
	delay      time.Duration
}

// Descriptor returns the descriptor installing the application on a host
// Context.
func Descriptor(opts ...Option) ta.Descriptor {
	return ta.Descriptor{
		UUID: UUID,
		Name: Name,
		New: func(context.Context) (ta.Instance, error) {
			return New(opts...)
		},
	}
}

// New creates an instance.
func New(opts ...Option) (*App, error) {
	cfg := config{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.sealer == nil {
		s, err := sealer.NewRandomChaCha()
		if err != nil {
			return nil, fmt.Errorf("hello: %w", err)
		}
		cfg.sealer = s
	}

	a := &App{sealer: cfg.sealer, logger: cfg.logger, delay: cfg.delay}
	dopts := []ta.Option{
		ta.WithLogger(cfg.logger),
		ta.WithMiddleware(ta.LoggingMiddleware(cfg.logger)),
		ta.WithCommand(CmdOutput, "OUTPUT", OutputSignature, a.output),
		ta.WithCommand(CmdInput, "INPUT", InputSignature, a.input),
		ta.WithCommand(CmdSharedMemory, "SHARED_MEMORY", SharedMemorySignature, a.sharedMemory),
	}
	for _, h := range cfg.hooks {
		dopts = append(dopts, ta.WithStateHook(h))
	}
	d, err := ta.NewDispatcher(dopts...)
	if err != nil {
		return nil, fmt.Errorf("hello: %w", err)
	}
	a.dispatcher = d
	return a, nil
}

func (a *App) Dispatcher() *ta.Dispatcher {
	return a.dispatcher
}

func (a *App) OpenSession(_ context.Context, session uint32) error {
	a.logger.Info("hello world", slog.Uint64("session", uint64(session)))
	return nil
}

func (a *App) CloseSession(_ context.Context, session uint32) {
	a.logger.Info("goodbye", slog.Uint64("session", uint64(session)))
}

// SealedSize is the size of the sealed secret OUTPUT writes to slot 1.
func (a *App) SealedSize() int {
	return len(secret) + a.sealer.Overhead()
}
