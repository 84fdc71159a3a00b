package wazero

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// memoryModule is a WebAssembly binary declaring one memory of one page,
// exported as "memory", and nothing else.
var memoryModule = []byte{
	0x00, 0x61, 0x73, 0x6d, // magic
	0x01, 0x00, 0x00, 0x00, // version
	0x05, 0x03, 0x01, 0x00, 0x01, // memory section: 1 memory, min 1 page, no max
	0x07, 0x0a, 0x01, 0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00, // export "memory"
}

// MaxPages is the largest page limit a 32-bit linear memory supports.
const MaxPages = 65536

// RuntimeConfig holds configuration for the task memory runtime.
type RuntimeConfig struct {
	// MemoryLimitPages caps every session memory, in 64 KiB pages.
	MemoryLimitPages uint32
}

// RuntimeOption configures the runtime.
type RuntimeOption func(*RuntimeConfig)

// WithMemoryLimitPages sets the per-memory page limit.
func WithMemoryLimitPages(pages uint32) RuntimeOption {
	return func(c *RuntimeConfig) {
		c.MemoryLimitPages = pages
	}
}

func defaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{MemoryLimitPages: 64}
}

// Runtime owns a wazero runtime and the compiled memory module.
// It is safe for concurrent use.
type Runtime struct {
	rt       wazero.Runtime
	compiled wazero.CompiledModule
	config   RuntimeConfig
}

// NewRuntime starts a wazero runtime and compiles the memory module.
func NewRuntime(ctx context.Context, opts ...RuntimeOption) (*Runtime, error) {
	cfg := defaultRuntimeConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.MemoryLimitPages == 0 || cfg.MemoryLimitPages > MaxPages {
		return nil, fmt.Errorf("memory limit must be within 1..%d pages, got %d", MaxPages, cfg.MemoryLimitPages)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().
		WithMemoryLimitPages(cfg.MemoryLimitPages))

	compiled, err := rt.CompileModule(ctx, memoryModule)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to compile memory module: %w", err)
	}

	return &Runtime{rt: rt, compiled: compiled, config: cfg}, nil
}

// Config returns the runtime configuration.
func (r *Runtime) Config() RuntimeConfig {
	return r.config
}

// NewMemory instantiates a fresh anonymous module and returns its memory.
func (r *Runtime) NewMemory(ctx context.Context) (*Memory, error) {
	mod, err := r.rt.InstantiateModule(ctx, r.compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate memory module: %w", err)
	}
	mem := mod.Memory()
	if mem == nil {
		_ = mod.Close(ctx)
		return nil, fmt.Errorf("memory module has no memory")
	}
	return &Memory{Memory: mem, mod: mod}, nil
}

// Close releases the runtime and every memory created from it.
func (r *Runtime) Close(ctx context.Context) error {
	return r.rt.Close(ctx)
}

// Memory is the linear memory of one module instance. It satisfies
// ports.GrowableMemory through the embedded api.Memory.
type Memory struct {
	api.Memory
	mod api.Module
}

// Close releases the module instance. The memory must not be used after.
func (m *Memory) Close(ctx context.Context) error {
	return m.mod.Close(ctx)
}
