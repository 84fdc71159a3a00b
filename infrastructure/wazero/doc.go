// Package wazero provides task memory backed by the wazero runtime.
//
// A Runtime compiles a module that declares nothing but one linear memory.
// Each session instantiates its own anonymous copy of that module, so every
// session owns an isolated, bounds-checked memory whose growth is capped by
// the runtime's page limit.
//
// # Basic Usage
//
//	rt, err := wazero.NewRuntime(ctx, wazero.WithMemoryLimitPages(64))
//	if err != nil {
//	    return err
//	}
//	defer rt.Close(ctx)
//
//	mem, err := rt.NewMemory(ctx)
//	if err != nil {
//	    return err
//	}
//	defer mem.Close(ctx)
//
//	a := arena.New(mem, uint64(64)*arena.PageSize)
package wazero
