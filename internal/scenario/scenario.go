// Package scenario holds the host-side walkthroughs run by teectl. Each
// one opens sessions on a host Context, drives a trusted application and
// reports what crossed the boundary.
package scenario

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/splitworld/tee-sdk/application/hello"
	"github.com/splitworld/tee-sdk/application/sdp"
	"github.com/splitworld/tee-sdk/host"
	"github.com/splitworld/tee-sdk/ta"
)

// Func runs one scenario against c, writing a report to w.
type Func func(ctx context.Context, c *host.Context, w io.Writer) error

// Scenario is a named walkthrough.
type Scenario struct {
	Run  Func
	Name string
}

// All lists the scenarios in the order "all" runs them.
func All() []Scenario {
	return []Scenario{
		{Name: "hello", Run: Hello},
		{Name: "sdp", Run: SDP},
		{Name: "shm", Run: SharedMemory},
	}
}

// Lookup returns the scenario called name.
func Lookup(name string) (Scenario, bool) {
	for _, s := range All() {
		if s.Name == name {
			return s, true
		}
	}
	return Scenario{}, false
}

// SharedMemoryDelay is how long SHARED_MEMORY holds the region in the shm
// scenario.
const SharedMemoryDelay = 200 * time.Millisecond

// Apps returns the trusted applications the scenarios expect on the
// Context.
func Apps(logger *slog.Logger) []ta.Descriptor {
	return []ta.Descriptor{
		hello.Descriptor(
			hello.WithLogger(logger),
			hello.WithSharedMemoryDelay(SharedMemoryDelay),
			hello.WithStateHook(signalExecuting),
		),
		sdp.Descriptor(sdp.WithLogger(logger)),
	}
}

// HostOptions installs Apps on a Context.
func HostOptions(logger *slog.Logger) []host.Option {
	var opts []host.Option
	for _, d := range Apps(logger) {
		opts = append(opts, host.WithTrustedApp(d))
	}
	return opts
}

type executingKey struct{}

// notifyExecuting returns a context whose invocation calls fn once its
// handler starts running. The host holds the invocation's region locks by
// then.
func notifyExecuting(ctx context.Context, fn func()) context.Context {
	return context.WithValue(ctx, executingKey{}, sync.OnceFunc(fn))
}

func signalExecuting(tc ta.TaskContext, _, to ta.State) {
	if to != ta.StateExecuting {
		return
	}
	if fn, ok := tc.Value(executingKey{}).(func()); ok {
		fn()
	}
}

func closeSession(ctx context.Context, s *host.Session, err *error) {
	if cerr := s.Close(ctx); cerr != nil && *err == nil {
		*err = cerr
	}
}

func report(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format+"\n", args...)
}
