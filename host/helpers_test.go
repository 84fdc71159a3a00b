package host

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/splitworld/tee-sdk/domain/entities"
	"github.com/splitworld/tee-sdk/ta"
)

var probeUUID = uuid.MustParse("5b9e0e40-2636-11e1-ad9e-0002a5d5c51b")

// Probe commands.
const (
	cmdEcho      entities.CommandID = 0
	cmdBlock     entities.CommandID = 1
	cmdPanic     entities.CommandID = 2
	cmdUntouched entities.CommandID = 3
	cmdHold      entities.CommandID = 4
)

// probe is a trusted app whose commands exercise the boundary: echo copies
// slot 0 into slot 1, block and hold park until released.
type probe struct {
	dispatcher *ta.Dispatcher
	entered    chan struct{}
	release    chan struct{}
	refuse     atomic.Bool
	opened     atomic.Int32
	closed     atomic.Int32
	destroyed  atomic.Int32
}

func newProbe() *probe {
	p := &probe{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	d, err := ta.NewDispatcher(
		ta.WithCommand(cmdEcho, "ECHO",
			entities.Sig(entities.KindBufferIn, entities.KindBufferOut, entities.KindNone, entities.KindNone), p.echo),
		ta.WithCommand(cmdBlock, "BLOCK",
			entities.Sig(entities.KindNone, entities.KindNone, entities.KindNone, entities.KindNone), p.block),
		ta.WithCommand(cmdPanic, "PANIC",
			entities.Sig(entities.KindNone, entities.KindNone, entities.KindNone, entities.KindNone), p.panics),
		ta.WithCommand(cmdUntouched, "UNTOUCHED",
			entities.Sig(entities.KindBufferInOut, entities.KindBufferOut, entities.KindValueInOut, entities.KindNone), p.untouched),
		ta.WithCommand(cmdHold, "HOLD",
			entities.Sig(entities.KindBufferInOut, entities.KindNone, entities.KindNone, entities.KindNone), p.hold),
	)
	if err != nil {
		panic(err)
	}
	p.dispatcher = d
	return p
}

func (p *probe) Dispatcher() *ta.Dispatcher { return p.dispatcher }

func (p *probe) OpenSession(context.Context, uint32) error {
	if p.refuse.Load() {
		return fmt.Errorf("refused")
	}
	p.opened.Add(1)
	return nil
}

func (p *probe) CloseSession(context.Context, uint32) { p.closed.Add(1) }

func (p *probe) Destroy(context.Context) { p.destroyed.Add(1) }

func (p *probe) echo(_ ta.TaskContext, params *ta.Params) error {
	in, err := params.Input(0)
	if err != nil {
		return err
	}
	out, err := params.Output(1)
	if err != nil {
		return err
	}
	_, err = out.Write(in.Bytes())
	return err
}

func (p *probe) block(ctx ta.TaskContext, _ *ta.Params) error {
	p.entered <- struct{}{}
	select {
	case <-p.release:
		return nil
	case <-ctx.Done():
		return ta.BadState("cancelled")
	}
}

func (p *probe) panics(ta.TaskContext, *ta.Params) error {
	panic("probe panic")
}

func (p *probe) untouched(_ ta.TaskContext, params *ta.Params) error {
	v, err := params.Value(2)
	if err != nil {
		return err
	}
	v.A++
	return params.SetValue(2, v)
}

func (p *probe) hold(ctx ta.TaskContext, params *ta.Params) error {
	p.entered <- struct{}{}
	select {
	case <-p.release:
	case <-ctx.Done():
		return ta.BadState("cancelled")
	}
	out, err := params.Output(0)
	if err != nil {
		return err
	}
	return out.Printf("done")
}

func probeDescriptor(p *probe, created *atomic.Int32) ta.Descriptor {
	return ta.Descriptor{
		UUID: probeUUID,
		Name: "probe",
		New: func(context.Context) (ta.Instance, error) {
			if created != nil {
				created.Add(1)
			}
			return p, nil
		},
	}
}

// newTestContext initializes a Context with the probe installed and
// finalizes it at cleanup.
func newTestContext(t *testing.T, p *probe, opts ...Option) *Context {
	t.Helper()
	all := append([]Option{
		WithTrustedApp(probeDescriptor(p, nil)),
		WithLogger(slog.New(slog.DiscardHandler)),
	}, opts...)
	c, err := InitializeContext(context.Background(), all...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Finalize(context.Background()) })
	return c
}

func openProbe(t *testing.T, c *Context) *Session {
	t.Helper()
	s, err := c.OpenSession(context.Background(), probeUUID)
	require.NoError(t, err)
	return s
}

// registered allocates a region of size bytes and registers it to s.
func registered(t *testing.T, c *Context, s *Session, size uint32, flags entities.MemFlags) *SharedMemory {
	t.Helper()
	shm, err := c.AllocateSharedMemory(size, flags)
	require.NoError(t, err)
	require.NoError(t, s.Register(shm))
	return shm
}
