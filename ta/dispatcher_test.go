package ta

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splitworld/tee-sdk/domain/entities"
	"github.com/splitworld/tee-sdk/domain/errors"
	"github.com/splitworld/tee-sdk/internal/arena"
	"github.com/splitworld/tee-sdk/internal/testutil"
)

var echoSig = entities.Sig(entities.KindValueInOut, entities.KindBufferIn, entities.KindBufferOut, entities.KindNone)

func echoHandler(ctx TaskContext, p *Params) error {
	v, err := p.Value(0)
	if err != nil {
		return err
	}
	in, err := p.Input(1)
	if err != nil {
		return err
	}
	out, err := p.Output(2)
	if err != nil {
		return err
	}
	if _, err := out.Write(in.Bytes()); err != nil {
		return err
	}
	return p.SetValue(0, entities.Value{A: v.A + 1, B: ctx.SessionID()})
}

func TestNewDispatcher_Empty(t *testing.T) {
	d, err := NewDispatcher()
	require.NoError(t, err)
	assert.Empty(t, d.Commands())
	assert.Empty(t, d.Describe())
}

func TestNewDispatcher_Errors(t *testing.T) {
	tests := []struct {
		name string
		want string
		opts []Option
	}{
		{
			name: "duplicate id",
			opts: []Option{WithCommand(1, "A", echoSig, echoHandler), WithCommand(1, "B", echoSig, echoHandler)},
			want: "duplicate command id",
		},
		{
			name: "duplicate name",
			opts: []Option{WithCommand(1, "A", echoSig, echoHandler), WithCommand(2, "A", echoSig, echoHandler)},
			want: "duplicate command name",
		},
		{
			name: "empty name",
			opts: []Option{WithCommand(1, "", echoSig, echoHandler)},
			want: "cannot be empty",
		},
		{
			name: "nil handler",
			opts: []Option{WithCommand(1, "A", echoSig, nil)},
			want: "cannot be nil",
		},
		{
			name: "invalid signature",
			opts: []Option{WithCommand(1, "A", entities.Signature{entities.ParamKind(9)}, echoHandler)},
			want: "invalid signature",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDispatcher(tt.opts...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDispatcher_Table(t *testing.T) {
	d, err := NewDispatcher(
		WithCommand(7, "SEVEN", echoSig, echoHandler),
		WithCommand(2, "TWO", entities.Signature{}, func(TaskContext, *Params) error { return nil }),
	)
	require.NoError(t, err)

	assert.True(t, d.Has(7))
	assert.False(t, d.Has(3))
	cmd, ok := d.Lookup(7)
	require.True(t, ok)
	assert.Equal(t, "SEVEN", cmd.Name)
	assert.Equal(t, echoSig, cmd.Signature)

	cmds := d.Commands()
	require.Len(t, cmds, 2)
	assert.Equal(t, entities.CommandID(2), cmds[0].ID)

	wire := d.Describe()
	require.Len(t, wire, 2)
	assert.Equal(t, []string{"value_inout", "buffer_in", "buffer_out", "none"}, wire[1].Signature)
}

func TestDispatcher_Invoke(t *testing.T) {
	d, err := NewDispatcher(WithCommand(1, "ECHO", echoSig, echoHandler))
	require.NoError(t, err)

	mem := make(arena.Bytes, 64)
	copy(mem[testSlotSize:], "0123456789abcdef")
	p := paramsFor(echoSig, mem)
	p.slots[0].slot.Value = entities.Value{A: 41}

	require.NoError(t, d.Invoke(context.Background(), 9, 1, p))
	assert.Equal(t, entities.Value{A: 42, B: 9}, p.Result(0).Value)
	assert.Equal(t, uint32(testSlotSize), p.Result(2).Used)
	assert.Equal(t, "0123456789abcdef", string(mem[2*testSlotSize:3*testSlotSize]))
}

func TestDispatcher_InvokeRejections(t *testing.T) {
	calls := 0
	d, err := NewDispatcher(WithCommand(1, "ECHO", echoSig, func(ctx TaskContext, p *Params) error {
		calls++
		return echoHandler(ctx, p)
	}))
	require.NoError(t, err)
	mem := make(arena.Bytes, 64)

	t.Run("unknown command", func(t *testing.T) {
		err := d.Invoke(context.Background(), 1, 99, paramsFor(echoSig, mem))
		testutil.RequireCode(t, err, entities.CodeBadParameters)
		testutil.RequireOrigin(t, err, entities.OriginTEE)
	})

	t.Run("signature mismatch", func(t *testing.T) {
		sig := entities.Sig(entities.KindValueInOut, entities.KindBufferInOut, entities.KindBufferOut, entities.KindNone)
		err := d.Invoke(context.Background(), 1, 1, paramsFor(sig, mem))
		testutil.RequireCode(t, err, entities.CodeBadParameters)
		testutil.RequireOrigin(t, err, entities.OriginTEE)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := d.Invoke(ctx, 1, 1, paramsFor(echoSig, mem))
		testutil.RequireCode(t, err, entities.CodeCancel)
	})

	t.Run("nil params", func(t *testing.T) {
		err := d.Invoke(context.Background(), 1, 1, nil)
		testutil.RequireCode(t, err, entities.CodeBadParameters)
	})

	assert.Zero(t, calls, "handler must not run on rejected calls")
}

func TestDispatcher_ExhaustiveSignatures(t *testing.T) {
	calls := 0
	d, err := NewDispatcher(WithCommand(1, "ECHO", echoSig, func(TaskContext, *Params) error {
		calls++
		return nil
	}))
	require.NoError(t, err)
	mem := make(arena.Bytes, entities.NumParams*testSlotSize)

	for _, sig := range allSignatures() {
		err := d.Invoke(context.Background(), 1, 1, paramsFor(sig, mem))
		if sig == echoSig {
			require.NoError(t, err)
			continue
		}
		require.ErrorIs(t, err, errors.ErrBadParameters, "signature %s", sig)
	}
	assert.Equal(t, 1, calls)
}

func TestDispatcher_HandlerErrors(t *testing.T) {
	sig := entities.Signature{}
	d, err := NewDispatcher(
		WithCommand(1, "PLAIN", sig, func(TaskContext, *Params) error { return fmt.Errorf("boom") }),
		WithCommand(2, "TYPED", sig, func(TaskContext, *Params) error { return OutOfMemory("no slots") }),
		WithCommand(3, "PANIC", sig, func(TaskContext, *Params) error { panic("kaboom") }),
		WithCommand(4, "ORIGIN", sig, func(TaskContext, *Params) error {
			return errors.New(entities.CodeBusy, entities.OriginTEE, "", nil)
		}),
	)
	require.NoError(t, err)

	tests := []struct {
		name   string
		code   entities.ResultCode
		origin entities.Origin
		id     entities.CommandID
	}{
		{name: "plain error is generic", id: 1, code: entities.CodeGeneric, origin: entities.OriginTrustedApp},
		{name: "typed error keeps code", id: 2, code: entities.CodeOutOfMemory, origin: entities.OriginTrustedApp},
		{name: "panic is recovered", id: 3, code: entities.CodeGeneric, origin: entities.OriginTrustedApp},
		{name: "handler origin kept", id: 4, code: entities.CodeBusy, origin: entities.OriginTEE},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := d.Invoke(context.Background(), 1, tt.id, NewParams(sig, [entities.NumParams]Slot{}))
			testutil.RequireCode(t, err, tt.code)
			testutil.RequireOrigin(t, err, tt.origin)
		})
	}
}

func TestDispatcher_StateHook(t *testing.T) {
	type step struct{ from, to State }
	var mu sync.Mutex
	var steps []step
	hook := func(_ TaskContext, from, to State) {
		mu.Lock()
		defer mu.Unlock()
		steps = append(steps, step{from, to})
	}

	d, err := NewDispatcher(
		WithStateHook(hook),
		WithCommand(1, "OK", entities.Signature{}, func(ctx TaskContext, _ *Params) error {
			assert.Equal(t, StateExecuting, ctx.State())
			assert.Equal(t, "OK", ctx.CommandName())
			return nil
		}),
		WithCommand(2, "FAIL", entities.Signature{}, func(TaskContext, *Params) error { return BadState("no") }),
	)
	require.NoError(t, err)
	empty := func() *Params { return NewParams(entities.Signature{}, [entities.NumParams]Slot{}) }

	require.NoError(t, d.Invoke(context.Background(), 1, 1, empty()))
	assert.Equal(t, []step{
		{StateReceived, StateShapeValidated},
		{StateShapeValidated, StateExecuting},
		{StateExecuting, StateCompleted},
	}, steps)

	steps = nil
	require.Error(t, d.Invoke(context.Background(), 1, 2, empty()))
	assert.Equal(t, StateFailed, steps[len(steps)-1].to)
	assert.True(t, steps[len(steps)-1].to.Terminal())

	steps = nil
	require.Error(t, d.Invoke(context.Background(), 1, 5, empty()))
	assert.Equal(t, []step{{StateReceived, StateFailed}}, steps)
}
