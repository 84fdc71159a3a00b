package host

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splitworld/tee-sdk/domain/entities"
	"github.com/splitworld/tee-sdk/domain/errors"
	"github.com/splitworld/tee-sdk/internal/testutil"
	"github.com/splitworld/tee-sdk/wireformat"
)

func TestInvokeCommand_Temp(t *testing.T) {
	c := newTestContext(t, newProbe())
	s := openProbe(t, c)

	out := make([]byte, 16)
	op := NewOperation(TempIn([]byte("boundary")), TempOut(out))
	require.NoError(t, s.InvokeCommand(context.Background(), cmdEcho, op))
	assert.Equal(t, uint32(8), op.Params[1].Used)
	assert.Equal(t, "boundary", string(op.Params[1].Output()))
	assert.Equal(t, make([]byte, 8), out[8:], "only used bytes copied back")

	t.Run("declared size beyond buffer", func(t *testing.T) {
		op := NewOperation(Param{Kind: entities.KindBufferIn, Temp: []byte("abc"), Size: 4}, TempOut(make([]byte, 8)))
		err := s.InvokeCommand(context.Background(), cmdEcho, op)
		testutil.RequireCode(t, err, entities.CodeBadParameters)
		testutil.RequireOrigin(t, err, entities.OriginAPI)
	})

	t.Run("declared size shorter than buffer", func(t *testing.T) {
		op := NewOperation(Param{Kind: entities.KindBufferIn, Temp: []byte("abcdef"), Size: 3}, TempOut(make([]byte, 8)))
		require.NoError(t, s.InvokeCommand(context.Background(), cmdEcho, op))
		assert.Equal(t, "abc", string(op.Params[1].Output()))
	})

	t.Run("output too small leaves operation unchanged", func(t *testing.T) {
		small := make([]byte, 4)
		op := NewOperation(TempIn([]byte("boundary")), TempOut(small))
		err := s.InvokeCommand(context.Background(), cmdEcho, op)
		testutil.RequireCode(t, err, entities.CodeBadParameters)
		testutil.RequireOrigin(t, err, entities.OriginTrustedApp)
		assert.Zero(t, op.Params[1].Used)
		assert.Equal(t, make([]byte, 4), small)
	})

	t.Run("value in buffer slot", func(t *testing.T) {
		op := NewOperation(ValueIn(1, 2), TempOut(make([]byte, 8)))
		err := s.InvokeCommand(context.Background(), cmdEcho, op)
		testutil.RequireCode(t, err, entities.CodeBadParameters)
		testutil.RequireOrigin(t, err, entities.OriginTEE)
	})

	t.Run("buffer on a value slot", func(t *testing.T) {
		op := NewOperation(TempIn([]byte("a")), TempOut(make([]byte, 8)), Param{Kind: entities.KindValueIn, Temp: []byte("x")})
		err := s.InvokeCommand(context.Background(), cmdEcho, op)
		testutil.RequireCode(t, err, entities.CodeBadParameters)
		testutil.RequireOrigin(t, err, entities.OriginAPI)
	})

	t.Run("invalid kind", func(t *testing.T) {
		op := NewOperation(Param{Kind: entities.ParamKind(42)})
		err := s.InvokeCommand(context.Background(), cmdEcho, op)
		testutil.RequireCode(t, err, entities.CodeBadParameters)
		testutil.RequireOrigin(t, err, entities.OriginAPI)
	})
}

func TestInvokeCommand_Region(t *testing.T) {
	c := newTestContext(t, newProbe())
	s := openProbe(t, c)
	in := registered(t, c, s, 32, entities.MemInput)
	out := registered(t, c, s, 32, entities.MemOutput)
	_, err := in.WriteAt([]byte("zero copy"), 4)
	require.NoError(t, err)

	op := NewOperation(RegionIn(in, 4, 9), RegionOut(out, 16, 16))
	require.NoError(t, s.InvokeCommand(context.Background(), cmdEcho, op))
	assert.Equal(t, uint32(9), op.Params[1].Used)
	content, err := out.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "zero copy", string(content[16:25]))
	assert.Equal(t, make([]byte, 16), content[:16])

	tests := []struct {
		name   string
		op     *Operation
		code   entities.ResultCode
		origin entities.Origin
	}{
		{
			name: "past the end",
			op:   NewOperation(RegionIn(in, 30, 3), RegionOut(out, 0, 8)),
			code: entities.CodeBadParameters, origin: entities.OriginAPI,
		},
		{
			name: "offset overflow",
			op:   NewOperation(RegionIn(in, math.MaxUint32, 2), RegionOut(out, 0, 8)),
			code: entities.CodeBadParameters, origin: entities.OriginAPI,
		},
		{
			name: "output into input-only region",
			op:   NewOperation(RegionIn(in, 0, 4), RegionOut(in, 8, 8)),
			code: entities.CodeBadParameters, origin: entities.OriginAPI,
		},
		{
			name: "input from output-only region",
			op:   NewOperation(RegionIn(out, 0, 4), RegionOut(out, 8, 8)),
			code: entities.CodeBadParameters, origin: entities.OriginAPI,
		},
		{
			name: "zero capacity output",
			op:   NewOperation(RegionIn(in, 0, 4), RegionOut(out, 8, 0)),
			code: entities.CodeBadParameters, origin: entities.OriginTEE,
		},
		{
			name: "temp and region together",
			op:   NewOperation(Param{Kind: entities.KindBufferIn, Region: in, Temp: []byte("x"), Size: 1}, RegionOut(out, 0, 8)),
			code: entities.CodeBadParameters, origin: entities.OriginAPI,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.InvokeCommand(context.Background(), cmdEcho, tt.op)
			testutil.RequireCode(t, err, tt.code)
			testutil.RequireOrigin(t, err, tt.origin)
		})
	}

	t.Run("region of another session", func(t *testing.T) {
		other := openProbe(t, c)
		foreign := registered(t, c, other, 8, entities.MemInOut)
		err := s.InvokeCommand(context.Background(), cmdEcho, NewOperation(RegionIn(foreign, 0, 4), RegionOut(out, 0, 8)))
		testutil.RequireCode(t, err, entities.CodeInvalidHandle)
		testutil.RequireOrigin(t, err, entities.OriginAPI)
	})

	t.Run("unregistered region", func(t *testing.T) {
		loose, err := c.AllocateSharedMemory(8, entities.MemInOut)
		require.NoError(t, err)
		err = s.InvokeCommand(context.Background(), cmdEcho, NewOperation(RegionIn(loose, 0, 4), RegionOut(out, 0, 8)))
		testutil.RequireCode(t, err, entities.CodeInvalidHandle)
	})

	t.Run("same region in and out", func(t *testing.T) {
		both := registered(t, c, s, 16, entities.MemInOut)
		_, err := both.WriteAt([]byte("abcd"), 0)
		require.NoError(t, err)
		op := NewOperation(RegionIn(both, 0, 4), RegionOut(both, 8, 8))
		require.NoError(t, s.InvokeCommand(context.Background(), cmdEcho, op))
		content, err := both.Bytes()
		require.NoError(t, err)
		assert.Equal(t, "abcd", string(content[8:12]))
	})
}

func TestInvokeCommand_Used(t *testing.T) {
	c := newTestContext(t, newProbe())
	s := openProbe(t, c)

	inout := []byte("keep me")
	op := NewOperation(TempInOut(inout), TempOut(make([]byte, 8)), ValueInOut(41, 7))
	require.NoError(t, s.InvokeCommand(context.Background(), cmdUntouched, op))

	assert.Equal(t, uint32(len(inout)), op.Params[0].Used, "untouched inout reports its capacity")
	assert.Equal(t, "keep me", string(op.Params[0].Output()))
	assert.Zero(t, op.Params[1].Used, "untouched out reports nothing")
	assert.Equal(t, entities.Value{A: 42, B: 7}, op.Params[2].Value)
}

func TestInvokeCommand_DispatchFailures(t *testing.T) {
	c := newTestContext(t, newProbe())
	s := openProbe(t, c)

	err := s.InvokeCommand(context.Background(), entities.CommandID(99), nil)
	testutil.RequireCode(t, err, entities.CodeBadParameters)
	testutil.RequireOrigin(t, err, entities.OriginTEE)

	err = s.InvokeCommand(context.Background(), cmdPanic, NewOperation())
	testutil.RequireCode(t, err, entities.CodeGeneric)
	testutil.RequireOrigin(t, err, entities.OriginTrustedApp)

	op := NewOperation(TempIn([]byte("still alive")), TempOut(make([]byte, 16)))
	require.NoError(t, s.InvokeCommand(context.Background(), cmdEcho, op), "session survives a panic")
}

func TestInvokeCommand_ArenaExhausted(t *testing.T) {
	c := newTestContext(t, newProbe(), WithConfigOptions(entities.WithArenaPages(1)))
	s := openProbe(t, c)

	op := NewOperation(TempIn(make([]byte, 40_000)), TempOut(make([]byte, 40_000)))
	err := s.InvokeCommand(context.Background(), cmdEcho, op)
	testutil.RequireCode(t, err, entities.CodeOutOfMemory)
	testutil.RequireOrigin(t, err, entities.OriginComms)

	op = NewOperation(TempIn(make([]byte, 20_000)), TempOut(make([]byte, 20_000)))
	require.NoError(t, s.InvokeCommand(context.Background(), cmdEcho, op), "arena is reset between invocations")
}

func TestInvokeCommand_Busy(t *testing.T) {
	p := newProbe()
	c := newTestContext(t, p, WithConfigOptions(entities.WithInvokeTimeout(20*time.Millisecond)))
	s := openProbe(t, c)

	done := make(chan error, 1)
	go func() { done <- s.InvokeCommand(context.Background(), cmdBlock, NewOperation()) }()
	<-p.entered

	err := s.InvokeCommand(context.Background(), cmdBlock, NewOperation())
	testutil.RequireCode(t, err, entities.CodeBusy)
	testutil.RequireOrigin(t, err, entities.OriginAPI)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = s.InvokeCommand(ctx, cmdBlock, NewOperation())
	testutil.RequireCode(t, err, entities.CodeCancel)

	t.Run("other sessions are not blocked", func(t *testing.T) {
		other := openProbe(t, c)
		op := NewOperation(TempIn([]byte("x")), TempOut(make([]byte, 1)))
		require.NoError(t, other.InvokeCommand(context.Background(), cmdEcho, op))
	})

	p.release <- struct{}{}
	require.NoError(t, <-done)
}

func TestInvokeCommand_RegionLockedDuringInvocation(t *testing.T) {
	p := newProbe()
	c := newTestContext(t, p)
	s := openProbe(t, c)
	shm := registered(t, c, s, 16, entities.MemInOut)

	var wg sync.WaitGroup
	var invokeErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		invokeErr = s.InvokeCommand(context.Background(), cmdHold, NewOperation(WholeRegion(entities.KindBufferInOut, shm)))
	}()
	<-p.entered

	wrote := make(chan struct{})
	go func() {
		_, _ = shm.WriteAt([]byte("late"), 8)
		close(wrote)
	}()

	select {
	case <-wrote:
		t.Fatal("host write completed while the task held the region")
	case <-time.After(30 * time.Millisecond):
	}

	p.release <- struct{}{}
	wg.Wait()
	<-wrote
	require.NoError(t, invokeErr)

	content, err := shm.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "done", string(content[:4]))
	assert.Equal(t, "late", string(content[8:12]))
}

func TestSession_Close(t *testing.T) {
	p := newProbe()
	c := newTestContext(t, p)
	s := openProbe(t, c)
	a := registered(t, c, s, 16, entities.MemInOut)
	b := registered(t, c, s, 16, entities.MemInput)
	_, err := a.WriteAt([]byte("gone"), 0)
	require.NoError(t, err)

	require.NoError(t, s.Close(context.Background()))
	assert.True(t, s.Closed())
	assert.Equal(t, int32(1), p.closed.Load())
	assert.Empty(t, s.Regions())
	assert.NotContains(t, c.Sessions(), s.ID())
	for _, shm := range []*SharedMemory{a, b} {
		assert.Equal(t, entities.RegionReleased, shm.State())
		_, err := shm.Bytes()
		testutil.RequireCode(t, err, entities.CodeInvalidHandle)
	}

	err = s.Close(context.Background())
	testutil.RequireCode(t, err, entities.CodeInvalidHandle)
	assert.ErrorIs(t, err, errors.ErrSessionClosed)

	err = s.InvokeCommand(context.Background(), cmdEcho, NewOperation())
	testutil.RequireCode(t, err, entities.CodeInvalidHandle)

	require.NoError(t, a.Destroy())
}

func TestSession_Observer(t *testing.T) {
	var records []wireformat.InvocationWire
	c := newTestContext(t, newProbe(), WithInvocationObserver(func(rec wireformat.InvocationWire) {
		records = append(records, rec)
	}))
	s := openProbe(t, c)
	shm := registered(t, c, s, 32, entities.MemOutput)

	op := NewOperation(TempIn([]byte("top secret")), RegionOut(shm, 0, 32))
	require.NoError(t, s.InvokeCommand(context.Background(), cmdEcho, op))
	err := s.InvokeCommand(context.Background(), cmdEcho, NewOperation(TempIn([]byte("x")), TempOut(make([]byte, 0, 1))))
	require.Error(t, err)

	require.Len(t, records, 2)
	ok := records[0]
	assert.Equal(t, "probe", ok.App)
	assert.Equal(t, "ECHO", ok.Command)
	assert.Equal(t, "success", ok.Result)
	assert.Empty(t, ok.Origin)
	assert.Nil(t, ok.Error)
	assert.Equal(t, s.ID(), ok.Session)
	require.Len(t, ok.Slots, 4)
	assert.Equal(t, wireformat.SlotWire{Kind: "buffer_in", Capacity: 10}, ok.Slots[0])
	assert.Equal(t, wireformat.SlotWire{Kind: "buffer_out", Capacity: 32, Used: 10, Region: uint32(shm.Handle())}, ok.Slots[1])
	assert.Equal(t, wireformat.SlotWire{Kind: "none"}, ok.Slots[2])

	failed := records[1]
	assert.Equal(t, "bad parameters", failed.Result)
	assert.Equal(t, "tee", failed.Origin)
	require.NotNil(t, failed.Error)
	assert.Equal(t, uint32(entities.CodeBadParameters), failed.Code)
}
