package ta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splitworld/tee-sdk/domain/entities"
	"github.com/splitworld/tee-sdk/domain/errors"
	"github.com/splitworld/tee-sdk/internal/arena"
)

func TestParams_Values(t *testing.T) {
	sig := entities.Sig(entities.KindValueIn, entities.KindValueOut, entities.KindValueInOut, entities.KindNone)
	p := NewParams(sig, [entities.NumParams]Slot{
		{Value: entities.Value{A: 1, B: 2}},
		{},
		{Value: entities.Value{A: 5}},
		{},
	})

	v, err := p.Value(0)
	require.NoError(t, err)
	assert.Equal(t, entities.Value{A: 1, B: 2}, v)

	t.Run("value out is not readable", func(t *testing.T) {
		_, err := p.Value(1)
		assert.ErrorIs(t, err, errors.ErrBadParameters)
	})

	t.Run("value in is not writable", func(t *testing.T) {
		err := p.SetValue(0, entities.Value{A: 9})
		assert.ErrorIs(t, err, errors.ErrBadParameters)
		assert.Equal(t, entities.Value{A: 1, B: 2}, p.Result(0).Value)
	})

	t.Run("inout round trip", func(t *testing.T) {
		v, err := p.Value(2)
		require.NoError(t, err)
		require.NoError(t, p.SetValue(2, entities.Value{A: v.A + 10}))
		assert.Equal(t, uint32(15), p.Result(2).Value.A)
	})

	t.Run("index out of range", func(t *testing.T) {
		_, err := p.Value(4)
		assert.ErrorIs(t, err, errors.ErrBadParameters)
		_, err = p.Value(-1)
		assert.ErrorIs(t, err, errors.ErrBadParameters)
		assert.Equal(t, entities.KindNone, p.Kind(7))
	})
}

func TestParams_BufferDirections(t *testing.T) {
	mem := make(arena.Bytes, 64)
	copy(mem, "input!")
	sig := entities.Sig(entities.KindBufferIn, entities.KindBufferOut, entities.KindBufferInOut, entities.KindNone)
	p := paramsFor(sig, mem)

	in, err := p.Input(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(testSlotSize), in.Len())

	_, err = p.Output(0)
	assert.ErrorIs(t, err, errors.ErrBadParameters, "input buffer must not be writable")

	_, err = p.Input(1)
	assert.ErrorIs(t, err, errors.ErrBadParameters, "output buffer must not be readable")

	_, err = p.Input(2)
	require.NoError(t, err)
	out, err := p.Output(2)
	require.NoError(t, err)
	again, err := p.Output(2)
	require.NoError(t, err)
	assert.Same(t, out, again)

	_, err = p.Input(3)
	assert.ErrorIs(t, err, errors.ErrBadParameters)
}

func TestParams_ZeroCapacityInputNeverReads(t *testing.T) {
	mem := &countingMemory{Bytes: make(arena.Bytes, 64)}
	sig := entities.Sig(entities.KindBufferIn, entities.KindNone, entities.KindNone, entities.KindNone)
	p := NewParams(sig, [entities.NumParams]Slot{{Memory: mem, Size: 0}})

	_, err := p.Input(0)
	assert.ErrorIs(t, err, errors.ErrBadParameters)
	assert.Zero(t, mem.reads)
	assert.Zero(t, mem.writes)
}

func TestParams_ResultUsed(t *testing.T) {
	mem := make(arena.Bytes, 64)
	sig := entities.Sig(entities.KindBufferOut, entities.KindBufferInOut, entities.KindBufferInOut, entities.KindBufferIn)
	p := paramsFor(sig, mem)

	out, err := p.Output(2)
	require.NoError(t, err)
	_, err = out.WriteString("abc")
	require.NoError(t, err)

	assert.Zero(t, p.Result(0).Used, "untouched out buffer reports nothing")
	assert.Equal(t, uint32(testSlotSize), p.Result(1).Used, "untouched inout buffer keeps its content")
	assert.Equal(t, uint32(3), p.Result(2).Used)
	assert.Zero(t, p.Result(3).Used, "input buffers report no output")
}

func TestParams_OutOfBoundsSlot(t *testing.T) {
	mem := make(arena.Bytes, 8)
	sig := entities.Sig(entities.KindBufferIn, entities.KindNone, entities.KindNone, entities.KindNone)
	p := NewParams(sig, [entities.NumParams]Slot{{Memory: mem, Offset: 4, Size: 8}})

	_, err := p.Input(0)
	assert.ErrorIs(t, err, errors.ErrBadParameters)
}
