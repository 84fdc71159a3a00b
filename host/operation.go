package host

import (
	"github.com/splitworld/tee-sdk/domain/entities"
)

// Param is one slot of an Operation. A buffer slot references either a
// temporary buffer (Temp, copied in and out of task memory) or a shared
// region (Region at Offset), with Size the declared capacity. After a
// successful invocation, Value holds the output of a value slot and Used
// the bytes the task produced in a writable buffer slot.
type Param struct {
	Region *SharedMemory
	Temp   []byte
	Value  entities.Value
	Offset uint32
	Size   uint32
	Used   uint32
	Kind   entities.ParamKind
}

// Operation is the four slots of one invocation.
type Operation struct {
	Params [entities.NumParams]Param
}

// NewOperation fills the first len(params) slots; the rest are None.
// It panics with more than four parameters.
func NewOperation(params ...Param) *Operation {
	if len(params) > entities.NumParams {
		panic("host: an operation has at most 4 parameters")
	}
	op := &Operation{}
	copy(op.Params[:], params)
	return op
}

// Signature returns the kinds of the four slots.
func (o *Operation) Signature() entities.Signature {
	var sig entities.Signature
	for i, p := range o.Params {
		sig[i] = p.Kind
	}
	return sig
}

// Output returns the bytes the task produced in a temporary buffer slot.
func (p Param) Output() []byte {
	if p.Temp == nil || p.Used > uint32(len(p.Temp)) { //nolint:gosec // G115: buffer lengths are uint32
		return nil
	}
	return p.Temp[:p.Used]
}

func None() Param {
	return Param{Kind: entities.KindNone}
}

func ValueIn(a, b uint32) Param {
	return Param{Kind: entities.KindValueIn, Value: entities.Value{A: a, B: b}}
}

func ValueOut() Param {
	return Param{Kind: entities.KindValueOut}
}

func ValueInOut(a, b uint32) Param {
	return Param{Kind: entities.KindValueInOut, Value: entities.Value{A: a, B: b}}
}

// TempIn references buf as an input buffer of capacity len(buf).
func TempIn(buf []byte) Param {
	return tempParam(entities.KindBufferIn, buf)
}

// TempOut references buf as an output buffer of capacity len(buf).
func TempOut(buf []byte) Param {
	return tempParam(entities.KindBufferOut, buf)
}

// TempInOut references buf as an in/out buffer of capacity len(buf).
func TempInOut(buf []byte) Param {
	return tempParam(entities.KindBufferInOut, buf)
}

func tempParam(kind entities.ParamKind, buf []byte) Param {
	return Param{Kind: kind, Temp: buf, Size: uint32(len(buf))} //nolint:gosec // G115: buffer lengths are uint32
}

// RegionIn references size bytes of r at offset as an input buffer.
func RegionIn(r *SharedMemory, offset, size uint32) Param {
	return Param{Kind: entities.KindBufferIn, Region: r, Offset: offset, Size: size}
}

// RegionOut references size bytes of r at offset as an output buffer.
func RegionOut(r *SharedMemory, offset, size uint32) Param {
	return Param{Kind: entities.KindBufferOut, Region: r, Offset: offset, Size: size}
}

// RegionInOut references size bytes of r at offset as an in/out buffer.
func RegionInOut(r *SharedMemory, offset, size uint32) Param {
	return Param{Kind: entities.KindBufferInOut, Region: r, Offset: offset, Size: size}
}

// WholeRegion references all of r with the given kind.
func WholeRegion(kind entities.ParamKind, r *SharedMemory) Param {
	return Param{Kind: kind, Region: r, Size: r.Size()}
}
