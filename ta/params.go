package ta

import (
	"github.com/splitworld/tee-sdk/domain/entities"
	"github.com/splitworld/tee-sdk/domain/errors"
	"github.com/splitworld/tee-sdk/domain/ports"
)

// Slot is the raw content of one parameter slot as delivered to the task.
// Buffer slots reference Size bytes of Memory starting at Offset.
type Slot struct {
	Memory ports.Memory
	Value  entities.Value
	Offset uint32
	Size   uint32
}

// SlotResult is what the host reads back from a slot after the call.
type SlotResult struct {
	Value entities.Value
	// Used is the number of bytes the task produced in a writable buffer.
	Used uint32
}

type slotState struct {
	out     *OutputBuffer
	slot    Slot
	used    uint32
	kind    entities.ParamKind
	written bool
}

// Params is the task's view of the four slots of one invocation.
// It is not safe for concurrent use; one invocation owns it.
type Params struct {
	slots [entities.NumParams]slotState
	sig   entities.Signature
}

// NewParams binds raw slots to the signature the caller declared.
func NewParams(sig entities.Signature, slots [entities.NumParams]Slot) *Params {
	p := &Params{sig: sig}
	for i := range slots {
		p.slots[i] = slotState{slot: slots[i], kind: sig[i]}
	}
	return p
}

// Signature returns the kinds declared by the caller.
func (p *Params) Signature() entities.Signature {
	return p.sig
}

// Kind returns the declared kind of slot i, or KindNone out of range.
func (p *Params) Kind(i int) entities.ParamKind {
	if i < 0 || i >= entities.NumParams {
		return entities.KindNone
	}
	return p.sig[i]
}

// Capacity returns the declared capacity of buffer slot i, 0 otherwise.
func (p *Params) Capacity(i int) uint32 {
	if !p.Kind(i).IsBuffer() {
		return 0
	}
	return p.slots[i].slot.Size
}

func (p *Params) state(i int) (*slotState, error) {
	if i < 0 || i >= entities.NumParams {
		return nil, BadParameters("slot %d out of range", i)
	}
	return &p.slots[i], nil
}

// Value returns the input value of a ValueIn or ValueInOut slot.
func (p *Params) Value(i int) (entities.Value, error) {
	st, err := p.state(i)
	if err != nil {
		return entities.Value{}, err
	}
	if st.kind != entities.KindValueIn && st.kind != entities.KindValueInOut {
		return entities.Value{}, BadParameters("slot %d is %s, not a readable value", i, st.kind)
	}
	return st.slot.Value, nil
}

// SetValue stores the result of a ValueOut or ValueInOut slot.
func (p *Params) SetValue(i int, v entities.Value) error {
	st, err := p.state(i)
	if err != nil {
		return err
	}
	if st.kind != entities.KindValueOut && st.kind != entities.KindValueInOut {
		return BadParameters("slot %d is %s, not a writable value", i, st.kind)
	}
	st.slot.Value = v
	st.written = true
	return nil
}

// Input returns the read-only view of a BufferIn or BufferInOut slot.
// A zero capacity fails before the backing memory is touched.
func (p *Params) Input(i int) (InputBuffer, error) {
	st, err := p.state(i)
	if err != nil {
		return InputBuffer{}, err
	}
	if st.kind != entities.KindBufferIn && st.kind != entities.KindBufferInOut {
		return InputBuffer{}, BadParameters("slot %d is %s, not a readable buffer", i, st.kind)
	}
	view, err := st.view(i)
	if err != nil {
		return InputBuffer{}, err
	}
	return InputBuffer{view: view}, nil
}

// Output returns the writer of a BufferOut or BufferInOut slot. Repeated
// calls return the same writer.
func (p *Params) Output(i int) (*OutputBuffer, error) {
	st, err := p.state(i)
	if err != nil {
		return nil, err
	}
	if !st.kind.IsBuffer() || !st.kind.Writable() {
		return nil, BadParameters("slot %d is %s, not a writable buffer", i, st.kind)
	}
	if st.out != nil {
		return st.out, nil
	}
	view, err := st.view(i)
	if err != nil {
		return nil, err
	}
	st.out = &OutputBuffer{view: view, st: st}
	return st.out, nil
}

func (st *slotState) view(i int) ([]byte, error) {
	if st.slot.Size == 0 {
		return nil, BadParameters("slot %d has zero capacity", i)
	}
	if st.slot.Memory == nil {
		return nil, BadParameters("slot %d has no memory", i)
	}
	view, ok := st.slot.Memory.Read(st.slot.Offset, st.slot.Size)
	if !ok {
		return nil, BadParameters("slot %d range out of bounds", i)
	}
	return view, nil
}

// Result reports slot i after the call. An InOut buffer the task never
// wrote reports its full capacity; an Out buffer never written reports 0.
func (p *Params) Result(i int) SlotResult {
	if i < 0 || i >= entities.NumParams {
		return SlotResult{}
	}
	st := &p.slots[i]
	res := SlotResult{Value: st.slot.Value}
	if !st.kind.IsBuffer() || !st.kind.Writable() {
		return res
	}
	switch {
	case st.written:
		res.Used = st.used
	case st.kind == entities.KindBufferInOut:
		res.Used = st.slot.Size
	}
	return res
}

// checkUsed verifies the post-condition used <= capacity on every slot.
func (p *Params) checkUsed() error {
	for i := range p.slots {
		st := &p.slots[i]
		if st.used > st.slot.Size {
			return errors.Newf(entities.CodeBadParameters, entities.OriginTEE, "",
				"slot %d used %d exceeds capacity %d", i, st.used, st.slot.Size)
		}
	}
	return nil
}
