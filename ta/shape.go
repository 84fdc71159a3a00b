package ta

import (
	"github.com/splitworld/tee-sdk/domain/entities"
)

// CheckShape validates the call against the command's expected signature.
// Kinds must match slot for slot; writable buffers need a non-zero
// capacity and every buffer range must lie inside its memory.
func CheckShape(expected entities.Signature, p *Params) error {
	if p.sig != expected {
		return BadParameters("signature %s does not match %s", p.sig, expected)
	}
	for i := range p.slots {
		st := &p.slots[i]
		s := st.slot
		if !st.kind.IsBuffer() {
			if s.Memory != nil || s.Size != 0 {
				return BadParameters("slot %d is %s but carries a buffer", i, st.kind)
			}
			continue
		}
		if st.kind.Writable() && s.Size == 0 {
			return BadParameters("slot %d is %s with zero capacity", i, st.kind)
		}
		if s.Size == 0 {
			continue
		}
		if s.Memory == nil {
			return BadParameters("slot %d has capacity %d but no memory", i, s.Size)
		}
		if uint64(s.Offset)+uint64(s.Size) > uint64(s.Memory.Size()) {
			return BadParameters("slot %d range exceeds its memory", i)
		}
	}
	return nil
}
