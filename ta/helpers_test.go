package ta

import (
	"github.com/splitworld/tee-sdk/domain/entities"
	"github.com/splitworld/tee-sdk/internal/arena"
)

// countingMemory records every access to its storage.
type countingMemory struct {
	arena.Bytes
	reads  int
	writes int
}

func (m *countingMemory) Read(offset, byteCount uint32) ([]byte, bool) {
	m.reads++
	return m.Bytes.Read(offset, byteCount)
}

func (m *countingMemory) Write(offset uint32, v []byte) bool {
	m.writes++
	return m.Bytes.Write(offset, v)
}

const testSlotSize = 16

// paramsFor builds Params for sig with every buffer slot backed by its own
// testSlotSize window of mem.
func paramsFor(sig entities.Signature, mem arena.Bytes) *Params {
	var slots [entities.NumParams]Slot
	for i, k := range sig {
		if k.IsBuffer() {
			slots[i] = Slot{Memory: mem, Offset: uint32(i * testSlotSize), Size: testSlotSize}
		}
	}
	return NewParams(sig, slots)
}

func allSignatures() []entities.Signature {
	kinds := entities.AllKinds()
	sigs := make([]entities.Signature, 0, len(kinds)*len(kinds)*len(kinds)*len(kinds))
	for _, a := range kinds {
		for _, b := range kinds {
			for _, c := range kinds {
				for _, d := range kinds {
					sigs = append(sigs, entities.Sig(a, b, c, d))
				}
			}
		}
	}
	return sigs
}
