package hello

import (
	"crypto/subtle"
	"encoding/hex"
	"log/slog"

	"github.com/splitworld/tee-sdk/ta"
)

// output hands the secret to the host sealed: slot 1 receives the sealed
// bytes, slots 2 and 3 text records built from them, and value a the
// record version.
func (a *App) output(ctx ta.TaskContext, p *ta.Params) error {
	sealed, err := a.sealer.Seal([]byte(secret))
	if err != nil {
		return err
	}
	sealedHex := hex.EncodeToString(sealed)

	raw, err := p.Output(1)
	if err != nil {
		return err
	}
	withIV, err := p.Output(2)
	if err != nil {
		return err
	}
	full, err := p.Output(3)
	if err != nil {
		return err
	}

	raw.Reset()
	if _, err := raw.Write(sealed); err != nil {
		return err
	}
	withIV.Reset()
	if err := withIV.Printf("%s-%s", sealedHex, iv); err != nil {
		return err
	}
	full.Reset()
	if err := full.Printf("%s-%s-%d", sealedHex, iv, version); err != nil {
		return err
	}

	v, err := p.Value(0)
	if err != nil {
		return err
	}
	v.A = 10 + version
	ctx.Logger().Debug("secret sealed", slog.Any("slot1", raw))
	return p.SetValue(0, v)
}

// input ingests the host buffers into a fixed scratch area. Every length
// comes from a declared capacity checked against the scratch size; value a
// indexes a fixed table and must lie inside it.
func (a *App) input(ctx ta.TaskContext, p *ta.Params) error {
	v, err := p.Value(0)
	if err != nil {
		return err
	}
	if v.A < minIndex || v.A >= maxIndex {
		return ta.BadParameters("index %d outside [%d, %d)", v.A, minIndex, maxIndex)
	}
	if p.Capacity(1) > maxRefSize {
		return ta.BadParameters("reference buffer of %d bytes exceeds %d", p.Capacity(1), maxRefSize)
	}
	ref, err := p.Input(1)
	if err != nil {
		return err
	}

	var table [maxIndex]uint32
	table[v.A] = 43

	var scratch [scratchSz]byte
	for _, slot := range []int{2, 3} {
		if p.Capacity(slot) > maxIngestSize {
			return ta.BadParameters("slot %d of %d bytes exceeds %d", slot, p.Capacity(slot), maxIngestSize)
		}
		in, err := p.Input(slot)
		if err != nil {
			return err
		}
		copy(scratch[:], in.Bytes())
	}
	marker := scratch[v.A-minIndex]

	out, err := p.Output(2)
	if err != nil {
		return err
	}
	if out.Cap() < scratchSz {
		return ta.BadParameters("slot 2 of %d bytes cannot hold %d", out.Cap(), scratchSz)
	}
	out.Reset()
	if _, err := out.Write(scratch[:]); err != nil {
		return err
	}

	ctx.Logger().Debug("input ingested",
		slog.Any("reference", ref),
		slog.Uint64("index", uint64(v.A)),
		slog.Bool("marker_set", marker != 0),
		slog.Uint64("entry", uint64(table[v.A])),
	)
	return nil
}

// sharedMemory checks the sealed secret the host placed in shared memory.
// The buffer is read once; the check works on that snapshot so a host
// rewriting the region meanwhile cannot change the outcome. Slot 0 then
// receives Pass or Fail and nothing else.
func (a *App) sharedMemory(ctx ta.TaskContext, p *ta.Params) error {
	if p.Capacity(0) > maxCompareSize {
		return ta.BadParameters("buffer of %d bytes exceeds %d", p.Capacity(0), maxCompareSize)
	}
	in, err := p.Input(0)
	if err != nil {
		return err
	}
	sealedLen := uint32(a.SealedSize()) //nolint:gosec // G115: small constant
	if in.Len() < sealedLen {
		return ta.BadParameters("buffer of %d bytes cannot hold a sealed value of %d", in.Len(), sealedLen)
	}
	snapshot, err := in.Range(0, sealedLen)
	if err != nil {
		return err
	}

	if err := ta.Wait(ctx, a.delay); err != nil {
		return err
	}

	verdict := Fail
	if plain, err := a.sealer.Open(snapshot); err == nil && subtle.ConstantTimeCompare(plain, []byte(secret)) == 1 {
		verdict = Pass
	}
	clear(snapshot)

	out, err := p.Output(0)
	if err != nil {
		return err
	}
	out.Reset()
	if _, err := out.WriteString(verdict); err != nil {
		return err
	}
	ctx.Logger().Debug("shared secret checked", slog.Bool("pass", verdict == Pass))
	return nil
}
