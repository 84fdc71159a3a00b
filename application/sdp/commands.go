package sdp

import (
	"log/slog"

	"github.com/splitworld/tee-sdk/domain/entities"
	"github.com/splitworld/tee-sdk/ta"
)

// createRegion: slot 0 carries the address as (high, low) words, slot 1
// value a the size. The region id is returned in slot 2 value a.
func (a *App) createRegion(ctx ta.TaskContext, p *ta.Params) error {
	addr, err := p.Value(0)
	if err != nil {
		return err
	}
	size, err := p.Value(1)
	if err != nil {
		return err
	}
	id, err := a.platform.CreateRegion(uint64(addr.A)<<32|uint64(addr.B), size.A)
	if err != nil {
		return err
	}
	ctx.Logger().Debug("region created", slog.Uint64("region", uint64(id)))
	return p.SetValue(2, entities.Value{A: id})
}

func (a *App) destroyRegion(_ ta.TaskContext, p *ta.Params) error {
	v, err := p.Value(0)
	if err != nil {
		return err
	}
	return a.platform.DestroyRegion(v.A)
}

// updateRegion: slot 0 value a is the region id and value b non-zero to
// attach, zero to detach. Slot 1 names the device, slot 2 value a is the
// direction.
func (a *App) updateRegion(ctx ta.TaskContext, p *ta.Params) error {
	v, err := p.Value(0)
	if err != nil {
		return err
	}
	in, err := p.Input(1)
	if err != nil {
		return err
	}
	name, err := in.CString(maxDeviceName)
	if err != nil {
		return err
	}
	dir, err := p.Value(2)
	if err != nil {
		return err
	}

	if v.B == 0 {
		err = a.platform.Detach(v.A, name)
	} else {
		err = a.platform.Attach(v.A, name, Direction(dir.A))
	}
	if err != nil {
		return err
	}
	ctx.Logger().Debug("region updated",
		slog.Uint64("region", uint64(v.A)),
		slog.String("device", name),
		slog.Bool("attach", v.B != 0))
	return nil
}

func (a *App) dumpStatus(_ ta.TaskContext, p *ta.Params) error {
	out, err := p.Output(0)
	if err != nil {
		return err
	}
	out.Reset()
	return a.platform.DumpStatus(out)
}
