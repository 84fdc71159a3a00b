package scenario

import (
	"context"
	"io"

	"github.com/splitworld/tee-sdk/application/sdp"
	"github.com/splitworld/tee-sdk/domain/entities"
	"github.com/splitworld/tee-sdk/host"
)

// SDP builds a decoder to sink pipeline on one region, shows a refused
// second writer and dumps the platform status.
func SDP(ctx context.Context, c *host.Context, w io.Writer) (err error) {
	s, err := c.OpenSession(ctx, sdp.UUID)
	if err != nil {
		return err
	}
	defer closeSession(ctx, s, &err)

	create := host.NewOperation(host.ValueIn(0x1, 0x2000_0000), host.ValueIn(0x10000, 0), host.ValueOut())
	if err := s.InvokeCommand(ctx, sdp.CmdCreateRegion, create); err != nil {
		return err
	}
	region := create.Params[2].Value.A
	report(w, "CREATE_REGION: region %d", region)

	update := func(device string, dir sdp.Direction) error {
		return s.InvokeCommand(ctx, sdp.CmdUpdateRegion, host.NewOperation(
			host.ValueIn(region, 1),
			host.TempIn(append([]byte(device), 0)),
			host.ValueIn(uint32(dir), 0),
		))
	}
	for _, step := range []struct {
		device string
		dir    sdp.Direction
	}{
		{"delta", sdp.DirWrite},
		{"bdisp", sdp.DirRead},
		{"sti", sdp.DirRead},
	} {
		if err := update(step.device, step.dir); err != nil {
			return err
		}
		report(w, "UPDATE_REGION: %s attached with direction %d", step.device, step.dir)
	}
	report(w, "UPDATE_REGION: bdisp as second writer: %s", outcome(update("bdisp", sdp.DirWrite)))

	status := make([]byte, 1024)
	dump := host.NewOperation(host.TempOut(status))
	if err := s.InvokeCommand(ctx, sdp.CmdDumpStatus, dump); err != nil {
		return err
	}
	report(w, "DUMP_STATUS:\n%s", dump.Params[0].Output())

	destroy := host.NewOperation(host.ValueIn(region, 0))
	if err := s.InvokeCommand(ctx, sdp.CmdDestroyRegion, destroy); err != nil {
		return err
	}
	report(w, "DESTROY_REGION: region %d", region)

	// A name declared longer than the region holding it never crosses.
	shm, err := c.AllocateSharedMemory(100, entities.MemInput)
	if err != nil {
		return err
	}
	defer func() { _ = c.Destroy(shm.Handle()) }()
	if err := s.Register(shm); err != nil {
		return err
	}
	err = s.InvokeCommand(ctx, sdp.CmdUpdateRegion, host.NewOperation(
		host.ValueIn(region, 1),
		host.RegionIn(shm, 0, 101),
		host.ValueIn(uint32(sdp.DirWrite), 0),
	))
	report(w, "UPDATE_REGION naming 101 bytes of a 100 byte region: %s", outcome(err))
	if rerr := shm.Release(); rerr != nil {
		return rerr
	}
	return nil
}
