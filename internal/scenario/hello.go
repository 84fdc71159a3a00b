package scenario

import (
	"context"
	"io"

	"github.com/splitworld/tee-sdk/application/hello"
	"github.com/splitworld/tee-sdk/domain/errors"
	"github.com/splitworld/tee-sdk/host"
)

// Hello runs OUTPUT and INPUT, then shows that an undersized output
// buffer and an out of range index are refused.
func Hello(ctx context.Context, c *host.Context, w io.Writer) (err error) {
	s, err := c.OpenSession(ctx, hello.UUID)
	if err != nil {
		return err
	}
	defer closeSession(ctx, s, &err)

	out := host.NewOperation(
		host.ValueInOut(0, 0),
		host.TempInOut(make([]byte, 4096)),
		host.TempInOut(make([]byte, 4096)),
		host.TempInOut(make([]byte, 4096)),
	)
	if err := s.InvokeCommand(ctx, hello.CmdOutput, out); err != nil {
		return err
	}
	report(w, "OUTPUT: value %d, sealed secret %d bytes", out.Params[0].Value.A, out.Params[1].Used)
	report(w, "OUTPUT: slot 2 %q", out.Params[2].Output())
	report(w, "OUTPUT: slot 3 %q", out.Params[3].Output())

	small := host.NewOperation(
		host.ValueInOut(0, 0),
		host.TempInOut(make([]byte, 4096)),
		host.TempInOut(make([]byte, 8)),
		host.TempInOut(make([]byte, 4096)),
	)
	err = s.InvokeCommand(ctx, hello.CmdOutput, small)
	report(w, "OUTPUT into 8 bytes: %s", outcome(err))

	ingest := make([]byte, 1000)
	copy(ingest, "first")
	in := host.NewOperation(
		host.ValueIn(5, 0),
		host.TempIn([]byte("reference")),
		host.TempInOut(ingest),
		host.TempInOut([]byte("second")),
	)
	if err := s.InvokeCommand(ctx, hello.CmdInput, in); err != nil {
		return err
	}
	report(w, "INPUT: slot 2 used %d, starts %q", in.Params[2].Used, in.Params[2].Output()[:6])

	in.Params[0] = host.ValueIn(20, 0)
	err = s.InvokeCommand(ctx, hello.CmdInput, in)
	report(w, "INPUT with index 20: %s", outcome(err))
	return nil
}

// outcome renders an expected refusal.
func outcome(err error) string {
	if err == nil {
		return errors.CodeOf(nil).Name()
	}
	return errors.CodeOf(err).Name() + " from " + errors.OriginOf(err).String()
}
