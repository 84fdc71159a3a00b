package scenario

import (
	"context"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/splitworld/tee-sdk/application/hello"
	"github.com/splitworld/tee-sdk/domain/entities"
	"github.com/splitworld/tee-sdk/host"
)

// tamperOffset keeps the tampering clear of the verdict the task writes at
// the start of the region.
const tamperOffset = 16

// SharedMemory places the sealed secret in a registered region and asks
// SHARED_MEMORY to check it while a second host goroutine tries to
// overwrite the region once the handler is running. The write blocks until
// the invocation completes, so the task checks the value it was given.
func SharedMemory(ctx context.Context, c *host.Context, w io.Writer) (err error) {
	s, err := c.OpenSession(ctx, hello.UUID)
	if err != nil {
		return err
	}
	defer closeSession(ctx, s, &err)

	out := host.NewOperation(
		host.ValueInOut(0, 0),
		host.TempInOut(make([]byte, 1024)),
		host.TempInOut(make([]byte, 1024)),
		host.TempInOut(make([]byte, 1024)),
	)
	if err := s.InvokeCommand(ctx, hello.CmdOutput, out); err != nil {
		return err
	}
	sealed := out.Params[1].Output()

	shm, err := c.AllocateSharedMemory(uint32(len(sealed)), entities.MemInOut) //nolint:gosec // G115: bounded by the 1024 byte buffer
	if err != nil {
		return err
	}
	defer func() { _ = c.Destroy(shm.Handle()) }()
	if _, err := shm.WriteAt(sealed, 0); err != nil {
		return err
	}
	if err := s.Register(shm); err != nil {
		return err
	}

	check := host.NewOperation(host.WholeRegion(entities.KindBufferInOut, shm))
	var blocked time.Duration
	executing := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ictx := notifyExecuting(gctx, func() { close(executing) })
		return s.InvokeCommand(ictx, hello.CmdSharedMemory, check)
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return gctx.Err()
		case <-executing:
		}
		start := time.Now()
		_, err := shm.WriteAt([]byte("tampered"), tamperOffset)
		blocked = time.Since(start)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	verdict := make([]byte, check.Params[0].Used)
	if _, err := shm.ReadAt(verdict, 0); err != nil {
		return err
	}
	report(w, "SHARED_MEMORY: verdict %q", verdict)
	report(w, "SHARED_MEMORY: host write waited %s for the invocation", blocked.Round(time.Millisecond))

	if err := shm.Release(); err != nil {
		return err
	}
	_, err = shm.WriteAt([]byte("late"), 0)
	report(w, "write after release: %s", outcome(err))
	return nil
}
