package ta

import (
	"context"
	"time"

	"github.com/splitworld/tee-sdk/domain/entities"
	"github.com/splitworld/tee-sdk/domain/errors"
)

// Wait blocks for d. If ctx ends first it fails with Cancel; there is no
// retry.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return errors.New(entities.CodeCancel, entities.OriginUnset, "wait", ctx.Err())
	}
}
