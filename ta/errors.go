package ta

import (
	"github.com/splitworld/tee-sdk/domain/entities"
	"github.com/splitworld/tee-sdk/domain/errors"
)

// BadParameters returns a handler error with code BadParameters. The
// dispatcher stamps the origin.
func BadParameters(format string, args ...any) error {
	return errors.Newf(entities.CodeBadParameters, entities.OriginUnset, "", format, args...)
}

// BadState returns a handler error with code BadState.
func BadState(format string, args ...any) error {
	return errors.Newf(entities.CodeBadState, entities.OriginUnset, "", format, args...)
}

// OutOfMemory returns a handler error with code OutOfMemory.
func OutOfMemory(format string, args ...any) error {
	return errors.Newf(entities.CodeOutOfMemory, entities.OriginUnset, "", format, args...)
}
