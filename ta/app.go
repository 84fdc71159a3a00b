package ta

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/splitworld/tee-sdk/wireformat"
)

// Instance is a live trusted application. One instance serves every
// session opened against its UUID within a host context.
type Instance interface {
	Dispatcher() *Dispatcher
}

// SessionOpener is implemented by instances that accept or refuse
// sessions.
type SessionOpener interface {
	OpenSession(ctx context.Context, session uint32) error
}

// SessionCloser is implemented by instances that track sessions.
type SessionCloser interface {
	CloseSession(ctx context.Context, session uint32)
}

// Destroyer is implemented by instances holding state to tear down.
type Destroyer interface {
	Destroy(ctx context.Context)
}

// Descriptor names a trusted application and how to create it.
type Descriptor struct {
	New  func(ctx context.Context) (Instance, error)
	Name string
	UUID uuid.UUID
}

// Validate reports a descriptor that cannot be installed.
func (d Descriptor) Validate() error {
	if d.UUID == uuid.Nil {
		return fmt.Errorf("trusted app %q: nil uuid", d.Name)
	}
	if d.Name == "" {
		return fmt.Errorf("trusted app %s: empty name", d.UUID)
	}
	if d.New == nil {
		return fmt.Errorf("trusted app %q: nil constructor", d.Name)
	}
	return nil
}

// Describe returns the wire description of an instance of d.
func Describe(d Descriptor, inst Instance) wireformat.AppWire {
	return wireformat.AppWire{
		UUID:     d.UUID.String(),
		Name:     d.Name,
		Commands: inst.Dispatcher().Describe(),
	}
}
