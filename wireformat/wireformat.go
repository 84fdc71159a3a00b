// Package wireformat defines the JSON shapes that describe the boundary
// contract: the command table a trusted application exports and the record
// of one invocation. These types must remain stable; tooling and logs
// depend on them.
package wireformat

import (
	"github.com/splitworld/tee-sdk/domain/entities"
)

// CommandWire describes one command and its expected signature.
type CommandWire struct {
	Name      string   `json:"name" jsonschema:"required"`
	Signature []string `json:"signature" jsonschema:"required,minItems=4,maxItems=4,enum=none,enum=value_in,enum=value_out,enum=value_inout,enum=buffer_in,enum=buffer_out,enum=buffer_inout"`
	ID        uint32   `json:"id" jsonschema:"required"`
}

// AppWire describes a trusted application and its command table.
type AppWire struct {
	UUID     string        `json:"uuid" jsonschema:"required,format=uuid"`
	Name     string        `json:"name" jsonschema:"required"`
	Commands []CommandWire `json:"commands" jsonschema:"required"`
}

// SlotWire is the host-visible outcome of one parameter slot.
// It never carries buffer content.
type SlotWire struct {
	Kind     string `json:"kind"`
	Capacity uint32 `json:"capacity,omitempty"`
	Used     uint32 `json:"used,omitempty"`
	Region   uint32 `json:"region,omitempty"`
}

// InvocationWire is the record of one InvokeCommand call.
type InvocationWire struct {
	Error      *entities.ErrorDetail `json:"error,omitempty"`
	App        string                `json:"app"`
	Command    string                `json:"command"`
	Result     string                `json:"result"`
	Origin     string                `json:"origin,omitempty"`
	Slots      []SlotWire            `json:"slots"`
	DurationUs int64                 `json:"duration_us"`
	Session    uint32                `json:"session"`
	CommandID  uint32                `json:"command_id"`
	Code       uint32                `json:"code"`
}

// NewCommandWire converts a command table entry.
func NewCommandWire(id entities.CommandID, name string, sig entities.Signature) CommandWire {
	return CommandWire{ID: uint32(id), Name: name, Signature: sig.Strings()}
}

// ParseSignature converts a wire signature back to a Signature.
func (c CommandWire) ParseSignature() (entities.Signature, error) {
	var sig entities.Signature
	if len(c.Signature) != entities.NumParams {
		return sig, &entities.ErrorDetail{
			Type:    entities.CodeBadParameters.Name(),
			Code:    uint32(entities.CodeBadParameters),
			Message: "signature must have exactly 4 slots",
		}
	}
	for i, s := range c.Signature {
		k, err := entities.ParseParamKind(s)
		if err != nil {
			return sig, err
		}
		sig[i] = k
	}
	return sig, nil
}
