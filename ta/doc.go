// Package ta is the trusted side of the boundary: the command dispatcher a
// trusted application registers its handlers with, and the typed view of
// the four parameter slots those handlers receive.
//
// Handlers never see raw slots. Each slot is reached through an accessor
// that checks the slot's declared kind, so an input buffer has no write
// method and an output buffer rejects any write past its declared capacity.
// Lengths always come from the declared capacity, never from the content
// of a buffer.
//
// A Dispatcher is immutable once built:
//
//	d, err := ta.NewDispatcher(
//	    ta.WithLogger(logger),
//	    ta.WithCommand(CmdOutput, "OUTPUT", outputSig, handleOutput),
//	)
//
// Invoke runs the per-command state machine
// Received → ShapeValidated → Executing → Completed | Failed
// and returns a *errors.TEEError with the layer that failed.
package ta
