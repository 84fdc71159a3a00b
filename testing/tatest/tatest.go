// Package tatest provides a test harness for trusted application commands.
// It invokes a dispatcher directly, without a host Context, with every
// buffer slot backed by its own byte slice.
package tatest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/splitworld/tee-sdk/domain/entities"
	"github.com/splitworld/tee-sdk/internal/arena"
	"github.com/splitworld/tee-sdk/internal/testutil"
	"github.com/splitworld/tee-sdk/ta"
)

// Buffer returns a buffer slot of the given capacity holding content, and
// the memory behind it.
func Buffer(content []byte, capacity uint32) (ta.Slot, arena.Bytes) {
	mem := make(arena.Bytes, capacity)
	copy(mem, content)
	return ta.Slot{Memory: mem, Size: capacity}, mem
}

// Value returns a value slot.
func Value(a, b uint32) ta.Slot {
	return ta.Slot{Value: entities.Value{A: a, B: b}}
}

// Slots pads up to four slots with empty ones.
func Slots(slots ...ta.Slot) [entities.NumParams]ta.Slot {
	var out [entities.NumParams]ta.Slot
	copy(out[:], slots)
	return out
}

// Invoke runs command cmd of inst with the given signature and slots on
// session 1.
func Invoke(inst ta.Instance, cmd entities.CommandID, sig entities.Signature, slots [entities.NumParams]ta.Slot) (*ta.Params, error) {
	return InvokeContext(context.Background(), inst, cmd, sig, slots)
}

// InvokeContext is Invoke under ctx.
func InvokeContext(ctx context.Context, inst ta.Instance, cmd entities.CommandID, sig entities.Signature, slots [entities.NumParams]ta.Slot) (*ta.Params, error) {
	p := ta.NewParams(sig, slots)
	return p, inst.Dispatcher().Invoke(ctx, 1, cmd, p)
}

// TestCase defines one invocation and its checks.
type TestCase struct {
	Validate  func(t *testing.T, p *ta.Params, err error)
	Name      string
	Slots     [entities.NumParams]ta.Slot
	Command   entities.CommandID
	Signature entities.Signature
}

// RunCommandTests runs a suite of invocations against inst.
func RunCommandTests(t *testing.T, inst ta.Instance, tests []TestCase) {
	t.Helper()
	for _, tc := range tests {
		t.Run(tc.Name, func(t *testing.T) {
			p, err := Invoke(inst, tc.Command, tc.Signature, tc.Slots)
			if tc.Validate != nil {
				tc.Validate(t, p, err)
			}
		})
	}
}

// AssertSuccess fails the test if err is not nil.
func AssertSuccess(t *testing.T, _ *ta.Params, err error) {
	t.Helper()
	require.NoError(t, err)
}

// ExpectCode returns a Validate func requiring code from a handler.
func ExpectCode(code entities.ResultCode) func(*testing.T, *ta.Params, error) {
	return func(t *testing.T, _ *ta.Params, err error) {
		t.Helper()
		testutil.RequireCode(t, err, code)
	}
}
