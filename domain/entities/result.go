package entities

import "fmt"

// ResultCode is the outcome of an operation crossing the boundary.
type ResultCode uint32

const (
	CodeSuccess           ResultCode = 0x00000000
	CodeGeneric           ResultCode = 0xFFFF0000
	CodeBadParameters     ResultCode = 0xFFFF0006
	CodeBadState          ResultCode = 0xFFFF0007
	CodeInvalidHandle     ResultCode = 0xFFFF0008
	CodeOutOfMemory       ResultCode = 0xFFFF000C
	CodeBusy              ResultCode = 0xFFFF000D
	CodeCancel            ResultCode = 0xFFFF0002
	CodeSessionOpenFailed ResultCode = 0xFFFF3001
	CodeContextInitFailed ResultCode = 0xFFFF3002
)

// Name returns the symbolic name of the code.
func (c ResultCode) Name() string {
	switch c {
	case CodeSuccess:
		return "success"
	case CodeGeneric:
		return "generic error"
	case CodeBadParameters:
		return "bad parameters"
	case CodeBadState:
		return "bad state"
	case CodeInvalidHandle:
		return "invalid handle"
	case CodeOutOfMemory:
		return "out of memory"
	case CodeBusy:
		return "busy"
	case CodeCancel:
		return "cancelled"
	case CodeSessionOpenFailed:
		return "session open failed"
	case CodeContextInitFailed:
		return "context init failed"
	default:
		return "unknown"
	}
}

func (c ResultCode) String() string {
	return fmt.Sprintf("%s (0x%08x)", c.Name(), uint32(c))
}

// Origin identifies the layer that produced a result.
type Origin uint8

const (
	// OriginUnset marks an error whose layer has not been stamped yet.
	OriginUnset Origin = iota
	// OriginAPI is the host client library.
	OriginAPI
	// OriginComms is the transport between host and task, including the
	// task memory used for marshaling.
	OriginComms
	// OriginTEE is the task-side framework: dispatch and shape validation.
	OriginTEE
	// OriginTrustedApp is a command handler.
	OriginTrustedApp
)

func (o Origin) String() string {
	switch o {
	case OriginUnset:
		return "unset"
	case OriginAPI:
		return "api"
	case OriginComms:
		return "comms"
	case OriginTEE:
		return "tee"
	case OriginTrustedApp:
		return "trusted-app"
	default:
		return fmt.Sprintf("origin(%d)", uint8(o))
	}
}

// ClientSide reports whether the origin is on the untrusted side.
func (o Origin) ClientSide() bool {
	return o == OriginAPI || o == OriginComms
}
