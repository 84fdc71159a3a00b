package entities

import (
	"fmt"
	"strings"
)

// NumParams is the fixed number of parameter slots per call.
const NumParams = 4

// ParamKind describes the type and direction of one parameter slot.
type ParamKind uint8

const (
	KindNone ParamKind = iota
	KindValueIn
	KindValueOut
	KindValueInOut
	KindBufferIn
	KindBufferOut
	KindBufferInOut

	// kindCount is the number of defined kinds.
	kindCount
)

// AllKinds returns every defined ParamKind in declaration order.
func AllKinds() []ParamKind {
	kinds := make([]ParamKind, 0, kindCount)
	for k := KindNone; k < kindCount; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// Valid reports whether k is a defined kind.
func (k ParamKind) Valid() bool {
	return k < kindCount
}

// IsValue reports whether k carries a pair of integers.
func (k ParamKind) IsValue() bool {
	return k == KindValueIn || k == KindValueOut || k == KindValueInOut
}

// IsBuffer reports whether k carries a memory reference.
func (k ParamKind) IsBuffer() bool {
	return k == KindBufferIn || k == KindBufferOut || k == KindBufferInOut
}

// Readable reports whether the task may read the slot's input.
func (k ParamKind) Readable() bool {
	switch k {
	case KindValueIn, KindValueInOut, KindBufferIn, KindBufferInOut:
		return true
	}
	return false
}

// Writable reports whether the task may write the slot.
func (k ParamKind) Writable() bool {
	switch k {
	case KindValueOut, KindValueInOut, KindBufferOut, KindBufferInOut:
		return true
	}
	return false
}

func (k ParamKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindValueIn:
		return "value_in"
	case KindValueOut:
		return "value_out"
	case KindValueInOut:
		return "value_inout"
	case KindBufferIn:
		return "buffer_in"
	case KindBufferOut:
		return "buffer_out"
	case KindBufferInOut:
		return "buffer_inout"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseParamKind is the inverse of ParamKind.String.
func ParseParamKind(s string) (ParamKind, error) {
	for _, k := range AllKinds() {
		if k.String() == s {
			return k, nil
		}
	}
	return KindNone, fmt.Errorf("unknown parameter kind %q", s)
}

// Signature is the ordered tuple of slot kinds of a call.
// Two signatures match only when they are equal slot for slot.
type Signature [NumParams]ParamKind

// Sig builds a Signature from four kinds.
func Sig(k0, k1, k2, k3 ParamKind) Signature {
	return Signature{k0, k1, k2, k3}
}

// Valid reports whether every slot holds a defined kind.
func (s Signature) Valid() bool {
	for _, k := range s {
		if !k.Valid() {
			return false
		}
	}
	return true
}

// Pack encodes the signature one kind per nibble, slot 0 in the low nibble.
func (s Signature) Pack() uint32 {
	var packed uint32
	for i, k := range s {
		packed |= uint32(k&0xF) << (4 * i)
	}
	return packed
}

// UnpackSignature decodes a value produced by Signature.Pack.
func UnpackSignature(packed uint32) Signature {
	var s Signature
	for i := range s {
		s[i] = ParamKind((packed >> (4 * i)) & 0xF)
	}
	return s
}

// Strings returns the kind names slot by slot.
func (s Signature) Strings() []string {
	out := make([]string, len(s))
	for i, k := range s {
		out[i] = k.String()
	}
	return out
}

func (s Signature) String() string {
	return "{" + strings.Join(s.Strings(), ", ") + "}"
}

// Value is the payload of a value slot.
type Value struct {
	A uint32 `json:"a"`
	B uint32 `json:"b"`
}
