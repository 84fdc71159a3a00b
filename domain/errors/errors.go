// Package errors provides the typed error of the trust-boundary protocol.
// Every failure carries a result code and the layer it originated in, and
// supports errors.Is / errors.As.
package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/splitworld/tee-sdk/domain/entities"
)

// TEEError is a failed operation: what failed, with which code, and in
// which layer.
type TEEError struct {
	// Err is the cause. It must never hold buffer content.
	Err error
	// Op names the operation, e.g. "invoke OUTPUT" or "register shm#3".
	Op     string
	Code   entities.ResultCode
	Origin entities.Origin
}

func (e *TEEError) Error() string {
	msg := e.Code.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Origin != entities.OriginUnset {
		msg = fmt.Sprintf("%s origin %s", msg, e.Origin)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *TEEError) Unwrap() error {
	return e.Err
}

// Is matches on the result code. A target without an origin matches any
// origin.
func (e *TEEError) Is(target error) bool {
	t, ok := target.(*TEEError)
	if !ok {
		return false
	}
	if t.Code != e.Code {
		return false
	}
	return t.Origin == entities.OriginUnset || t.Origin == e.Origin
}

// ToErrorDetail converts the error for the wire format.
func (e *TEEError) ToErrorDetail() *entities.ErrorDetail {
	detail := &entities.ErrorDetail{
		Type: e.Code.Name(),
		Code: uint32(e.Code),
	}
	if e.Origin != entities.OriginUnset {
		detail.Origin = e.Origin.String()
	}
	if e.Err != nil {
		detail.Message = e.Err.Error()
	}
	if e.Op != "" {
		detail.Details = map[string]any{"op": e.Op}
	}
	return detail
}

// Sentinels for errors.Is. They carry no origin.
var (
	ErrGeneric           = &TEEError{Code: entities.CodeGeneric}
	ErrBadParameters     = &TEEError{Code: entities.CodeBadParameters}
	ErrBadState          = &TEEError{Code: entities.CodeBadState}
	ErrInvalidHandle     = &TEEError{Code: entities.CodeInvalidHandle}
	ErrOutOfMemory       = &TEEError{Code: entities.CodeOutOfMemory}
	ErrBusy              = &TEEError{Code: entities.CodeBusy}
	ErrCancel            = &TEEError{Code: entities.CodeCancel}
	ErrSessionOpenFailed = &TEEError{Code: entities.CodeSessionOpenFailed}
	ErrContextInitFailed = &TEEError{Code: entities.CodeContextInitFailed}
)

// Lifecycle causes wrapped inside a TEEError.
var (
	ErrAlreadyRegistered = stdErrors.New("region already registered")
	ErrRegionRegistered  = stdErrors.New("region is still registered")
	ErrReleased          = stdErrors.New("region released")
	ErrSessionClosed     = stdErrors.New("session closed")
)

// New creates a TEEError.
func New(code entities.ResultCode, origin entities.Origin, op string, cause error) *TEEError {
	return &TEEError{Code: code, Origin: origin, Op: op, Err: cause}
}

// Newf creates a TEEError whose cause is a formatted message.
func Newf(code entities.ResultCode, origin entities.Origin, op, format string, args ...any) *TEEError {
	return &TEEError{Code: code, Origin: origin, Op: op, Err: fmt.Errorf(format, args...)}
}

// CodeOf returns the result code of err: Success for nil, Generic for an
// error that is not a TEEError.
func CodeOf(err error) entities.ResultCode {
	if err == nil {
		return entities.CodeSuccess
	}
	var te *TEEError
	if stdErrors.As(err, &te) {
		return te.Code
	}
	return entities.CodeGeneric
}

// OriginOf returns the origin of err, or OriginUnset.
func OriginOf(err error) entities.Origin {
	var te *TEEError
	if stdErrors.As(err, &te) {
		return te.Origin
	}
	return entities.OriginUnset
}

// Stamp returns err as a TEEError with the given op and origin filled in
// where they are missing. Non-TEE errors become Generic.
func Stamp(err error, origin entities.Origin, op string) *TEEError {
	if err == nil {
		return nil
	}
	var te *TEEError
	if !stdErrors.As(err, &te) {
		return &TEEError{Code: entities.CodeGeneric, Origin: origin, Op: op, Err: err}
	}
	stamped := *te
	if stamped.Origin == entities.OriginUnset {
		stamped.Origin = origin
	}
	if stamped.Op == "" {
		stamped.Op = op
	}
	return &stamped
}

// ToErrorDetail converts any error for the wire format.
func ToErrorDetail(err error) *entities.ErrorDetail {
	if err == nil {
		return nil
	}
	var te *TEEError
	if stdErrors.As(err, &te) {
		return te.ToErrorDetail()
	}
	return &entities.ErrorDetail{
		Type:    entities.CodeGeneric.Name(),
		Code:    uint32(entities.CodeGeneric),
		Message: err.Error(),
	}
}
