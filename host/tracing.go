package host

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/splitworld/tee-sdk/domain/entities"
	"github.com/splitworld/tee-sdk/domain/errors"
	"github.com/splitworld/tee-sdk/wireformat"
)

// Span attribute keys.
const (
	attrSession   = attribute.Key("tee.session")
	attrApp       = attribute.Key("tee.app")
	attrCommand   = attribute.Key("tee.command")
	attrSignature = attribute.Key("tee.signature")
	attrResult    = attribute.Key("tee.result")
	attrOrigin    = attribute.Key("tee.origin")
)

func (c *Context) startSpan(ctx context.Context, s *Session, name string, op *Operation) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "tee.invoke",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attrSession.Int64(int64(s.id)),
			attrApp.String(s.desc.Name),
			attrCommand.String(name),
			attrSignature.String(op.Signature().String()),
		),
	)
}

func (c *Context) endSpan(span trace.Span, err error) {
	defer span.End()
	code := errors.CodeOf(err)
	span.SetAttributes(attrResult.String(code.Name()))
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.SetAttributes(attrOrigin.String(errors.OriginOf(err).String()))
	span.RecordError(err)
	span.SetStatus(codes.Error, code.Name())
}

// record builds the observer record of one invocation. It never includes
// buffer content.
func (s *Session) record(cmd entities.CommandID, name string, op *Operation, err error, elapsed time.Duration) wireformat.InvocationWire {
	code := errors.CodeOf(err)
	rec := wireformat.InvocationWire{
		Error:      errors.ToErrorDetail(err),
		App:        s.desc.Name,
		Command:    name,
		Result:     code.Name(),
		Slots:      make([]wireformat.SlotWire, 0, entities.NumParams),
		DurationUs: elapsed.Microseconds(),
		Session:    s.id,
		CommandID:  uint32(cmd),
		Code:       uint32(code),
	}
	if err != nil {
		rec.Origin = errors.OriginOf(err).String()
	}
	for _, p := range op.Params {
		slot := wireformat.SlotWire{Kind: p.Kind.String()}
		if p.Kind.IsBuffer() {
			slot.Capacity = p.Size
			slot.Used = p.Used
			if p.Region != nil {
				slot.Region = uint32(p.Region.handle)
			}
		}
		rec.Slots = append(rec.Slots, slot)
	}
	return rec
}
