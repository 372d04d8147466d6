package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/CoReason-AI/omopcloudetl-core/errors"
)

// Operation tracks one traced unit of work: a span plus its start time.
type Operation struct {
	Name      string
	StartTime time.Time
	span      trace.Span
}

// StartOperation starts a span named name on tracer. A nil tracer uses the
// module tracer of the global provider.
func StartOperation(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, *Operation) {
	if tracer == nil {
		tracer = Tracer(InstrumentationName)
	}
	ctx, span := tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, &Operation{Name: name, StartTime: time.Now(), span: span}
}

// Span returns the operation span.
func (op *Operation) Span() trace.Span { return op.span }

// Duration returns the elapsed time since the operation started.
func (op *Operation) Duration() time.Duration {
	return time.Since(op.StartTime)
}

// End records err (if any) with its error code and ends the span.
// It returns "ok" or "error" for use as a metric status.
func (op *Operation) End(err error, attrs ...attribute.KeyValue) string {
	status := "ok"
	if err != nil {
		status = "error"
		op.span.RecordError(err)
		op.span.SetStatus(codes.Error, err.Error())
		if code := ErrorCode(err); code != "" {
			op.span.SetAttributes(attribute.String(AttrErrorCode, code))
		}
	}
	op.span.SetAttributes(attrs...)
	op.span.End()
	return status
}

// ErrorCode returns the code of the outermost AppError in err, or "".
func ErrorCode(err error) string {
	if appErr, ok := errors.AsAppError(err); ok {
		return string(appErr.Code)
	}
	return ""
}
