package tracing

import (
	"context"
	"os"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const protocolTracerName = "agentsdk-protocol"

// maxPayloadBytes caps how much raw wire data is attached to a span.
const maxPayloadBytes = 8 * 1024

var (
	debugWireOnce sync.Once
	debugWire     bool
)

// wireDebugEnabled reports whether raw frame payloads should be attached to
// spans. Off by default; payloads can contain prompt and tool data.
func wireDebugEnabled() bool {
	debugWireOnce.Do(func() {
		debugWire = os.Getenv("AGENTSDK_DEBUG_WIRE") == "1"
	})
	return debugWire
}

func protocolTracer() trace.Tracer {
	return Tracer(protocolTracerName)
}

// TraceFrame creates a single span for one inbound or outbound wire frame.
func TraceFrame(ctx context.Context, direction, frameType, sessionID string, raw []byte) {
	_, span := protocolTracer().Start(ctx, "frame."+direction+"."+frameType,
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer span.End()

	span.SetAttributes(
		attribute.String("frame.direction", direction),
		attribute.String("frame.type", frameType),
		attribute.String("session_id", sessionID),
		attribute.Int("frame.bytes", len(raw)),
	)
	if wireDebugEnabled() {
		span.SetAttributes(attribute.String("frame.raw", truncate(raw)))
	}
}

// TraceControlRequest starts a span covering one outbound control request
// until its response arrives. Caller must call span.End().
func TraceControlRequest(ctx context.Context, subtype, requestID string) (context.Context, trace.Span) {
	ctx, span := protocolTracer().Start(ctx, "control."+subtype,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		attribute.String("control.subtype", subtype),
		attribute.String("control.request_id", requestID),
	)
	return ctx, span
}

// TraceControlResponse records the outcome of a control request on the span.
func TraceControlResponse(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// TraceHandlerDispatch starts a span for an inbound request handed to a
// local handler (hook, permission or tool call). Caller must call span.End().
func TraceHandlerDispatch(ctx context.Context, subtype, requestID string) (context.Context, trace.Span) {
	ctx, span := protocolTracer().Start(ctx, "handler."+subtype,
		trace.WithSpanKind(trace.SpanKindServer),
	)
	span.SetAttributes(
		attribute.String("control.subtype", subtype),
		attribute.String("control.request_id", requestID),
	)
	return ctx, span
}

func truncate(raw []byte) string {
	if len(raw) > maxPayloadBytes {
		return string(raw[:maxPayloadBytes]) + "...(truncated)"
	}
	return string(raw)
}
