package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// spanLog is a span exporter that keeps every ended span for the summary
// printed after the run.
type spanLog struct {
	mu    sync.Mutex
	spans []sdktrace.ReadOnlySpan
}

var _ sdktrace.SpanExporter = (*spanLog)(nil)

func (l *spanLog) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.spans = append(l.spans, spans...)
	return nil
}

func (l *spanLog) Shutdown(context.Context) error {
	return nil
}

func (l *spanLog) ended() []sdktrace.ReadOnlySpan {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]sdktrace.ReadOnlySpan, len(l.spans))
	copy(out, l.spans)
	return out
}

func (l *spanLog) print(w io.Writer) {
	spans := l.ended()
	fmt.Fprintf(w, "== trace (%d spans)\n", len(spans))
	for _, sp := range spans {
		fmt.Fprintf(w, "%s %s %s", sp.Name(), sp.EndTime().Sub(sp.StartTime()), sp.Status().Code)
		for _, kv := range sp.Attributes() {
			fmt.Fprintf(w, " %s=%s", kv.Key, kv.Value.Emit())
		}
		fmt.Fprintln(w)
	}
}
