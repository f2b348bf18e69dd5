// Package observe bundles the structured logger and tracer used across the
// retrieval engine.
package observe

import (
	"context"
	"io"

	"github.com/felixgeelhaar/bolt/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope spans are recorded under.
const TracerName = "github.com/becomeliminal/nim-recall"

var tracer = otel.Tracer(TracerName)

// Observer carries the logger every component writes to and starts the
// spans that wrap retrievals, source searches and memory writes.
type Observer struct {
	log *bolt.Logger
}

// New logs human-readable lines to out. Unless verbose, only warnings and
// errors are written, so skipped sources stay quiet.
func New(out io.Writer, verbose bool) *Observer {
	return newObserver(bolt.NewConsoleHandler(out), verbose)
}

// NewJSON is New with one JSON object per record, for hosts that ship logs.
func NewJSON(out io.Writer, verbose bool) *Observer {
	return newObserver(bolt.NewJSONHandler(out), verbose)
}

func newObserver(h bolt.Handler, verbose bool) *Observer {
	l := bolt.New(h)
	if !verbose {
		l.SetLevel(bolt.WARN)
	}
	return &Observer{log: l}
}

// Discard drops every record.
func Discard() *Observer {
	return NewJSON(io.Discard, false)
}

// Or returns o, or Discard when o is nil. Components accept an optional
// Observer through it.
func Or(o *Observer) *Observer {
	if o == nil {
		return Discard()
	}
	return o
}

func (o *Observer) Log() *bolt.Logger {
	return o.log
}

// StartSpan starts a span named name. kv holds string attributes as
// key/value pairs; a trailing key without a value is ignored.
func (o *Observer) StartSpan(ctx context.Context, name string, kv ...string) (context.Context, trace.Span) {
	attrs := make([]attribute.KeyValue, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		attrs = append(attrs, attribute.String(kv[i], kv[i+1]))
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// Fail records err on span and marks the span as failed. A nil err is
// ignored.
func Fail(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
