// Package traced wraps searchers and compilers with OpenTelemetry spans.
package traced

import (
	"context"
	"fmt"

	"github.com/letmevibethatforyou/odatax"
	"github.com/letmevibethatforyou/odatax/odata"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name used when no tracer is supplied.
const TracerName = "odatax"

// Option configures a traced wrapper.
type Option func(*config)

type config struct {
	tracer trace.Tracer
}

// WithTracer sets the tracer spans are started on.
func WithTracer(t trace.Tracer) Option {
	return func(c *config) {
		if t != nil {
			c.tracer = t
		}
	}
}

func newConfig(opts []Option) config {
	c := config{tracer: otel.Tracer(TracerName)}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Searcher records a span around every search of the wrapped searcher.
type Searcher struct {
	next   odatax.Searcher
	name   string
	tracer trace.Tracer
}

// NewSearcher wraps next. The name is recorded on every span.
func NewSearcher(next odatax.Searcher, name string, opts ...Option) *Searcher {
	c := newConfig(opts)
	return &Searcher{
		next:   next,
		name:   name,
		tracer: c.tracer,
	}
}

// Search implements the odatax.Searcher interface.
func (s *Searcher) Search(ctx context.Context, query string, opts ...odatax.SearchOption) (*odatax.Results, error) {
	ctx, span := s.tracer.Start(ctx, "odatax.search",
		trace.WithAttributes(
			attribute.String("odatax.searcher", s.name),
			attribute.String("odatax.query", query),
			attribute.Int("odatax.option_count", len(opts)),
		),
	)
	defer span.End()

	results, err := s.next.Search(ctx, query, opts...)
	if err != nil {
		recordError(span, err, fmt.Sprintf("search on %s failed", s.name))
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("odatax.result_count", len(results.Items)),
		attribute.Int64("odatax.took_ms", results.Took),
	)
	if results.Total != nil {
		span.SetAttributes(attribute.Int64("odatax.total", *results.Total))
	}
	span.SetStatus(codes.Ok, "search completed")
	return results, nil
}

// Compiler records a span around every build of the wrapped compiler.
type Compiler struct {
	compiler *odata.Compiler
	tracer   trace.Tracer
}

// NewCompiler wraps c.
func NewCompiler(c *odata.Compiler, opts ...Option) *Compiler {
	cfg := newConfig(opts)
	return &Compiler{
		compiler: c,
		tracer:   cfg.tracer,
	}
}

// Build compiles the options into search parameters.
func (c *Compiler) Build(ctx context.Context, opts ...odatax.SearchOption) (*odata.Parameters, error) {
	_, span := c.tracer.Start(ctx, "odatax.compile",
		trace.WithAttributes(
			attribute.Int("odatax.option_count", len(opts)),
		),
	)
	defer span.End()

	params, err := c.compiler.Build(opts...)
	if err != nil {
		recordError(span, err, "failed to compile search parameters")
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("odatax.filter_length", len(params.Filter)),
		attribute.StringSlice("odatax.order_by", params.OrderBy),
		attribute.StringSlice("odatax.select", params.Select),
	)
	span.SetStatus(codes.Ok, "compiled")
	return params, nil
}

func recordError(span trace.Span, err error, msg string) {
	span.RecordError(err)
	if code := odatax.CodeOf(err); code != 0 {
		span.SetAttributes(attribute.String("odatax.error_code", code.String()))
	}
	span.SetStatus(codes.Error, msg)
}
