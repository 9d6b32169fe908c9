// Package datasource filters, sorts, pages, groups and aggregates any
// queryable collection of items according to a Request.
//
// Filters can be built as descriptors or parsed from the compact grammar:
//
//	f, err := datasource.ParseFilter("Age~gt~30~and~Name~startswith~'J'")
//	req := &datasource.Request{Filters: []datasource.Filter{f}, Page: 1, PageSize: 20}
//	res, err := datasource.New().ToResult(ctx, datasource.From(people), req, datasource.ResultOptions{})
package datasource

import (
	"context"
	"log/slog"
	"reflect"
	"time"

	"github.com/nlstn/go-datasource/internal/aggregate"
	"github.com/nlstn/go-datasource/internal/descriptor"
	"github.com/nlstn/go-datasource/internal/grammar"
	"github.com/nlstn/go-datasource/internal/hierarchy"
	"github.com/nlstn/go-datasource/internal/member"
	"github.com/nlstn/go-datasource/internal/observability"
	"github.com/nlstn/go-datasource/internal/pipeline"
	"go.opentelemetry.io/otel/trace"
)

// Processor executes requests against queryable sources. A Processor is safe
// for concurrent use once configured.
type Processor struct {
	logger         *slog.Logger
	observability  *observability.Config
	lift           bool
	stableOrdering StableOrderingPolicy
	resolver       Resolver
	maxDepth       int
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the logger. A nil logger restores slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		p.SetLogger(logger)
	}
}

// WithObservability enables tracing, metrics and Server-Timing stages.
func WithObservability(opts ...observability.Option) Option {
	return func(p *Processor) {
		p.observability = observability.NewConfig(opts...)
	}
}

// WithLiftMemberAccess controls whether member chains are guarded against nil
// intermediates. It is enabled by default.
func WithLiftMemberAccess(lift bool) Option {
	return func(p *Processor) {
		p.lift = lift
	}
}

// WithStableOrderingPolicy decides which sources receive a synthetic sort
// when a request has none.
func WithStableOrderingPolicy(policy StableOrderingPolicy) Option {
	return func(p *Processor) {
		p.stableOrdering = policy
	}
}

// WithMemberResolver resolves members of interface-typed items.
func WithMemberResolver(resolver Resolver) Option {
	return func(p *Processor) {
		p.resolver = resolver
	}
}

// WithMaxHierarchyDepth bounds the closure iterations of ToTreeResult.
func WithMaxHierarchyDepth(depth int) Option {
	return func(p *Processor) {
		p.maxDepth = depth
	}
}

// New creates a Processor.
func New(opts ...Option) *Processor {
	p := &Processor{
		logger:   slog.Default(),
		lift:     true,
		maxDepth: hierarchy.DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetLogger sets a custom logger for the processor.
// If logger is nil, slog.Default() is used.
func (p *Processor) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	p.logger = logger
}

// Observability returns the observability configuration, or nil when it is disabled.
func (p *Processor) Observability() *observability.Config {
	return p.observability
}

// ResultOptions configures one ToResult call.
type ResultOptions struct {
	// Selector projects every returned row.
	Selector Selector
	// Errors is copied into the result verbatim.
	Errors interface{}
}

// TreeOptions configures one ToTreeResult call.
type TreeOptions struct {
	// ID and ParentID are member paths of the identifier and parent identifier.
	ID       string
	ParentID string
	// Root optionally restricts the returned rows and the aggregate seeds.
	Root     Filter
	Selector Selector
	Errors   interface{}
}

func (p *Processor) pipelineOptions(selector Selector, errs interface{}) pipeline.Options {
	return pipeline.Options{
		Lift:           p.lift,
		Resolver:       p.resolver,
		StableOrdering: p.stableOrdering,
		Selector:       selector,
		Errors:         errs,
		Logger:         p.logger,
		Observability:  p.observability,
	}
}

// ToResult filters, sorts, pages, groups and aggregates source according to req.
func (p *Processor) ToResult(ctx context.Context, source Queryable, req *Request, opts ResultOptions) (*Result, error) {
	shape := shapeName(source.Shape())
	ctx, span := p.observability.Tracer().StartQuery(ctx, shape)
	defer span.End()
	p.annotate(span, req)

	start := time.Now()
	res, err := pipeline.Execute(ctx, source, req, p.pipelineOptions(opts.Selector, opts.Errors))
	p.finish(ctx, span, shape, observability.ModeQuery, start, err)
	if err != nil {
		return nil, err
	}
	p.observability.Tracer().SetResult(span, res.Total, len(res.Data))
	p.observability.Metrics().RecordResultCount(ctx, shape, int64(len(res.Data)))
	return res, nil
}

// ToTreeResult runs req over source as a hierarchy: filter matches are
// returned together with all their ancestors and request aggregates are
// computed per parent key over whole subtrees.
func (p *Processor) ToTreeResult(ctx context.Context, source Queryable, req *Request, opts TreeOptions) (*TreeResult, error) {
	shape := shapeName(source.Shape())
	ctx, span := p.observability.Tracer().StartTree(ctx, shape)
	defer span.End()
	p.annotate(span, req)

	start := time.Now()
	res, err := hierarchy.Execute(ctx, source, req, hierarchy.Options{
		Options:  p.pipelineOptions(opts.Selector, opts.Errors),
		ID:       opts.ID,
		ParentID: opts.ParentID,
		Root:     opts.Root,
		MaxDepth: p.maxDepth,
	})
	p.finish(ctx, span, shape, observability.ModeTree, start, err)
	if err != nil {
		return nil, err
	}
	p.observability.Tracer().SetResult(span, res.Total, len(res.Data))
	p.observability.Metrics().RecordResultCount(ctx, shape, int64(len(res.Data)))
	return res, nil
}

func (p *Processor) annotate(span trace.Span, req *Request) {
	if req == nil || !p.observability.RequestTracingEnabled() {
		return
	}
	var filter string
	if f := req.Filter(); f != nil {
		filter = descriptor.SerializeFilter(f)
	}
	p.observability.Tracer().AddRequest(span,
		filter,
		descriptor.SerializeSorts(req.Sorts),
		descriptor.SerializeGroups(req.Groups),
		descriptor.SerializeAggregates(req.Aggregates),
		req.Page, req.PageSize)
}

func (p *Processor) finish(ctx context.Context, span trace.Span, shape, mode string, start time.Time, err error) {
	metrics := p.observability.Metrics()
	metrics.RecordQuery(ctx, shape, mode, time.Since(start))
	metrics.RecordRecordTypes(ctx, aggregate.CachedRecordTypes())
	if err == nil {
		return
	}
	kind := ErrorKind(err)
	p.observability.Tracer().RecordError(span, err)
	span.SetAttributes(observability.ErrorKindAttr(kind))
	metrics.RecordError(ctx, shape, mode, kind)
	observability.LoggerWithTrace(ctx, p.logger).Warn("datasource: request failed",
		"shape", shape,
		"mode", mode,
		"kind", kind,
		"error", err)
}

func shapeName(shape member.Shape) string {
	if shape.Type == nil {
		return "dynamic"
	}
	if shape.Type.Kind() == reflect.Pointer {
		return shape.Type.Elem().String()
	}
	return shape.Type.String()
}

// ParseFilter parses filter grammar text into a descriptor. Empty text yields
// a nil filter and no error.
func ParseFilter(text string) (Filter, error) {
	return grammar.ParseFilter(text)
}
