package observability

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// Stage times one pipeline stage as a child span and, when Server-Timing is
// enabled, as a timing metric of the same name.
type Stage struct {
	tracer *Tracer
	span   trace.Span
	timing *ServerTimingMetric
}

// StartStage starts timing the named stage.
func (c *Config) StartStage(ctx context.Context, name string) (context.Context, *Stage) {
	tracer := c.Tracer()
	ctx, span := tracer.StartStage(ctx, name)
	s := &Stage{tracer: tracer, span: span}
	if c.ServerTimingEnabled() {
		s.timing = StartServerTiming(ctx, name)
	}
	return ctx, s
}

// End stops the stage, recording err on its span when non-nil.
func (s *Stage) End(err error) {
	if s == nil {
		return
	}
	s.timing.Stop()
	s.tracer.RecordError(s.span, err)
	s.span.End()
}
