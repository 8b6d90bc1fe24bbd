package store

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/strapiql/internal/querysql"
)

const tracerName = "github.com/roach88/strapiql/internal/store"

// startSpan opens a client span for one statement. Only the SQL text is
// recorded; bound values never are.
func (s *Store) startSpan(ctx context.Context, op string, st querysql.Statement) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, "sqlite."+op, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("db.system", "sqlite"),
		attribute.String("db.operation", op),
		attribute.String("db.statement", st.SQL),
		attribute.Int("db.args", len(st.Args)),
	)
	return ctx, span
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
