package telemetry

import (
	"context"
	"net/http"

	"github.com/newrelic/go-agent/v3/newrelic"
)

// Span is a provider independent unit of timed work. Recording happens when
// Finish is called.
//
// Spans are not safe to start concurrently from the same parent.
type Span interface {
	// Finish ends the Span.
	Finish()

	// Ignore prevents the enclosing transaction from being recorded.
	Ignore()

	// SetLabel adds a key value pair to the transaction. The value must be a
	// number, string or boolean.
	SetLabel(key string, value any)

	// NoticeError attaches err to the Span.
	NoticeError(err error)
}

// StartSpan begins a Span as a child of the transaction in ctx, or a new
// transaction on DefaultTracer when there is none.
func StartSpan(ctx context.Context, name string) (context.Context, Span) {
	tx := newrelic.FromContext(ctx)
	if tx == nil {
		return FromContext(ctx).StartSpan(ctx, name)
	}

	return ctx, &nrSegmentSpan{
		Transaction: tx,
		Segment:     tx.StartSegment(name),
	}
}

type nrTransactionSpan struct{ *newrelic.Transaction }

func (s *nrTransactionSpan) Ignore() { s.Transaction.Ignore() }
func (s *nrTransactionSpan) Finish() { s.Transaction.End() }
func (s *nrTransactionSpan) SetLabel(key string, value any) {
	s.Transaction.AddAttribute(key, value)
}

// nrWebTransactionSpan also exposes the ResponseWriter returned by
// SetWebResponse.
type nrWebTransactionSpan struct {
	http.ResponseWriter
	*nrTransactionSpan
}

var _ Span = (*nrWebTransactionSpan)(nil)

type nrSegmentSpan struct {
	*newrelic.Transaction
	*newrelic.Segment
}

func (s *nrSegmentSpan) Finish() { s.Segment.End() }
func (s *nrSegmentSpan) Ignore() { s.Transaction.Ignore() }
func (s *nrSegmentSpan) SetLabel(key string, value any) {
	s.Segment.AddAttribute(key, value)
}

var _ Span = (*nrSegmentSpan)(nil)
