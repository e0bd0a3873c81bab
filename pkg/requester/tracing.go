package requester

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.7.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/luizaranda/requester/pkg/internal"
	"github.com/luizaranda/requester/pkg/telemetry/tracing"
)

const _instrumentationName = "github.com/luizaranda/requester/pkg/requester"

var (
	_templateAttribute   = attribute.Key("requester.endpoint_template")
	_headerSizeAttribute = attribute.Key("requester.header_size")
	_redirectsAttribute  = attribute.Key("requester.redirect_count")
)

// startSpan opens the span covering one execution, redirects and
// authentication legs included.
func startSpan(req *http.Request) (context.Context, trace.Span) {
	tracer := otel.Tracer(_instrumentationName, trace.WithInstrumentationVersion(internal.Version))

	ctx, span := tracer.Start(req.Context(), "Requester "+req.Method, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(semconv.HTTPClientAttributesFromHTTPRequest(req)...)
	if tmpl := tracing.EndpointTemplate(ctx); tmpl != "" {
		span.SetAttributes(_templateAttribute.String(tmpl))
	}
	return ctx, span
}

func endSpan(span trace.Span, info *TransferInfo, err error) {
	defer span.End()

	if info != nil && info.HTTPCode != 0 {
		span.SetAttributes(semconv.HTTPAttributesFromHTTPStatusCode(info.HTTPCode)...)
		span.SetAttributes(
			_headerSizeAttribute.Int(info.HeaderSize),
			_redirectsAttribute.Int(info.RedirectCount),
		)
		span.SetStatus(semconv.SpanStatusFromHTTPStatusCode(info.HTTPCode))
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
