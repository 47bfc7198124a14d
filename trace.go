package sdk

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/trace"

	"github.com/planpilot/planpilot-go/headers"
)

// injectTraceparent propagates the caller's span context, if any, onto the
// outgoing request so server-side traces link back to the embedding app.
func injectTraceparent(ctx context.Context, req *http.Request) {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return
	}
	req.Header.Set(headers.Traceparent, fmt.Sprintf("00-%s-%s-01", sc.TraceID(), sc.SpanID()))
}
