package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestOTELProbe_ServiceSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	defer otel.SetTracerProvider(previous)

	probe := NewOTELProbe(nil, nil)

	ctx, span := probe.StartServiceSpan(context.Background(), "identity", "login", map[string]interface{}{
		"user.id": "user-1",
	})
	probe.RecordServiceOperation(ctx, "identity", "login", time.Millisecond, errors.New("boom"))
	probe.RecordBusinessEvent(ctx, "user.logged_in", "user", "user-1", nil)
	span.End()

	ended := recorder.Ended()
	assert.Len(t, ended, 1)
	assert.Equal(t, "service.identity.login", ended[0].Name())
	assert.Len(t, ended[0].Events(), 2)
}

func TestOTELProbe_CountsOperations(t *testing.T) {
	metrics := NewAppMetrics(prometheus.NewRegistry())
	probe := NewOTELProbe(nil, metrics)

	probe.RecordServiceOperation(context.Background(), "identity", "logout", time.Millisecond, nil)
	probe.RecordServiceOperation(context.Background(), "identity", "logout", time.Millisecond, errors.New("invalid token"))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.identityOperations.WithLabelValues("logout", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.identityOperations.WithLabelValues("logout", "invalid token")))
}

func TestToAttributes(t *testing.T) {
	attrs := toAttributes(map[string]interface{}{
		"s": "x",
		"i": 1,
		"b": true,
		"o": struct{}{},
	})

	assert.Len(t, attrs, 4)
}
