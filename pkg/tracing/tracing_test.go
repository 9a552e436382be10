package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tokmz/pushgate/pkg/errors"
)

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Exporter = "zipkin"
	assert.True(t, errors.Is(cfg.Validate(), ErrInvalidConfig))

	cfg = DefaultConfig()
	cfg.SamplingRate = 2
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.ServiceName = ""
	assert.Error(t, cfg.Validate())
}

func TestNewTracerProviderDisabledUsesNoop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Exporter = ExporterOTLPGRPC
	tp, err := NewTracerProvider(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, ExporterNoop, cfg.Exporter)

	_, span := StartSpan(context.Background(), "op")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	assert.Same(t, tp, otel.GetTracerProvider())
	require.NoError(t, Shutdown(context.Background()))
	assert.NoError(t, Shutdown(context.Background()))
}

func TestSamplerSelection(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sampler = "never"
	assert.Equal(t, sdktrace.NeverSample().Description(), newSampler(cfg).Description())

	t.Setenv("OTEL_TRACES_SAMPLER", "always_on")
	assert.Nil(t, newSampler(cfg))
}

func TestRecordErrorAndTraceID(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	assert.Empty(t, TraceID(context.Background()))

	ctx, span := tp.Tracer("t").Start(context.Background(), "op")
	assert.Equal(t, span.SpanContext().TraceID().String(), TraceID(ctx))
	RecordError(span, nil)
	RecordError(span, assert.AnError)
	span.End()

	require.Len(t, rec.Ended(), 1)
	assert.Equal(t, codes.Error, rec.Ended()[0].Status().Code)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	r := gin.New()
	r.Use(Middleware(WithFilter(func(c *gin.Context) bool {
		return c.Request.URL.Path != "/healthz"
	})))
	r.GET("/items/:id", func(c *gin.Context) {
		assert.NotEmpty(t, c.GetString(TraceIDKey))
		assert.NotEmpty(t, TraceID(c.Request.Context()))
		c.Status(http.StatusInternalServerError)
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/1", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /items/:id", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}
