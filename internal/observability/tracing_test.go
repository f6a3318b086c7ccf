package observability

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), DefaultTracingConfig(), nil)
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestInitTracingStdout(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultTracingConfig()
	cfg.Enabled = true
	cfg.Writer = &buf

	shutdown, err := InitTracing(context.Background(), cfg, nil)
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "pointcount.Count")
	span.End()

	ShutdownWithTimeout(context.Background(), shutdown, nil)
	assert.Contains(t, buf.String(), "pointcount.Count")

	t.Cleanup(func() {
		_, _ = InitTracing(context.Background(), DefaultTracingConfig(), nil)
	})
}

func TestInitTracingUnknownExporter(t *testing.T) {
	cfg := DefaultTracingConfig()
	cfg.Enabled = true
	cfg.Exporter = "carrier-pigeon"

	_, err := InitTracing(context.Background(), cfg, nil)
	assert.Error(t, err)
}
