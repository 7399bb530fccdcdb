package tracing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// Tests in this package install global providers, so they do not run in parallel.

func TestSpansAreExported(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	shutdown, err := InitWithExporter("datagen", "test", exporter)
	require.NoError(t, err)
	defer shutdown(context.Background())

	ctx, parent := StartSpan(context.Background(), "run")
	parent.SetString("run.id", "abc")

	_, child := StartSpan(ctx, "phase.users")
	child.SetInt("records", 3)
	EndSpan(child, nil)

	EndSpan(parent, errors.New("disk full"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	assert.Equal(t, "phase.users", spans[0].Name)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
	assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())

	assert.Equal(t, "run", spans[1].Name)
	assert.Equal(t, codes.Error, spans[1].Status.Code)
	assert.Equal(t, "disk full", spans[1].Status.Description)
}

func TestInitWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.json")
	shutdown, err := Init("datagen", "test", path)
	require.NoError(t, err)

	_, sp := StartSpan(context.Background(), "phase.providers")
	EndSpan(sp, nil)
	require.NoError(t, shutdown(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got struct{ Name string }
	require.NoError(t, json.NewDecoder(bytes.NewReader(data)).Decode(&got))
	assert.Equal(t, "phase.providers", got.Name)
}

func TestNilSpanIsSafe(t *testing.T) {
	var s *Span
	assert.Nil(t, s.SetString("k", "v").SetInt("n", 1))
	EndSpan(nil, errors.New("ignored"))
}
