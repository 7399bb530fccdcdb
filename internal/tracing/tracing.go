// Package tracing is a thin wrapper around OpenTelemetry. Until Init or
// InitWithExporter installs a provider every span is a no-op, so callers can
// trace unconditionally.
package tracing

import (
	"context"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "pkg.jsn.cam/datagen"

// Shutdown flushes and stops the installed provider.
type Shutdown func(ctx context.Context) error

// Init installs a provider exporting spans as JSON to outputFile, or to
// stdout when outputFile is empty.
func Init(serviceName, serviceVersion, outputFile string) (Shutdown, error) {
	var w io.Writer = os.Stdout
	var file *os.File
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return nil, err
		}
		w, file = f, f
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		if file != nil {
			file.Close()
		}
		return nil, err
	}

	shutdown, err := InitWithExporter(serviceName, serviceVersion, exporter)
	if err != nil {
		if file != nil {
			file.Close()
		}
		return nil, err
	}

	return func(ctx context.Context) error {
		err := shutdown(ctx)
		if file != nil {
			if cerr := file.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
		return err
	}, nil
}

// InitWithExporter installs a provider sending spans synchronously to exporter.
func InitWithExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) (Shutdown, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// Span wraps an OpenTelemetry span.
type Span struct {
	span trace.Span
}

// StartSpan starts an internal span as a child of any span in ctx.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, name, trace.WithSpanKind(trace.SpanKindInternal))
	return ctx, &Span{span: span}
}

// SetString attaches a string attribute.
func (s *Span) SetString(key, value string) *Span {
	if s != nil {
		s.span.SetAttributes(attribute.String(key, value))
	}
	return s
}

// SetInt attaches an integer attribute.
func (s *Span) SetInt(key string, value int64) *Span {
	if s != nil {
		s.span.SetAttributes(attribute.Int64(key, value))
	}
	return s
}

// EndSpan records err (or OK) on the span and ends it.
func EndSpan(s *Span, err error) {
	if s == nil {
		return
	}
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}
