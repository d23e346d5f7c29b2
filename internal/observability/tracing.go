package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// StartSpan starts a new span from context
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, opts...)
}

// StartServiceSpan starts a span for service operations
func StartServiceSpan(ctx context.Context, service, operation string) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("%s.%s", service, operation),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("service.component", service),
			attribute.String("service.operation", operation),
		),
	)
}

// RecordError records an error on the span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSuccess marks the span as successful
func SetSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// FinishSpan sets the span status from err and ends it
func FinishSpan(span trace.Span, err error) {
	if err != nil {
		RecordError(span, err)
	} else {
		SetSuccess(span)
	}
	span.End()
}

// AddEvent adds an event to the span
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// Toggle outcomes recorded by SelectionMetrics
const (
	ToggleSelected   = "selected"
	ToggleDeselected = "deselected"
	ToggleLocked     = "locked"
	ToggleLimit      = "limit_reached"
	ToggleFailed     = "failed"
)

// SelectionMetrics holds the photo selection business metrics.
// A nil *SelectionMetrics records nothing.
type SelectionMetrics struct {
	toggles        metric.Int64Counter
	submissions    metric.Int64Counter
	photoUploads   metric.Int64Counter
	uploadedBytes  metric.Int64Counter
	photoDeletions metric.Int64Counter
	projectDeletes metric.Int64Counter
	exports        metric.Int64Counter
}

// NewSelectionMetrics creates selection metrics instruments
func NewSelectionMetrics() (*SelectionMetrics, error) {
	meter := otel.Meter(instrumentationName)

	toggles, err := meter.Int64Counter(
		"selectphoto.selection.toggles",
		metric.WithDescription("Selection toggles by outcome"),
		metric.WithUnit("{toggles}"),
	)
	if err != nil {
		return nil, err
	}

	submissions, err := meter.Int64Counter(
		"selectphoto.project.submissions",
		metric.WithDescription("Projects whose selection was submitted"),
		metric.WithUnit("{projects}"),
	)
	if err != nil {
		return nil, err
	}

	photoUploads, err := meter.Int64Counter(
		"selectphoto.photo.uploads",
		metric.WithDescription("Total number of photo uploads"),
		metric.WithUnit("{uploads}"),
	)
	if err != nil {
		return nil, err
	}

	uploadedBytes, err := meter.Int64Counter(
		"selectphoto.photo.uploaded_bytes",
		metric.WithDescription("Bytes pushed to the asset store"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	photoDeletions, err := meter.Int64Counter(
		"selectphoto.photo.deletions",
		metric.WithDescription("Photos removed together with their asset"),
		metric.WithUnit("{photos}"),
	)
	if err != nil {
		return nil, err
	}

	projectDeletes, err := meter.Int64Counter(
		"selectphoto.project.deletions",
		metric.WithDescription("Project delete attempts"),
		metric.WithUnit("{projects}"),
	)
	if err != nil {
		return nil, err
	}

	exports, err := meter.Int64Counter(
		"selectphoto.selection.exports",
		metric.WithDescription("Selection exports by format"),
		metric.WithUnit("{exports}"),
	)
	if err != nil {
		return nil, err
	}

	return &SelectionMetrics{
		toggles:        toggles,
		submissions:    submissions,
		photoUploads:   photoUploads,
		uploadedBytes:  uploadedBytes,
		photoDeletions: photoDeletions,
		projectDeletes: projectDeletes,
		exports:        exports,
	}, nil
}

// RecordToggle records the outcome of a selection toggle
func (m *SelectionMetrics) RecordToggle(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.toggles.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordSubmit records a project moving to submitted
func (m *SelectionMetrics) RecordSubmit(ctx context.Context) {
	if m == nil {
		return
	}
	m.submissions.Add(ctx, 1)
}

// RecordPhotoUpload records a photo upload
func (m *SelectionMetrics) RecordPhotoUpload(ctx context.Context, fileSize int64, success bool) {
	if m == nil {
		return
	}
	m.photoUploads.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
	if success {
		m.uploadedBytes.Add(ctx, fileSize)
	}
}

// RecordPhotoDeletions records photos removed with their assets
func (m *SelectionMetrics) RecordPhotoDeletions(ctx context.Context, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.photoDeletions.Add(ctx, int64(count))
}

// RecordProjectDelete records a project delete attempt
func (m *SelectionMetrics) RecordProjectDelete(ctx context.Context, success bool) {
	if m == nil {
		return
	}
	m.projectDeletes.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}

// RecordExport records a CSV or ZIP export
func (m *SelectionMetrics) RecordExport(ctx context.Context, format string, photoCount int, success bool) {
	if m == nil {
		return
	}
	m.exports.Add(ctx, 1, metric.WithAttributes(
		attribute.String("format", format),
		attribute.Int("photo_count", photoCount),
		attribute.Bool("success", success),
	))
}
