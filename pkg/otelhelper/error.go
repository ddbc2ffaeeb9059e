package otelhelper

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SetError marks span as failed. A nil err only sets the status.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if err == nil {
		span.SetStatus(codes.Error, "")

		return
	}

	span.RecordError(err, trace.WithAttributes(attrs...))
	span.SetStatus(codes.Error, err.Error())
}

// RecordResult tags span with the job result status and marks failures.
func RecordResult(span trace.Span, status string, err error) {
	span.SetAttributes(attribute.String(ResultKey, status))

	if err != nil {
		SetError(span, err)

		return
	}

	span.SetStatus(codes.Ok, "")
}
