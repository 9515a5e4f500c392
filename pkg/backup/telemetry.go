// Copyright (C) 2025 KaleiDev
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package backup

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/KaleiDev/safe-backup-CYB225/pkg/safeerr"
)

// InstrumentationName names the tracer and meter used by this package.
const InstrumentationName = "safebackup.backup"

var meter = otel.Meter(InstrumentationName)

var (
	opDuration metric.Float64Histogram
	opTotal    metric.Int64Counter
	bytesTotal metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics creates the instruments on first use. Safe to call repeatedly.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error
		opDuration, err = meter.Float64Histogram(
			"safebackup_operation_duration_seconds",
			metric.WithDescription("Duration of backup service operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}
		opTotal, err = meter.Int64Counter(
			"safebackup_operations_total",
			metric.WithDescription("Backup service operations by name and outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}
		bytesTotal, err = meter.Int64Counter(
			"safebackup_bytes_copied_total",
			metric.WithDescription("Bytes written into or restored out of the backup root"),
			metric.WithUnit("By"),
		)
		if err != nil {
			metricsErr = err
		}
	})
	return metricsErr
}

// startSpan opens a span for one service operation.
func (s *Service) startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "backup."+op,
		trace.WithAttributes(append(attrs, attribute.String("backup.root", s.catalog.Root()))...),
	)
}

// finish ends span and records the operation's metrics.
func finish(ctx context.Context, span trace.Span, op string, started time.Time, copied int64, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if kind := safeerr.KindOf(err); kind != nil {
			outcome = kind.Error()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.String("backup.outcome", outcome))
	span.End()

	if initMetrics() != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	)
	opDuration.Record(ctx, time.Since(started).Seconds(), attrs)
	opTotal.Add(ctx, 1, attrs)
	if copied > 0 {
		bytesTotal.Add(ctx, copied, metric.WithAttributes(attribute.String("operation", op)))
	}
}
