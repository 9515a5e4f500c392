// Copyright (C) 2025 KaleiDev
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package telemetry installs the OpenTelemetry providers for one CLI
// invocation.
//
// Library packages create their tracers and meters from the otel globals at
// init time. Those globals delegate to whatever providers Init installs, so
// spans and metrics recorded during the command reach the exporters chosen
// here. With both exporters set to "none" the globals stay no-op.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
)

const (
	// ExporterStdout writes pretty-printed JSON to Config.Writer.
	ExporterStdout = "stdout"

	// ExporterNone disables the signal.
	ExporterNone = "none"
)

var (
	// ErrUnknownExporter indicates an unsupported exporter name.
	ErrUnknownExporter = errors.New("unknown exporter")

	// ErrNilContext indicates Init was called with a nil context.
	ErrNilContext = errors.New("nil context")
)

// Config controls telemetry for one invocation.
type Config struct {
	// ServiceName identifies this program in exported resources.
	ServiceName string

	// ServiceVersion is the program version.
	ServiceVersion string

	// TraceExporter is ExporterStdout or ExporterNone.
	TraceExporter string

	// MetricExporter is ExporterStdout or ExporterNone.
	MetricExporter string

	// Writer receives exported data. Default: os.Stderr, so command output
	// on stdout stays parseable.
	Writer io.Writer
}

// DefaultConfig returns a config with both signals disabled.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "safebackup",
		ServiceVersion: "dev",
		TraceExporter:  ExporterNone,
		MetricExporter: ExporterNone,
	}
}

// Init installs tracer and meter providers according to cfg.
//
// # Description
//
// Spans are batched and flushed on shutdown. Metrics are collected by a
// periodic reader which also performs a final collection on shutdown, so a
// short-lived command still exports its counters once.
//
// # Outputs
//
//   - shutdown: Flushes and stops every installed provider. Must be called.
//   - error: ErrUnknownExporter for an unsupported name
//
// # Example
//
//	shutdown, err := telemetry.Init(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer shutdown(context.Background())
func Init(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if cfg.Writer == nil {
		cfg.Writer = os.Stderr
	}

	var shutdownFuncs []func(context.Context) error
	shutdown = func(ctx context.Context) error {
		var errs []error
		for _, fn := range shutdownFuncs {
			errs = append(errs, fn(ctx))
		}
		return errors.Join(errs...)
	}

	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	)

	if cfg.TraceExporter != "" && cfg.TraceExporter != ExporterNone {
		tp, err := initTracer(cfg, res)
		if err != nil {
			return nil, fmt.Errorf("init tracer: %w", err)
		}
		otel.SetTracerProvider(tp)
		shutdownFuncs = append(shutdownFuncs, tp.Shutdown)
	}

	if cfg.MetricExporter != "" && cfg.MetricExporter != ExporterNone {
		mp, err := initMeter(cfg, res)
		if err != nil {
			_ = shutdown(ctx)
			return nil, fmt.Errorf("init meter: %w", err)
		}
		otel.SetMeterProvider(mp)
		shutdownFuncs = append(shutdownFuncs, mp.Shutdown)
	}

	return shutdown, nil
}

func initTracer(cfg Config, res *resource.Resource) (*trace.TracerProvider, error) {
	if cfg.TraceExporter != ExporterStdout {
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.TraceExporter)
	}
	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(cfg.Writer),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, fmt.Errorf("create exporter: %w", err)
	}
	return trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(trace.AlwaysSample()),
	), nil
}

func initMeter(cfg Config, res *resource.Resource) (*metric.MeterProvider, error) {
	if cfg.MetricExporter != ExporterStdout {
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.MetricExporter)
	}
	exporter, err := stdoutmetric.New(
		stdoutmetric.WithWriter(cfg.Writer),
		stdoutmetric.WithPrettyPrint(),
	)
	if err != nil {
		return nil, fmt.Errorf("create stdout metric exporter: %w", err)
	}
	return metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metric.NewPeriodicReader(exporter)),
	), nil
}
