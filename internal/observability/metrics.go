// Package observability wires the service's metrics pipeline.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds the service's instruments. A nil *Metrics is valid and
// records nothing, so callers never need to guard.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   metric.Int64Counter
	requestDuration metric.Float64Histogram

	jobsCreated metric.Int64Counter
	jobsDeleted metric.Int64Counter
	jobsMarked  metric.Int64Counter

	cleanupDuration metric.Float64Histogram
	cleanupErrors   metric.Int64Counter
}

// New builds the otel meter backed by a dedicated prometheus registry.
func New() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("jobforge")

	m := &Metrics{registry: registry}

	if m.requestsTotal, err = meter.Int64Counter("http_requests_total",
		metric.WithDescription("HTTP requests served")); err != nil {
		return nil, err
	}
	if m.requestDuration, err = meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP request latency"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.jobsCreated, err = meter.Int64Counter("jobs_created_total",
		metric.WithDescription("Jobs submitted to the cluster")); err != nil {
		return nil, err
	}
	if m.jobsDeleted, err = meter.Int64Counter("jobs_deleted_total",
		metric.WithDescription("Jobs deleted from the cluster")); err != nil {
		return nil, err
	}
	if m.jobsMarked, err = meter.Int64Counter("jobs_marked_total",
		metric.WithDescription("Finished jobs marked for deletion")); err != nil {
		return nil, err
	}
	if m.cleanupDuration, err = meter.Float64Histogram("cleanup_duration_seconds",
		metric.WithDescription("Duration of one cleanup iteration"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.cleanupErrors, err = meter.Int64Counter("cleanup_errors_total",
		metric.WithDescription("Cleanup iterations that reported errors")); err != nil {
		return nil, err
	}

	return m, nil
}

// Registry exposes the prometheus registry for the metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attrMethod(method),
		attrRoute(route),
		attrStatus(status),
	)
	m.requestsTotal.Add(ctx, 1, attrs)
	m.requestDuration.Record(ctx, duration.Seconds(), attrs)
}

func (m *Metrics) RecordJobCreated(ctx context.Context, definition string) {
	if m == nil {
		return
	}
	m.jobsCreated.Add(ctx, 1, metric.WithAttributes(attrDefinition(definition)))
}

func (m *Metrics) RecordJobDeleted(ctx context.Context) {
	if m == nil {
		return
	}
	m.jobsDeleted.Add(ctx, 1)
}

func (m *Metrics) RecordJobMarked(ctx context.Context) {
	if m == nil {
		return
	}
	m.jobsMarked.Add(ctx, 1)
}

func (m *Metrics) RecordCleanup(ctx context.Context, duration time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.cleanupDuration.Record(ctx, duration.Seconds())
	if failed {
		m.cleanupErrors.Add(ctx, 1)
	}
}
