// Package metrics holds the OpenTelemetry instruments for the anomaly
// pipeline.
package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Registry holds all domain-specific metrics for the application
type Registry struct {
	meter metric.Meter

	// Pipeline metrics
	RecordsIngested   metric.Int64Counter
	AnomaliesDetected metric.Int64Counter
	PipelineLatency   metric.Float64Histogram
	ProcessingErrors  metric.Int64Counter

	// Alert metrics
	AlertsGenerated  metric.Int64Counter
	AlertsSuppressed metric.Int64Counter
	AlertsEscalated  metric.Int64Counter

	// Delivery metrics
	DeliveryFailures metric.Int64Counter
	ConnectedClients metric.Int64ObservableGauge

	// Stream metrics
	BufferDepth metric.Int64ObservableGauge

	// State for observable metrics
	mu               sync.RWMutex
	bufferDepths     map[string]int64
	connectedClients int64
}

// NewRegistry creates a new metrics registry with all pipeline metrics
func NewRegistry(meterName string) (*Registry, error) {
	r := &Registry{
		meter:        otel.Meter(meterName),
		bufferDepths: make(map[string]int64),
	}

	if err := r.initPipelineMetrics(); err != nil {
		return nil, err
	}
	if err := r.initAlertMetrics(); err != nil {
		return nil, err
	}
	if err := r.initDeliveryMetrics(); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *Registry) initPipelineMetrics() error {
	var err error

	r.RecordsIngested, err = r.meter.Int64Counter(
		"ppa.stream.records_ingested_total",
		metric.WithDescription("Total records pulled into the streaming pipeline"),
	)
	if err != nil {
		return err
	}

	r.AnomaliesDetected, err = r.meter.Int64Counter(
		"ppa.detector.anomalies_total",
		metric.WithDescription("Total records the ensemble labeled anomalous"),
	)
	if err != nil {
		return err
	}

	r.PipelineLatency, err = r.meter.Float64Histogram(
		"ppa.stream.pipeline_latency",
		metric.WithDescription("Record processing latency in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 5, 10, 50, 100, 500),
	)
	if err != nil {
		return err
	}

	r.ProcessingErrors, err = r.meter.Int64Counter(
		"ppa.stream.processing_errors_total",
		metric.WithDescription("Total records whose processing degraded"),
	)
	if err != nil {
		return err
	}

	r.BufferDepth, err = r.meter.Int64ObservableGauge(
		"ppa.stream.buffer_depth",
		metric.WithDescription("Current records buffered per stream"),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			r.mu.RLock()
			defer r.mu.RUnlock()
			for streamID, depth := range r.bufferDepths {
				o.Observe(depth, metric.WithAttributes(attribute.String("stream_id", streamID)))
			}
			return nil
		}),
	)

	return err
}

func (r *Registry) initAlertMetrics() error {
	var err error

	r.AlertsGenerated, err = r.meter.Int64Counter(
		"ppa.alert.generated_total",
		metric.WithDescription("Total alerts emitted"),
	)
	if err != nil {
		return err
	}

	r.AlertsSuppressed, err = r.meter.Int64Counter(
		"ppa.alert.suppressed_total",
		metric.WithDescription("Total anomalies suppressed as false positives"),
	)
	if err != nil {
		return err
	}

	r.AlertsEscalated, err = r.meter.Int64Counter(
		"ppa.alert.escalated_total",
		metric.WithDescription("Total escalation level bumps"),
	)

	return err
}

func (r *Registry) initDeliveryMetrics() error {
	var err error

	r.DeliveryFailures, err = r.meter.Int64Counter(
		"ppa.delivery.failures_total",
		metric.WithDescription("Total websocket or webhook delivery failures"),
	)
	if err != nil {
		return err
	}

	r.ConnectedClients, err = r.meter.Int64ObservableGauge(
		"ppa.delivery.connected_clients",
		metric.WithDescription("WebSocket clients currently subscribed"),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			r.mu.RLock()
			defer r.mu.RUnlock()
			o.Observe(r.connectedClients)
			return nil
		}),
	)

	return err
}

// SetBufferDepth records the current buffer depth of one stream
func (r *Registry) SetBufferDepth(streamID string, depth int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bufferDepths[streamID] = depth
}

// SetConnectedClients records the current websocket client count
func (r *Registry) SetConnectedClients(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectedClients = n
}

// RecordIngestion records one processed record with its latency and outcome
func (r *Registry) RecordIngestion(ctx context.Context, streamID string, latencyMS float64, success bool) {
	attrs := []attribute.KeyValue{
		attribute.String("stream_id", streamID),
		attribute.Bool("success", success),
	}

	r.RecordsIngested.Add(ctx, 1, metric.WithAttributes(attrs...))
	r.PipelineLatency.Record(ctx, latencyMS, metric.WithAttributes(attrs...))

	if !success {
		r.ProcessingErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordAnomaly records one anomalous label from the ensemble
func (r *Registry) RecordAnomaly(ctx context.Context, streamID, severity string) {
	r.AnomaliesDetected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stream_id", streamID),
		attribute.String("severity", severity),
	))
}

// RecordAlert records whether an anomaly became an alert or was suppressed
func (r *Registry) RecordAlert(ctx context.Context, streamID string, suppressed bool) {
	attrs := metric.WithAttributes(attribute.String("stream_id", streamID))
	if suppressed {
		r.AlertsSuppressed.Add(ctx, 1, attrs)
		return
	}
	r.AlertsGenerated.Add(ctx, 1, attrs)
}

// RecordEscalation records one escalation level bump
func (r *Registry) RecordEscalation(ctx context.Context, severity string) {
	r.AlertsEscalated.Add(ctx, 1, metric.WithAttributes(
		attribute.String("severity", severity),
	))
}

// RecordDeliveryFailure records a failed push to one recipient
func (r *Registry) RecordDeliveryFailure(ctx context.Context, target string) {
	r.DeliveryFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("target", target),
	))
}
