// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for:
// - Serialization queue depth and operation latency
// - Ingest reconciliation outcomes
// - Playlist cache flush sizes
// - API endpoint latency and throughput
// - WebSocket connections

var (
	// Queue Metrics
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "showrunner_queue_depth",
			Help: "Number of operations waiting or running per playlist lane",
		},
		[]string{"playlist"},
	)

	QueueLanes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "showrunner_queue_lanes",
			Help: "Number of active playlist lanes",
		},
	)

	QueueWaitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "showrunner_queue_wait_seconds",
			Help:    "Time an operation spent waiting for its playlist lane",
			Buckets: prometheus.DefBuckets, // 0.005s .. 10s
		},
		[]string{"priority"},
	)

	QueueRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "showrunner_queue_run_seconds",
			Help:    "Execution time of operations once they hold the lane",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"priority", "label"},
	)

	QueueOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "showrunner_queue_operations_total",
			Help: "Total operations processed by the serialization queue",
		},
		[]string{"priority", "status"}, // status: "ok", "error", "abandoned"
	)

	// Ingest Metrics
	IngestOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "showrunner_ingest_operations_total",
			Help: "Total ingest reconciliation operations",
		},
		[]string{"operation", "outcome"}, // outcome: "applied", "unsynced", "rejected", "error"
	)

	IngestSegmentsRegenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "showrunner_ingest_segments_regenerated_total",
			Help: "Total segments regenerated from ingest data",
		},
	)

	// Cache Metrics
	CacheFlushSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "showrunner_cache_flush_documents",
			Help:    "Number of documents written per collection during a cache flush",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000},
		},
		[]string{"collection"},
	)

	CacheFlushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "showrunner_cache_flush_seconds",
			Help:    "Duration of a full playlist cache flush",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Playout Metrics
	TakeOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "showrunner_take_operations_total",
			Help: "Total take operations by result",
		},
		[]string{"result"}, // "ok", "guard", "no_next", "error"
	)

	DeviceCommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "showrunner_device_command_seconds",
			Help:    "Round-trip time of peripheral device commands",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5},
		},
		[]string{"function", "outcome"}, // outcome: "ok", "timeout", "error"
	)

	// API Metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "showrunner_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "showrunner_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "showrunner_api_active_requests",
			Help: "Number of API requests currently being processed",
		},
	)

	// WebSocket Metrics
	WSConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "showrunner_websocket_connections_active",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "showrunner_websocket_messages_sent_total",
			Help: "Total WebSocket messages pushed to clients",
		},
	)

	// Event Bus Metrics
	BusPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "showrunner_bus_publish_errors_total",
			Help: "Total failed publishes to the event bus",
		},
		[]string{"topic"},
	)
)

// RecordAPIRequest records latency and count for a completed API request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	code := strconv.Itoa(statusCode)
	APIRequestDuration.WithLabelValues(method, endpoint, code).Observe(duration.Seconds())
	APIRequestsTotal.WithLabelValues(method, endpoint, code).Inc()
}

// RecordIngestOperation records the outcome of one ingest reconciliation step.
func RecordIngestOperation(operation, outcome string) {
	IngestOperations.WithLabelValues(operation, outcome).Inc()
}

// RecordDeviceCommand records a peripheral command round trip.
func RecordDeviceCommand(function, outcome string, duration time.Duration) {
	DeviceCommandDuration.WithLabelValues(function, outcome).Observe(duration.Seconds())
}
