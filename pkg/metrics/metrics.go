package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all fulfillment service metrics
type Metrics struct {
	serviceName string
	registry    *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Infrastructure metrics
	KafkaEventsPublished     *prometheus.CounterVec
	KafkaPublishDuration     *prometheus.HistogramVec
	MongoDBOperations        *prometheus.CounterVec
	MongoDBOperationDuration *prometheus.HistogramVec
	OutboxPending            prometheus.Gauge
	WorkflowSignals          *prometheus.CounterVec
	ActivitiesCompleted      *prometheus.CounterVec

	// Business metrics
	ScansTotal          *prometheus.CounterVec
	LedgerWrites        *prometheus.CounterVec
	LedgerUnits         *prometheus.CounterVec
	JobsCompleted       *prometheus.CounterVec
	TransferTransitions *prometheus.CounterVec
	DiscrepanciesRaised *prometheus.CounterVec
	ResolutionsApplied  *prometheus.CounterVec
	AssignmentsMade     *prometheus.CounterVec
	TransitDelays       prometheus.Counter

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec
}

// Config holds metrics configuration
type Config struct {
	ServiceName string
	Namespace   string
}

// DefaultConfig returns default metrics configuration
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Namespace:   "wms",
	}
}

func counter(ns, name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: name, Help: help}, append([]string{"service"}, labels...))
}

func histogram(ns, name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: name, Help: help, Buckets: buckets}, append([]string{"service"}, labels...))
}

// New creates a new Metrics instance backed by its own registry
func New(config *Config) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ns := config.Namespace
	constLabels := prometheus.Labels{"service": config.ServiceName}

	m := &Metrics{
		serviceName: config.ServiceName,
		registry:    registry,

		HTTPRequestsTotal:   counter(ns, "http_requests_total", "Total number of HTTP requests", "method", "path", "status"),
		HTTPRequestDuration: histogram(ns, "http_request_duration_seconds", "HTTP request duration in seconds", []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}, "method", "path"),
		HTTPRequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Name: "http_requests_in_flight", Help: "Number of HTTP requests currently being processed", ConstLabels: constLabels,
		}),

		KafkaEventsPublished:     counter(ns, "kafka_events_published_total", "Total number of Kafka events published", "topic", "event_type", "status"),
		KafkaPublishDuration:     histogram(ns, "kafka_publish_duration_seconds", "Kafka publish duration in seconds", []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1}, "topic"),
		MongoDBOperations:        counter(ns, "mongodb_operations_total", "Total number of MongoDB operations", "collection", "operation", "status"),
		MongoDBOperationDuration: histogram(ns, "mongodb_operation_duration_seconds", "MongoDB operation duration in seconds", []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1}, "collection", "operation"),
		OutboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Name: "outbox_pending_events", Help: "Outbox events waiting to be published", ConstLabels: constLabels,
		}),
		WorkflowSignals:     counter(ns, "temporal_workflow_signals_total", "Signal-with-start calls by workflow type and status", "workflow_type", "status"),
		ActivitiesCompleted: counter(ns, "temporal_activities_completed_total", "Total number of Temporal activities completed", "activity_type", "status"),

		ScansTotal:          counter(ns, "scans_total", "Scan operations by job type and outcome", "job_type", "outcome"),
		LedgerWrites:        counter(ns, "ledger_writes_total", "Stock ledger writes by direction and status", "direction", "status"),
		LedgerUnits:         counter(ns, "ledger_units_total", "Units moved through the stock ledger", "direction"),
		JobsCompleted:       counter(ns, "jobs_completed_total", "Jobs reaching Completed by type", "job_type"),
		TransferTransitions: counter(ns, "transfer_transitions_total", "Transfer status transitions by target status", "to"),
		DiscrepanciesRaised: counter(ns, "discrepancies_raised_total", "Discrepancy records raised by type", "discrepancy_type"),
		ResolutionsApplied:  counter(ns, "discrepancy_resolutions_total", "Discrepancy resolutions by resolution type and status", "resolution_type", "status"),
		AssignmentsMade:     counter(ns, "job_assignments_total", "Job assignments by job type", "job_type"),
		TransitDelays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "transfer_transit_delays_total", Help: "Transfers flagged for exceeding the transit window", ConstLabels: constLabels,
		}),

		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns, Name: "circuit_breaker_state", Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		}, []string{"service", "name"}),
		CircuitBreakerTrips: counter(ns, "circuit_breaker_trips_total", "Total number of circuit breaker trips", "name"),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.KafkaEventsPublished,
		m.KafkaPublishDuration,
		m.MongoDBOperations,
		m.MongoDBOperationDuration,
		m.OutboxPending,
		m.WorkflowSignals,
		m.ActivitiesCompleted,
		m.ScansTotal,
		m.LedgerWrites,
		m.LedgerUnits,
		m.JobsCompleted,
		m.TransferTransitions,
		m.DiscrepanciesRaised,
		m.ResolutionsApplied,
		m.AssignmentsMade,
		m.TransitDelays,
		m.CircuitBreakerState,
		m.CircuitBreakerTrips,
	)

	return m
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, code int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(m.serviceName, method, path, strconv.Itoa(code)).Inc()
	m.HTTPRequestDuration.WithLabelValues(m.serviceName, method, path).Observe(duration.Seconds())
}

// IncrementHTTPRequestsInFlight increments in-flight requests
func (m *Metrics) IncrementHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// DecrementHTTPRequestsInFlight decrements in-flight requests
func (m *Metrics) DecrementHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}

// RecordKafkaPublish records a Kafka publish
func (m *Metrics) RecordKafkaPublish(topic, eventType string, success bool, duration time.Duration) {
	m.KafkaEventsPublished.WithLabelValues(m.serviceName, topic, eventType, status(success)).Inc()
	m.KafkaPublishDuration.WithLabelValues(m.serviceName, topic).Observe(duration.Seconds())
}

// RecordMongoDBOperation records a MongoDB operation
func (m *Metrics) RecordMongoDBOperation(collection, operation string, success bool, duration time.Duration) {
	m.MongoDBOperations.WithLabelValues(m.serviceName, collection, operation, status(success)).Inc()
	m.MongoDBOperationDuration.WithLabelValues(m.serviceName, collection, operation).Observe(duration.Seconds())
}

// SetOutboxPending sets the number of unpublished outbox events
func (m *Metrics) SetOutboxPending(count int) {
	m.OutboxPending.Set(float64(count))
}

// RecordWorkflowSignal records a signal-with-start delivery
func (m *Metrics) RecordWorkflowSignal(workflowType string, success bool) {
	m.WorkflowSignals.WithLabelValues(m.serviceName, workflowType, status(success)).Inc()
}

// RecordActivityCompleted records an activity completion
func (m *Metrics) RecordActivityCompleted(activityType string, success bool) {
	m.ActivitiesCompleted.WithLabelValues(m.serviceName, activityType, status(success)).Inc()
}

// RecordScan records the outcome of a scan (picked, short, halted, duplicate, rejected)
func (m *Metrics) RecordScan(jobType, outcome string) {
	m.ScansTotal.WithLabelValues(m.serviceName, jobType, outcome).Inc()
}

// RecordLedgerWrite records a stock ledger write
func (m *Metrics) RecordLedgerWrite(direction string, qty int, success bool) {
	m.LedgerWrites.WithLabelValues(m.serviceName, direction, status(success)).Inc()
	if success {
		m.LedgerUnits.WithLabelValues(m.serviceName, direction).Add(float64(qty))
	}
}

// RecordJobCompleted records a job completion
func (m *Metrics) RecordJobCompleted(jobType string) {
	m.JobsCompleted.WithLabelValues(m.serviceName, jobType).Inc()
}

// RecordTransferTransition records a transfer status change
func (m *Metrics) RecordTransferTransition(to string) {
	m.TransferTransitions.WithLabelValues(m.serviceName, to).Inc()
}

// RecordDiscrepancy records a newly raised discrepancy
func (m *Metrics) RecordDiscrepancy(discrepancyType string) {
	m.DiscrepanciesRaised.WithLabelValues(m.serviceName, discrepancyType).Inc()
}

// RecordResolution records an applied discrepancy resolution
func (m *Metrics) RecordResolution(resolutionType, resolutionStatus string) {
	m.ResolutionsApplied.WithLabelValues(m.serviceName, resolutionType, resolutionStatus).Inc()
}

// RecordAssignment records a job assignment
func (m *Metrics) RecordAssignment(jobType string) {
	m.AssignmentsMade.WithLabelValues(m.serviceName, jobType).Inc()
}

// RecordTransitDelay records a transfer exceeding its transit window
func (m *Metrics) RecordTransitDelay() {
	m.TransitDelays.Inc()
}

// SetCircuitBreakerState sets the circuit breaker state
func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	m.CircuitBreakerState.WithLabelValues(m.serviceName, name).Set(float64(state))
}

// RecordCircuitBreakerTrip records a circuit breaker trip
func (m *Metrics) RecordCircuitBreakerTrip(name string) {
	m.CircuitBreakerTrips.WithLabelValues(m.serviceName, name).Inc()
}
