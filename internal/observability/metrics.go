package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce      sync.Once
	uploadBytesTotal  *prometheus.CounterVec
	queueDepth        prometheus.Gauge
	queueDropsTotal   *prometheus.CounterVec
	evaluationsTotal  *prometheus.CounterVec
	chatMessagesTotal *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors for the workflow
// components. Request-level collectors live with the API client.
func RegisterMetrics() {
	registerOnce.Do(func() {
		uploadBytesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evalmate_client_upload_bytes_total",
			Help: "Total bytes sent through upload endpoints.",
		}, []string{"kind"})

		queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "evalmate_client_upload_queue_depth",
			Help: "Number of upload tasks waiting or in flight.",
		})

		queueDropsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evalmate_client_upload_queue_drops_total",
			Help: "Upload tasks dropped before dispatch, by reason.",
		}, []string{"reason"})

		evaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evalmate_client_evaluations_total",
			Help: "Evaluation runs, by outcome.",
		}, []string{"outcome"})

		chatMessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evalmate_client_chat_messages_total",
			Help: "Chat messages exchanged, by role.",
		}, []string{"role"})

		prometheus.MustRegister(
			uploadBytesTotal,
			queueDepth,
			queueDropsTotal,
			evaluationsTotal,
			chatMessagesTotal,
		)
	})
}

// UploadBytes exposes the counter for upload payload bytes.
func UploadBytes() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadBytesTotal
}

// QueueDepth exposes the gauge for queued upload tasks.
func QueueDepth() prometheus.Gauge {
	RegisterMetrics()
	return queueDepth
}

// QueueDrops exposes the counter for dropped upload tasks.
func QueueDrops() *prometheus.CounterVec {
	RegisterMetrics()
	return queueDropsTotal
}

// Evaluations exposes the counter for evaluation run outcomes.
func Evaluations() *prometheus.CounterVec {
	RegisterMetrics()
	return evaluationsTotal
}

// ChatMessages exposes the counter for exchanged chat messages.
func ChatMessages() *prometheus.CounterVec {
	RegisterMetrics()
	return chatMessagesTotal
}
