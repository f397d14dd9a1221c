package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safetap_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "safetap_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	// AlertTransitions conta transições da máquina de estados (start, cancel, commit, rejected).
	AlertTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safetap_alert_transitions_total",
			Help: "Alert state machine transitions",
		},
		[]string{"transition", "emergency_type"},
	)

	AlertRecipients = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "safetap_alert_recipients",
			Help:    "Number of recipients notified per committed alert",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13},
		},
	)

	ActiveAlerts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "safetap_alert_holding",
			Help: "Alert sessions currently holding",
		},
	)

	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safetap_deliveries_total",
			Help: "Outbound deliveries by outcome",
		},
		[]string{"status"}, // sent, failed, dropped
	)

	DeliveryQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "safetap_delivery_queue_depth",
			Help: "Deliveries waiting in the queue",
		},
	)

	SchedulerRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safetap_scheduler_runs_total",
			Help: "Scheduled job executions",
		},
		[]string{"job", "status"},
	)
)

// Handler expõe o registry padrão no formato Prometheus.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTP registra contagem e duração de uma requisição.
func ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// TrackAlert incrementa a transição do alerta.
func TrackAlert(transition, emergencyType string) {
	AlertTransitions.WithLabelValues(transition, emergencyType).Inc()
}

// TrackDelivery incrementa o resultado de uma entrega.
func TrackDelivery(status string) {
	DeliveriesTotal.WithLabelValues(status).Inc()
}
