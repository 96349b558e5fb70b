package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request counter
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boxoffice_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// HTTP request duration histogram
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "boxoffice_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Inventory reservations by outcome (ok, insufficient, conflict)
	Reservations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boxoffice_inventory_reservations_total",
			Help: "Inventory reservation attempts by outcome",
		},
		[]string{"outcome"},
	)

	// Units moved through the ledger
	UnitsReserved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "boxoffice_inventory_units_reserved_total",
			Help: "Ticket units taken from inventory",
		},
	)

	UnitsReleased = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "boxoffice_inventory_units_released_total",
			Help: "Ticket units returned to inventory",
		},
	)

	// Fulfillment calls by outcome (issued, replayed, failed)
	Fulfillments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boxoffice_fulfillments_total",
			Help: "Payment fulfillment calls by outcome",
		},
		[]string{"outcome"},
	)

	// Withdrawal requests by outcome
	WithdrawalRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boxoffice_withdrawal_requests_total",
			Help: "Withdrawal requests by outcome",
		},
		[]string{"outcome"},
	)

	// Kafka messages by topic and outcome
	KafkaMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boxoffice_kafka_messages_total",
			Help: "Kafka messages produced or consumed",
		},
		[]string{"action", "topic", "status"},
	)
)

// PrometheusMiddleware records HTTP metrics
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		RequestsTotal.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		RequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the default registry for scraping
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
