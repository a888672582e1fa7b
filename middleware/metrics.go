package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	ordersCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Total number of PayPal orders created",
		},
		[]string{"currency"},
	)

	paymentsCapturedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_captured_total",
			Help: "Total number of capture calls by gateway status",
		},
		[]string{"status"},
	)

	notificationsSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total number of operator notifications",
		},
		[]string{"kind", "result"},
	)

	rateLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_lookups_total",
			Help: "Total number of exchange rate lookups",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(ordersCreatedTotal)
	prometheus.MustRegister(paymentsCapturedTotal)
	prometheus.MustRegister(notificationsSentTotal)
	prometheus.MustRegister(rateLookupsTotal)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			// Unmatched and static paths share one label.
			path = "static"
		}

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

func RecordOrderCreated(currency string) {
	ordersCreatedTotal.WithLabelValues(currency).Inc()
}

func RecordPaymentCaptured(status string) {
	paymentsCapturedTotal.WithLabelValues(status).Inc()
}

func RecordNotification(kind, result string) {
	notificationsSentTotal.WithLabelValues(kind, result).Inc()
}

func RecordRateLookup(result string) {
	rateLookupsTotal.WithLabelValues(result).Inc()
}
