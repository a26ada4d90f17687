package api

import (
	"strconv"
	"time"

	"github.com/annel0/turtle-miner/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
)

// requestLogger снабжает каждый запрос trace-ID и пишет краткие логи.
// Для маршрутов прогонов в завершающую строку попадает идентификатор
// прогона — по нему логи HTTP-слоя сшиваются с логами оркестратора.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Trace-id из OpenTelemetry, если span уже создан
		span := trace.SpanFromContext(c.Request.Context())
		var traceID string
		if span.SpanContext().IsValid() {
			traceID = span.SpanContext().TraceID().String()
		} else {
			traceID = uuid.NewString()
		}
		c.Set("trace_id", traceID)

		start := time.Now()
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		logging.Info("[HTTP] ▶ %s %s ip=%s trace=%s", method, path, c.ClientIP(), traceID)

		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)
		if runID := c.Param("id"); runID != "" {
			logging.Info("[HTTP] ◀ %s %s %d %s run=%s trace=%s", method, path, status, latency, runID, traceID)
		} else {
			logging.Info("[HTTP] ◀ %s %s %d %s trace=%s", method, path, status, latency, traceID)
		}
	}
}

// httpMetrics — Prometheus-метрики REST API майнера.
//
// * miner_api_http_request_duration_seconds{method,path,status} — histogram
// * miner_api_http_requests_inflight — gauge
// * miner_api_http_request_errors_total{method,path,status} — counter (4xx/5xx)
// * miner_api_run_requests_total{operation,status} — операции жизненного
//   цикла прогонов (start/cancel/current/get/list)
type httpMetrics struct {
	reqDuration *prometheus.HistogramVec
	reqInflight prometheus.Gauge
	reqErrors   *prometheus.CounterVec
	runOps      *prometheus.CounterVec
}

// newHTTPMetrics создаёт метрики и регистрирует их в дефолтном регистре
func newHTTPMetrics() *httpMetrics {
	m := &httpMetrics{
		reqDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "miner_api",
			Name:      "http_request_duration_seconds",
			Help:      "Длительность HTTP-запросов.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"method", "path", "status"}),
		reqInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "miner_api",
			Name:      "http_requests_inflight",
			Help:      "Текущее количество обрабатываемых HTTP-запросов.",
		}),
		reqErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "miner_api",
			Name:      "http_request_errors_total",
			Help:      "Общее число запросов, завершившихся ошибкой (4xx/5xx).",
		}, []string{"method", "path", "status"}),
		runOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "miner_api",
			Name:      "run_requests_total",
			Help:      "Запросы к операциям жизненного цикла прогонов.",
		}, []string{"operation", "status"}),
	}

	prometheus.MustRegister(m.reqDuration, m.reqInflight, m.reqErrors, m.runOps)
	return m
}

// handler возвращает gin.HandlerFunc для router.Use()
func (m *httpMetrics) handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.reqInflight.Inc()
		c.Next()
		m.reqInflight.Dec()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path // для не-матченных маршрутов
		}
		method := c.Request.Method

		m.reqDuration.WithLabelValues(method, path, status).Observe(duration)

		if c.Writer.Status() >= 400 {
			m.reqErrors.WithLabelValues(method, path, status).Inc()
		}

		if op := runOperation(method, path); op != "" {
			m.runOps.WithLabelValues(op, status).Inc()
		}
	}
}

// registerEndpoint добавляет GET /metrics в указанный router
func (m *httpMetrics) registerEndpoint(r *gin.Engine) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// runOperation сопоставляет маршруту операцию жизненного цикла прогона.
// Пустая строка — маршрут не относится к прогонам.
func runOperation(method, path string) string {
	switch {
	case method == "POST" && path == "/api/runs":
		return "start"
	case method == "DELETE" && path == "/api/runs/current":
		return "cancel"
	case method == "GET" && path == "/api/runs/current":
		return "current"
	case method == "GET" && path == "/api/runs/:id":
		return "get"
	case method == "GET" && path == "/api/runs":
		return "list"
	}
	return ""
}
