// Package metrics exposes ingest and HTTP counters in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the satscope metrics. A nil *Collector is a no-op.
type Collector struct {
	sentences     *prometheus.CounterVec
	decodeErrors  prometheus.Counter
	satellites    *prometheus.GaugeVec
	interference  prometheus.Gauge
	httpRequests  *prometheus.CounterVec
	httpDurations *prometheus.HistogramVec
}

// New registers the collectors with reg (prometheus.DefaultRegisterer when nil).
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		sentences: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "satscope_sentences_total",
			Help: "NMEA sentences decoded, by kind.",
		}, []string{"kind"}),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "satscope_decode_errors_total",
			Help: "NMEA lines rejected for framing or checksum errors.",
		}),
		satellites: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "satscope_satellites_in_view",
			Help: "Satellites in the live set, by constellation.",
		}, []string{"network"}),
		interference: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "satscope_interference_percent",
			Help: "Share of aircraft reporting degraded GNSS in the current cell.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "satscope_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"path", "method", "code"}),
		httpDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "satscope_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method"}),
	}
	for _, col := range []prometheus.Collector{c.sentences, c.decodeErrors, c.satellites, c.interference, c.httpRequests, c.httpDurations} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) ObserveSentence(kind string) {
	if c == nil {
		return
	}
	c.sentences.WithLabelValues(kind).Inc()
}

func (c *Collector) ObserveDecodeError() {
	if c == nil {
		return
	}
	c.decodeErrors.Inc()
}

// SetSatellites replaces the per-network satellite counts.
func (c *Collector) SetSatellites(byNetwork map[string]int) {
	if c == nil {
		return
	}
	c.satellites.Reset()
	for network, n := range byNetwork {
		c.satellites.WithLabelValues(network).Set(float64(n))
	}
}

func (c *Collector) SetInterference(pct float64) {
	if c == nil {
		return
	}
	c.interference.Set(pct)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor serves the metrics gathered by g.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush passes through so streaming handlers keep working behind Middleware.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the connection's deadlines.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and duration for each request.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	if c == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		path := normalizeRoute(r.URL.Path)
		c.httpRequests.WithLabelValues(path, r.Method, strconv.Itoa(rw.statusCode)).Inc()
		c.httpDurations.WithLabelValues(path, r.Method).Observe(time.Since(start).Seconds())
	})
}

// normalizeRoute keeps label cardinality bounded.
func normalizeRoute(path string) string {
	switch path {
	case "/", "/metrics", "/api/state", "/api/trails", "/api/viewport", "/api/logs", "/api/stream", "/api/status":
		return path
	default:
		return "other"
	}
}
