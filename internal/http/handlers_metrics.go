package http

import (
	"fmt"
	"net/http"
	"time"
)

// handleMetrics writes request, security and cache counters in the
// Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	traceMetrics := s.tracer.Metrics()
	limitMetrics := s.limiter.Metrics()
	securityMetrics := s.detector.Metrics()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	writeMetric(w, "http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	writeMetric(w, "http_request_duration_avg_microseconds", "gauge", "Average request duration",
		traceMetrics.AverageResponseTime.Microseconds())
	writeMetric(w, "rate_limit_rejections_total", "counter", "Write requests rejected by the rate limiter", limitMetrics.Rejected)
	writeMetric(w, "active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", limitMetrics.ClientCount)
	writeMetric(w, "suspicious_requests_total", "counter", "Suspicious requests detected", securityMetrics.SuspiciousRequests)
	writeMetric(w, "blocked_requests_total", "counter", "Requests rejected for an unsupported method", securityMetrics.BlockedRequests)

	if s.deps.CacheStats != nil {
		cs := s.deps.CacheStats()
		writeMetric(w, "statistics_cache_entries", "gauge", "Cached statistics entries", int64(cs.Size))
		writeMetric(w, "statistics_cache_hits_total", "counter", "Statistics cache hits", int64(cs.Hits))
		writeMetric(w, "statistics_cache_misses_total", "counter", "Statistics cache misses", int64(cs.Misses))
	}

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", time.Since(s.started).Seconds())
}

func writeMetric(w http.ResponseWriter, name, kind, help string, value int64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
	fmt.Fprintf(w, "%s %d\n\n", name, value)
}
