package middleware

import (
	"net/http"
	"strconv"
	"time"

	"account-service/pkg/metrics"

	"github.com/go-chi/chi/v5"
)

// Metrics records request counts and latencies labelled by chi route pattern.
func Metrics(m *metrics.HTTP) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m == nil {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			m.InFlight.Inc()
			defer m.InFlight.Dec()

			rw := wrap(w)
			next.ServeHTTP(rw, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}

			status := strconv.Itoa(rw.status)
			m.Requests.WithLabelValues(r.Method, route, status).Inc()
			m.Duration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		})
	}
}
