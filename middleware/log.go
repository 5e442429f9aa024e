package middleware

import (
	"engage/pkg/logutil"
	"engage/pkg/metric"
	"net/http"
	"strconv"

	"github.com/felixge/httpsnoop"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// Log tags the request context with a log_id and records method, route, status and latency.
func Log(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logutil.WithLogID(r.Context(), uuid.New().String())
		r = r.WithContext(ctx)

		m := httpsnoop.CaptureMetrics(next, w, r)

		route := routeTemplate(r)
		metric.HttpRequestLatency.WithLabelValues(route, strconv.Itoa(m.Code)).Observe(m.Duration.Seconds())

		log.Ctx(ctx).Info().Msgf("method: %s, path: %s, status: %d, bytes: %d, latency: %v",
			r.Method, r.URL.Path, m.Code, m.Written, m.Duration)
	})
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}
