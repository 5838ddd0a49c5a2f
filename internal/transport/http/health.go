package http

import (
	"context"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck reports whether one backing dependency answers.
type HealthCheck func(ctx context.Context) error

// HandleHealth answers "ok" when every check passes. Otherwise it answers 503
// and names the failing dependencies in fields.
func HandleHealth(checks map[string]HealthCheck, logger *zap.Logger) http.Handler {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			methodNotAllowed(w, "GET, HEAD")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		failed := map[string]string{}
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				logger.Warn("health check failed", zap.String("dependency", name), zap.Error(err))
				failed[name] = "unavailable"
			}
		}
		if len(failed) > 0 {
			writeErrorResponse(w, http.StatusServiceUnavailable, errorResponse{
				Error:  "dependency unavailable",
				Code:   codeDependencyUnavailable,
				Fields: failed,
			})
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}
