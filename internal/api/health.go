package api

import (
	"context"
	"net/http"
	"time"
)

const healthCheckTimeout = 3 * time.Second

// HealthCheck probes one dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// handleHealth reports 200 "healthy" when every check passes and 503
// "degraded" otherwise. Failure details are logged, not returned.
func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		resp := healthResponse{Status: "healthy", Checks: make(map[string]string, len(deps.Health))}
		for _, hc := range deps.Health {
			if err := hc.Check(ctx); err != nil {
				deps.Logger.Warn("health check failed", "check", hc.Name, "error", err)
				resp.Checks[hc.Name] = "unavailable"
				resp.Status = "degraded"
				continue
			}
			resp.Checks[hc.Name] = "ok"
		}

		code := http.StatusOK
		if resp.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	}
}
