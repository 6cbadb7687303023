// Package health provides the liveness and readiness endpoints.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/devrev/organsim/internal/model"
	"go.uber.org/zap"
)

// Pinger is a dependency readiness depends on.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck manages health check functionality.
type HealthCheck struct {
	identity     map[string]string
	checks       map[string]Pinger
	checkTimeout time.Duration
	logger       *zap.Logger

	mu    sync.RWMutex
	ready bool
}

// NewHealthCheck creates a HealthCheck. identity is merged into the liveness
// body, e.g. {"organ": "heart"} or {"service": "orchestration"}.
func NewHealthCheck(identity map[string]string, logger *zap.Logger) *HealthCheck {
	return &HealthCheck{
		identity:     identity,
		checks:       make(map[string]Pinger),
		checkTimeout: 2 * time.Second,
		logger:       logger,
		ready:        true,
	}
}

// AddCheck registers a dependency pinged by the readiness endpoint.
func (hc *HealthCheck) AddCheck(name string, p Pinger) {
	hc.checks[name] = p
}

// ReadinessResponse represents the response for the readiness check.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
	Error  string            `json:"error,omitempty"`
}

// LivenessHandler handles GET /health. It never checks dependencies.
func (hc *HealthCheck) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{
		"status":    "healthy",
		"timestamp": model.Timestamp(time.Now()),
	}
	for k, v := range hc.identity {
		resp[k] = v
	}

	writeJSON(w, http.StatusOK, resp)
}

// ReadinessHandler handles GET /ready: 200 when every registered dependency
// answers a ping, otherwise 503.
func (hc *HealthCheck) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	if !hc.IsReady() {
		writeJSON(w, http.StatusServiceUnavailable, ReadinessResponse{
			Status: "not_ready",
			Checks: map[string]string{},
			Error:  "shutting down",
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), hc.checkTimeout)
	defer cancel()

	names := make([]string, 0, len(hc.checks))
	for name := range hc.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := ReadinessResponse{Status: "ready", Checks: make(map[string]string, len(names))}
	for _, name := range names {
		if err := hc.checks[name].Ping(ctx); err != nil {
			hc.logger.Warn("readiness check failed", zap.String("check", name), zap.Error(err))
			resp.Status = "not_ready"
			resp.Checks[name] = "unhealthy"
			if resp.Error == "" {
				resp.Error = err.Error()
			}
			continue
		}
		resp.Checks[name] = "healthy"
	}

	status := http.StatusOK
	if resp.Status != "ready" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// IsReady returns the current readiness status.
func (hc *HealthCheck) IsReady() bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.ready
}

// SetReady flips readiness, e.g. to drain traffic before shutdown.
func (hc *HealthCheck) SetReady(ready bool) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.ready = ready
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
