package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	apierrors "github.com/devrev/organsim/internal/errors"
	"github.com/devrev/organsim/internal/middleware"
	"github.com/devrev/organsim/internal/model"
	"github.com/devrev/organsim/internal/orchestrator"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newOrchestrationRouter wires the orchestrator against real organ services
// running on httptest servers. Organs listed in offline point at a closed port.
func newOrchestrationRouter(t *testing.T, offline ...model.Organ) http.Handler {
	t.Helper()

	down := make(map[model.Organ]bool)
	for _, o := range offline {
		down[o] = true
	}

	var endpoints []model.OrganEndpoint
	for _, ep := range orchestrator.DefaultEndpoints() {
		if down[ep.Key] {
			srv := httptest.NewServer(http.NotFoundHandler())
			ep.URL = srv.URL
			srv.Close()
		} else {
			fx := newOrganFixture(t, ep.Key, nil)
			srv := httptest.NewServer(healthFirst(fx.router))
			t.Cleanup(srv.Close)
			ep.URL = srv.URL
		}
		endpoints = append(endpoints, ep)
	}

	reg, err := orchestrator.NewRegistry(endpoints)
	require.NoError(t, err)

	logger := zap.NewNop()
	eh := apierrors.NewHandler(logger)
	agg := orchestrator.NewAggregator(reg, orchestrator.NewClient(2*time.Second, nil, logger), nil, logger)
	h := NewOrchestrationHandlers(agg, eh, logger, 100)

	r := mux.NewRouter()
	r.HandleFunc("/", h.Index).Methods(http.MethodGet)
	api := r.PathPrefix("/api/orchestration").Subrouter()
	api.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	api.HandleFunc("/overview", h.Overview).Methods(http.MethodGet)
	api.HandleFunc("/data/all", h.AllData).Methods(http.MethodGet)
	api.HandleFunc("/data/{organ}", h.OrganData).Methods(http.MethodGet)
	api.HandleFunc("/status/{organ}", h.OrganStatus).Methods(http.MethodGet)
	api.HandleFunc("/simulate", h.Simulate).Methods(http.MethodPost)
	api.HandleFunc("/simulate/{organ}/{condition}", h.SimulateOrgan).Methods(http.MethodPost)
	api.HandleFunc("/parameters", h.UpdateParameters).Methods(http.MethodPost)
	api.HandleFunc("/parameters/{organ}", h.UpdateOrganParameters).Methods(http.MethodPost)
	api.HandleFunc("/organs", h.Organs).Methods(http.MethodGet)

	return middleware.Chain(middleware.RequestID, middleware.Session(eh))(r)
}

// healthFirst answers /health before delegating to the organ router.
func healthFirst(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func call(t *testing.T, h http.Handler, method, path, body, sessionID string) (int, map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if sessionID != "" {
		req.Header.Set(middleware.HeaderSessionID, sessionID)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	}
	return rec.Code, decoded
}

func TestOrchestration_Index(t *testing.T) {
	h := newOrchestrationRouter(t)

	code, body := call(t, h, http.MethodGet, "/", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Orchestration API", body["api"])
	assert.Equal(t, []interface{}{"cardiac", "respiratory", "neural"}, body["available_organs"])
}

func TestOrchestration_Health(t *testing.T) {
	t.Run("all healthy", func(t *testing.T) {
		h := newOrchestrationRouter(t)
		code, body := call(t, h, http.MethodGet, "/api/orchestration/health", "", "")
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "healthy", body["overall_status"])
	})

	t.Run("one offline", func(t *testing.T) {
		h := newOrchestrationRouter(t, model.OrganNeural)
		code, body := call(t, h, http.MethodGet, "/api/orchestration/health", "", "")
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "degraded", body["overall_status"])
		organs := body["organs"].(map[string]interface{})
		assert.Equal(t, "offline", organs["neural"].(map[string]interface{})["status"])
		assert.Equal(t, "healthy", organs["cardiac"].(map[string]interface{})["status"])
	})
}

func TestOrchestration_OrganData(t *testing.T) {
	h := newOrchestrationRouter(t, model.OrganRespiratory)

	code, body := call(t, h, http.MethodGet, "/api/orchestration/data/cardiac?count=3", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 3.0, body["count"])
	assert.Len(t, body["data"], 3)

	code, body = call(t, h, http.MethodGet, "/api/orchestration/data/liver", "", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", body["error_code"])

	code, body = call(t, h, http.MethodGet, "/api/orchestration/data/respiratory", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "UPSTREAM_OFFLINE", body["error_code"])
}

func TestOrchestration_AllData(t *testing.T) {
	h := newOrchestrationRouter(t, model.OrganCardiac)

	code, body := call(t, h, http.MethodGet, "/api/orchestration/data/all?count=500", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 100.0, body["data_count"])
	organs := body["organs"].(map[string]interface{})
	assert.Contains(t, organs["cardiac"], "error")
	assert.Equal(t, 100.0, organs["neural"].(map[string]interface{})["count"])
}

func TestOrchestration_Simulate(t *testing.T) {
	h := newOrchestrationRouter(t)

	t.Run("mixed outcome", func(t *testing.T) {
		code, body := call(t, h, http.MethodPost, "/api/orchestration/simulate",
			`{"cardiac":"tachycardia","respiratory":"bogus"}`, "")
		require.Equal(t, http.StatusOK, code)

		sims := body["simulations"].(map[string]interface{})
		cardiac := sims["cardiac"].(map[string]interface{})
		assert.Equal(t, "Condition 'tachycardia' activated", cardiac["message"])
		respiratory := sims["respiratory"].(map[string]interface{})
		assert.Contains(t, respiratory["error"], "Status code: 400")
	})

	t.Run("non-string condition fails only its organ", func(t *testing.T) {
		code, body := call(t, h, http.MethodPost, "/api/orchestration/simulate",
			`{"cardiac":"tachycardia","respiratory":5,"neural":{"name":"stress"}}`, "")
		require.Equal(t, http.StatusOK, code)

		sims := body["simulations"].(map[string]interface{})
		cardiac := sims["cardiac"].(map[string]interface{})
		assert.Equal(t, "Condition 'tachycardia' activated", cardiac["message"])
		assert.Equal(t, map[string]interface{}{"error": "Condition must be a string"}, sims["respiratory"])
		assert.Equal(t, map[string]interface{}{"error": "Condition must be a string"}, sims["neural"])
	})

	t.Run("only non-string conditions", func(t *testing.T) {
		code, body := call(t, h, http.MethodPost, "/api/orchestration/simulate", `{"cardiac":true}`, "")
		require.Equal(t, http.StatusOK, code)
		sims := body["simulations"].(map[string]interface{})
		assert.Len(t, sims, 1)
		assert.Contains(t, sims["cardiac"], "error")
	})

	for _, payload := range []string{"", "{}", "[]", `"cardiac"`, "null"} {
		t.Run("rejects "+payload, func(t *testing.T) {
			code, _ := call(t, h, http.MethodPost, "/api/orchestration/simulate", payload, "")
			assert.Equal(t, http.StatusBadRequest, code)
		})
	}
}

func TestOrchestration_SimulateOrgan(t *testing.T) {
	h := newOrchestrationRouter(t)

	code, body := call(t, h, http.MethodPost, "/api/orchestration/simulate/neural/epilepsy", "", "s-1")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "critical", body["current_data"].(map[string]interface{})["status"])

	code, body = call(t, h, http.MethodPost, "/api/orchestration/simulate/neural/flu", "", "s-1")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "UPSTREAM_STATUS", body["error_code"])

	code, _ = call(t, h, http.MethodPost, "/api/orchestration/simulate/liver/cirrhosis", "", "")
	assert.Equal(t, http.StatusNotFound, code)

	// The session travels to the organ service.
	_, status := call(t, h, http.MethodGet, "/api/orchestration/status/neural", "", "s-1")
	assert.Equal(t, "epilepsy", status["condition"])
	_, other := call(t, h, http.MethodGet, "/api/orchestration/status/neural", "", "s-2")
	assert.Equal(t, "normal", other["condition"])
}

func TestOrchestration_Parameters(t *testing.T) {
	h := newOrchestrationRouter(t)

	code, body := call(t, h, http.MethodPost, "/api/orchestration/parameters", `{"age": 70, "mental_state": "drowsy"}`, "")
	require.Equal(t, http.StatusOK, code)
	updates := body["updates"].(map[string]interface{})
	require.Len(t, updates, 3)
	neural := updates["neural"].(map[string]interface{})["current_parameters"].(map[string]interface{})
	assert.Equal(t, 70.0, neural["age"])
	assert.Equal(t, "drowsy", neural["mental_state"])
	cardiac := updates["cardiac"].(map[string]interface{})["current_parameters"].(map[string]interface{})
	assert.Equal(t, "normal", cardiac["activity_level"])

	code, body = call(t, h, http.MethodPost, "/api/orchestration/parameters/cardiac", `{"activity_level": "resting"}`, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "resting", body["current_parameters"].(map[string]interface{})["activity_level"])

	code, _ = call(t, h, http.MethodPost, "/api/orchestration/parameters/liver", `{"age": 1}`, "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = call(t, h, http.MethodPost, "/api/orchestration/parameters", `{}`, "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = call(t, h, http.MethodPost, "/api/orchestration/parameters/cardiac", ``, "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestOrchestration_OverviewAndOrgans(t *testing.T) {
	h := newOrchestrationRouter(t)

	code, body := call(t, h, http.MethodGet, "/api/orchestration/overview", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "system_health")
	statuses := body["organ_statuses"].(map[string]interface{})
	assert.Equal(t, "lungs", statuses["respiratory"].(map[string]interface{})["organ"])

	code, body = call(t, h, http.MethodGet, "/api/orchestration/organs", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 3.0, body["count"])
}
