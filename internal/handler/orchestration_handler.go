package handler

import (
	"encoding/json"
	"net/http"

	apierrors "github.com/devrev/organsim/internal/errors"
	"github.com/devrev/organsim/internal/orchestrator"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// OrchestrationHandlers serves the orchestrator API.
type OrchestrationHandlers struct {
	aggregator   *orchestrator.Aggregator
	errorHandler *apierrors.Handler
	logger       *zap.Logger
	maxCount     int
}

// NewOrchestrationHandlers creates a new OrchestrationHandlers instance.
func NewOrchestrationHandlers(
	aggregator *orchestrator.Aggregator,
	errorHandler *apierrors.Handler,
	logger *zap.Logger,
	maxCount int,
) *OrchestrationHandlers {
	if maxCount <= 0 {
		maxCount = 100
	}
	return &OrchestrationHandlers{
		aggregator:   aggregator,
		errorHandler: errorHandler,
		logger:       logger,
		maxCount:     maxCount,
	}
}

// Index handles GET /.
func (h *OrchestrationHandlers) Index(w http.ResponseWriter, r *http.Request) {
	keys := h.aggregator.Registry().Keys()
	organs := make([]string, len(keys))
	for i, k := range keys {
		organs[i] = string(k)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"api":              "Orchestration API",
		"version":          apiVersion,
		"description":      "Coordination API aggregating the simulated organ systems",
		"available_organs": organs,
		"endpoints": map[string]string{
			"health":       "/api/orchestration/health",
			"overview":     "/api/orchestration/overview",
			"all_data":     "/api/orchestration/data/all",
			"organ_data":   "/api/orchestration/data/<organ>",
			"organ_status": "/api/orchestration/status/<organ>",
			"simulate":     "/api/orchestration/simulate",
			"parameters":   "/api/orchestration/parameters",
			"organs":       "/api/orchestration/organs",
		},
	})
}

// Health handles GET /api/orchestration/health.
func (h *OrchestrationHandlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.aggregator.AllHealth(r.Context()))
}

// Overview handles GET /api/orchestration/overview.
func (h *OrchestrationHandlers) Overview(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.aggregator.SystemOverview(r.Context()))
}

// AllData handles GET /api/orchestration/data/all.
func (h *OrchestrationHandlers) AllData(w http.ResponseWriter, r *http.Request) {
	count := parseCount(r.URL.Query().Get("count"), h.maxCount)
	writeJSON(w, http.StatusOK, h.aggregator.AllData(r.Context(), count))
}

// OrganData handles GET /api/orchestration/data/{organ}.
func (h *OrchestrationHandlers) OrganData(w http.ResponseWriter, r *http.Request) {
	count := parseCount(r.URL.Query().Get("count"), h.maxCount)
	h.writeOutcome(w, r, h.aggregator.OrganData(r.Context(), mux.Vars(r)["organ"], count))
}

// OrganStatus handles GET /api/orchestration/status/{organ}.
func (h *OrchestrationHandlers) OrganStatus(w http.ResponseWriter, r *http.Request) {
	h.writeOutcome(w, r, h.aggregator.OrganStatus(r.Context(), mux.Vars(r)["organ"]))
}

// Simulate handles POST /api/orchestration/simulate with a body of the form
// {"cardiac": "tachycardia", "respiratory": "asthma"}.
func (h *OrchestrationHandlers) Simulate(w http.ResponseWriter, r *http.Request) {
	var raw map[string]json.RawMessage
	if err := decodeObject(w, r, &raw, "No data provided"); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if len(raw) == 0 {
		h.errorHandler.WriteValidationError(w, r, "No data provided")
		return
	}

	// Entries that are not strings fail on their own; the rest still run.
	conditions := make(map[string]string, len(raw))
	invalid := make(map[string]orchestrator.Outcome)
	for organ, value := range raw {
		var condition string
		if err := json.Unmarshal(value, &condition); err != nil {
			invalid[organ] = orchestrator.Outcome{
				Err: apierrors.InvalidRequest("Condition must be a string", err).WithDetail("organ", organ),
			}
			continue
		}
		conditions[organ] = condition
	}

	result := h.aggregator.SimulateMultiple(r.Context(), conditions)
	for organ, out := range invalid {
		result.Simulations[organ] = out
	}
	writeJSON(w, http.StatusOK, result)
}

// SimulateOrgan handles POST /api/orchestration/simulate/{organ}/{condition}.
func (h *OrchestrationHandlers) SimulateOrgan(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	h.writeOutcome(w, r, h.aggregator.SimulateCondition(r.Context(), vars["organ"], vars["condition"]))
}

// UpdateParameters handles POST /api/orchestration/parameters.
func (h *OrchestrationHandlers) UpdateParameters(w http.ResponseWriter, r *http.Request) {
	params, ok := h.readParams(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.aggregator.UpdateAllParameters(r.Context(), params))
}

// UpdateOrganParameters handles POST /api/orchestration/parameters/{organ}.
func (h *OrchestrationHandlers) UpdateOrganParameters(w http.ResponseWriter, r *http.Request) {
	organ := mux.Vars(r)["organ"]
	if _, known := h.aggregator.Registry().Lookup(organ); !known {
		h.errorHandler.HandleError(w, r, apierrors.UnknownOrgan(organ))
		return
	}

	params, ok := h.readParams(w, r)
	if !ok {
		return
	}
	h.writeOutcome(w, r, h.aggregator.UpdateParameters(r.Context(), organ, params))
}

// Organs handles GET /api/orchestration/organs.
func (h *OrchestrationHandlers) Organs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.aggregator.Organs())
}

// readParams reads a non-empty JSON object to forward verbatim.
func (h *OrchestrationHandlers) readParams(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	var params map[string]json.RawMessage
	if err := decodeObject(w, r, &params, "No parameters provided"); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return nil, false
	}
	if len(params) == 0 {
		h.errorHandler.WriteValidationError(w, r, "No parameters provided")
		return nil, false
	}

	raw, err := json.Marshal(params)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.Internal("failed to encode parameters", err))
		return nil, false
	}
	return raw, true
}

// writeOutcome answers 200 with the organ's body, or maps the failure to its
// status code.
func (h *OrchestrationHandlers) writeOutcome(w http.ResponseWriter, r *http.Request, out orchestrator.Outcome) {
	if !out.OK() {
		h.errorHandler.HandleError(w, r, out.Err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
