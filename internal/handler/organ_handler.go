// Package handler provides the HTTP handlers of the organ services and the
// orchestrator.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	apierrors "github.com/devrev/organsim/internal/errors"
	"github.com/devrev/organsim/internal/metrics"
	"github.com/devrev/organsim/internal/middleware"
	"github.com/devrev/organsim/internal/model"
	"github.com/devrev/organsim/internal/session"
	"github.com/devrev/organsim/internal/simulator"
	"github.com/devrev/organsim/internal/telemetry"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	apiVersion   = "1.0.0"
	maxBodyBytes = 1 << 20
)

var organAPIs = map[model.Organ]struct{ name, description string }{
	model.OrganCardiac:     {"Cardiac API", "Cardiovascular system simulation API"},
	model.OrganRespiratory: {"Respiratory API", "Respiratory system simulation API"},
	model.OrganNeural:      {"Neural API", "Central nervous system simulation API"},
}

// OrganOptions tunes reading generation.
type OrganOptions struct {
	SampleInterval   time.Duration
	MaxCount         int
	TelemetryTimeout time.Duration
}

// OrganHandlers serves the API of one organ service.
type OrganHandlers struct {
	organ        simulator.Organ
	store        session.Store
	publisher    telemetry.Publisher
	metrics      *metrics.Metrics
	errorHandler *apierrors.Handler
	logger       *zap.Logger
	opts         OrganOptions
}

// NewOrganHandlers creates the handlers for organ.
func NewOrganHandlers(
	organ simulator.Organ,
	store session.Store,
	publisher telemetry.Publisher,
	m *metrics.Metrics,
	errorHandler *apierrors.Handler,
	logger *zap.Logger,
	opts OrganOptions,
) *OrganHandlers {
	if opts.MaxCount <= 0 {
		opts.MaxCount = 100
	}
	if opts.TelemetryTimeout <= 0 {
		opts.TelemetryTimeout = time.Second
	}
	if publisher == nil {
		publisher = telemetry.Noop{}
	}
	return &OrganHandlers{
		organ:        organ,
		store:        store,
		publisher:    publisher,
		metrics:      m,
		errorHandler: errorHandler,
		logger:       logger.With(zap.String("organ", string(organ.Kind()))),
		opts:         opts,
	}
}

// Index handles GET /.
func (h *OrganHandlers) Index(w http.ResponseWriter, r *http.Request) {
	kind := h.organ.Kind()
	info := organAPIs[kind]
	base := "/api/" + string(kind)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"api":         info.name,
		"version":     apiVersion,
		"description": info.description,
		"endpoints": map[string]string{
			"status":     base + "/status",
			"data":       base + "/data",
			"simulate":   base + "/simulate/<condition>",
			"parameters": base + "/parameters",
		},
	})
}

// Status handles GET /api/{organ}/status.
func (h *OrganHandlers) Status(w http.ResponseWriter, r *http.Request) {
	p, err := h.load(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	reading, err := h.current(r, &p)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.observe(r.Context(), p, reading)

	resp := map[string]interface{}{
		"organ":        h.organ.DisplayName(),
		"status":       "operational",
		"condition":    p.Condition,
		"current_data": reading,
		"patient_info": h.patientInfo(p),
	}
	if h.organ.StateField() == model.StateMentalState {
		resp["mental_state"] = p.MentalState
	}

	writeJSON(w, http.StatusOK, resp)
}

// Data handles GET /api/{organ}/data?count=N.
func (h *OrganHandlers) Data(w http.ResponseWriter, r *http.Request) {
	count := parseCount(r.URL.Query().Get("count"), h.opts.MaxCount)

	p, err := h.load(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	ctx := r.Context()
	readings := make([]simulator.Reading, 0, count)
	for i := 0; i < count; i++ {
		if i > 0 && h.opts.SampleInterval > 0 {
			select {
			case <-ctx.Done():
				h.logger.Debug("data generation cancelled", zap.Int("generated", i))
				return
			case <-time.After(h.opts.SampleInterval):
			}
		}
		reading, err := h.current(r, &p)
		if err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		h.observe(ctx, p, reading)
		readings = append(readings, reading)
	}

	var data interface{} = readings
	if count == 1 {
		data = readings[0]
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"organ": h.organ.DisplayName(),
		"count": len(readings),
		"data":  data,
	})
}

// Simulate handles POST /api/{organ}/simulate/{condition}.
func (h *OrganHandlers) Simulate(w http.ResponseWriter, r *http.Request) {
	cond := model.Condition(mux.Vars(r)["condition"])

	p, err := h.load(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	reading, err := h.organ.Simulate(&p, cond)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	if err := h.save(r, p); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.Info("condition activated",
		zap.String("condition", string(cond)),
		zap.String("session_id", middleware.SessionID(r.Context())),
	)
	if h.metrics != nil {
		h.metrics.RecordConditionActivation(string(h.organ.Kind()), string(cond))
	}
	h.observe(r.Context(), p, reading)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":      fmt.Sprintf("Condition '%s' activated", cond),
		"current_data": reading,
	})
}

// GetParameters handles GET /api/{organ}/parameters.
func (h *OrganHandlers) GetParameters(w http.ResponseWriter, r *http.Request) {
	p, err := h.load(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"current_parameters": h.currentParameters(p),
		"available_parameters": map[string]interface{}{
			"age":                        fmt.Sprintf("integer (%d-%d)", model.MinAge, model.MaxAge),
			"sex":                        model.Sexes,
			string(h.organ.StateField()): h.organ.States(),
			"condition":                  h.organ.Conditions(),
		},
	})
}

// UpdateParameters handles POST /api/{organ}/parameters.
func (h *OrganHandlers) UpdateParameters(w http.ResponseWriter, r *http.Request) {
	var update model.ParameterUpdate
	if err := decodeObject(w, r, &update, "No parameters provided"); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	p, err := h.load(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	update.ApplyTo(&p, h.organ.StateField())

	if err := h.save(r, p); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":            "Parameters updated",
		"current_parameters": h.currentParameters(p),
	})
}

func (h *OrganHandlers) load(r *http.Request) (model.PatientProfile, error) {
	id := middleware.SessionID(r.Context())
	p, err := h.store.Load(r.Context(), id)
	if err != nil {
		return p, apierrors.Internal("failed to load session", err)
	}
	return p, nil
}

// current generates a reading for the active condition and saves any state
// the condition pins on the profile, such as the neural stress state.
func (h *OrganHandlers) current(r *http.Request, p *model.PatientProfile) (simulator.Reading, error) {
	before := *p
	reading := h.organ.Current(p)
	if *p != before {
		if err := h.save(r, *p); err != nil {
			return nil, err
		}
	}
	return reading, nil
}

func (h *OrganHandlers) save(r *http.Request, p model.PatientProfile) error {
	id := middleware.SessionID(r.Context())
	if err := h.store.Save(r.Context(), id, p); err != nil {
		return apierrors.Internal("failed to save session", err)
	}
	return nil
}

func (h *OrganHandlers) stateValue(p model.PatientProfile) string {
	if h.organ.StateField() == model.StateMentalState {
		return string(p.MentalState)
	}
	return string(p.ActivityLevel)
}

func (h *OrganHandlers) patientInfo(p model.PatientProfile) map[string]interface{} {
	return map[string]interface{}{
		"age":                        p.Age,
		"sex":                        p.Sex,
		string(h.organ.StateField()): h.stateValue(p),
	}
}

func (h *OrganHandlers) currentParameters(p model.PatientProfile) map[string]interface{} {
	params := h.patientInfo(p)
	params["condition"] = p.Condition
	return params
}

// observe records metrics for a reading and forwards it to the telemetry sink.
// Sink failures are logged and never fail the request.
func (h *OrganHandlers) observe(ctx context.Context, p model.PatientProfile, reading simulator.Reading) {
	organ := string(h.organ.Kind())
	if h.metrics != nil {
		h.metrics.RecordReading(organ, string(p.Condition), string(reading.ReadingStatus()))
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.opts.TelemetryTimeout)
	defer cancel()

	event := telemetry.NewEvent(h.organ.Kind(), middleware.SessionID(ctx), p.Condition, reading)
	if err := h.publisher.Publish(ctx, event); err != nil {
		h.logger.Warn("failed to publish reading", zap.Error(err))
		if h.metrics != nil {
			h.metrics.RecordTelemetryFailure(organ)
		}
	}
}

// parseCount reads the count query parameter. Anything that is not an
// integer counts as 1; integers are clamped to [1, max].
func parseCount(raw string, max int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 1
	}
	if n > max {
		return max
	}
	return n
}

// decodeObject decodes a required JSON object body into v. missing is the
// message used when the body is empty.
func decodeObject(w http.ResponseWriter, r *http.Request, v interface{}, missing string) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return apierrors.InvalidRequest("failed to read request body", err)
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return apierrors.InvalidRequest(missing, nil)
	}
	if body[0] != '{' {
		return apierrors.InvalidRequest("Invalid data format: expected a JSON object", nil)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return apierrors.InvalidRequest("Invalid JSON body", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
