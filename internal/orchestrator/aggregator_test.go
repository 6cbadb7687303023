package orchestrator

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	apierrors "github.com/devrev/organsim/internal/errors"
	"github.com/devrev/organsim/internal/metrics"
	"github.com/devrev/organsim/internal/middleware"
	"github.com/devrev/organsim/internal/model"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeOrgan mimics the HTTP surface of one organ service.
type fakeOrgan struct {
	key        model.Organ
	conditions map[string]bool

	mu       sync.Mutex
	headers  []http.Header
	lastBody []byte
}

func (f *fakeOrgan) handler() http.Handler {
	r := mux.NewRouter()
	base := "/api/" + string(f.key)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		f.capture(r)
		writeTestJSON(w, http.StatusOK, map[string]string{"status": "healthy", "organ": string(f.key)})
	})
	r.HandleFunc(base+"/status", func(w http.ResponseWriter, r *http.Request) {
		f.capture(r)
		writeTestJSON(w, http.StatusOK, map[string]string{"status": "operational", "condition": "normal"})
	})
	r.HandleFunc(base+"/data", func(w http.ResponseWriter, r *http.Request) {
		f.capture(r)
		writeTestJSON(w, http.StatusOK, map[string]string{"count": r.URL.Query().Get("count")})
	})
	r.HandleFunc(base+"/simulate/{condition}", func(w http.ResponseWriter, r *http.Request) {
		f.capture(r)
		c := mux.Vars(r)["condition"]
		if !f.conditions[c] {
			writeTestJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error":            "Invalid condition",
				"valid_conditions": []string{"normal"},
			})
			return
		}
		writeTestJSON(w, http.StatusOK, map[string]string{"message": "Condition '" + c + "' activated"})
	}).Methods(http.MethodPost)
	r.HandleFunc(base+"/parameters", func(w http.ResponseWriter, r *http.Request) {
		f.capture(r)
		writeTestJSON(w, http.StatusOK, map[string]interface{}{"message": "Parameters updated"})
	}).Methods(http.MethodPost)

	return r
}

func (f *fakeOrgan) capture(r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.headers = append(f.headers, r.Header.Clone())
	f.lastBody = body
}

func writeTestJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type fixture struct {
	agg    *Aggregator
	organs map[model.Organ]*fakeOrgan
}

func newFixture(t *testing.T, timeout time.Duration, override map[model.Organ]string) *fixture {
	t.Helper()

	organs := map[model.Organ]*fakeOrgan{
		model.OrganCardiac:     {key: model.OrganCardiac, conditions: map[string]bool{"normal": true, "tachycardia": true}},
		model.OrganRespiratory: {key: model.OrganRespiratory, conditions: map[string]bool{"normal": true, "asthma": true}},
		model.OrganNeural:      {key: model.OrganNeural, conditions: map[string]bool{"normal": true, "epilepsy": true}},
	}

	var endpoints []model.OrganEndpoint
	for _, ep := range DefaultEndpoints() {
		if u, ok := override[ep.Key]; ok {
			ep.URL = u
		} else {
			srv := httptest.NewServer(organs[ep.Key].handler())
			t.Cleanup(srv.Close)
			ep.URL = srv.URL
		}
		endpoints = append(endpoints, ep)
	}

	reg, err := NewRegistry(endpoints)
	require.NoError(t, err)

	logger := zap.NewNop()
	m := metrics.NewMetrics("orchestrator")
	return &fixture{
		agg:    NewAggregator(reg, NewClient(timeout, m, logger), m, logger),
		organs: organs,
	}
}

// closedURL returns the address of a server that is no longer listening.
func closedURL() string {
	srv := httptest.NewServer(http.NotFoundHandler())
	u := srv.URL
	srv.Close()
	return u
}

func TestAllHealth_AllHealthy(t *testing.T) {
	f := newFixture(t, 2*time.Second, nil)

	h := f.agg.AllHealth(context.Background())
	assert.Equal(t, HealthHealthy, h.OverallStatus)
	require.Len(t, h.Organs, 3)
	for organ, report := range h.Organs {
		assert.Equal(t, HealthHealthy, report.Status, organ)
		assert.NotEmpty(t, report.Data)
	}
	assert.NotEmpty(t, h.Timestamp)
}

func TestAllHealth_OneOffline(t *testing.T) {
	f := newFixture(t, 2*time.Second, map[model.Organ]string{model.OrganRespiratory: closedURL()})

	h := f.agg.AllHealth(context.Background())
	assert.Equal(t, HealthDegraded, h.OverallStatus)
	assert.Equal(t, HealthOffline, h.Organs["respiratory"].Status)
	assert.Equal(t, "Cannot connect to API", h.Organs["respiratory"].Error)
	assert.Equal(t, HealthHealthy, h.Organs["cardiac"].Status)
	assert.Equal(t, HealthHealthy, h.Organs["neural"].Status)
}

func TestCheckHealth_Classification(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer slow.Close()

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer failing.Close()

	f := newFixture(t, 100*time.Millisecond, map[model.Organ]string{
		model.OrganCardiac: slow.URL,
		model.OrganNeural:  failing.URL,
	})

	timeout := f.agg.CheckHealth(context.Background(), "cardiac")
	assert.Equal(t, HealthTimeout, timeout.Status)
	assert.Equal(t, "Request timeout", timeout.Error)

	unhealthy := f.agg.CheckHealth(context.Background(), "neural")
	assert.Equal(t, HealthUnhealthy, unhealthy.Status)
	assert.Equal(t, "Status code: 503", unhealthy.Error)

	unknown := f.agg.CheckHealth(context.Background(), "liver")
	assert.Equal(t, HealthUnknown, unknown.Status)
}

func TestOrganStatus(t *testing.T) {
	f := newFixture(t, 2*time.Second, nil)

	out := f.agg.OrganStatus(context.Background(), "cardiac")
	require.True(t, out.OK())

	var body map[string]string
	require.NoError(t, json.Unmarshal(out.Data, &body))
	assert.Equal(t, "operational", body["status"])

	missing := f.agg.OrganStatus(context.Background(), "liver")
	assert.False(t, missing.OK())
	assert.True(t, apierrors.Is(missing.Err, apierrors.ErrorCodeNotFound))
}

func TestOrganData_ForwardsCountAndHeaders(t *testing.T) {
	f := newFixture(t, 2*time.Second, nil)

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")
	ctx = context.WithValue(ctx, middleware.SessionIDKey, "ward-3")

	out := f.agg.OrganData(ctx, "neural", 7)
	require.True(t, out.OK())
	assert.JSONEq(t, `{"count":"7"}`, string(out.Data))

	hdr := f.organs[model.OrganNeural].headers[0]
	assert.Equal(t, "req-42", hdr.Get(middleware.HeaderRequestID))
	assert.Equal(t, "ward-3", hdr.Get(middleware.HeaderSessionID))
}

func TestAllData(t *testing.T) {
	f := newFixture(t, 2*time.Second, map[model.Organ]string{model.OrganCardiac: closedURL()})

	all := f.agg.AllData(context.Background(), 3)
	assert.Equal(t, 3, all.DataCount)
	require.Len(t, all.Organs, 3)
	assert.False(t, all.Organs["cardiac"].OK())
	assert.True(t, all.Organs["respiratory"].OK())

	raw, err := json.Marshal(all)
	require.NoError(t, err)
	var decoded map[string]map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "Cannot connect to API", decoded["organs"]["cardiac"]["error"])
}

func TestSimulateCondition_RelaysUpstreamStatus(t *testing.T) {
	f := newFixture(t, 2*time.Second, nil)

	out := f.agg.SimulateCondition(context.Background(), "cardiac", "bogus")
	require.False(t, out.OK())
	assert.Equal(t, http.StatusBadRequest, apierrors.HTTPStatus(out.Err))
	assert.Equal(t, "Status code: 400 (Invalid condition)", errorMessage(out.Err))
}

func TestSimulateMultiple(t *testing.T) {
	f := newFixture(t, 2*time.Second, nil)

	res := f.agg.SimulateMultiple(context.Background(), map[string]string{
		"cardiac":     "tachycardia",
		"respiratory": "bogus",
		"liver":       "cirrhosis",
	})

	require.Len(t, res.Simulations, 3)
	assert.True(t, res.Simulations["cardiac"].OK())
	assert.False(t, res.Simulations["respiratory"].OK())
	assert.False(t, res.Simulations["liver"].OK())

	raw, err := json.Marshal(res)
	require.NoError(t, err)
	var decoded struct {
		Simulations map[string]map[string]interface{} `json:"simulations"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "Condition 'tachycardia' activated", decoded.Simulations["cardiac"]["message"])
	assert.Contains(t, decoded.Simulations["respiratory"]["error"], "Status code: 400")
	assert.Equal(t, "Unknown organ: liver", decoded.Simulations["liver"]["error"])
}

func TestUpdateAllParameters(t *testing.T) {
	f := newFixture(t, 2*time.Second, nil)

	params := json.RawMessage(`{"age": 60, "mental_state": "relaxed"}`)
	res := f.agg.UpdateAllParameters(context.Background(), params)

	require.Len(t, res.Updates, 3)
	for organ, out := range res.Updates {
		assert.True(t, out.OK(), organ)
	}
	for _, organ := range f.organs {
		assert.JSONEq(t, string(params), string(organ.lastBody))
	}
}

func TestSystemOverview(t *testing.T) {
	f := newFixture(t, 2*time.Second, map[model.Organ]string{model.OrganNeural: closedURL()})

	ov := f.agg.SystemOverview(context.Background())
	assert.Equal(t, HealthDegraded, ov.SystemHealth.OverallStatus)
	require.Len(t, ov.OrganStatuses, 3)
	assert.True(t, ov.OrganStatuses["cardiac"].OK())
	assert.False(t, ov.OrganStatuses["neural"].OK())
}

func TestOrgans(t *testing.T) {
	f := newFixture(t, time.Second, nil)

	listing := f.agg.Organs()
	assert.Equal(t, 3, listing.Count)

	raw, err := json.Marshal(listing)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	cardiac := decoded["organs"].(map[string]interface{})["cardiac"].(map[string]interface{})
	assert.Equal(t, "Cardiovascular System", cardiac["name"])
	assert.Equal(t, "/health", cardiac["health_endpoint"])
	assert.NotContains(t, cardiac, "key")
}

func TestNewRegistry_Validation(t *testing.T) {
	_, err := NewRegistry([]model.OrganEndpoint{{Key: "liver", URL: "http://x"}})
	assert.Error(t, err)

	_, err = NewRegistry([]model.OrganEndpoint{
		{Key: model.OrganCardiac, URL: "http://a"},
		{Key: model.OrganCardiac, URL: "http://b"},
	})
	assert.Error(t, err)

	reg, err := NewRegistry([]model.OrganEndpoint{{Key: model.OrganNeural, URL: "http://n"}})
	require.NoError(t, err)
	ep, ok := reg.Lookup("neural")
	require.True(t, ok)
	assert.Equal(t, "/health", ep.HealthPath)
}
