package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	apierrors "github.com/devrev/organsim/internal/errors"
	"github.com/devrev/organsim/internal/metrics"
	"github.com/devrev/organsim/internal/model"
	"go.uber.org/zap"
)

// Aggregator fans requests out to the registered organs, one after another.
type Aggregator struct {
	registry *Registry
	client   *Client
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewAggregator creates a new Aggregator.
func NewAggregator(registry *Registry, client *Client, m *metrics.Metrics, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		registry: registry,
		client:   client,
		metrics:  m,
		logger:   logger,
	}
}

// Registry returns the organ registry.
func (a *Aggregator) Registry() *Registry {
	return a.registry
}

// CheckHealth calls the health endpoint of one organ.
func (a *Aggregator) CheckHealth(ctx context.Context, organ string) HealthReport {
	ep, ok := a.registry.Lookup(organ)
	if !ok {
		return HealthReport{Status: HealthUnknown, Error: "Unknown organ"}
	}

	resp, err := a.client.do(ctx, request{
		organ:     organ,
		operation: "health",
		method:    http.MethodGet,
		url:       ep.URL + ep.HealthPath,
	})

	report := healthReport(resp, err)
	if a.metrics != nil {
		a.metrics.SetOrganHealth(organ, report.Status == HealthHealthy)
	}
	return report
}

func healthReport(resp *Response, err error) HealthReport {
	if err == nil {
		if resp.StatusCode != http.StatusOK {
			return HealthReport{Status: HealthUnhealthy, Error: fmt.Sprintf("Status code: %d", resp.StatusCode)}
		}
		return HealthReport{
			Status:       HealthHealthy,
			ResponseTime: resp.Elapsed.Seconds(),
			Data:         resp.Body,
		}
	}

	msg := errorMessage(err)
	switch apierrors.CodeOf(err) {
	case apierrors.ErrorCodeUpstreamStatus:
		var e *apierrors.Error
		if errors.As(err, &e) {
			msg = fmt.Sprintf("Status code: %d", e.StatusCode)
		}
		return HealthReport{Status: HealthUnhealthy, Error: msg}
	case apierrors.ErrorCodeUpstreamTimeout:
		return HealthReport{Status: HealthTimeout, Error: msg}
	case apierrors.ErrorCodeUpstreamOffline:
		return HealthReport{Status: HealthOffline, Error: msg}
	default:
		return HealthReport{Status: HealthError, Error: msg}
	}
}

// AllHealth checks every organ in registry order. The system is healthy only
// if every organ is.
func (a *Aggregator) AllHealth(ctx context.Context) SystemHealth {
	result := SystemHealth{
		OverallStatus: HealthHealthy,
		Organs:        make(map[string]HealthReport, a.registry.Len()),
	}
	for _, key := range a.registry.Keys() {
		report := a.CheckHealth(ctx, string(key))
		if report.Status != HealthHealthy {
			result.OverallStatus = HealthDegraded
		}
		result.Organs[string(key)] = report
	}
	result.Timestamp = now()
	return result
}

// OrganStatus fetches GET /api/{organ}/status.
func (a *Aggregator) OrganStatus(ctx context.Context, organ string) Outcome {
	return a.call(ctx, organ, "status", http.MethodGet, "/status", nil, nil)
}

// OrganData fetches count readings from one organ.
func (a *Aggregator) OrganData(ctx context.Context, organ string, count int) Outcome {
	query := map[string]string{"count": strconv.Itoa(count)}
	return a.call(ctx, organ, "data", http.MethodGet, "/data", query, nil)
}

// AllData fetches count readings from every organ.
func (a *Aggregator) AllData(ctx context.Context, count int) AllData {
	result := AllData{
		Timestamp: now(),
		DataCount: count,
		Organs:    make(map[string]Outcome, a.registry.Len()),
	}
	for _, key := range a.registry.Keys() {
		result.Organs[string(key)] = a.OrganData(ctx, string(key), count)
	}
	return result
}

// SimulateCondition activates condition on one organ.
func (a *Aggregator) SimulateCondition(ctx context.Context, organ, condition string) Outcome {
	path := "/simulate/" + url.PathEscape(condition)
	return a.call(ctx, organ, "simulate", http.MethodPost, path, nil, nil)
}

// SimulateMultiple activates one condition per organ, in sorted key order.
// Per-organ failures are embedded; the call as a whole never fails.
func (a *Aggregator) SimulateMultiple(ctx context.Context, conditions map[string]string) Simulations {
	keys := make([]string, 0, len(conditions))
	for k := range conditions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := Simulations{
		Timestamp:   now(),
		Simulations: make(map[string]Outcome, len(keys)),
	}
	for _, organ := range keys {
		result.Simulations[organ] = a.SimulateCondition(ctx, organ, conditions[organ])
	}
	return result
}

// UpdateParameters forwards params to one organ.
func (a *Aggregator) UpdateParameters(ctx context.Context, organ string, params json.RawMessage) Outcome {
	return a.call(ctx, organ, "parameters", http.MethodPost, "/parameters", nil, []byte(params))
}

// UpdateAllParameters forwards params to every organ. Each organ ignores the
// fields it does not own.
func (a *Aggregator) UpdateAllParameters(ctx context.Context, params json.RawMessage) Updates {
	result := Updates{
		Timestamp: now(),
		Updates:   make(map[string]Outcome, a.registry.Len()),
	}
	for _, key := range a.registry.Keys() {
		result.Updates[string(key)] = a.UpdateParameters(ctx, string(key), params)
	}
	return result
}

// SystemOverview combines AllHealth with every organ's status.
func (a *Aggregator) SystemOverview(ctx context.Context) Overview {
	overview := Overview{
		Timestamp:     now(),
		SystemHealth:  a.AllHealth(ctx),
		OrganStatuses: make(map[string]Outcome, a.registry.Len()),
	}
	for _, key := range a.registry.Keys() {
		overview.OrganStatuses[string(key)] = a.OrganStatus(ctx, string(key))
	}
	return overview
}

// OrganListing is the public view of the registry.
type OrganListing struct {
	Organs map[string]model.OrganEndpoint `json:"organs"`
	Count  int                            `json:"count"`
}

// Organs lists the registry.
func (a *Aggregator) Organs() OrganListing {
	listing := OrganListing{Organs: make(map[string]model.OrganEndpoint, a.registry.Len())}
	for _, e := range a.registry.Entries() {
		listing.Organs[string(e.Key)] = e
	}
	listing.Count = len(listing.Organs)
	return listing
}

// call performs one request against /api/{organ}{suffix}.
func (a *Aggregator) call(ctx context.Context, organ, operation, method, suffix string, query map[string]string, body interface{}) Outcome {
	ep, ok := a.registry.Lookup(organ)
	if !ok {
		return Outcome{Err: apierrors.UnknownOrgan(organ)}
	}

	resp, err := a.client.do(ctx, request{
		organ:     organ,
		operation: operation,
		method:    method,
		url:       fmt.Sprintf("%s/api/%s%s", ep.URL, ep.Key, suffix),
		query:     query,
		body:      body,
	})
	if err != nil {
		return Outcome{Err: err}
	}
	return Outcome{Data: resp.Body}
}

func now() string {
	return model.Timestamp(time.Now())
}
