package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"syscall"
	"time"

	apierrors "github.com/devrev/organsim/internal/errors"
	"github.com/devrev/organsim/internal/metrics"
	"github.com/devrev/organsim/internal/middleware"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Call outcome labels, also used as health statuses.
const (
	outcomeOK      = "ok"
	outcomeStatus  = "status"
	outcomeTimeout = "timeout"
	outcomeOffline = "offline"
	outcomeError   = "error"
)

// Response is a successful organ answer.
type Response struct {
	StatusCode int
	Body       json.RawMessage
	Elapsed    time.Duration
}

// request describes one outbound call.
type request struct {
	organ     string
	operation string
	method    string
	url       string
	query     map[string]string
	body      interface{}
}

// Client calls organ services over HTTP. It never retries.
type Client struct {
	http    *resty.Client
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewClient creates a Client with a fixed per-call timeout.
func NewClient(timeout time.Duration, m *metrics.Metrics, logger *zap.Logger) *Client {
	httpClient := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetLogger(logger.Sugar()).
		SetHeader("Accept", "application/json")

	return &Client{
		http:    httpClient,
		metrics: m,
		logger:  logger,
	}
}

// do performs req. Non-2xx answers, transport failures and non-JSON bodies
// are returned as *apierrors.Error with an upstream code.
func (c *Client) do(ctx context.Context, req request) (*Response, error) {
	start := time.Now()

	r := c.http.R().
		SetContext(ctx).
		SetHeader(middleware.HeaderRequestID, middleware.RequestIDFromContext(ctx)).
		SetHeader(middleware.HeaderSessionID, middleware.SessionID(ctx))
	if req.query != nil {
		r.SetQueryParams(req.query)
	}
	if req.body != nil {
		r.SetHeader("Content-Type", "application/json").SetBody(req.body)
	}

	resp, err := r.Execute(req.method, req.url)
	elapsed := time.Since(start)

	if err != nil {
		outcome, apiErr := classify(req.organ, err)
		c.record(req, outcome, elapsed)
		c.logger.Warn("organ request failed",
			zap.String("organ", req.organ),
			zap.String("operation", req.operation),
			zap.String("outcome", outcome),
			zap.Error(err),
		)
		return nil, apiErr
	}

	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		c.record(req, outcomeStatus, elapsed)
		apiErr := apierrors.UpstreamStatus(req.organ, resp.StatusCode(), upstreamMessage(resp.Body()))
		if details := upstreamDetails(resp.Body()); details != nil {
			apiErr.WithDetail("upstream_response", details)
		}
		return nil, apiErr
	}

	body := resp.Body()
	if !json.Valid(body) {
		c.record(req, outcomeError, elapsed)
		return nil, apierrors.UpstreamError(req.organ, errors.New("invalid JSON in response"))
	}

	c.record(req, outcomeOK, elapsed)
	return &Response{
		StatusCode: resp.StatusCode(),
		Body:       json.RawMessage(body),
		Elapsed:    elapsed,
	}, nil
}

func (c *Client) record(req request, outcome string, elapsed time.Duration) {
	if c.metrics != nil {
		c.metrics.RecordUpstreamRequest(req.organ, req.operation, outcome, elapsed)
	}
}

// classify maps a transport error to a health outcome and an upstream error.
func classify(organ string, err error) (string, *apierrors.Error) {
	if errors.Is(err, context.DeadlineExceeded) {
		return outcomeTimeout, apierrors.UpstreamTimeout(organ, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return outcomeTimeout, apierrors.UpstreamTimeout(organ, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return outcomeOffline, apierrors.UpstreamOffline(organ, err)
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return outcomeOffline, apierrors.UpstreamOffline(organ, err)
	}
	return outcomeError, apierrors.UpstreamError(organ, err)
}

// upstreamMessage extracts the "error" field of an organ error body.
func upstreamMessage(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return ""
}

func upstreamDetails(body []byte) map[string]interface{} {
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload) == 0 {
		return nil
	}
	return payload
}
