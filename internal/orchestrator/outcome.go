package orchestrator

import (
	"encoding/json"
	"errors"

	apierrors "github.com/devrev/organsim/internal/errors"
)

// Outcome is the result of one organ call: the organ's JSON answer, or an
// error rendered as {"error": message}.
type Outcome struct {
	Data json.RawMessage
	Err  error
}

// OK reports whether the call succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// MarshalJSON implements json.Marshaler.
func (o Outcome) MarshalJSON() ([]byte, error) {
	if o.Err != nil {
		return json.Marshal(map[string]string{"error": errorMessage(o.Err)})
	}
	if len(o.Data) == 0 {
		return []byte("null"), nil
	}
	return o.Data, nil
}

func errorMessage(err error) string {
	var e *apierrors.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// HealthReport is the health of one organ as seen by the orchestrator.
type HealthReport struct {
	Status       string          `json:"status"`
	ResponseTime float64         `json:"response_time,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// Health statuses.
const (
	HealthHealthy   = "healthy"
	HealthUnhealthy = "unhealthy"
	HealthTimeout   = "timeout"
	HealthOffline   = "offline"
	HealthError     = "error"
	HealthUnknown   = "unknown"
	HealthDegraded  = "degraded"
)

// SystemHealth is the aggregated health of every organ.
type SystemHealth struct {
	OverallStatus string                  `json:"overall_status"`
	Timestamp     string                  `json:"timestamp"`
	Organs        map[string]HealthReport `json:"organs"`
}

// AllData is the answer of a data fan-out.
type AllData struct {
	Timestamp string             `json:"timestamp"`
	DataCount int                `json:"data_count"`
	Organs    map[string]Outcome `json:"organs"`
}

// Simulations is the answer of a multi-organ simulate.
type Simulations struct {
	Timestamp   string             `json:"timestamp"`
	Simulations map[string]Outcome `json:"simulations"`
}

// Updates is the answer of a parameter broadcast.
type Updates struct {
	Timestamp string             `json:"timestamp"`
	Updates   map[string]Outcome `json:"updates"`
}

// Overview combines system health with every organ's status.
type Overview struct {
	Timestamp     string             `json:"timestamp"`
	SystemHealth  SystemHealth       `json:"system_health"`
	OrganStatuses map[string]Outcome `json:"organ_statuses"`
}
