package model

import "time"

// Status is the severity attached to every reading.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusAbnormal Status = "abnormal"
	StatusCritical Status = "critical"
)

// Timestamp formats t the way every reading carries it.
func Timestamp(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

// CardiacReading is one synthetic cardiovascular sample.
type CardiacReading struct {
	Timestamp         string  `json:"timestamp"`
	HeartRate         int     `json:"heart_rate"`
	SystolicPressure  int     `json:"systolic_pressure"`
	DiastolicPressure int     `json:"diastolic_pressure"`
	OxygenSaturation  float64 `json:"oxygen_saturation"`
	CardiacOutput     float64 `json:"cardiac_output"`
	Rhythm            string  `json:"rhythm"`
	Status            Status  `json:"status"`
}

// ReadingStatus returns the reading severity.
func (r CardiacReading) ReadingStatus() Status { return r.Status }

// RespiratoryReading is one synthetic pulmonary sample.
type RespiratoryReading struct {
	Timestamp        string  `json:"timestamp"`
	RespiratoryRate  int     `json:"respiratory_rate"`
	TidalVolume      int     `json:"tidal_volume"`
	VitalCapacity    int     `json:"vital_capacity"`
	PaO2             float64 `json:"pao2"`
	PaCO2            float64 `json:"paco2"`
	PH               float64 `json:"ph"`
	OxygenSaturation float64 `json:"oxygen_saturation"`
	BreathingPattern string  `json:"breathing_pattern"`
	Status           Status  `json:"status"`
}

// ReadingStatus returns the reading severity.
func (r RespiratoryReading) ReadingStatus() Status { return r.Status }

// NeuralReading is one synthetic central nervous system sample.
type NeuralReading struct {
	Timestamp          string  `json:"timestamp"`
	EEGAlpha           float64 `json:"eeg_alpha"`
	EEGBeta            float64 `json:"eeg_beta"`
	EEGTheta           float64 `json:"eeg_theta"`
	EEGDelta           float64 `json:"eeg_delta"`
	BrainActivityLevel float64 `json:"brain_activity_level"`
	Dopamine           float64 `json:"dopamine"`
	Serotonin          float64 `json:"serotonin"`
	Norepinephrine     float64 `json:"norepinephrine"`
	ReactionTime       int     `json:"reaction_time"`
	CorticalActivity   string  `json:"cortical_activity"`
	Status             Status  `json:"status"`
}

// ReadingStatus returns the reading severity.
func (r NeuralReading) ReadingStatus() Status { return r.Status }
