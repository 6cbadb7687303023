package simulator

import (
	"github.com/devrev/organsim/internal/model"
)

const (
	cardiacBaseHeartRate = 70.0
	cardiacBaseSystolic  = 120.0
	cardiacBaseDiastolic = 80.0
	cardiacBaseSpO2      = 98.0
	strokeVolumeML       = 70
)

const (
	ConditionTachycardia  model.Condition = "tachycardia"
	ConditionBradycardia  model.Condition = "bradycardia"
	ConditionArrhythmia   model.Condition = "arrhythmia"
	ConditionHypertension model.Condition = "hypertension"
)

var cardiacActivityFactors = map[model.ActivityLevel]float64{
	model.ActivityResting:         0.8,
	model.ActivityNormal:          1.0,
	model.ActivityLightExercise:   1.3,
	model.ActivityIntenseExercise: 1.8,
}

var cardiacConditionOrder = []model.Condition{
	model.ConditionNormal,
	ConditionTachycardia,
	ConditionBradycardia,
	ConditionArrhythmia,
	ConditionHypertension,
}

var cardiacConditions = map[model.Condition]condition[model.CardiacReading]{
	model.ConditionNormal: {severity: model.StatusHealthy},
	ConditionTachycardia: {
		severity: model.StatusAbnormal,
		apply: func(r *model.CardiacReading, src *Source) {
			r.HeartRate = src.IntRange(110, 150)
			r.CardiacOutput = cardiacOutput(r.HeartRate)
			r.Rhythm = "tachycardia"
		},
	},
	ConditionBradycardia: {
		severity: model.StatusAbnormal,
		apply: func(r *model.CardiacReading, src *Source) {
			r.HeartRate = src.IntRange(40, 55)
			r.CardiacOutput = cardiacOutput(r.HeartRate)
			r.Rhythm = "bradycardia"
		},
	},
	ConditionArrhythmia: {
		severity: model.StatusAbnormal,
		apply: func(r *model.CardiacReading, src *Source) {
			r.HeartRate = src.IntRange(60, 120)
			r.Rhythm = "irregular"
		},
	},
	ConditionHypertension: {
		severity: model.StatusAbnormal,
		apply: func(r *model.CardiacReading, src *Source) {
			r.SystolicPressure = src.IntRange(145, 180)
			r.DiastolicPressure = src.IntRange(95, 110)
		},
	},
}

// Cardiac simulates the cardiovascular system.
type Cardiac struct {
	src *Source
}

// NewCardiac creates a cardiac simulator drawing from src.
func NewCardiac(src *Source) *Cardiac {
	return &Cardiac{src: src}
}

func (c *Cardiac) Kind() model.Organ             { return model.OrganCardiac }
func (c *Cardiac) DisplayName() string           { return "heart" }
func (c *Cardiac) Conditions() []model.Condition { return cardiacConditionOrder }
func (c *Cardiac) StateField() model.StateField  { return model.StateActivityLevel }
func (c *Cardiac) States() []string              { return activityNames() }

// Baseline generates a healthy cardiovascular reading.
func (c *Cardiac) Baseline(p model.PatientProfile) Reading {
	return c.baseline(p)
}

func (c *Cardiac) baseline(p model.PatientProfile) model.CardiacReading {
	activity := activityFactor(cardiacActivityFactors, p.ActivityLevel)

	hr := cardiacBaseHeartRate * ageFactor(p.Age, -0.002)
	hr *= activity
	hr = c.src.jitter(hr, 0.08)
	heartRate := int(clamp(hr, 50, 100))

	pressureActivity := 1 + (activity-1)*0.3

	systolic := cardiacBaseSystolic * ageFactor(p.Age, 0.005) * pressureActivity
	systolic = c.src.jitter(systolic, 0.05)

	diastolic := cardiacBaseDiastolic * ageFactor(p.Age, 0.005) * pressureActivity
	diastolic = c.src.jitter(diastolic, 0.05)

	spo2 := c.src.jitter(cardiacBaseSpO2, 0.02)

	return model.CardiacReading{
		Timestamp:         now(),
		HeartRate:         heartRate,
		SystolicPressure:  int(clamp(systolic, 90, 140)),
		DiastolicPressure: int(clamp(diastolic, 60, 90)),
		OxygenSaturation:  round(clamp(spo2, 95, 100), 1),
		CardiacOutput:     cardiacOutput(heartRate),
		Rhythm:            "normal",
		Status:            model.StatusHealthy,
	}
}

// Simulate activates cond on p.
func (c *Cardiac) Simulate(p *model.PatientProfile, cond model.Condition) (Reading, error) {
	r, err := simulate(cardiacConditions, cardiacConditionOrder, p, cond, c.baseline, setCardiacStatus, c.src)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Current honors p's active condition.
func (c *Cardiac) Current(p *model.PatientProfile) Reading {
	if p.Condition == model.ConditionNormal {
		return c.Baseline(*p)
	}
	r, err := c.Simulate(p, p.Condition)
	if err != nil {
		return c.Baseline(*p)
	}
	return r
}

// cardiacOutput in L/min for a fixed stroke volume.
func cardiacOutput(heartRate int) float64 {
	return round(float64(strokeVolumeML*heartRate)/1000, 2)
}

func setCardiacStatus(r *model.CardiacReading, s model.Status) { r.Status = s }

func activityFactor(table map[model.ActivityLevel]float64, level model.ActivityLevel) float64 {
	if f, ok := table[level]; ok {
		return f
	}
	return 1.0
}

func activityNames() []string {
	names := make([]string, len(model.ActivityLevels))
	for i, a := range model.ActivityLevels {
		names[i] = string(a)
	}
	return names
}
