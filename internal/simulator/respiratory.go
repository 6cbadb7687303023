package simulator

import (
	"github.com/devrev/organsim/internal/model"
)

const (
	respiratoryBaseRate     = 16.0
	respiratoryBaseTidal    = 500.0
	respiratoryBaseCapacity = 4800.0
	respiratoryBasePaO2     = 95.0
	respiratoryBasePaCO2    = 40.0
	respiratoryBasePH       = 7.40
	respiratoryBaseSpO2     = 98.0
)

const (
	ConditionAsthma           model.Condition = "asthma"
	ConditionCOPD             model.Condition = "copd"
	ConditionHyperventilation model.Condition = "hyperventilation"
	ConditionApnea            model.Condition = "apnea"
)

var respiratoryActivityFactors = map[model.ActivityLevel]float64{
	model.ActivityResting:         0.7,
	model.ActivityNormal:          1.0,
	model.ActivityLightExercise:   1.5,
	model.ActivityIntenseExercise: 2.2,
}

var respiratoryConditionOrder = []model.Condition{
	model.ConditionNormal,
	ConditionAsthma,
	ConditionCOPD,
	ConditionHyperventilation,
	ConditionApnea,
}

var respiratoryConditions = map[model.Condition]condition[model.RespiratoryReading]{
	model.ConditionNormal: {severity: model.StatusHealthy},
	ConditionAsthma: {
		severity: model.StatusAbnormal,
		apply: func(r *model.RespiratoryReading, src *Source) {
			r.RespiratoryRate = src.IntRange(25, 35)
			r.TidalVolume = src.IntRange(300, 400)
			r.VitalCapacity = int(float64(r.VitalCapacity) * 0.7)
			r.OxygenSaturation = src.uniformRounded(88, 94, 1)
			r.PaO2 = src.uniformRounded(70, 85, 1)
			r.BreathingPattern = "wheezing"
		},
	},
	ConditionCOPD: {
		severity: model.StatusAbnormal,
		apply: func(r *model.RespiratoryReading, src *Source) {
			r.RespiratoryRate = src.IntRange(22, 30)
			r.VitalCapacity = int(float64(r.VitalCapacity) * 0.6)
			r.TidalVolume = src.IntRange(350, 450)
			r.OxygenSaturation = src.uniformRounded(85, 92, 1)
			r.PaO2 = src.uniformRounded(60, 75, 1)
			r.PaCO2 = src.uniformRounded(45, 55, 1)
			r.PH = src.uniformRounded(7.32, 7.38, 2)
			r.BreathingPattern = "obstructed"
		},
	},
	ConditionHyperventilation: {
		severity: model.StatusAbnormal,
		apply: func(r *model.RespiratoryReading, src *Source) {
			r.RespiratoryRate = src.IntRange(30, 45)
			r.TidalVolume = src.IntRange(600, 800)
			r.PaCO2 = src.uniformRounded(25, 33, 1)
			r.PH = src.uniformRounded(7.45, 7.55, 2)
			r.BreathingPattern = "rapid"
		},
	},
	ConditionApnea: {
		severity: model.StatusCritical,
		apply: func(r *model.RespiratoryReading, src *Source) {
			r.RespiratoryRate = src.IntRange(0, 8)
			r.TidalVolume = src.IntRange(100, 300)
			r.OxygenSaturation = src.uniformRounded(75, 88, 1)
			r.PaO2 = src.uniformRounded(50, 70, 1)
			r.PaCO2 = src.uniformRounded(48, 60, 1)
			r.PH = src.uniformRounded(7.28, 7.35, 2)
			r.BreathingPattern = "absent"
		},
	},
}

// Respiratory simulates the pulmonary system.
type Respiratory struct {
	src *Source
}

// NewRespiratory creates a respiratory simulator drawing from src.
func NewRespiratory(src *Source) *Respiratory {
	return &Respiratory{src: src}
}

func (s *Respiratory) Kind() model.Organ             { return model.OrganRespiratory }
func (s *Respiratory) DisplayName() string           { return "lungs" }
func (s *Respiratory) Conditions() []model.Condition { return respiratoryConditionOrder }
func (s *Respiratory) StateField() model.StateField  { return model.StateActivityLevel }
func (s *Respiratory) States() []string              { return activityNames() }

// Baseline generates a healthy respiratory reading.
func (s *Respiratory) Baseline(p model.PatientProfile) Reading {
	return s.baseline(p)
}

func (s *Respiratory) baseline(p model.PatientProfile) model.RespiratoryReading {
	activity := activityFactor(respiratoryActivityFactors, p.ActivityLevel)

	rate := s.src.jitter(respiratoryBaseRate*activity, 0.1)

	tidal := respiratoryBaseTidal * (1 + (activity-1)*0.5)
	tidal = s.src.jitter(tidal, 0.08)

	capacity := respiratoryBaseCapacity * ageFactor(p.Age, -0.008)
	if p.Sex == model.SexFemale {
		capacity *= 0.85
	}
	capacity = s.src.jitter(capacity, 0.05)

	pao2 := s.src.jitter(respiratoryBasePaO2, 0.03)
	paco2 := s.src.jitter(respiratoryBasePaCO2, 0.05)
	ph := s.src.jitter(respiratoryBasePH, 0.01)
	spo2 := s.src.jitter(respiratoryBaseSpO2, 0.02)

	return model.RespiratoryReading{
		Timestamp:        now(),
		RespiratoryRate:  int(clamp(rate, 12, 25)),
		TidalVolume:      int(clamp(tidal, 350, 750)),
		VitalCapacity:    int(clamp(capacity, 3000, 6000)),
		PaO2:             round(clamp(pao2, 80, 100), 1),
		PaCO2:            round(clamp(paco2, 35, 45), 1),
		PH:               round(clamp(ph, 7.35, 7.45), 2),
		OxygenSaturation: round(clamp(spo2, 95, 100), 1),
		BreathingPattern: "regular",
		Status:           model.StatusHealthy,
	}
}

// Simulate activates cond on p.
func (s *Respiratory) Simulate(p *model.PatientProfile, cond model.Condition) (Reading, error) {
	r, err := simulate(respiratoryConditions, respiratoryConditionOrder, p, cond, s.baseline, setRespiratoryStatus, s.src)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Current honors p's active condition.
func (s *Respiratory) Current(p *model.PatientProfile) Reading {
	if p.Condition == model.ConditionNormal {
		return s.Baseline(*p)
	}
	r, err := s.Simulate(p, p.Condition)
	if err != nil {
		return s.Baseline(*p)
	}
	return r
}

func setRespiratoryStatus(r *model.RespiratoryReading, st model.Status) { r.Status = st }
