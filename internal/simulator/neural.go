package simulator

import (
	"github.com/devrev/organsim/internal/model"
)

const (
	neuralBaseDopamine       = 0.04
	neuralBaseSerotonin      = 150.0
	neuralBaseNorepinephrine = 200.0
	neuralBaseReactionTime   = 250.0
)

const (
	ConditionEpilepsy      model.Condition = "epilepsy"
	ConditionMigraine      model.Condition = "migraine"
	ConditionSleepDisorder model.Condition = "sleep_disorder"
	ConditionStress        model.Condition = "stress"
)

type band struct{ min, max float64 }

// eegProfile holds the alpha, beta, theta and delta draw ranges of one state.
type eegProfile struct {
	alpha, beta, theta, delta band
}

var eegProfiles = map[model.MentalState]eegProfile{
	model.MentalAlert:    {band{20, 40}, band{50, 70}, band{10, 20}, band{5, 10}},
	model.MentalRelaxed:  {band{50, 70}, band{20, 35}, band{15, 25}, band{5, 15}},
	model.MentalDrowsy:   {band{15, 30}, band{10, 20}, band{45, 65}, band{15, 25}},
	model.MentalSleeping: {band{5, 15}, band{5, 10}, band{25, 35}, band{55, 75}},
	model.MentalStressed: {band{15, 25}, band{60, 85}, band{10, 15}, band{5, 10}},
}

var brainActivityRanges = map[model.MentalState]band{
	model.MentalAlert:    {75, 95},
	model.MentalRelaxed:  {55, 75},
	model.MentalDrowsy:   {35, 55},
	model.MentalSleeping: {15, 35},
	model.MentalStressed: {80, 100},
}

var corticalActivity = map[model.MentalState]string{
	model.MentalAlert:    "high",
	model.MentalRelaxed:  "moderate",
	model.MentalDrowsy:   "low",
	model.MentalSleeping: "minimal",
	model.MentalStressed: "very_high",
}

var neuralConditionOrder = []model.Condition{
	model.ConditionNormal,
	ConditionEpilepsy,
	ConditionMigraine,
	ConditionSleepDisorder,
	ConditionStress,
}

var neuralConditions = map[model.Condition]condition[model.NeuralReading]{
	model.ConditionNormal: {
		severity: model.StatusHealthy,
		prepare: func(p *model.PatientProfile) {
			p.MentalState = model.MentalAlert
		},
	},
	ConditionEpilepsy: {
		severity: model.StatusCritical,
		apply: func(r *model.NeuralReading, src *Source) {
			r.EEGBeta = src.uniformRounded(70, 90, 1)
			r.EEGAlpha = src.uniformRounded(5, 15, 1)
			r.EEGTheta = src.uniformRounded(5, 10, 1)
			r.EEGDelta = src.uniformRounded(5, 10, 1)
			r.BrainActivityLevel = src.uniformRounded(95, 100, 1)
			r.CorticalActivity = "seizure"
			r.ReactionTime = src.IntRange(500, 1000)
		},
	},
	ConditionMigraine: {
		severity: model.StatusAbnormal,
		apply: func(r *model.NeuralReading, src *Source) {
			r.BrainActivityLevel = src.uniformRounded(85, 98, 1)
			r.Serotonin = src.uniformRounded(80, 110, 1)
			r.Norepinephrine = src.uniformRounded(250, 350, 1)
			r.CorticalActivity = "hyperactive"
			r.ReactionTime = src.IntRange(350, 500)
		},
	},
	ConditionSleepDisorder: {
		severity: model.StatusAbnormal,
		apply: func(r *model.NeuralReading, src *Source) {
			r.EEGAlpha = src.uniformRounded(30, 45, 1)
			r.EEGBeta = src.uniformRounded(25, 40, 1)
			r.EEGTheta = src.uniformRounded(15, 25, 1)
			r.EEGDelta = src.uniformRounded(10, 20, 1)
			r.BrainActivityLevel = src.uniformRounded(50, 70, 1)
			r.CorticalActivity = "irregular"
			r.Serotonin = src.uniformRounded(100, 130, 1)
		},
	},
	ConditionStress: {
		severity: model.StatusAbnormal,
		prepare: func(p *model.PatientProfile) {
			p.MentalState = model.MentalStressed
		},
		apply: func(r *model.NeuralReading, src *Source) {
			r.BrainActivityLevel = src.uniformRounded(85, 100, 1)
			r.Norepinephrine = src.uniformRounded(300, 450, 1)
			r.Dopamine = src.uniformRounded(0.05, 0.09, 3)
			r.CorticalActivity = "very_high"
			r.ReactionTime = src.IntRange(180, 250)
		},
	},
}

// Neural simulates the central nervous system.
type Neural struct {
	src *Source
}

// NewNeural creates a neural simulator drawing from src.
func NewNeural(src *Source) *Neural {
	return &Neural{src: src}
}

func (n *Neural) Kind() model.Organ             { return model.OrganNeural }
func (n *Neural) DisplayName() string           { return "brain" }
func (n *Neural) Conditions() []model.Condition { return neuralConditionOrder }
func (n *Neural) StateField() model.StateField  { return model.StateMentalState }

func (n *Neural) States() []string {
	names := make([]string, len(model.MentalStates))
	for i, s := range model.MentalStates {
		names[i] = string(s)
	}
	return names
}

// Baseline generates a healthy neural reading.
func (n *Neural) Baseline(p model.PatientProfile) Reading {
	return n.baseline(p)
}

func (n *Neural) baseline(p model.PatientProfile) model.NeuralReading {
	state := p.MentalState
	if _, ok := eegProfiles[state]; !ok {
		state = model.MentalAlert
	}

	alpha, beta, theta, delta := n.eegWaves(state)

	activity := brainActivityRanges[state]
	brainActivity := n.src.Uniform(activity.min, activity.max)

	dopamine := n.src.jitter(neuralBaseDopamine, 0.15)
	serotonin := n.src.jitter(neuralBaseSerotonin, 0.12)
	norepinephrine := n.src.jitter(neuralBaseNorepinephrine, 0.15)

	rt := neuralBaseReactionTime * ageFactor(p.Age, 0.003)
	rt = n.src.jitter(rt, 0.15)

	return model.NeuralReading{
		Timestamp:          now(),
		EEGAlpha:           alpha,
		EEGBeta:            beta,
		EEGTheta:           theta,
		EEGDelta:           delta,
		BrainActivityLevel: round(clamp(brainActivity, 0, 100), 1),
		Dopamine:           round(clamp(dopamine, 0.02, 0.08), 3),
		Serotonin:          round(clamp(serotonin, 100, 250), 1),
		Norepinephrine:     round(clamp(norepinephrine, 150, 300), 1),
		ReactionTime:       int(clamp(rt, 150, 400)),
		CorticalActivity:   corticalActivity[state],
		Status:             model.StatusHealthy,
	}
}

// eegWaves draws the four bands for state and normalizes them to percentages.
func (n *Neural) eegWaves(state model.MentalState) (alpha, beta, theta, delta float64) {
	prof := eegProfiles[state]
	a := n.src.Uniform(prof.alpha.min, prof.alpha.max)
	b := n.src.Uniform(prof.beta.min, prof.beta.max)
	t := n.src.Uniform(prof.theta.min, prof.theta.max)
	d := n.src.Uniform(prof.delta.min, prof.delta.max)

	total := a + b + t + d
	pct := func(v float64) float64 {
		return round(clamp(v/total*100, 0, 100), 1)
	}
	return pct(a), pct(b), pct(t), pct(d)
}

// Simulate activates cond on p.
func (n *Neural) Simulate(p *model.PatientProfile, cond model.Condition) (Reading, error) {
	r, err := simulate(neuralConditions, neuralConditionOrder, p, cond, n.baseline, setNeuralStatus, n.src)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Current honors p's active condition.
func (n *Neural) Current(p *model.PatientProfile) Reading {
	if p.Condition == model.ConditionNormal {
		return n.Baseline(*p)
	}
	r, err := n.Simulate(p, p.Condition)
	if err != nil {
		return n.Baseline(*p)
	}
	return r
}

func setNeuralStatus(r *model.NeuralReading, st model.Status) { r.Status = st }
