// Package simulator generates synthetic vital-sign readings for the cardiac,
// respiratory and neural organ services.
//
// Every organ follows the same pipeline for a baseline reading: base constant,
// age factor, state factor, jitter, clamp. A condition is a pure transform that
// runs on top of a fresh baseline and fixes the reading's severity.
package simulator

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	apierrors "github.com/devrev/organsim/internal/errors"
	"github.com/devrev/organsim/internal/model"
)

// Reading is a single synthetic sample from any organ.
type Reading interface {
	ReadingStatus() model.Status
}

// Organ simulates one physiological subsystem.
type Organ interface {
	Kind() model.Organ
	// DisplayName is the organ name used in payloads ("heart", "lungs", "brain").
	DisplayName() string
	Conditions() []model.Condition
	StateField() model.StateField
	States() []string
	// Baseline generates an unconditioned reading for p.
	Baseline(p model.PatientProfile) Reading
	// Simulate activates condition c on p and returns a conditioned reading.
	Simulate(p *model.PatientProfile, c model.Condition) (Reading, error)
	// Current returns a reading that honors p's active condition.
	Current(p *model.PatientProfile) Reading
}

// New returns the simulator for kind.
func New(kind model.Organ, src *Source) (Organ, error) {
	switch kind {
	case model.OrganCardiac:
		return NewCardiac(src), nil
	case model.OrganRespiratory:
		return NewRespiratory(src), nil
	case model.OrganNeural:
		return NewNeural(src), nil
	default:
		return nil, fmt.Errorf("unknown organ kind %q", kind)
	}
}

// Source is a goroutine-safe uniform random source.
type Source struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSource creates a Source. A zero seed seeds from the clock.
func NewSource(seed int64) *Source {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Source{
		rng: rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15)),
	}
}

// Uniform returns a float in [min, max).
func (s *Source) Uniform(min, max float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return min + s.rng.Float64()*(max-min)
}

// IntRange returns an int in [min, max], both ends inclusive.
func (s *Source) IntRange(min, max int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return min + s.rng.IntN(max-min+1)
}

// jitter adds symmetric uniform noise of pct*value.
func (s *Source) jitter(value, pct float64) float64 {
	spread := math.Abs(value * pct)
	return value + s.Uniform(-spread, spread)
}

// uniformRounded draws from [min, max] and rounds to places decimals.
func (s *Source) uniformRounded(min, max float64, places int) float64 {
	return round(s.Uniform(min, max), places)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// ageFactor is linear around the reference age of 35.
func ageFactor(age int, slope float64) float64 {
	return 1 + float64(age-model.DefaultAge)*slope
}

// condition is one entry of an organ's dispatch table.
type condition[R any] struct {
	severity model.Status
	// prepare runs on the profile before the baseline is drawn.
	prepare func(p *model.PatientProfile)
	apply   func(r *R, src *Source)
}

func conditionNames(conds []model.Condition) []string {
	names := make([]string, len(conds))
	for i, c := range conds {
		names[i] = string(c)
	}
	return names
}

// simulate is the shared body of every Organ.Simulate.
func simulate[R any](
	table map[model.Condition]condition[R],
	order []model.Condition,
	p *model.PatientProfile,
	c model.Condition,
	baseline func(model.PatientProfile) R,
	setStatus func(*R, model.Status),
	src *Source,
) (R, error) {
	cond, ok := table[c]
	if !ok {
		var zero R
		return zero, apierrors.InvalidCondition(string(c), conditionNames(order))
	}

	p.Condition = c
	if cond.prepare != nil {
		cond.prepare(p)
	}

	r := baseline(*p)
	if cond.apply != nil {
		cond.apply(&r, src)
		setStatus(&r, cond.severity)
	}
	return r, nil
}

func now() string {
	return model.Timestamp(time.Now())
}
