// Package model defines the domain types shared by the organ services and the
// orchestrator.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Organ identifies a simulated physiological subsystem.
type Organ string

const (
	OrganCardiac     Organ = "cardiac"
	OrganRespiratory Organ = "respiratory"
	OrganNeural      Organ = "neural"
)

// Organs lists every organ in registry order.
var Organs = []Organ{OrganCardiac, OrganRespiratory, OrganNeural}

// ParseOrgan converts a string into a known Organ.
func ParseOrgan(s string) (Organ, bool) {
	for _, o := range Organs {
		if string(o) == s {
			return o, true
		}
	}
	return "", false
}

// Sex of the simulated patient.
type Sex string

const (
	SexMale   Sex = "M"
	SexFemale Sex = "F"
)

// Sexes lists the accepted sex values.
var Sexes = []Sex{SexMale, SexFemale}

// ActivityLevel drives the cardiac and respiratory scaling tables.
type ActivityLevel string

const (
	ActivityResting         ActivityLevel = "resting"
	ActivityNormal          ActivityLevel = "normal"
	ActivityLightExercise   ActivityLevel = "light_exercise"
	ActivityIntenseExercise ActivityLevel = "intense_exercise"
)

// ActivityLevels lists the accepted activity levels.
var ActivityLevels = []ActivityLevel{
	ActivityResting, ActivityNormal, ActivityLightExercise, ActivityIntenseExercise,
}

// MentalState drives the neural EEG and activity tables.
type MentalState string

const (
	MentalAlert    MentalState = "alert"
	MentalRelaxed  MentalState = "relaxed"
	MentalDrowsy   MentalState = "drowsy"
	MentalSleeping MentalState = "sleeping"
	MentalStressed MentalState = "stressed"
)

// MentalStates lists the accepted mental states.
var MentalStates = []MentalState{
	MentalAlert, MentalRelaxed, MentalDrowsy, MentalSleeping, MentalStressed,
}

// Condition names a pathology profile. Each organ accepts its own closed set.
type Condition string

// ConditionNormal is accepted by every organ and yields a baseline reading.
const ConditionNormal Condition = "normal"

const (
	MinAge     = 0
	MaxAge     = 120
	DefaultAge = 35
)

// PatientProfile is the mutable state one organ simulator reads from.
type PatientProfile struct {
	Age           int           `json:"age"`
	Sex           Sex           `json:"sex"`
	ActivityLevel ActivityLevel `json:"activity_level"`
	MentalState   MentalState   `json:"mental_state"`
	Condition     Condition     `json:"condition"`
}

// DefaultProfile returns the profile every new session starts with.
func DefaultProfile() PatientProfile {
	return PatientProfile{
		Age:           DefaultAge,
		Sex:           SexMale,
		ActivityLevel: ActivityNormal,
		MentalState:   MentalAlert,
		Condition:     ConditionNormal,
	}
}

// ClampAge bounds an age to the supported range.
func ClampAge(age int) int {
	if age < MinAge {
		return MinAge
	}
	if age > MaxAge {
		return MaxAge
	}
	return age
}

// FlexInt accepts a JSON number or a numeric string.
type FlexInt int

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(s)
	}

	n, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid integer %q", string(data))
	}
	*f = FlexInt(int(n))
	return nil
}

// ParameterUpdate is the allow-list of patient fields a client may change.
// Fields left nil are not touched.
type ParameterUpdate struct {
	Age           *FlexInt `json:"age,omitempty"`
	Sex           *string  `json:"sex,omitempty"`
	ActivityLevel *string  `json:"activity_level,omitempty"`
	MentalState   *string  `json:"mental_state,omitempty"`
}

// StateField tells ApplyTo which state enum the organ accepts.
type StateField string

const (
	StateActivityLevel StateField = "activity_level"
	StateMentalState   StateField = "mental_state"
)

// ApplyTo merges the update into p. Out-of-range ages are clamped; enum values
// outside their set and fields that do not belong to the organ are ignored.
func (u ParameterUpdate) ApplyTo(p *PatientProfile, field StateField) {
	if u.Age != nil {
		p.Age = ClampAge(int(*u.Age))
	}
	if u.Sex != nil && contains(Sexes, Sex(*u.Sex)) {
		p.Sex = Sex(*u.Sex)
	}
	switch field {
	case StateActivityLevel:
		if u.ActivityLevel != nil && contains(ActivityLevels, ActivityLevel(*u.ActivityLevel)) {
			p.ActivityLevel = ActivityLevel(*u.ActivityLevel)
		}
	case StateMentalState:
		if u.MentalState != nil && contains(MentalStates, MentalState(*u.MentalState)) {
			p.MentalState = MentalState(*u.MentalState)
		}
	}
}

func contains[T comparable](set []T, v T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
