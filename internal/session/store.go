// Package session keeps one patient profile per session id so that requests
// from different clients do not share simulator state.
package session

import (
	"context"
	"regexp"

	"github.com/devrev/organsim/internal/model"
)

// DefaultID is used when a request carries no session header.
const DefaultID = "default"

var validID = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// ValidID reports whether id can be used as a session key.
func ValidID(id string) bool {
	return validID.MatchString(id)
}

// Store persists patient profiles keyed by session id.
type Store interface {
	// Load returns the profile of a session, or model.DefaultProfile() for an
	// unknown session.
	Load(ctx context.Context, id string) (model.PatientProfile, error)
	Save(ctx context.Context, id string, p model.PatientProfile) error
	Ping(ctx context.Context) error
	Close() error
}
