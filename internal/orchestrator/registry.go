// Package orchestrator fans requests out to the organ services and aggregates
// their answers.
package orchestrator

import (
	"fmt"

	"github.com/devrev/organsim/internal/model"
)

// Registry is the immutable table of organ services, in registry order.
type Registry struct {
	entries []model.OrganEndpoint
	byKey   map[model.Organ]model.OrganEndpoint
}

// DefaultEndpoints returns the local development registry.
func DefaultEndpoints() []model.OrganEndpoint {
	return []model.OrganEndpoint{
		{Key: model.OrganCardiac, URL: "http://localhost:5001", Name: "Cardiovascular System", HealthPath: "/health"},
		{Key: model.OrganRespiratory, URL: "http://localhost:5002", Name: "Respiratory System", HealthPath: "/health"},
		{Key: model.OrganNeural, URL: "http://localhost:5003", Name: "Central Nervous System", HealthPath: "/health"},
	}
}

// NewRegistry validates endpoints and copies them into a Registry.
func NewRegistry(endpoints []model.OrganEndpoint) (*Registry, error) {
	r := &Registry{
		entries: make([]model.OrganEndpoint, 0, len(endpoints)),
		byKey:   make(map[model.Organ]model.OrganEndpoint, len(endpoints)),
	}
	for _, e := range endpoints {
		if _, ok := model.ParseOrgan(string(e.Key)); !ok {
			return nil, fmt.Errorf("unknown organ %q", e.Key)
		}
		if _, dup := r.byKey[e.Key]; dup {
			return nil, fmt.Errorf("duplicate organ %q", e.Key)
		}
		if e.URL == "" {
			return nil, fmt.Errorf("organ %q has no url", e.Key)
		}
		if e.HealthPath == "" {
			e.HealthPath = "/health"
		}
		r.entries = append(r.entries, e)
		r.byKey[e.Key] = e
	}
	return r, nil
}

// Lookup finds the endpoint of an organ key.
func (r *Registry) Lookup(key string) (model.OrganEndpoint, bool) {
	e, ok := r.byKey[model.Organ(key)]
	return e, ok
}

// Entries returns a copy of the endpoints in registry order.
func (r *Registry) Entries() []model.OrganEndpoint {
	out := make([]model.OrganEndpoint, len(r.entries))
	copy(out, r.entries)
	return out
}

// Keys returns the organ keys in registry order.
func (r *Registry) Keys() []model.Organ {
	keys := make([]model.Organ, len(r.entries))
	for i, e := range r.entries {
		keys[i] = e.Key
	}
	return keys
}

// Len returns the number of registered organs.
func (r *Registry) Len() int {
	return len(r.entries)
}
