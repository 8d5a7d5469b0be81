package catalog

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
)

// Source defines how feature definitions are loaded into a Catalog.
type Source interface {
	Load(ctx context.Context) (map[string]Feature, error)
}

// Catalog is an immutable snapshot of feature definitions keyed by
// feature key. Build one at startup (or on catalog change) and share it
// between request workers; lookups are read-only.
type Catalog struct {
	features map[string]Feature
}

// New loads all features from the source and validates them.
func New(ctx context.Context, src Source) (*Catalog, error) {
	features, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadFeatures, err)
	}
	if features == nil {
		features = make(map[string]Feature)
	}

	for key, f := range features {
		if f.Key != key {
			return nil, errors.Join(ErrInvalidFeature,
				fmt.Errorf("feature key mismatch: map key %s != feature.Key %s", key, f.Key))
		}
		if f.CreditCost < 0 {
			return nil, errors.Join(ErrInvalidFeature,
				fmt.Errorf("feature %s has negative credit cost: %d", key, f.CreditCost))
		}
	}

	return &Catalog{features: features}, nil
}

// Feature returns the active feature definition for the given key.
// Returns ErrFeatureNotFound for unknown or inactive features; the caller
// decides whether that is an error (the metering engine treats it as
// "charge the explicit amount or 1 credit").
func (c *Catalog) Feature(key string) (Feature, error) {
	f, ok := c.features[key]
	if !ok || !f.IsActive {
		return Feature{}, ErrFeatureNotFound
	}
	return f, nil
}

// Features returns a copy of all feature definitions.
func (c *Catalog) Features() map[string]Feature {
	return maps.Clone(c.features)
}

// inMemSource implements Source backed by a static map.
type inMemSource struct {
	mu       sync.RWMutex
	features map[string]Feature
}

// NewInMemSource returns an in-memory Source with a copy of the given
// feature map. Useful for tests and deployments with a static catalog.
func NewInMemSource(features map[string]Feature) Source {
	return &inMemSource{features: cloneFeatures(features)}
}

func (s *inMemSource) Load(ctx context.Context) (map[string]Feature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneFeatures(s.features), nil
}

func cloneFeatures(in map[string]Feature) map[string]Feature {
	out := make(map[string]Feature, len(in))
	for key, f := range in {
		f.Exemptions = maps.Clone(f.Exemptions)
		f.CostModifiers = maps.Clone(f.CostModifiers)
		f.PlanOverrides = maps.Clone(f.PlanOverrides)
		out[key] = f
	}
	return out
}
