package catalog

import "errors"

var (
	// ErrFailedToLoadFeatures indicates the source could not provide the catalog.
	ErrFailedToLoadFeatures = errors.New("catalog: failed to load features")

	// ErrFeatureNotFound indicates the requested feature key is not in the catalog.
	ErrFeatureNotFound = errors.New("catalog: feature not found")

	// ErrInvalidFeature indicates an inconsistent feature definition.
	ErrInvalidFeature = errors.New("catalog: invalid feature definition")
)
