package analysis

import (
	"sync"

	"furnacewear/internal/models"
)

// ParamsStore holds the current analysis parameters. Every successful Set
// bumps the version so cached results can be keyed by it.
type ParamsStore struct {
	mu      sync.RWMutex
	params  models.AnalysisParams
	version uint64
}

// NewParamsStore returns a store at version 1 holding initial.
func NewParamsStore(initial models.AnalysisParams) (*ParamsStore, error) {
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	return &ParamsStore{params: initial, version: 1}, nil
}

// Get returns the parameters and their version.
func (s *ParamsStore) Get() (models.AnalysisParams, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params, s.version
}

// Set validates and stores p, returning the new version.
func (s *ParamsStore) Set(p models.AnalysisParams) (uint64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = p
	s.version++
	return s.version, nil
}
