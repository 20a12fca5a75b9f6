// Package params stores per-strategy parameter sets and merges them with
// defaults and caller overrides.
package params

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/strategy"
)

// ErrUnknownStrategy is returned for a strategy kind the registry does not know.
var ErrUnknownStrategy = errors.New("unknown strategy")

// Store provides the stored parameter set of a strategy.
type Store interface {
	// Get returns the stored params of kind. A known kind with nothing stored
	// yields empty params, not an error.
	Get(ctx context.Context, kind domain.StrategyKind) (domain.Params, error)
}

// File is the on-disk layout:
//
//	strategies:
//	  turtle:
//	    entry_days: 20
//	    unit_risk: 0.02
type File struct {
	Strategies map[string]map[string]float64 `yaml:"strategies"`
}

// MapStore is a Store backed by an in-memory map.
type MapStore struct {
	mu   sync.RWMutex
	data map[domain.StrategyKind]domain.Params
}

// NewMapStore creates a MapStore holding a copy of data.
func NewMapStore(data map[domain.StrategyKind]domain.Params) *MapStore {
	s := &MapStore{data: make(map[domain.StrategyKind]domain.Params, len(data))}
	for k, v := range data {
		s.data[k] = v.Clone()
	}
	return s
}

// Load reads a YAML parameter file into a MapStore.
// Strategy names go through domain.ParseStrategyKind, so aliases are accepted.
func Load(path string) (*MapStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML parameter data into a MapStore.
func Parse(data []byte) (*MapStore, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse strategy params: %w", err)
	}

	out := make(map[domain.StrategyKind]domain.Params, len(f.Strategies))
	for name, values := range f.Strategies {
		kind, err := domain.ParseStrategyKind(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, name)
		}
		p := domain.Params(values).Clone()
		if err := p.CheckFinite(); err != nil {
			return nil, fmt.Errorf("strategy %s: %w", name, err)
		}
		out[kind] = p
	}
	return NewMapStore(out), nil
}

// Get returns a copy of the stored params of kind.
func (s *MapStore) Get(_ context.Context, kind domain.StrategyKind) (domain.Params, error) {
	if _, err := strategy.DefaultParams(kind); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, kind)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.data[kind]; ok {
		return p.Clone(), nil
	}
	return domain.Params{}, nil
}

// Set replaces the stored params of kind.
func (s *MapStore) Set(kind domain.StrategyKind, p domain.Params) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[kind] = p.Clone()
}

// Merge layers parameter sets left to right; later sets win per key.
func Merge(layers ...domain.Params) domain.Params {
	out := make(domain.Params)
	for _, layer := range layers {
		for k, v := range layer {
			out[k] = v
		}
	}
	return out
}

// Resolve returns defaults(kind) < stored(kind) < overrides.
// A nil store contributes nothing.
func Resolve(ctx context.Context, store Store, kind domain.StrategyKind, overrides domain.Params) (domain.Params, error) {
	defaults, err := strategy.DefaultParams(kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, kind)
	}

	var stored domain.Params
	if store != nil {
		stored, err = store.Get(ctx, kind)
		if err != nil {
			return nil, err
		}
	}
	return Merge(defaults, stored, overrides), nil
}

var _ Store = (*MapStore)(nil)
