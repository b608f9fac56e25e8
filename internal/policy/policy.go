// Package policy implements the bounded in-memory eviction policies used by
// the memory tier: LRU, LFU, and an adaptive LRU/LFU hybrid.
//
// Policies implement types.EvictionPolicy and are selected by the Strategy
// enum at construction time. They carry no locks of their own; the owning
// tier wraps every call in its coarse per-tier mutex so that eviction
// decisions stay atomic under concurrent access.
package policy

import (
	"github.com/tiercache/tiercache/pkg/errors"
	"github.com/tiercache/tiercache/pkg/types"
)

// Strategy selects an eviction policy implementation.
type Strategy string

const (
	StrategyLRU      Strategy = "lru"
	StrategyLFU      Strategy = "lfu"
	StrategyAdaptive Strategy = "adaptive"
)

// Valid reports whether s names a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyLRU, StrategyLFU, StrategyAdaptive:
		return true
	}
	return false
}

// New constructs the policy named by strategy with the given capacity.
func New(strategy Strategy, capacity int) (types.EvictionPolicy, error) {
	switch strategy {
	case StrategyLRU:
		return NewLRU(capacity), nil
	case StrategyLFU:
		return NewLFU(capacity), nil
	case StrategyAdaptive:
		return NewAdaptive(capacity), nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidConfig,
			"unknown eviction strategy %q", strategy)
	}
}
