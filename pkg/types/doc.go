/*
Package types provides the core interfaces and data structures shared by the
tiered cache engine.

# Architecture Overview

The engine composes up to three storage tiers behind one get/put surface:

	┌─────────────────────────────────────────────┐
	│                Application                  │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│             Engine (internal/engine)        │
	│     fallthrough get, promotion, scoped put  │
	└─────────────────────────────────────────────┘
	          │             │             │
	┌─────────┴───┐ ┌───────┴─────┐ ┌─────┴───────┐
	│  L1 memory  │ │   L2 disk   │ │  L3 remote  │
	│ LRU/LFU/    │ │ index file  │ │   Redis,    │
	│ adaptive    │ │ + data files│ │  fail-open  │
	└─────────────┘ └─────────────┘ └─────────────┘

# Core Types

Entry is the unit of cached data: an opaque byte payload with a type tag,
timestamps, an access counter, an optional TTL, and size accounting used by
the disk tier's byte budget.

TierStats carries the monotonic hit/miss/eviction counters and the running
mean access latency for one tier; PerformanceReport aggregates them.

# Contracts

Tier is implemented by the three storage tiers. A clean miss is the
not-found error from pkg/errors; any other error is an operation failure.
The distinction matters: a cache whose disk is unreadable still answers
"miss", but diagnostics and tests can tell the two apart.

EvictionPolicy is the bounded-map capability set shared by the LRU, LFU and
adaptive policies. Policies are single-threaded by contract: the owning
tier holds one coarse lock around every policy call so eviction decisions
stay atomic.
*/
package types
