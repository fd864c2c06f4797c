// Package lane serializes work per key so reconciliation stays linearizable
// per order without a global lock.
package lane

import (
	"context"
	"hash/fnv"
)

// Manager hashes keys onto a fixed set of lanes. Work items for the same key
// always land on the same lane, so webhook and pull-sync updates for one
// order never interleave. Different keys may share a lane; that only costs
// throughput, never correctness.
type Manager struct {
	lanes []chan struct{}
}

// DefaultLaneCount bounds lock contention for typical multi-merchant load
const DefaultLaneCount = 256

// NewManager creates a lane manager with the given number of lanes
func NewManager(laneCount int) *Manager {
	if laneCount < 1 {
		laneCount = DefaultLaneCount
	}
	lanes := make([]chan struct{}, laneCount)
	for i := range lanes {
		lanes[i] = make(chan struct{}, 1)
	}
	return &Manager{lanes: lanes}
}

// laneFor hashes a key to its lane index
func (m *Manager) laneFor(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(m.lanes)))
}

// Run executes fn while holding the lane for key. Waiting on a busy lane
// ends as soon as the context is cancelled; cancelled work never runs.
func (m *Manager) Run(ctx context.Context, key string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	lane := m.lanes[m.laneFor(key)]
	select {
	case lane <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-lane }()

	return fn()
}
