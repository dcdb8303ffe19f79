package randomness

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process oracle for tests and single-node runs without Redis.
type Memory struct {
	mu      sync.Mutex
	values  map[[32]byte][32]byte
	pending [][32]byte
}

func NewMemory() *Memory {
	return &Memory{values: make(map[[32]byte][32]byte)}
}

func (m *Memory) Request(_ context.Context, commitment [32]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[commitment]; ok {
		return ErrCommitmentUsed
	}
	m.values[commitment] = [32]byte{}
	m.pending = append(m.pending, commitment)
	return nil
}

func (m *Memory) CurrentValue(_ context.Context, commitment [32]byte) ([32]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[commitment]
	if !ok {
		return [32]byte{}, ErrUnknownCommitment
	}
	return v, nil
}

// NextPending never blocks; wait is ignored.
func (m *Memory) NextPending(_ context.Context, _ time.Duration) ([32]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) == 0 {
		return [32]byte{}, false, nil
	}
	c := m.pending[0]
	m.pending = m.pending[1:]
	return c, true, nil
}

func (m *Memory) Fulfill(_ context.Context, commitment, value [32]byte) error {
	if value == ([32]byte{}) {
		return ErrZeroValue
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.values[commitment]
	if !ok {
		return ErrUnknownCommitment
	}
	if cur != ([32]byte{}) {
		return ErrAlreadyFulfilled
	}
	m.values[commitment] = value
	return nil
}
