package orchestration

import "sync/atomic"

// Gate admits at most one conversation turn at a time.
type Gate struct {
	slot chan struct{}
}

func NewGate() *Gate {
	return &Gate{slot: make(chan struct{}, 1)}
}

// TryAcquire never blocks. It returns false when another turn holds the gate.
func (g *Gate) TryAcquire() (*Lease, bool) {
	select {
	case g.slot <- struct{}{}:
		return &Lease{gate: g}, true
	default:
		return nil, false
	}
}

// Held reports whether the gate is currently held. It is only a snapshot and
// must not be used to decide whether to acquire.
func (g *Gate) Held() bool {
	return len(g.slot) == 1
}

// Lease is the right to release a held gate. It is owned by one goroutine at
// a time and may be handed to another one together with the rest of the turn.
type Lease struct {
	gate     *Gate
	released atomic.Bool
}

// Release frees the gate. Only the first call has an effect, later calls log a
// warning and return false.
func (l *Lease) Release() bool {
	if l == nil {
		return false
	}

	if !l.released.CompareAndSwap(false, true) {
		logger.Warn("conversation gate released more than once")
		return false
	}

	<-l.gate.slot
	return true
}
