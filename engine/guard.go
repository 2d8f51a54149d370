package engine

import "sync/atomic"

// guard rejects nested entry into value-moving operations. A transfer callback
// that calls back into the engine while an operation is in flight fails with
// KindReentrant instead of observing or mutating half-applied state.
type guard struct {
	held atomic.Bool
}

func (g *guard) enter(op string) error {
	if !g.held.CompareAndSwap(false, true) {
		return newError(KindReentrant, op, "reentrant call rejected")
	}
	return nil
}

func (g *guard) exit() {
	g.held.Store(false)
}
