package credits

import (
	"context"
	"fmt"
	"sync"

	"github.com/icon-project/minthub/module"
)

type authState string

const (
	authHeld      authState = "held"
	authFinalized authState = "finalized"
	authReversed  authState = "reversed"
)

type authorization struct {
	amount    int64
	reference string
	state     authState
}

// MemoryGate is an in-process credits ledger. The node wires it when no
// ledger endpoint is configured; tests use it for deterministic billing
// assertions.
type MemoryGate struct {
	lock    sync.Mutex
	balance int64
	seq     int
	auths   map[string]*authorization
}

var _ module.CreditsGate = (*MemoryGate)(nil)

func NewMemoryGate(balance int64) *MemoryGate {
	return &MemoryGate{
		balance: balance,
		auths:   make(map[string]*authorization),
	}
}

func (g *MemoryGate) Authorize(ctx context.Context, amount int64, reference string) (string, error) {
	g.lock.Lock()
	defer g.lock.Unlock()

	if amount > g.balance {
		return "", InsufficientCreditsError.Errorf(
			"InsufficientCredits(amount=%d,balance=%d)", amount, g.balance)
	}
	g.balance -= amount
	g.seq++
	id := fmt.Sprintf("auth-%d", g.seq)
	g.auths[id] = &authorization{amount: amount, reference: reference, state: authHeld}
	return id, nil
}

func (g *MemoryGate) Finalize(ctx context.Context, authID string) error {
	return g.settle(authID, authFinalized)
}

func (g *MemoryGate) Reverse(ctx context.Context, authID string) error {
	return g.settle(authID, authReversed)
}

func (g *MemoryGate) settle(authID string, to authState) error {
	g.lock.Lock()
	defer g.lock.Unlock()

	a, ok := g.auths[authID]
	if !ok {
		return AuthorizationNotFoundError.Errorf("AuthorizationNotFound(id=%s)", authID)
	}
	if a.state != authHeld {
		return AuthorizationStateError.Errorf(
			"AuthorizationSettled(id=%s,state=%s)", authID, a.state)
	}
	a.state = to
	if to == authReversed {
		g.balance += a.amount
	}
	return nil
}

// Balance returns the spendable balance excluding held amounts.
func (g *MemoryGate) Balance() int64 {
	g.lock.Lock()
	defer g.lock.Unlock()

	return g.balance
}
