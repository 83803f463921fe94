// Package ledger provides the reference in-memory implementations of the
// external balance collaborators: the fractional-ownership ledger and the
// settlement-currency token. Production deployments swap these for adapters
// over the real custody systems.
package ledger

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/fracta-fi/fracta-backend/internal/domain"
)

type balanceKey struct {
	owner domain.Address
	key   domain.AssetKey
}

// Ledger is an in-memory domain.FractionLedger.
type Ledger struct {
	mu       sync.RWMutex
	balances map[balanceKey]decimal.Decimal
	supplies map[domain.AssetKey]decimal.Decimal
}

// NewLedger creates an empty fraction ledger.
func NewLedger() *Ledger {
	return &Ledger{
		balances: make(map[balanceKey]decimal.Decimal),
		supplies: make(map[domain.AssetKey]decimal.Decimal),
	}
}

func (l *Ledger) BalanceOf(_ context.Context, owner domain.Address, key domain.AssetKey) (decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[balanceKey{owner: owner, key: key}], nil
}

func (l *Ledger) TotalSupply(_ context.Context, key domain.AssetKey) (decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.supplies[key], nil
}

func (l *Ledger) Mint(_ context.Context, owner domain.Address, key domain.AssetKey, amount decimal.Decimal) error {
	if owner.IsZero() {
		return domain.ErrZeroAddress
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return domain.ErrZeroAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	bk := balanceKey{owner: owner, key: key}
	l.balances[bk] = l.balances[bk].Add(amount)
	l.supplies[key] = l.supplies[key].Add(amount)
	return nil
}

func (l *Ledger) Burn(_ context.Context, owner domain.Address, key domain.AssetKey, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return domain.ErrZeroAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	bk := balanceKey{owner: owner, key: key}
	if l.balances[bk].LessThan(amount) {
		return domain.ErrInsufficientBalance
	}
	l.balances[bk] = l.balances[bk].Sub(amount)
	if l.balances[bk].IsZero() {
		delete(l.balances, bk)
	}
	l.supplies[key] = l.supplies[key].Sub(amount)
	if l.supplies[key].IsZero() {
		delete(l.supplies, key)
	}
	return nil
}

func (l *Ledger) Transfer(_ context.Context, from, to domain.Address, key domain.AssetKey, amount decimal.Decimal) error {
	if from.IsZero() || to.IsZero() {
		return domain.ErrZeroAddress
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return domain.ErrZeroAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fk := balanceKey{owner: from, key: key}
	if l.balances[fk].LessThan(amount) {
		return domain.ErrInsufficientBalance
	}
	tk := balanceKey{owner: to, key: key}
	l.balances[fk] = l.balances[fk].Sub(amount)
	if l.balances[fk].IsZero() {
		delete(l.balances, fk)
	}
	l.balances[tk] = l.balances[tk].Add(amount)
	return nil
}

type ledgerSnapshot struct {
	balances map[balanceKey]decimal.Decimal
	supplies map[domain.AssetKey]decimal.Decimal
}

func (l *Ledger) Snapshot() any {
	l.mu.RLock()
	defer l.mu.RUnlock()
	snap := ledgerSnapshot{
		balances: make(map[balanceKey]decimal.Decimal, len(l.balances)),
		supplies: make(map[domain.AssetKey]decimal.Decimal, len(l.supplies)),
	}
	for k, v := range l.balances {
		snap.balances[k] = v
	}
	for k, v := range l.supplies {
		snap.supplies[k] = v
	}
	return snap
}

func (l *Ledger) Restore(state any) {
	snap := state.(ledgerSnapshot)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances = snap.balances
	l.supplies = snap.supplies
}

// Token is an in-memory domain.PaymentToken.
type Token struct {
	mu       sync.RWMutex
	symbol   string
	balances map[domain.Address]decimal.Decimal
}

// NewToken creates an empty payment token with the given symbol.
func NewToken(symbol string) *Token {
	return &Token{symbol: symbol, balances: make(map[domain.Address]decimal.Decimal)}
}

// Symbol returns the token's currency identifier.
func (t *Token) Symbol() string {
	return t.symbol
}

func (t *Token) BalanceOf(_ context.Context, owner domain.Address) (decimal.Decimal, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.balances[owner], nil
}

func (t *Token) TransferFrom(_ context.Context, from, to domain.Address, amount decimal.Decimal) error {
	if from.IsZero() || to.IsZero() {
		return domain.ErrZeroAddress
	}
	if amount.IsNegative() {
		return domain.ErrZeroAmount
	}
	if amount.IsZero() {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.balances[from].LessThan(amount) {
		return domain.ErrInsufficientBalance
	}
	t.balances[from] = t.balances[from].Sub(amount)
	t.balances[to] = t.balances[to].Add(amount)
	return nil
}

// Credit funds an account. Reference-implementation affordance standing in
// for an external deposit.
func (t *Token) Credit(owner domain.Address, amount decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.balances[owner] = t.balances[owner].Add(amount)
}

func (t *Token) Snapshot() any {
	t.mu.RLock()
	defer t.mu.RUnlock()
	snap := make(map[domain.Address]decimal.Decimal, len(t.balances))
	for k, v := range t.balances {
		snap[k] = v
	}
	return snap
}

func (t *Token) Restore(state any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.balances = state.(map[domain.Address]decimal.Decimal)
}

// Registry is an in-memory domain.PaymentRegistry.
type Registry struct {
	mu     sync.RWMutex
	tokens map[string]domain.PaymentToken
}

// NewRegistry creates an empty payment token registry.
func NewRegistry() *Registry {
	return &Registry{tokens: make(map[string]domain.PaymentToken)}
}

// Register adds a token under its currency identifier.
func (r *Registry) Register(currency string, token domain.PaymentToken) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[currency] = token
}

func (r *Registry) Token(currency string) (domain.PaymentToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tokens[currency]
	if !ok {
		return nil, domain.ErrUnsupportedCurrency
	}
	return t, nil
}
