package memory

import (
	"context"
	"sync"

	"github.com/fracta-fi/fracta-backend/internal/domain"
)

// AccessRegistry is the in-memory domain.AccessControl.
type AccessRegistry struct {
	mu    sync.RWMutex
	roles map[domain.Address]map[domain.Role]bool
}

// NewAccessRegistry creates a registry with the given admin pre-granted
// RoleAdmin.
func NewAccessRegistry(admin domain.Address) *AccessRegistry {
	r := &AccessRegistry{roles: make(map[domain.Address]map[domain.Role]bool)}
	r.Grant(admin, domain.RoleAdmin)
	return r
}

func (r *AccessRegistry) Require(actor domain.Address, role domain.Role) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.roles[actor][role] {
		return nil
	}
	// Admin implies every capability.
	if role != domain.RoleAdmin && r.roles[actor][domain.RoleAdmin] {
		return nil
	}
	return domain.ErrMissingRole
}

func (r *AccessRegistry) Grant(actor domain.Address, role domain.Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.roles[actor] == nil {
		r.roles[actor] = make(map[domain.Role]bool)
	}
	r.roles[actor][role] = true
}

func (r *AccessRegistry) Revoke(actor domain.Address, role domain.Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.roles[actor], role)
}

// TreasuryStore is the in-memory domain.TreasurySettings. Reads return the
// currently configured address at call time.
type TreasuryStore struct {
	mu       sync.RWMutex
	treasury domain.Address
	feeSink  domain.Address
}

// NewTreasuryStore creates a store with the given initial accounts.
func NewTreasuryStore(treasury, feeSink domain.Address) *TreasuryStore {
	return &TreasuryStore{treasury: treasury, feeSink: feeSink}
}

func (s *TreasuryStore) Treasury() domain.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.treasury
}

func (s *TreasuryStore) FeeSink() domain.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.feeSink
}

func (s *TreasuryStore) SetTreasury(addr domain.Address) error {
	if addr.IsZero() {
		return domain.ErrZeroAddress
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.treasury = addr
	return nil
}

func (s *TreasuryStore) SetFeeSink(addr domain.Address) error {
	if addr.IsZero() {
		return domain.ErrZeroAddress
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feeSink = addr
	return nil
}

// EventLog is an in-memory domain.EventRecorder, used in tests and as the
// default recorder when no journal database is configured.
type EventLog struct {
	mu     sync.Mutex
	events []domain.Event
}

// NewEventLog creates an empty event log.
func NewEventLog() *EventLog {
	return &EventLog{}
}

func (l *EventLog) Record(_ context.Context, ev domain.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
	return nil
}

// All returns a copy of every recorded event in order.
func (l *EventLog) All() []domain.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.Event, len(l.events))
	copy(out, l.events)
	return out
}
