package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fracta-fi/fracta-backend/internal/domain"
)

// EventJournal implements domain.EventRecorder on PostgreSQL for off-chain
// reconciliation of marketplace activity.
type EventJournal struct {
	db *DB
}

// NewEventJournal creates a new event journal.
func NewEventJournal(db *DB) *EventJournal {
	return &EventJournal{db: db}
}

type eventRow struct {
	ID           uuid.UUID `db:"id"`
	Kind         string    `db:"kind"`
	MainID       string    `db:"main_id"`
	SubID        string    `db:"sub_id"`
	Actor        string    `db:"actor"`
	Counterparty string    `db:"counterparty"`
	Amount       string    `db:"amount"`
	Fractions    string    `db:"fractions"`
	OccurredAt   time.Time `db:"occurred_at"`
}

func (j *EventJournal) Record(ctx context.Context, ev domain.Event) error {
	const query = `
		INSERT INTO trade_events (id, kind, main_id, sub_id, actor, counterparty, amount, fractions, occurred_at)
		VALUES (:id, :kind, :main_id, :sub_id, :actor, :counterparty, :amount, :fractions, :occurred_at)
	`
	row := eventRow{
		ID:           ev.ID,
		Kind:         string(ev.Kind),
		MainID:       ev.Key.Main,
		SubID:        ev.Key.Sub,
		Actor:        ev.Actor.Hex(),
		Counterparty: ev.Counterparty.Hex(),
		Amount:       ev.Amount.String(),
		Fractions:    ev.Fractions.String(),
		OccurredAt:   ev.At,
	}
	if _, err := j.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to insert trade event: %w", err)
	}
	return nil
}

// ListByAsset returns the journal entries for one lot in insertion order.
func (j *EventJournal) ListByAsset(ctx context.Context, key domain.AssetKey) ([]domain.Event, error) {
	const query = `
		SELECT id, kind, main_id, sub_id, actor, counterparty, amount, fractions, occurred_at
		FROM trade_events
		WHERE main_id = $1 AND sub_id = $2
		ORDER BY occurred_at
	`
	var rows []eventRow
	if err := j.db.SelectContext(ctx, &rows, query, key.Main, key.Sub); err != nil {
		return nil, fmt.Errorf("failed to list trade events: %w", err)
	}
	events := make([]domain.Event, 0, len(rows))
	for _, r := range rows {
		ev, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

func (r eventRow) toDomain() (domain.Event, error) {
	actor, err := domain.HexToAddress(r.Actor)
	if err != nil {
		return domain.Event{}, err
	}
	counterparty, err := domain.HexToAddress(r.Counterparty)
	if err != nil {
		return domain.Event{}, err
	}
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return domain.Event{}, fmt.Errorf("invalid amount %q: %w", r.Amount, err)
	}
	fractions, err := decimal.NewFromString(r.Fractions)
	if err != nil {
		return domain.Event{}, fmt.Errorf("invalid fractions %q: %w", r.Fractions, err)
	}
	return domain.Event{
		ID:           r.ID,
		Kind:         domain.EventKind(r.Kind),
		Key:          domain.AssetKey{Main: r.MainID, Sub: r.SubID},
		Actor:        actor,
		Counterparty: counterparty,
		Amount:       amount,
		Fractions:    fractions,
		At:           r.OccurredAt,
	}, nil
}
