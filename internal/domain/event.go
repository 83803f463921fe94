package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventKind names a marketplace lifecycle event.
type EventKind string

const (
	EventAssetCreated  EventKind = "ASSET_CREATED"
	EventAssetRetired  EventKind = "ASSET_RETIRED"
	EventListed        EventKind = "LISTED"
	EventUnlisted      EventKind = "UNLISTED"
	EventBought        EventKind = "BOUGHT"
	EventRewardClaimed EventKind = "REWARD_CLAIMED"
	EventSettled       EventKind = "SETTLED"
)

// Event is one marketplace lifecycle record. Amount is in the settlement
// currency's smallest unit; Fractions is the fraction quantity the event
// moved, where applicable.
type Event struct {
	ID           uuid.UUID
	Kind         EventKind
	Key          AssetKey
	Actor        Address // the account that initiated the operation
	Counterparty Address // the other side, zero when not applicable
	Amount       decimal.Decimal
	Fractions    decimal.Decimal
	At           time.Time
}

// EventRecorder persists marketplace events for off-chain reconciliation.
// Recording is an observability concern: a failing sink must not abort the
// operation that produced the event.
type EventRecorder interface {
	Record(ctx context.Context, ev Event) error
}
