package deal

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"dealledger/core/types"
)

const (
	EventTypeDealCreated       = "deal.created"
	EventTypeDealConfirmed     = "deal.confirmed"
	EventTypeDealCompleted     = "deal.completed"
	EventTypeDealCancelled     = "deal.cancelled"
	EventTypeDealClosed        = "deal.closed"
	EventTypePoolWithdrawn     = "deal.pool.withdrawn"
	EventTypeCommissionChanged = "deal.commission.changed"
	EventTypeAdminUpdated      = "deal.admin.updated"
)

// NewCreatedEvent returns the canonical payload for a newly created deal.
func NewCreatedEvent(d *Deal) *types.Event {
	evt := newDealEvent(EventTypeDealCreated, d, d.CreatedAt)
	return evt
}

// NewConfirmedEvent returns the payload emitted when the performer confirms.
func NewConfirmedEvent(d *Deal, now int64) *types.Event {
	return newDealEvent(EventTypeDealConfirmed, d, now)
}

// NewCompletedEvent returns the payload for a creator-driven settlement,
// carrying the exact payout/retained split.
func NewCompletedEvent(d *Deal, payout, retained *big.Int, now int64) *types.Event {
	evt := newDealEvent(EventTypeDealCompleted, d, now)
	evt.Attributes["payout"] = payout.String()
	evt.Attributes["retained"] = retained.String()
	return evt
}

// NewCancelledEvent returns the payload for a cancellation refund.
func NewCancelledEvent(d *Deal, refund *big.Int, now int64) *types.Event {
	evt := newDealEvent(EventTypeDealCancelled, d, now)
	evt.Attributes["refund"] = refund.String()
	return evt
}

// NewClosedEvent returns the payload for an administrative close. The
// toPerformer flag records which side received the payout.
func NewClosedEvent(d *Deal, payout, retained *big.Int, toPerformer bool, now int64) *types.Event {
	evt := newDealEvent(EventTypeDealClosed, d, now)
	evt.Attributes["payout"] = payout.String()
	evt.Attributes["retained"] = retained.String()
	evt.Attributes["toPerformer"] = strconv.FormatBool(toPerformer)
	return evt
}

// NewWithdrawnEvent returns the payload for an owner withdrawal from the
// commission pool.
func NewWithdrawnEvent(receiver [20]byte, rail Rail, amount *big.Int, now int64) *types.Event {
	return &types.Event{
		Type: EventTypePoolWithdrawn,
		Attributes: map[string]string{
			"receiver":  hex.EncodeToString(receiver[:]),
			"rail":      rail.String(),
			"amount":    amount.String(),
			"timestamp": strconv.FormatInt(now, 10),
		},
	}
}

// NewCommissionChangedEvent returns the payload for a process-wide rate
// change. Existing deals keep their snapshots.
func NewCommissionChangedEvent(rate uint32, now int64) *types.Event {
	return &types.Event{
		Type: EventTypeCommissionChanged,
		Attributes: map[string]string{
			"rate":      strconv.FormatUint(uint64(rate), 10),
			"timestamp": strconv.FormatInt(now, 10),
		},
	}
}

// NewAdminUpdatedEvent returns the payload for an admin grant or revocation.
func NewAdminUpdatedEvent(addr [20]byte, enabled bool, now int64) *types.Event {
	return &types.Event{
		Type: EventTypeAdminUpdated,
		Attributes: map[string]string{
			"address":   hex.EncodeToString(addr[:]),
			"enabled":   strconv.FormatBool(enabled),
			"timestamp": strconv.FormatInt(now, 10),
		},
	}
}

func newDealEvent(eventType string, d *Deal, now int64) *types.Event {
	attrs := make(map[string]string)
	if d == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["id"] = strconv.FormatUint(d.ID, 10)
	attrs["creator"] = hex.EncodeToString(d.Creator[:])
	attrs["performer"] = hex.EncodeToString(d.Performer[:])
	attrs["rail"] = d.Rail.String()
	if d.Amount != nil {
		attrs["amount"] = d.Amount.String()
	}
	attrs["commission"] = strconv.FormatUint(uint64(d.Commission), 10)
	attrs["status"] = d.Status.String()
	attrs["timestamp"] = strconv.FormatInt(now, 10)
	return &types.Event{Type: eventType, Attributes: attrs}
}
