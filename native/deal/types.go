package deal

import (
	"fmt"
	"math/big"
	"strings"
)

// Status represents the lifecycle states of a deal. Completion, cancellation
// and administrative close all collapse into the single terminal StatusDone;
// the concrete outcome is carried by the emitted event type.
type Status uint8

const (
	StatusPending Status = iota
	StatusConfirmed
	StatusDone
)

// Valid reports whether the status value is within the supported range.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusDone:
		return true
	default:
		return false
	}
}

// String returns a human readable label for RPC and event payloads.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusConfirmed:
		return "confirmed"
	case StatusDone:
		return "done"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Rail identifies the payment medium of a deal: a fungible token named by its
// canonical uppercase symbol, or the native currency (empty symbol).
type Rail struct {
	Token string
}

// NativeRail returns the native-currency rail.
func NativeRail() Rail { return Rail{} }

// TokenRail returns the rail for the supplied token symbol. The symbol is
// stored verbatim; use NormalizeRail before handing the rail to the engine.
func TokenRail(symbol string) Rail { return Rail{Token: symbol} }

// Native reports whether the rail is the native currency.
func (r Rail) Native() bool { return r.Token == "" }

// Key returns the canonical identity used for pool accounting and balance
// storage.
func (r Rail) Key() string {
	if r.Native() {
		return "native"
	}
	return "token/" + r.Token
}

// String returns a display label for event payloads.
func (r Rail) String() string {
	if r.Native() {
		return "native"
	}
	return r.Token
}

// NormalizeRail trims and upper-cases a token rail symbol. A token rail with
// an empty symbol is rejected; the native rail passes through untouched.
func NormalizeRail(r Rail) (Rail, error) {
	if r.Native() {
		return r, nil
	}
	trimmed := strings.ToUpper(strings.TrimSpace(r.Token))
	if trimmed == "" {
		return Rail{}, ErrInvalidAsset
	}
	return Rail{Token: trimmed}, nil
}

// Deal captures one escrow agreement between a creator and a performer for a
// fixed amount on one rail. All fields except Status are fixed at creation;
// Commission is the process-wide rate snapshotted at that instant and is
// never affected by later rate changes.
type Deal struct {
	ID         uint64
	Creator    [20]byte
	Performer  [20]byte
	Rail       Rail
	Amount     *big.Int
	CreatedAt  int64
	Commission uint32
	Status     Status
}

// Clone returns a deep copy of the deal so callers can safely mutate the copy
// without affecting the stored instance.
func (d *Deal) Clone() *Deal {
	if d == nil {
		return nil
	}
	clone := *d
	if d.Amount != nil {
		clone.Amount = new(big.Int).Set(d.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return &clone
}

// Sanitize validates and normalises the supplied deal, returning a cloned
// instance with canonical rail casing and a non-nil amount. The original
// value is not mutated.
func Sanitize(d *Deal) (*Deal, error) {
	if d == nil {
		return nil, fmt.Errorf("deal: nil deal")
	}
	clone := d.Clone()
	rail, err := NormalizeRail(clone.Rail)
	if err != nil {
		return nil, err
	}
	clone.Rail = rail
	if clone.Amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if clone.Commission == 0 || clone.Commission >= 100 {
		return nil, ErrCommissionRange
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("deal: invalid status %d", clone.Status)
	}
	return clone, nil
}
