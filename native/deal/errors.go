package deal

import "errors"

// Every failure surfaced by the engine wraps exactly one of these sentinels
// so callers can branch on kind without parsing messages.
var (
	// ErrInvalidAmount rejects a zero or non-positive amount where a
	// positive amount is required.
	ErrInvalidAmount = errors.New("deal: amount must be positive")
	// ErrInvalidParty rejects a zero performer or receiver, a performer
	// equal to the creator, or a caller who does not participate in the
	// deal.
	ErrInvalidParty = errors.New("deal: invalid party")
	// ErrInvalidAsset rejects an empty token identity on the token rail.
	ErrInvalidAsset = errors.New("deal: invalid asset")
	// ErrUnauthorized rejects a caller lacking the required role.
	ErrUnauthorized = errors.New("deal: unauthorized caller")
	// ErrInvalidState rejects an operation the deal's current status
	// forbids.
	ErrInvalidState = errors.New("deal: invalid state for operation")
	// ErrPoolExceeded rejects a withdrawal beyond the tracked pool balance.
	ErrPoolExceeded = errors.New("deal: amount exceeds withdrawable pool")
	// ErrCommissionRange rejects a commission rate outside (0, 100).
	ErrCommissionRange = errors.New("deal: commission must be > 0 and < 100")
	// ErrNotFound rejects a reference to a deal identifier that was never
	// assigned.
	ErrNotFound = errors.New("deal: not found")
	// ErrTransferFailed wraps a rail collaborator rejection; the enclosing
	// operation is aborted with no partial effect.
	ErrTransferFailed = errors.New("deal: transfer failed")
)
