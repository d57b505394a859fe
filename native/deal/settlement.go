package deal

import "math/big"

var oneHundred = big.NewInt(100)

// Split computes the settlement of a deal amount at the given commission
// rate. The payout is floor(amount * (100 - rate) / 100); the retained cut is
// the exact remainder, so payout + retained == amount and any rounding loss
// lands in the retained cut rather than creating a pool shortfall. Split is a
// pure computation; the caller applies the transfer and the pool credit
// together.
func Split(amount *big.Int, rate uint32) (payout, retained *big.Int, err error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, nil, ErrInvalidAmount
	}
	if rate == 0 || rate >= 100 {
		return nil, nil, ErrCommissionRange
	}
	payout = new(big.Int).Mul(amount, big.NewInt(int64(100-rate)))
	payout.Div(payout, oneHundred)
	retained = new(big.Int).Sub(amount, payout)
	return payout, retained, nil
}

// RefundAmount returns the full amount owed back to the creator on
// cancellation. No commission is retained on a refund.
func RefundAmount(d *Deal) (*big.Int, error) {
	if d == nil || d.Amount == nil || d.Amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	return new(big.Int).Set(d.Amount), nil
}
