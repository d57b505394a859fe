package deal

import (
	"errors"
	"math/big"
	"testing"
)

func TestSplit(t *testing.T) {
	cases := []struct {
		name     string
		amount   int64
		rate     uint32
		payout   int64
		retained int64
	}{
		{"even split", 150, 10, 135, 15},
		{"rounding favours pool", 7, 10, 6, 1},
		{"tiny amount", 1, 10, 0, 1},
		{"high rate", 1, 99, 0, 1},
		{"low rate", 100, 1, 99, 1},
		{"half", 101, 50, 50, 51},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payout, retained, err := Split(big.NewInt(tc.amount), tc.rate)
			if err != nil {
				t.Fatalf("split: %v", err)
			}
			if payout.Cmp(big.NewInt(tc.payout)) != 0 {
				t.Fatalf("payout = %s, want %d", payout, tc.payout)
			}
			if retained.Cmp(big.NewInt(tc.retained)) != 0 {
				t.Fatalf("retained = %s, want %d", retained, tc.retained)
			}
			total := new(big.Int).Add(payout, retained)
			if total.Cmp(big.NewInt(tc.amount)) != 0 {
				t.Fatalf("split must conserve the amount, got %s", total)
			}
		})
	}
}

func TestSplitRejectsBadInput(t *testing.T) {
	if _, _, err := Split(nil, 10); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("nil amount: expected ErrInvalidAmount, got %v", err)
	}
	if _, _, err := Split(big.NewInt(0), 10); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero amount: expected ErrInvalidAmount, got %v", err)
	}
	if _, _, err := Split(big.NewInt(10), 0); !errors.Is(err, ErrCommissionRange) {
		t.Fatalf("rate 0: expected ErrCommissionRange, got %v", err)
	}
	if _, _, err := Split(big.NewInt(10), 100); !errors.Is(err, ErrCommissionRange) {
		t.Fatalf("rate 100: expected ErrCommissionRange, got %v", err)
	}
}

func TestRefundAmount(t *testing.T) {
	d := &Deal{Amount: big.NewInt(150), Commission: 10}
	refund, err := RefundAmount(d)
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if refund.Cmp(big.NewInt(150)) != 0 {
		t.Fatalf("refund = %s, want the full amount", refund)
	}
	refund.SetInt64(0)
	if d.Amount.Cmp(big.NewInt(150)) != 0 {
		t.Fatalf("refund must not alias the stored amount")
	}
}
