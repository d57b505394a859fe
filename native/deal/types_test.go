package deal

import (
	"errors"
	"math/big"
	"testing"
)

func TestNormalizeRail(t *testing.T) {
	cases := []struct {
		name    string
		in      Rail
		want    string
		wantErr error
	}{
		{"native passes through", NativeRail(), "", nil},
		{"uppercased", TokenRail("usd"), "USD", nil},
		{"trimmed", TokenRail("  wnhb "), "WNHB", nil},
		{"already canonical", TokenRail("ZNHB"), "ZNHB", nil},
		{"blank rejected", TokenRail("   "), "", ErrInvalidAsset},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeRail(tc.in)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("normalize: %v", err)
			}
			if got.Token != tc.want {
				t.Fatalf("token = %q, want %q", got.Token, tc.want)
			}
		})
	}
}

func TestRailKey(t *testing.T) {
	if got := NativeRail().Key(); got != "native" {
		t.Fatalf("native key = %q", got)
	}
	if got := TokenRail("USD").Key(); got != "token/USD" {
		t.Fatalf("token key = %q", got)
	}
}

func TestStatus(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusConfirmed, StatusDone} {
		if !s.Valid() {
			t.Fatalf("status %d must be valid", s)
		}
	}
	if Status(7).Valid() {
		t.Fatalf("out-of-range status must be invalid")
	}
	if StatusPending.String() != "pending" || StatusConfirmed.String() != "confirmed" || StatusDone.String() != "done" {
		t.Fatalf("unexpected status labels")
	}
}

func TestDealClone(t *testing.T) {
	original := &Deal{
		ID:         2,
		Rail:       TokenRail("USD"),
		Amount:     big.NewInt(150),
		Commission: 10,
		Status:     StatusPending,
	}
	clone := original.Clone()
	clone.Amount.SetInt64(0)
	clone.Status = StatusDone
	if original.Amount.Cmp(big.NewInt(150)) != 0 {
		t.Fatalf("clone must not alias the amount")
	}
	if original.Status != StatusPending {
		t.Fatalf("clone must not alias the status")
	}
}

func TestSanitize(t *testing.T) {
	valid := &Deal{
		ID:         2,
		Performer:  [20]byte{0x01},
		Rail:       TokenRail(" usd "),
		Amount:     big.NewInt(10),
		Commission: 10,
		Status:     StatusPending,
	}
	got, err := Sanitize(valid)
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if got.Rail.Token != "USD" {
		t.Fatalf("rail must be canonicalised, got %q", got.Rail.Token)
	}
	if valid.Rail.Token != " usd " {
		t.Fatalf("sanitize must not mutate its input")
	}

	if _, err := Sanitize(&Deal{Rail: NativeRail(), Amount: big.NewInt(0), Commission: 10}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero amount: expected ErrInvalidAmount, got %v", err)
	}
	if _, err := Sanitize(&Deal{Rail: NativeRail(), Amount: big.NewInt(1), Commission: 100}); !errors.Is(err, ErrCommissionRange) {
		t.Fatalf("rate 100: expected ErrCommissionRange, got %v", err)
	}
	if _, err := Sanitize(&Deal{Rail: NativeRail(), Amount: big.NewInt(1), Commission: 10, Status: Status(9)}); err == nil {
		t.Fatalf("invalid status must be rejected")
	}
}
