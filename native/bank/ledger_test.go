package bank

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"dealledger/native/deal"
	"dealledger/state"
	"dealledger/storage"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	return NewLedger(state.NewManager(storage.NewMemDB()))
}

func addr(fill byte) [20]byte {
	var a [20]byte
	for i := range a {
		a[i] = fill
	}
	return a
}

func TestMintAndBalance(t *testing.T) {
	ledger := newTestLedger(t)
	holder := addr(0x01)

	balance, err := ledger.BalanceOf(deal.NativeRail(), holder)
	require.NoError(t, err)
	require.Zero(t, balance.Sign())

	require.NoError(t, ledger.Mint(deal.NativeRail(), holder, big.NewInt(100)))
	require.NoError(t, ledger.Mint(deal.TokenRail("usd"), holder, big.NewInt(50)))

	balance, err = ledger.BalanceOf(deal.NativeRail(), holder)
	require.NoError(t, err)
	require.Zero(t, balance.Cmp(big.NewInt(100)))

	balance, err = ledger.BalanceOf(deal.TokenRail("USD"), holder)
	require.NoError(t, err)
	require.Zero(t, balance.Cmp(big.NewInt(50)), "symbols are canonicalised before lookup")

	require.Error(t, ledger.Mint(deal.NativeRail(), holder, big.NewInt(0)))
	require.Error(t, ledger.Mint(deal.NativeRail(), holder, nil))
}

func TestTransferInMovesFundsToCustody(t *testing.T) {
	ledger := newTestLedger(t)
	payer := addr(0x01)
	require.NoError(t, ledger.Mint(deal.NativeRail(), payer, big.NewInt(100)))

	require.NoError(t, ledger.TransferIn(deal.NativeRail(), payer, big.NewInt(60)))

	balance, err := ledger.BalanceOf(deal.NativeRail(), payer)
	require.NoError(t, err)
	require.Zero(t, balance.Cmp(big.NewInt(40)))

	custody, err := ledger.BalanceOf(deal.NativeRail(), ledger.Custody())
	require.NoError(t, err)
	require.Zero(t, custody.Cmp(big.NewInt(60)))

	require.ErrorIs(t, ledger.TransferIn(deal.NativeRail(), payer, big.NewInt(41)), ErrInsufficientFunds)
	balance, err = ledger.BalanceOf(deal.NativeRail(), payer)
	require.NoError(t, err)
	require.Zero(t, balance.Cmp(big.NewInt(40)), "rejected transfer must not move funds")
}

func TestTransferOutPaysFromCustody(t *testing.T) {
	ledger := newTestLedger(t)
	payer := addr(0x01)
	payee := addr(0x02)
	require.NoError(t, ledger.Mint(deal.TokenRail("USD"), payer, big.NewInt(100)))
	require.NoError(t, ledger.TransferIn(deal.TokenRail("USD"), payer, big.NewInt(100)))

	require.NoError(t, ledger.TransferOut(deal.TokenRail("USD"), payee, big.NewInt(90)))

	balance, err := ledger.BalanceOf(deal.TokenRail("USD"), payee)
	require.NoError(t, err)
	require.Zero(t, balance.Cmp(big.NewInt(90)))

	require.ErrorIs(t, ledger.TransferOut(deal.TokenRail("USD"), payee, big.NewInt(11)), ErrInsufficientCustody)
}

func TestTransfersAreRailScoped(t *testing.T) {
	ledger := newTestLedger(t)
	payer := addr(0x01)
	require.NoError(t, ledger.Mint(deal.NativeRail(), payer, big.NewInt(100)))

	require.ErrorIs(t, ledger.TransferIn(deal.TokenRail("USD"), payer, big.NewInt(1)), ErrInsufficientFunds)
}

func TestZeroTransferIsNoop(t *testing.T) {
	ledger := newTestLedger(t)
	payer := addr(0x01)

	require.NoError(t, ledger.TransferIn(deal.NativeRail(), payer, big.NewInt(0)))
	custody, err := ledger.BalanceOf(deal.NativeRail(), ledger.Custody())
	require.NoError(t, err)
	require.Zero(t, custody.Sign())
}
