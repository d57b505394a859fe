package bank

import (
	"errors"
	"fmt"
	"math/big"

	"dealledger/core/types"
	"dealledger/native/deal"
)

var (
	// ErrInsufficientFunds rejects a transfer-in whose payer balance does
	// not cover the amount.
	ErrInsufficientFunds = errors.New("bank: insufficient funds")
	// ErrInsufficientCustody rejects a transfer-out beyond the custody
	// balance.
	ErrInsufficientCustody = errors.New("bank: insufficient custody balance")

	errNilState = errors.New("bank: account state not configured")
)

// CustodyAddress is the account holding escrowed principal and collected
// commission while deals are open.
var CustodyAddress = [20]byte{0xde, 0xa1, 0x1e, 0xd6, 0xe2}

// AccountState persists rail balances per holder.
type AccountState interface {
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
}

// Ledger is the in-process value-transfer rail. It satisfies the engine's
// Rails interface by moving balances between holder accounts and a single
// custody account.
type Ledger struct {
	state   AccountState
	custody [20]byte
}

// NewLedger creates a ledger over the supplied account state using the
// default custody address.
func NewLedger(state AccountState) *Ledger {
	return &Ledger{state: state, custody: CustodyAddress}
}

// Custody returns the custody account address, used by external observers to
// audit the total held balance.
func (l *Ledger) Custody() [20]byte { return l.custody }

func ensureAccount(acc *types.Account) *types.Account {
	if acc == nil {
		acc = &types.Account{}
	}
	if acc.BalanceNative == nil {
		acc.BalanceNative = big.NewInt(0)
	}
	if acc.Tokens == nil {
		acc.Tokens = make(map[string]*big.Int)
	}
	return acc
}

func balance(acc *types.Account, rail deal.Rail) *big.Int {
	if rail.Native() {
		return acc.BalanceNative
	}
	if b, ok := acc.Tokens[rail.Token]; ok && b != nil {
		return b
	}
	return big.NewInt(0)
}

func setBalance(acc *types.Account, rail deal.Rail, v *big.Int) {
	if rail.Native() {
		acc.BalanceNative = v
		return
	}
	acc.Tokens[rail.Token] = v
}

// TransferIn pulls the amount from the payer into custody.
func (l *Ledger) TransferIn(rail deal.Rail, from [20]byte, amount *big.Int) error {
	return l.transfer(rail, from, l.custody, amount, ErrInsufficientFunds)
}

// TransferOut pushes the amount from custody to the payee.
func (l *Ledger) TransferOut(rail deal.Rail, to [20]byte, amount *big.Int) error {
	return l.transfer(rail, l.custody, to, amount, ErrInsufficientCustody)
}

func (l *Ledger) transfer(rail deal.Rail, from, to [20]byte, amount *big.Int, shortfall error) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("bank: negative transfer amount")
	}
	if amount.Sign() == 0 {
		return nil
	}
	rail, err := deal.NormalizeRail(rail)
	if err != nil {
		return err
	}
	fromAcc, err := l.state.GetAccount(from)
	if err != nil {
		return err
	}
	toAcc, err := l.state.GetAccount(to)
	if err != nil {
		return err
	}
	fromAcc = ensureAccount(fromAcc)
	toAcc = ensureAccount(toAcc)
	fromBal := balance(fromAcc, rail)
	if fromBal.Cmp(amount) < 0 {
		return shortfall
	}
	setBalance(fromAcc, rail, new(big.Int).Sub(fromBal, amount))
	setBalance(toAcc, rail, new(big.Int).Add(balance(toAcc, rail), amount))
	if err := l.state.PutAccount(from, fromAcc); err != nil {
		return err
	}
	return l.state.PutAccount(to, toAcc)
}

// BalanceOf returns the holder's balance on the given rail. Read-only; used
// by external observers and tests.
func (l *Ledger) BalanceOf(rail deal.Rail, holder [20]byte) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	rail, err := deal.NormalizeRail(rail)
	if err != nil {
		return nil, err
	}
	acc, err := l.state.GetAccount(holder)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(balance(ensureAccount(acc), rail)), nil
}

// Mint credits freshly issued funds to the holder. Exposed for genesis
// seeding and the development faucet; the RPC surface gates it behind the
// owner role and a config flag.
func (l *Ledger) Mint(rail deal.Rail, to [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("bank: mint amount must be positive")
	}
	rail, err := deal.NormalizeRail(rail)
	if err != nil {
		return err
	}
	acc, err := l.state.GetAccount(to)
	if err != nil {
		return err
	}
	acc = ensureAccount(acc)
	setBalance(acc, rail, new(big.Int).Add(balance(acc, rail), amount))
	return l.state.PutAccount(to, acc)
}
