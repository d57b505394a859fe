package types

import "math/big"

// Account holds the balances tracked by the in-process value rail. The native
// balance and each token balance are independent; a missing token entry is a
// zero balance.
type Account struct {
	Nonce         uint64              `json:"nonce"`
	BalanceNative *big.Int            `json:"balanceNative"`
	Tokens        map[string]*big.Int `json:"tokens,omitempty"`
}
