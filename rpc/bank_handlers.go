package rpc

import (
	"net/http"
	"strings"

	"dealledger/native/deal"
)

type bankBalanceParams struct {
	Holder string `json:"holder"`
	Token  string `json:"token,omitempty"`
}

type bankMintParams struct {
	Caller string `json:"caller"`
	To     string `json:"to"`
	Token  string `json:"token,omitempty"`
	Amount string `json:"amount"`
}

type bankBalanceResult struct {
	Holder  string `json:"holder"`
	Rail    string `json:"rail"`
	Balance string `json:"balance"`
}

func railFromToken(token string) deal.Rail {
	if strings.TrimSpace(token) == "" {
		return deal.NativeRail()
	}
	return deal.TokenRail(token)
}

func (s *Server) handleBankBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params bankBalanceParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	holder, err := parseAddress(params.Holder)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	rail := railFromToken(params.Token)
	balance, err := s.ledger.BalanceOf(rail, holder)
	if err != nil {
		writeDealError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, bankBalanceResult{
		Holder:  formatAddress(holder),
		Rail:    rail.String(),
		Balance: balance.String(),
	})
}

// handleBankMint is the development faucet. It is disabled unless the config
// opts in, and even then only the owner may mint.
func (s *Server) handleBankMint(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if !s.allowFaucet {
		writeError(w, http.StatusForbidden, req.ID, codeDealForbidden, "faucet disabled", nil)
		return
	}
	var params bankMintParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	if s.journal == nil || !s.journal.IsOwner(caller) {
		writeError(w, http.StatusForbidden, req.ID, codeDealForbidden, "forbidden", "caller is not the owner")
		return
	}
	to, err := parseAddress(params.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parsePositiveBigInt(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.ledger.Mint(railFromToken(params.Token), to, amount); err != nil {
		writeDealError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}
