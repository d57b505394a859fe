package rpc

import (
	"net/http"
	"strings"

	"dealledger/observability"
)

type dealCreateParams struct {
	Creator   string `json:"creator"`
	Performer string `json:"performer"`
	Token     string `json:"token,omitempty"`
	Amount    string `json:"amount"`
}

type dealActorParams struct {
	ID     uint64 `json:"id"`
	Caller string `json:"caller"`
}

type dealCloseParams struct {
	ID          uint64 `json:"id"`
	Caller      string `json:"caller"`
	ToPerformer bool   `json:"toPerformer"`
}

type dealWithdrawParams struct {
	Caller   string `json:"caller"`
	Receiver string `json:"receiver"`
	Token    string `json:"token,omitempty"`
	Amount   string `json:"amount"`
}

type dealCommissionParams struct {
	Caller string `json:"caller"`
	Rate   uint32 `json:"rate"`
}

type dealSetAdminParams struct {
	Caller  string `json:"caller"`
	Address string `json:"address"`
	Enabled bool   `json:"enabled"`
}

type dealIDParams struct {
	ID uint64 `json:"id"`
}

type dealUserParams struct {
	User string `json:"user"`
}

type dealPoolParams struct {
	Token string `json:"token,omitempty"`
}

type dealEventsParams struct {
	Prefix string `json:"prefix,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

type dealJSON struct {
	ID         uint64 `json:"id"`
	Creator    string `json:"creator"`
	Performer  string `json:"performer"`
	Rail       string `json:"rail"`
	Token      string `json:"token,omitempty"`
	Amount     string `json:"amount"`
	CreatedAt  int64  `json:"createdAt"`
	Commission uint32 `json:"commission"`
	Status     string `json:"status"`
}

type dealCreateResult struct {
	ID uint64 `json:"id"`
}

type dealCountResult struct {
	Count uint64 `json:"count"`
}

type dealCommissionResult struct {
	Rate uint32 `json:"rate"`
}

type dealIDsResult struct {
	IDs []uint64 `json:"ids"`
}

type dealPoolResult struct {
	Rail    string `json:"rail"`
	Balance string `json:"balance"`
}

func (s *Server) handleDealCreate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params dealCreateParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	creator, err := parseAddress(params.Creator)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	performer, err := parseAddress(params.Performer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parsePositiveBigInt(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	if strings.TrimSpace(params.Token) == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", "token symbol required")
		return
	}
	d, err := s.engine.Create(creator, performer, params.Token, amount)
	if err != nil {
		writeDealError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, dealCreateResult{ID: d.ID})
}

func (s *Server) handleDealCreateNative(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params dealCreateParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	creator, err := parseAddress(params.Creator)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	performer, err := parseAddress(params.Performer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parsePositiveBigInt(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	d, err := s.engine.CreateNative(creator, performer, amount)
	if err != nil {
		writeDealError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, dealCreateResult{ID: d.ID})
}

func (s *Server) actorCall(w http.ResponseWriter, req *RPCRequest, call func(id uint64, caller [20]byte) error) {
	var params dealActorParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := call(params.ID, caller); err != nil {
		writeDealError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleDealConfirm(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.actorCall(w, req, s.engine.Confirm)
}

func (s *Server) handleDealComplete(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.actorCall(w, req, s.engine.Complete)
}

func (s *Server) handleDealCancel(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.actorCall(w, req, s.engine.Cancel)
}

func (s *Server) handleDealClose(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params dealCloseParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.engine.Close(params.ID, caller, params.ToPerformer); err != nil {
		writeDealError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleDealWithdraw(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params dealWithdrawParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	receiver, err := parseAddress(params.Receiver)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parsePositiveBigInt(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	if strings.TrimSpace(params.Token) == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", "token symbol required")
		return
	}
	if err := s.engine.Withdraw(caller, receiver, params.Token, amount); err != nil {
		writeDealError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleDealWithdrawNative(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params dealWithdrawParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	receiver, err := parseAddress(params.Receiver)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parsePositiveBigInt(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.engine.WithdrawNative(caller, receiver, amount); err != nil {
		writeDealError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleDealChangeCommission(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params dealCommissionParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.engine.ChangeCommission(caller, params.Rate); err != nil {
		writeDealError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleDealSetAdmin(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params dealSetAdminParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.engine.SetAdmin(caller, addr, params.Enabled); err != nil {
		writeDealError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleDealGet(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params dealIDParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	d, err := s.engine.Get(params.ID)
	if err != nil {
		writeDealError(w, req.ID, err)
		return
	}
	result := dealJSON{
		ID:         d.ID,
		Creator:    formatAddress(d.Creator),
		Performer:  formatAddress(d.Performer),
		Rail:       d.Rail.String(),
		Amount:     d.Amount.String(),
		CreatedAt:  d.CreatedAt,
		Commission: d.Commission,
		Status:     d.Status.String(),
	}
	if !d.Rail.Native() {
		result.Token = d.Rail.Token
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleDealCount(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	count, err := s.engine.Count()
	if err != nil {
		writeDealError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, dealCountResult{Count: count})
}

func (s *Server) handleDealCurrentCommission(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	writeResult(w, req.ID, dealCommissionResult{Rate: s.engine.CommissionRate()})
}

func (s *Server) handleDealListByUser(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params dealUserParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	user, err := parseAddress(params.User)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	ids, err := s.engine.UserDealIDs(user)
	if err != nil {
		writeDealError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, dealIDsResult{IDs: ids})
}

func (s *Server) handleDealPoolBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	params := dealPoolParams{}
	if len(req.Params) > 0 {
		if err := decodeSingleParam(req, &params); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
			return
		}
	}
	rail := railFromToken(params.Token)
	balance, err := s.engine.PoolBalance(rail)
	if err != nil {
		writeDealError(w, req.ID, err)
		return
	}
	observability.RPCMetrics().SetPoolBalance(rail.String(), balance)
	writeResult(w, req.ID, dealPoolResult{Rail: rail.String(), Balance: balance.String()})
}

func (s *Server) handleDealEvents(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	params := dealEventsParams{}
	if len(req.Params) > 0 {
		if err := decodeSingleParam(req, &params); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
			return
		}
	}
	if s.journal == nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "event journal not configured", nil)
		return
	}
	items, err := s.journal.EventList(params.Prefix, params.Limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeDealInternal, "internal error", err.Error())
		return
	}
	writeResult(w, req.ID, items)
}
