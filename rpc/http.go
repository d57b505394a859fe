package rpc

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dealledger/native/bank"
	"dealledger/native/deal"
	"dealledger/observability"
	"dealledger/state"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	authTokenEnv    = "DEAL_RPC_TOKEN"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeUnauthorized   = -32001
	codeServerError    = -32000

	codeDealInvalidParams = -32021
	codeDealNotFound      = -32022
	codeDealForbidden     = -32023
	codeDealConflict      = -32024
	codeDealInternal      = -32025
)

// Server exposes the deal engine and the bank rail over JSON-RPC 2.0.
type Server struct {
	engine      *deal.Engine
	ledger      *bank.Ledger
	journal     *state.Manager
	authToken   string
	allowFaucet bool
}

// NewServer wires the RPC surface. The bearer token for mutating methods is
// read from the DEAL_RPC_TOKEN environment variable.
func NewServer(engine *deal.Engine, ledger *bank.Ledger, journal *state.Manager, allowFaucet bool) *Server {
	token := strings.TrimSpace(os.Getenv(authTokenEnv))
	return &Server{
		engine:      engine,
		ledger:      ledger,
		journal:     journal,
		authToken:   token,
		allowFaucet: allowFaucet,
	}
}

// Handler returns the HTTP surface: the JSON-RPC endpoint plus health and
// metrics routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/rpc", s.handle)
	return r
}

// Start serves the RPC surface on the supplied address.
func (s *Server) Start(addr string) error {
	fmt.Printf("Starting JSON-RPC server on %s\n", addr)
	return http.ListenAndServe(addr, s.Handler())
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	started := time.Now()
	s.dispatch(recorder, r, req)
	outcome := "ok"
	if recorder.status >= http.StatusBadRequest {
		outcome = "error"
	}
	observability.RPCMetrics().Observe(req.Method, outcome, time.Since(started))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	switch req.Method {
	case "deal_create":
		s.withAuth(w, r, req, s.handleDealCreate)
	case "deal_createNative":
		s.withAuth(w, r, req, s.handleDealCreateNative)
	case "deal_confirm":
		s.withAuth(w, r, req, s.handleDealConfirm)
	case "deal_complete":
		s.withAuth(w, r, req, s.handleDealComplete)
	case "deal_cancel":
		s.withAuth(w, r, req, s.handleDealCancel)
	case "deal_close":
		s.withAuth(w, r, req, s.handleDealClose)
	case "deal_withdraw":
		s.withAuth(w, r, req, s.handleDealWithdraw)
	case "deal_withdrawNative":
		s.withAuth(w, r, req, s.handleDealWithdrawNative)
	case "deal_changeCommission":
		s.withAuth(w, r, req, s.handleDealChangeCommission)
	case "deal_setAdmin":
		s.withAuth(w, r, req, s.handleDealSetAdmin)
	case "deal_get":
		s.handleDealGet(w, r, req)
	case "deal_count":
		s.handleDealCount(w, r, req)
	case "deal_currentCommission":
		s.handleDealCurrentCommission(w, r, req)
	case "deal_listByUser":
		s.handleDealListByUser(w, r, req)
	case "deal_poolBalance":
		s.handleDealPoolBalance(w, r, req)
	case "deal_events":
		s.handleDealEvents(w, r, req)
	case "bank_balance":
		s.handleBankBalance(w, r, req)
	case "bank_mint":
		s.withAuth(w, r, req, s.handleBankMint)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
	}
}

type handlerFunc func(http.ResponseWriter, *http.Request, *RPCRequest)

func (s *Server) withAuth(w http.ResponseWriter, r *http.Request, req *RPCRequest, next handlerFunc) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	next(w, r, req)
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}

// writeDealError maps engine error kinds onto JSON-RPC codes and HTTP
// statuses.
func writeDealError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, deal.ErrNotFound):
		writeError(w, http.StatusNotFound, id, codeDealNotFound, "deal not found", err.Error())
	case errors.Is(err, deal.ErrUnauthorized):
		writeError(w, http.StatusForbidden, id, codeDealForbidden, "forbidden", err.Error())
	case errors.Is(err, deal.ErrInvalidState),
		errors.Is(err, deal.ErrPoolExceeded),
		errors.Is(err, deal.ErrTransferFailed):
		writeError(w, http.StatusConflict, id, codeDealConflict, "conflict", err.Error())
	case errors.Is(err, deal.ErrInvalidAmount),
		errors.Is(err, deal.ErrInvalidParty),
		errors.Is(err, deal.ErrInvalidAsset),
		errors.Is(err, deal.ErrCommissionRange):
		writeError(w, http.StatusBadRequest, id, codeDealInvalidParams, "invalid_params", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, id, codeDealInternal, "internal error", err.Error())
	}
}

func parseAddress(value string) ([20]byte, error) {
	trimmed := strings.TrimSpace(value)
	if !common.IsHexAddress(trimmed) {
		return [20]byte{}, fmt.Errorf("invalid address %q", value)
	}
	return [20]byte(common.HexToAddress(trimmed)), nil
}

func formatAddress(addr [20]byte) string {
	return common.Address(addr).Hex()
}

func parsePositiveBigInt(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}

func decodeSingleParam(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}
