// Package api hosts the ledger over HTTP. It is the caller-identity provider
// (the X-Caller-Address header) and the single-writer serializer the ledger
// expects: every request holds one mutex while it touches the ledger.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	interfaces "github.com/sheikh-saqib/token-ledger/internal/interfaces"
	"github.com/sheikh-saqib/token-ledger/internal/ledger"
	"github.com/sheikh-saqib/token-ledger/internal/models"
	"github.com/sheikh-saqib/token-ledger/internal/units"
)

// CallerHeader carries the hex address of the account invoking a mutation.
const CallerHeader = "X-Caller-Address"

const maxBodyBytes = 64 << 10

// Error codes returned in the "code" field of error bodies.
const (
	CodeInvalidRequest        = "INVALID_REQUEST"
	CodeMissingCaller         = "MISSING_CALLER"
	CodeInsufficientBalance   = "INSUFFICIENT_BALANCE"
	CodeInsufficientAllowance = "INSUFFICIENT_ALLOWANCE"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeOverflow              = "OVERFLOW"
	CodeInvariantViolated     = "INVARIANT_VIOLATED"
	CodeHistoryUnavailable    = "HISTORY_UNAVAILABLE"
	CodeInternal              = "INTERNAL"
)

type Handler struct {
	mu      sync.Mutex
	ledger  *ledger.Ledger
	history interfaces.EventHistory
	logger  *zap.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithHistory serves GET /accounts/{address}/events from hist.
func WithHistory(hist interfaces.EventHistory) Option {
	return func(h *Handler) {
		h.history = hist
	}
}

func NewHandler(l *ledger.Ledger, logger *zap.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		ledger: l,
		logger: logger.Named("api"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the router with every endpoint mounted.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.requestLogger)

	r.Get("/health", h.health)
	r.Get("/token", h.token)
	r.Get("/accounts/{address}/balance", h.balance)
	r.Get("/accounts/{address}/events", h.events)
	r.Get("/allowances/{owner}/{spender}", h.allowance)

	r.Post("/transfer", h.transfer)
	r.Post("/approve", h.approve)
	r.Post("/transfer-from", h.transferFrom)
	r.Post("/mint", h.mint)
	r.Post("/burn", h.burn)
	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	h.mu.Lock()
	err := h.ledger.CheckConservation()
	h.mu.Unlock()

	if err != nil {
		h.logger.Error("ledger invariant violated", zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeInvariantViolated, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type tokenResponse struct {
	Name               string `json:"name"`
	Symbol             string `json:"symbol"`
	Decimals           uint8  `json:"decimals"`
	Owner              string `json:"owner"`
	TotalSupply        string `json:"total_supply"`
	TotalSupplyDisplay string `json:"total_supply_display"`
}

func (h *Handler) token(w http.ResponseWriter, _ *http.Request) {
	h.mu.Lock()
	supply := h.ledger.TotalSupply()
	resp := tokenResponse{
		Name:     h.ledger.Name(),
		Symbol:   h.ledger.Symbol(),
		Decimals: h.ledger.Decimals(),
		Owner:    h.ledger.Owner().Hex(),
	}
	h.mu.Unlock()

	resp.TotalSupply = supply.Dec()
	resp.TotalSupplyDisplay = units.ToDisplay(supply, resp.Decimals).String()
	writeJSON(w, http.StatusOK, resp)
}

type balanceResponse struct {
	Account string `json:"account"`
	Balance string `json:"balance"`
	Display string `json:"display"`
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	account, err := parseAddress("address", chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}

	h.mu.Lock()
	bal := h.ledger.BalanceOf(account)
	decimals := h.ledger.Decimals()
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, balanceResponse{
		Account: account.Hex(),
		Balance: bal.Dec(),
		Display: units.ToDisplay(bal, decimals).String(),
	})
}

type eventsResponse struct {
	Account string         `json:"account"`
	Events  []models.Event `json:"events"`
}

func (h *Handler) events(w http.ResponseWriter, r *http.Request) {
	account, err := parseAddress("address", chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}
	if h.history == nil {
		writeError(w, http.StatusNotImplemented, CodeHistoryUnavailable, "event history requires postgres.dsn")
		return
	}

	events, err := h.history.EventsByAccount(r.Context(), account)
	if err != nil {
		h.logger.Error("event history query failed", zap.String("account", account.Hex()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeInternal, "event history query failed")
		return
	}
	if events == nil {
		events = []models.Event{}
	}
	writeJSON(w, http.StatusOK, eventsResponse{Account: account.Hex(), Events: events})
}

type allowanceResponse struct {
	Owner     string `json:"owner"`
	Spender   string `json:"spender"`
	Allowance string `json:"allowance"`
	Display   string `json:"display"`
}

func (h *Handler) allowance(w http.ResponseWriter, r *http.Request) {
	owner, err := parseAddress("owner", chi.URLParam(r, "owner"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}
	spender, err := parseAddress("spender", chi.URLParam(r, "spender"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}

	h.mu.Lock()
	allowance := h.ledger.Allowance(owner, spender)
	decimals := h.ledger.Decimals()
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, allowanceResponse{
		Owner:     owner.Hex(),
		Spender:   spender.Hex(),
		Allowance: allowance.Dec(),
		Display:   units.ToDisplay(allowance, decimals).String(),
	})
}

type transferRequest struct {
	To            string `json:"to"`
	Amount        string `json:"amount,omitempty"`
	AmountDisplay string `json:"amount_display,omitempty"`
}

func (h *Handler) transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	caller, ok := h.decodeMutation(w, r, &req)
	if !ok {
		return
	}
	to, amount, err := h.parseTarget("to", req.To, req.Amount, req.AmountDisplay)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}

	h.mu.Lock()
	err = h.ledger.Transfer(caller, to, amount)
	h.mu.Unlock()
	h.finish(w, "transfer", caller, err)
}

type approveRequest struct {
	Spender       string `json:"spender"`
	Amount        string `json:"amount,omitempty"`
	AmountDisplay string `json:"amount_display,omitempty"`
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	caller, ok := h.decodeMutation(w, r, &req)
	if !ok {
		return
	}
	spender, amount, err := h.parseTarget("spender", req.Spender, req.Amount, req.AmountDisplay)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}

	h.mu.Lock()
	h.ledger.Approve(caller, spender, amount)
	h.mu.Unlock()
	h.finish(w, "approve", caller, nil)
}

type transferFromRequest struct {
	Owner         string `json:"owner"`
	To            string `json:"to"`
	Amount        string `json:"amount,omitempty"`
	AmountDisplay string `json:"amount_display,omitempty"`
}

func (h *Handler) transferFrom(w http.ResponseWriter, r *http.Request) {
	var req transferFromRequest
	caller, ok := h.decodeMutation(w, r, &req)
	if !ok {
		return
	}
	owner, err := parseAddress("owner", req.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}
	to, amount, err := h.parseTarget("to", req.To, req.Amount, req.AmountDisplay)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}

	h.mu.Lock()
	err = h.ledger.TransferFrom(caller, owner, to, amount)
	h.mu.Unlock()
	h.finish(w, "transferFrom", caller, err)
}

type mintRequest struct {
	To            string `json:"to"`
	Amount        string `json:"amount,omitempty"`
	AmountDisplay string `json:"amount_display,omitempty"`
}

func (h *Handler) mint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	caller, ok := h.decodeMutation(w, r, &req)
	if !ok {
		return
	}
	to, amount, err := h.parseTarget("to", req.To, req.Amount, req.AmountDisplay)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}

	h.mu.Lock()
	err = h.ledger.Mint(caller, to, amount)
	h.mu.Unlock()
	h.finish(w, "mint", caller, err)
}

type burnRequest struct {
	From          string `json:"from"`
	Amount        string `json:"amount,omitempty"`
	AmountDisplay string `json:"amount_display,omitempty"`
}

func (h *Handler) burn(w http.ResponseWriter, r *http.Request) {
	var req burnRequest
	caller, ok := h.decodeMutation(w, r, &req)
	if !ok {
		return
	}
	from, amount, err := h.parseTarget("from", req.From, req.Amount, req.AmountDisplay)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}

	h.mu.Lock()
	err = h.ledger.Burn(caller, from, amount)
	h.mu.Unlock()
	h.finish(w, "burn", caller, err)
}

// decodeMutation resolves the caller and decodes the JSON body into dst.
// It writes the error response itself and reports whether to continue.
func (h *Handler) decodeMutation(w http.ResponseWriter, r *http.Request, dst any) (common.Address, bool) {
	raw := strings.TrimSpace(r.Header.Get(CallerHeader))
	if raw == "" {
		writeError(w, http.StatusBadRequest, CodeMissingCaller, CallerHeader+" header is required")
		return common.Address{}, false
	}
	caller, err := parseAddress(CallerHeader, raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return common.Address{}, false
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, CodeInvalidRequest, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return common.Address{}, false
		}
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid request body")
		return common.Address{}, false
	}
	return caller, true
}

// finish maps the ledger outcome onto the response. Rejections are part of
// normal operation and are logged at info level.
func (h *Handler) finish(w http.ResponseWriter, op string, caller common.Address, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	status, code := classify(err)
	fields := []zap.Field{zap.String("op", op), zap.String("caller", caller.Hex()), zap.String("code", code), zap.Error(err)}
	if status >= http.StatusInternalServerError {
		h.logger.Error("ledger operation failed", fields...)
	} else {
		h.logger.Info("ledger operation rejected", fields...)
	}
	writeError(w, status, code, err.Error())
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity, CodeInsufficientBalance
	case errors.Is(err, ledger.ErrInsufficientAllowance):
		return http.StatusUnprocessableEntity, CodeInsufficientAllowance
	case errors.Is(err, ledger.ErrUnauthorized):
		return http.StatusForbidden, CodeUnauthorized
	case errors.Is(err, ledger.ErrOverflow):
		return http.StatusUnprocessableEntity, CodeOverflow
	default:
		// ErrUnderflow lands here: every subtraction is preceded by a
		// balance or allowance check, so reaching it means a ledger bug.
		return http.StatusInternalServerError, CodeInternal
	}
}

func parseAddress(field, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%s: %q is not a hex address", field, s)
	}
	return common.HexToAddress(s), nil
}

// parseTarget reads the target address and the amount, given either in raw
// units or in display units scaled by the token's decimals.
func (h *Handler) parseTarget(field, address, raw, display string) (common.Address, *uint256.Int, error) {
	addr, err := parseAddress(field, address)
	if err != nil {
		return common.Address{}, nil, err
	}

	var v *uint256.Int
	switch {
	case raw != "" && display != "":
		return common.Address{}, nil, errors.New("amount and amount_display are mutually exclusive")
	case display != "":
		v, err = units.ParseDisplay(display, h.ledger.Decimals())
		if err != nil {
			return common.Address{}, nil, fmt.Errorf("amount_display: %w", err)
		}
	default:
		v, err = units.Parse(raw)
		if err != nil {
			return common.Address{}, nil, fmt.Errorf("amount: %w", err)
		}
	}
	return addr, v, nil
}
