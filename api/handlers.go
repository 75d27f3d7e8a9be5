package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"

	"pifp_protocol/auth"
	"pifp_protocol/contract"
	"pifp_protocol/sdk"
)

const (
	maxEventsPage = 1000
	// maxRestoreItems bounds the ids plus accounts of one restore
	maxRestoreItems = 256
)

// Options tunes the protocol routes.
type Options struct {
	MaxBodyBytes int64
	// FaucetMax caps a single faucet mint. A nil cap keeps the faucet route unmounted.
	FaucetMax *uint256.Int
}

// Handler serves the protocol routes on top of one Contract.
type Handler struct {
	c    *contract.Contract
	opts Options
	log  zerolog.Logger
}

func NewHandler(c *contract.Contract, opts Options, log zerolog.Logger) *Handler {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 64 << 10
	}
	return &Handler{c: c, opts: opts, log: log.With().Str("component", "api-handler").Logger()}
}

// Register mounts every route under /v1 plus /healthz.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/init", h.init).Methods(http.MethodPost)
	v1.HandleFunc("/roles/grant", h.grantRole).Methods(http.MethodPost)
	v1.HandleFunc("/roles/revoke", h.revokeRole).Methods(http.MethodPost)
	v1.HandleFunc("/roles/transfer", h.transferSuperAdmin).Methods(http.MethodPost)
	v1.HandleFunc("/roles/{addr}", h.roleOf).Methods(http.MethodGet)
	v1.HandleFunc("/roles/{addr}/{role}", h.hasRole).Methods(http.MethodGet)
	v1.HandleFunc("/super-admin", h.superAdmin).Methods(http.MethodGet)
	v1.HandleFunc("/oracle", h.setOracle).Methods(http.MethodPost)

	v1.HandleFunc("/pause", h.pause).Methods(http.MethodPost)
	v1.HandleFunc("/unpause", h.unpause).Methods(http.MethodPost)
	v1.HandleFunc("/paused", h.isPaused).Methods(http.MethodGet)

	v1.HandleFunc("/projects", h.registerProject).Methods(http.MethodPost)
	v1.HandleFunc("/projects/count", h.projectCount).Methods(http.MethodGet)
	v1.HandleFunc("/projects/{id:[0-9]+}", h.getProject).Methods(http.MethodGet)
	v1.HandleFunc("/projects/{id:[0-9]+}/balances", h.getBalances).Methods(http.MethodGet)
	v1.HandleFunc("/projects/{id:[0-9]+}/balances/{token}", h.getBalance).Methods(http.MethodGet)
	v1.HandleFunc("/projects/{id:[0-9]+}/deposit", h.deposit).Methods(http.MethodPost)
	v1.HandleFunc("/projects/{id:[0-9]+}/verify", h.verify).Methods(http.MethodPost)

	v1.HandleFunc("/restore", h.restore).Methods(http.MethodPost)
	v1.HandleFunc("/events", h.events).Methods(http.MethodGet)
	v1.HandleFunc("/tokens/{token}/{addr}", h.tokenBalance).Methods(http.MethodGet)
	if h.opts.FaucetMax != nil {
		v1.HandleFunc("/faucet", h.faucet).Methods(http.MethodPost)
	}
}

// readSigned authenticates the body and decodes it into dst. On false the response is already written.
func (h *Handler) readSigned(w http.ResponseWriter, r *http.Request, dst signedRequest) (context.Context, sdk.Address, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			WriteError(w, r, http.StatusRequestEntityTooLarge, "body_too_large", err.Error(), nil)
			return nil, "", false
		}
		badRequest(w, r, "read body: "+err.Error())
		return nil, "", false
	}
	caller, err := auth.Recover(body, r.Header.Get(auth.SignatureHeader))
	if err != nil {
		writeErr(w, r, h.log, err)
		return nil, "", false
	}
	if !decodeStrict(w, r, body, dst) {
		return nil, "", false
	}
	nonce := dst.nonce()
	if nonce == 0 {
		badRequest(w, r, "nonce must be positive")
		return nil, "", false
	}
	ctx := sdk.WithAuth(r.Context(), sdk.Authorization{Signer: caller, Nonce: nonce})
	return ctx, caller, true
}

func decodeStrict(w http.ResponseWriter, r *http.Request, body []byte, dst any) bool {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		badRequest(w, r, "decode body: "+err.Error())
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		badRequest(w, r, "project id out of range")
		return 0, false
	}
	return id, true
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// -----------------------------------------------------------------------------
// RBAC
// -----------------------------------------------------------------------------

func (h *Handler) init(w http.ResponseWriter, r *http.Request) {
	var req nonceRequest
	ctx, caller, ok := h.readSigned(w, r, &req)
	if !ok {
		return
	}
	if err := h.c.Init(ctx, caller); err != nil {
		writeErr(w, r, h.log, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"super_admin": caller.String()})
}

func (h *Handler) grantRole(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	ctx, caller, ok := h.readSigned(w, r, &req)
	if !ok {
		return
	}
	target, err := parseAddress("target", req.Target)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	role, err := contract.ParseRole(req.Role)
	if err != nil {
		writeErr(w, r, h.log, err)
		return
	}
	if err := h.c.GrantRole(ctx, caller, target, role); err != nil {
		writeErr(w, r, h.log, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"target": target.String(), "role": role.String()})
}

func (h *Handler) revokeRole(w http.ResponseWriter, r *http.Request) {
	var req revokeRequest
	ctx, caller, ok := h.readSigned(w, r, &req)
	if !ok {
		return
	}
	target, err := parseAddress("target", req.Target)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	if err := h.c.RevokeRole(ctx, caller, target); err != nil {
		writeErr(w, r, h.log, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"target": target.String()})
}

func (h *Handler) transferSuperAdmin(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	ctx, caller, ok := h.readSigned(w, r, &req)
	if !ok {
		return
	}
	next, err := parseAddress("new_super_admin", req.NewSuperAdmin)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	if err := h.c.TransferSuperAdmin(ctx, caller, next); err != nil {
		writeErr(w, r, h.log, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"super_admin": next.String()})
}

func (h *Handler) setOracle(w http.ResponseWriter, r *http.Request) {
	var req oracleRequest
	ctx, caller, ok := h.readSigned(w, r, &req)
	if !ok {
		return
	}
	oracle, err := parseAddress("oracle", req.Oracle)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	if err := h.c.SetOracle(ctx, caller, oracle); err != nil {
		writeErr(w, r, h.log, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"oracle": oracle.String()})
}

func (h *Handler) roleOf(w http.ResponseWriter, r *http.Request) {
	addr := sdk.Address(mux.Vars(r)["addr"]).Normalize()
	role, ok, err := h.c.RoleOf(r.Context(), addr)
	if err != nil {
		writeErr(w, r, h.log, err)
		return
	}
	resp := roleResponse{Address: addr.String()}
	if ok {
		s := role.String()
		resp.Role = &s
	}
	WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) hasRole(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	role, err := contract.ParseRole(vars["role"])
	if err != nil {
		writeErr(w, r, h.log, err)
		return
	}
	addr := sdk.Address(vars["addr"]).Normalize()
	has, err := h.c.HasRole(r.Context(), addr, role)
	if err != nil {
		writeErr(w, r, h.log, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"address": addr.String(), "role": role.String(), "has_role": has})
}

func (h *Handler) superAdmin(w http.ResponseWriter, r *http.Request) {
	addr, ok, err := h.c.SuperAdmin(r.Context())
	if err != nil {
		writeErr(w, r, h.log, err)
		return
	}
	if !ok {
		WriteError(w, r, http.StatusNotFound, "not_initialized", "no super admin yet", nil)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"super_admin": addr.String()})
}

// -----------------------------------------------------------------------------
// Pause
// -----------------------------------------------------------------------------

func (h *Handler) pause(w http.ResponseWriter, r *http.Request) {
	h.togglePause(w, r, true)
}

func (h *Handler) unpause(w http.ResponseWriter, r *http.Request) {
	h.togglePause(w, r, false)
}

func (h *Handler) togglePause(w http.ResponseWriter, r *http.Request, paused bool) {
	var req nonceRequest
	ctx, caller, ok := h.readSigned(w, r, &req)
	if !ok {
		return
	}
	var err error
	if paused {
		err = h.c.Pause(ctx, caller)
	} else {
		err = h.c.Unpause(ctx, caller)
	}
	if err != nil {
		writeErr(w, r, h.log, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"paused": paused})
}

func (h *Handler) isPaused(w http.ResponseWriter, r *http.Request) {
	paused, err := h.c.IsPaused(r.Context())
	if err != nil {
		writeErr(w, r, h.log, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"paused": paused})
}

// -----------------------------------------------------------------------------
// Projects
// -----------------------------------------------------------------------------

func (h *Handler) registerProject(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	ctx, caller, ok := h.readSigned(w, r, &req)
	if !ok {
		return
	}
	tokens := make([]sdk.Address, 0, len(req.AcceptedTokens))
	for _, t := range req.AcceptedTokens {
		tokens = append(tokens, sdk.Address(t))
	}
	goal, err := parseAmount(req.Goal)
	if err != nil {
		writeErr(w, r, h.log, contract.ErrInvalidGoal.WithCause(err))
		return
	}
	hash, err := parseHash(req.ProofHash)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	p, err := h.c.RegisterProject(ctx, caller, tokens, goal, hash, req.Deadline)
	if err != nil {
		writeErr(w, r, h.log, err)
		return
	}
	WriteJSON(w, http.StatusCreated, newProjectResponse(p))
}

func (h *Handler) projectCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.c.ProjectCount(r.Context())
	if err != nil {
		writeErr(w, r, h.log, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]uint64{"count": n})
}

func (h *Handler) getProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := h.c.GetProject(r.Context(), id)
	if err != nil {
		writeErr(w, r, h.log, err)
		return
	}
	WriteJSON(w, http.StatusOK, newProjectResponse(p))
}

func (h *Handler) getBalances(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	b, err := h.c.GetBalances(r.Context(), id)
	if err != nil {
		writeErr(w, r, h.log, err)
		return
	}
	WriteJSON(w, http.StatusOK, newBalancesResponse(b))
}

func (h *Handler) getBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	token := sdk.Address(mux.Vars(r)["token"]).Normalize()
	bal, err := h.c.GetBalance(r.Context(), id, token)
	if err != nil {
		writeErr(w, r, h.log, err)
		return
	}
	WriteJSON(w, http.StatusOK, tokenBalance{Token: token.String(), Balance: bal.Dec()})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

func (h *Handler) deposit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req depositRequest
	ctx, caller, ok := h.readSigned(w, r, &req)
	if !ok {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeErr(w, r, h.log, contract.ErrInvalidAmount.WithCause(err))
		return
	}
	if err := h.c.Deposit(ctx, id, caller, sdk.Address(req.Token), amount); err != nil {
		writeErr(w, r, h.log, err)
		return
	}
	bal, err := h.c.GetBalance(r.Context(), id, sdk.Address(req.Token))
	if err != nil {
		writeErr(w, r, h.log, err)
		return
	}
	WriteJSON(w, http.StatusOK, tokenBalance{Token: sdk.Address(req.Token).Normalize().String(), Balance: bal.Dec()})
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req verifyRequest
	ctx, caller, ok := h.readSigned(w, r, &req)
	if !ok {
		return
	}
	hash, err := parseHash(req.ProofHash)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	if err := h.c.VerifyAndRelease(ctx, caller, id, hash); err != nil {
		writeErr(w, r, h.log, err)
		return
	}
	p, err := h.c.GetProject(r.Context(), id)
	if err != nil {
		writeErr(w, r, h.log, err)
		return
	}
	WriteJSON(w, http.StatusOK, newProjectResponse(p))
}

// -----------------------------------------------------------------------------
// Ledger
// -----------------------------------------------------------------------------

// events pages through the committed event log, ?from=<seq>&limit=<n>.
func (h *Handler) events(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, limit := uint64(1), 100
	if s := q.Get("from"); s != "" {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			badRequest(w, r, "from must be an unsigned integer")
			return
		}
		from = v
	}
	if s := q.Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 || v > maxEventsPage {
			badRequest(w, r, fmt.Sprintf("limit must be in [1, %d]", maxEventsPage))
			return
		}
		limit = v
	}
	evs, err := h.c.Runtime().Events(r.Context(), from, limit)
	if err != nil {
		writeErr(w, r, h.log, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"events": evs})
}

func (h *Handler) tokenBalance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	token := sdk.Address(vars["token"]).Normalize()
	owner := sdk.Address(vars["addr"]).Normalize()
	bal, err := h.c.Runtime().Balance(r.Context(), token, owner)
	if err != nil {
		writeErr(w, r, h.log, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"token": token.String(), "owner": owner.String(), "balance": bal.Dec()})
}

func (h *Handler) restore(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes))
	if err != nil {
		badRequest(w, r, "read body: "+err.Error())
		return
	}
	var req restoreRequest
	if !decodeStrict(w, r, body, &req) {
		return
	}
	if len(req.ProjectIDs)+len(req.Accounts) > maxRestoreItems {
		badRequest(w, r, fmt.Sprintf("at most %d project ids and accounts per restore", maxRestoreItems))
		return
	}
	accounts := make([]sdk.Address, 0, len(req.Accounts))
	for _, raw := range req.Accounts {
		addr, err := parseAddress("account", raw)
		if err != nil {
			badRequest(w, r, err.Error())
			return
		}
		accounts = append(accounts, addr)
	}
	n, err := h.c.Restore(r.Context(), req.ProjectIDs, accounts)
	if err != nil {
		writeErr(w, r, h.log, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int{"restored": n})
}

func (h *Handler) faucet(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes))
	if err != nil {
		badRequest(w, r, "read body: "+err.Error())
		return
	}
	var req faucetRequest
	if !decodeStrict(w, r, body, &req) {
		return
	}
	to, err := parseAddress("to", req.To)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	token, err := parseAddress("token", req.Token)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil || amount.IsZero() || amount.Gt(h.opts.FaucetMax) {
		badRequest(w, r, fmt.Sprintf("amount must be in [1, %s]", h.opts.FaucetMax.Dec()))
		return
	}
	if err := h.c.Runtime().Mint(r.Context(), token, to, amount); err != nil {
		writeErr(w, r, h.log, err)
		return
	}
	h.log.Info().Str("token", token.String()).Str("to", to.String()).Str("amount", amount.Dec()).Msg("faucet mint")
	WriteJSON(w, http.StatusOK, map[string]string{"token": token.String(), "to": to.String(), "amount": amount.Dec()})
}
