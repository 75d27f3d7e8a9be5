package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"pifp_protocol/api/middleware"
	"pifp_protocol/auth"
	"pifp_protocol/contract"
	"pifp_protocol/kv"
	"pifp_protocol/ledger"
	"pifp_protocol/sdk"
)

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError writes a standardized error response with request tracking.
func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	body := map[string]any{
		"code":       code,
		"message":    message,
		"request_id": middleware.GetRequestID(r.Context()),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}
	if details != nil {
		body["details"] = details
	}
	WriteJSON(w, status, map[string]any{"error": body})
}

func badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	WriteError(w, r, http.StatusBadRequest, "bad_request", msg, nil)
}

// StatusOf maps an invocation error to its HTTP status and stable code string.
func StatusOf(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrMissingSignature), errors.Is(err, auth.ErrBadSignature), errors.Is(err, sdk.ErrMissingAuth):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, ledger.ErrStaleNonce):
		return http.StatusConflict, "stale_nonce"
	case errors.Is(err, sdk.ErrArchived):
		return http.StatusGone, "archived"
	case errors.Is(err, kv.ErrConflict):
		return http.StatusServiceUnavailable, "busy"
	}
	code, ok := contract.CodeOf(err)
	if !ok {
		return http.StatusInternalServerError, "internal"
	}
	switch code {
	case contract.CodeNotAuthorized:
		return http.StatusForbidden, code.String()
	case contract.CodeProjectNotFound, contract.CodeRoleNotFound:
		return http.StatusNotFound, code.String()
	case contract.CodeAlreadyInitialized, contract.CodeMilestoneAlreadyReleased,
		contract.CodeProjectNotActive, contract.CodeProjectExpired:
		return http.StatusConflict, code.String()
	case contract.CodeProtocolPaused:
		return http.StatusServiceUnavailable, code.String()
	default:
		return http.StatusUnprocessableEntity, code.String()
	}
}

// writeErr renders err, hiding the text of infrastructure failures.
func writeErr(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error) {
	status, code := StatusOf(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("request_id", middleware.GetRequestID(r.Context())).Msg("invocation failed")
		WriteError(w, r, status, code, "internal error", nil)
		return
	}
	var details any
	if c, ok := contract.CodeOf(err); ok {
		details = map[string]any{"error_code": uint32(c)}
	}
	WriteError(w, r, status, code, err.Error(), details)
}
