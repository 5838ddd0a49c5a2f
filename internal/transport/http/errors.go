package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/cimillas/flash-sale/internal/domain"
)

const (
	codeMethodNotAllowed      = "method_not_allowed"
	codeNotFound              = "not_found"
	codeInvalidRequestBody    = "invalid_request_body"
	codeValidationFailed      = "validation_failed"
	codeInvalidID             = "invalid_id"
	codeInvalidQuantity       = "invalid_quantity"
	codeInvalidPaymentStatus  = "invalid_payment_status"
	codeIdempotencyRequired   = "idempotency_key_required"
	codeInsufficientStock     = "insufficient_stock"
	codeLockUnavailable       = "lock_unavailable"
	codeProductNotFound       = "product_not_found"
	codeHoldNotFound          = "hold_not_found"
	codeHoldNotActive         = "hold_not_active"
	codeHoldExpired           = "hold_expired"
	codeForbidden             = "forbidden"
	codeDependencyUnavailable = "dependency_unavailable"
	codeInternalError         = "internal_error"
)

type errorResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeErrorResponse(w, status, errorResponse{Error: msg, Code: code})
}

func writeErrorResponse(w http.ResponseWriter, status int, resp errorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(resp)
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
}

type errorMapping struct {
	err    error
	status int
	code   string
}

var serviceErrors = []errorMapping{
	{domain.ErrInsufficientStock, http.StatusConflict, codeInsufficientStock},
	{domain.ErrLockUnavailable, http.StatusConflict, codeLockUnavailable},
	{domain.ErrHoldNotActive, http.StatusConflict, codeHoldNotActive},
	{domain.ErrHoldExpired, http.StatusConflict, codeHoldExpired},
	{domain.ErrProductNotFound, http.StatusNotFound, codeProductNotFound},
	{domain.ErrHoldNotFound, http.StatusNotFound, codeHoldNotFound},
	{domain.ErrInvalidID, http.StatusUnprocessableEntity, codeInvalidID},
	{domain.ErrInvalidQuantity, http.StatusUnprocessableEntity, codeInvalidQuantity},
	{domain.ErrInvalidPaymentStatus, http.StatusUnprocessableEntity, codeInvalidPaymentStatus},
	{domain.ErrIdempotencyKeyRequired, http.StatusUnprocessableEntity, codeIdempotencyRequired},
}

// writeServiceError maps domain errors to responses. Anything unknown is
// logged and hidden behind a 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			writeError(w, m.status, m.code, m.err.Error())
			return
		}
	}
	logger.Error("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
