package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"pangivault/native/common"
	"pangivault/native/vault"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, code, kind, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Kind: kind, Message: message}})
}

// statusForKind maps ledger error kinds onto HTTP statuses.
func statusForKind(kind vault.Kind) int {
	switch kind {
	case vault.KindValidation:
		return http.StatusBadRequest
	case vault.KindAuthorization:
		return http.StatusForbidden
	case vault.KindState:
		return http.StatusConflict
	case vault.KindTemporal:
		return http.StatusTooManyRequests
	case vault.KindArithmetic:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeLedgerError(w http.ResponseWriter, err error) {
	kind := vault.KindOf(err)
	message := err.Error()
	var vErr *vault.Error
	if errors.As(err, &vErr) {
		message = vErr.Message
	}
	if kind == vault.KindInternal {
		message = "internal error"
	}
	writeJSONError(w, statusForKind(kind), vault.CodeOf(err), string(kind), message)
}

func writeQuotaError(w http.ResponseWriter, err error) {
	code := "QuotaExceeded"
	if errors.Is(err, common.ErrQuotaAmountExceeded) {
		code = "QuotaAmountExceeded"
	}
	writeJSONError(w, http.StatusTooManyRequests, code, "throttle", err.Error())
}
