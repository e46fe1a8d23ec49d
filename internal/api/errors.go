package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"asset-forge/internal/domain"
)

// httpStatusFromDomainError maps domain errors to HTTP status codes.
func httpStatusFromDomainError(err error) int {
	var notFound *domain.NotFoundError
	var validation *domain.ValidationError
	var conflict *domain.ConflictError
	var payment *domain.PaymentError

	switch {
	case errors.As(err, &payment):
		return http.StatusPaymentRequired
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &conflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Code       int    `json:"code"`
	Message    string `json:"message"`
	ErrorClass string `json:"error_class,omitempty"`
}

// writeError writes err as {"code","message"}. Unmapped errors are logged
// and reported without their detail.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := httpStatusFromDomainError(err)
	body := errorBody{Code: status, Message: err.Error()}
	switch status {
	case http.StatusInternalServerError:
		logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		body.Message = "internal error"
	case http.StatusPaymentRequired:
		body.ErrorClass = string(domain.ClassPaymentInvalid)
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
