package http

import (
	"encoding/json"
	"net/http"

	"sprint-service/internal/domain"
	"sprint-service/internal/logger"
)

type errorBody struct {
	Error   domain.Kind `json:"error"`
	Message string      `json:"message"`
}

func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// errorFor hides upstream details from clients; they are logged instead.
func errorFor(err error) errorBody {
	kind := domain.KindOf(err)
	if kind == domain.KindUpstream {
		return errorBody{Error: kind, Message: "internal error"}
	}
	return errorBody{Error: kind, Message: err.Error()}
}

func writeError(w http.ResponseWriter, log *logger.Logger, r *http.Request, err error) {
	body := errorFor(err)
	status := statusFor(body.Error)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
