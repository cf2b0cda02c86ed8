package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"sprint-service/internal/app"
	"sprint-service/internal/auth"
	"sprint-service/internal/domain"
	"sprint-service/internal/logger"
)

// Handler serves the sprint REST API.
type Handler struct {
	service *app.SprintService
	log     *logger.Logger
}

func NewHandler(service *app.SprintService, log *logger.Logger) *Handler {
	return &Handler{service: service, log: log.With("component", "http")}
}

// NewRouter mounts the REST and websocket routes behind authn.
func NewRouter(h *Handler, ws *WSHandler, authn auth.Authenticator) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	protect := func(fn http.HandlerFunc) http.Handler {
		return requireIdentity(authn, h.log, fn)
	}
	mux.Handle("POST /v1/sprints", protect(h.createSprint))
	mux.Handle("GET /v1/sprints/{id}", protect(h.getSprint))
	mux.Handle("POST /v1/sprints/{id}/interactions", protect(h.recordInteraction))
	mux.Handle("POST /v1/sprints/{id}/complete", protect(h.completeSprint))
	mux.Handle("POST /v1/sprints/{id}/abandon", protect(h.abandonSprint))
	mux.Handle("POST /v1/sprints/{id}/retry", protect(h.retrySprint))
	mux.Handle("GET /v1/sprints/{id}/summary", protect(h.getSummary))
	mux.Handle("GET /v1/sprints/{id}/review", protect(h.getReview))
	if ws != nil {
		mux.Handle("GET /ws/sprints/{id}", protect(ws.ServeWS))
	}
	return mux
}

// requireIdentity rejects the request before any session data is read.
func requireIdentity(authn auth.Authenticator, log *logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := authn.Authenticate(r)
		if err != nil {
			writeError(w, log, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	})
}

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 << 10

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("body exceeds %d bytes", tooLarge.Limit)
		}
		return errors.New("malformed body")
	}
	return nil
}

type createSprintRequest struct {
	Type          domain.SessionType `json:"type"`
	Subject       string             `json:"subject"`
	Topics        []string           `json:"topics"`
	Difficulty    domain.Difficulty  `json:"difficulty"`
	QuestionCount int                `json:"questionCount"`
	TimeLimitMs   int64              `json:"timeLimitMs"`
}

type interactionRequest struct {
	QuestionID     string `json:"questionId"`
	SelectedOption string `json:"selectedOption"`
	Skip           bool   `json:"skip"`
	TimeMs         int64  `json:"timeMs"`
}

func (h *Handler) createSprint(w http.ResponseWriter, r *http.Request) {
	var req createSprintRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, h.log, r, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err))
		return
	}
	session, err := h.service.CreateSession(r.Context(), owner(r), req.Type, domain.Config{
		Subject:       req.Subject,
		Topics:        req.Topics,
		Difficulty:    req.Difficulty,
		QuestionCount: req.QuestionCount,
		TimeLimitMs:   req.TimeLimitMs,
	})
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *Handler) getSprint(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetSession(r.Context(), owner(r), r.PathValue("id"))
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) recordInteraction(w http.ResponseWriter, r *http.Request) {
	var req interactionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, h.log, r, fmt.Errorf("%w: %v", domain.ErrInvalidInteraction, err))
		return
	}
	result, err := h.service.RecordInteraction(r.Context(), owner(r), r.PathValue("id"), app.InteractionInput{
		QuestionID:     req.QuestionID,
		SelectedOption: req.SelectedOption,
		Skip:           req.Skip,
		TimeMs:         req.TimeMs,
	})
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) completeSprint(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.service.CompleteSession(r.Context(), owner(r), id); err != nil {
		writeError(w, h.log, r, err)
		return
	}
	summary, err := h.service.GetSummary(r.Context(), owner(r), id)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) abandonSprint(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.AbandonSession(r.Context(), owner(r), r.PathValue("id"))
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) retrySprint(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.RetrySession(r.Context(), owner(r), r.PathValue("id"))
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *Handler) getSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.GetSummary(r.Context(), owner(r), r.PathValue("id"))
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) getReview(w http.ResponseWriter, r *http.Request) {
	review, err := h.service.GetReview(r.Context(), owner(r), r.PathValue("id"), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, review)
}

func owner(r *http.Request) string {
	id, _ := auth.FromContext(r.Context())
	return id.UserID
}
