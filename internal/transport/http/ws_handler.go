package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"sprint-service/internal/app"
	"sprint-service/internal/domain"
	"sprint-service/internal/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Presence guards a sprint against being driven from two sockets at once.
type Presence interface {
	Acquire(ctx context.Context, sessionID, connID string) (bool, error)
	Refresh(ctx context.Context, sessionID, connID string) error
	Release(ctx context.Context, sessionID, connID string) error
}

type WSHandler struct {
	service      *app.SprintService
	log          *logger.Logger
	presence     Presence
	refreshEvery time.Duration
	upgrader     websocket.Upgrader
}

func NewWSHandler(service *app.SprintService, log *logger.Logger, presence Presence, refreshEvery time.Duration) *WSHandler {
	if refreshEvery <= 0 {
		refreshEvery = 30 * time.Second
	}
	return &WSHandler{
		service:      service,
		log:          log.With("component", "ws"),
		presence:     presence,
		refreshEvery: refreshEvery,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionID string `json:"questionId"`
	OptionID   string `json:"optionId"`
	TimeMs     int64  `json:"timeMs"`
}

type skipPayload struct {
	QuestionID string `json:"questionId"`
	TimeMs     int64  `json:"timeMs"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// ServeWS upgrades an authenticated request and drives one sprint over the socket.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := owner(r)
	sessionID := r.PathValue("id")

	// ownership and existence are checked before the upgrade so failures are plain HTTP errors
	view, err := h.service.GetSession(ctx, user, sessionID)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}

	connID := uuid.NewString()
	if h.presence != nil {
		ok, err := h.presence.Acquire(ctx, sessionID, connID)
		if err != nil {
			writeError(w, h.log, r, err)
			return
		}
		if !ok {
			writeJSON(w, http.StatusConflict, errorBody{Error: domain.KindState, Message: "sprint already open on another connection"})
			return
		}
		defer func() {
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			if err := h.presence.Release(releaseCtx, sessionID, connID); err != nil {
				h.log.Warn("release presence failed", "session_id", sessionID, "error", err)
			}
		}()
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	refreshDone := make(chan struct{})

	// the writer goroutine is the only one touching conn for writes
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write error", "session_id", sessionID, "error", err)
				_ = conn.Close()
				// keep draining so the reader never blocks on a full channel
				for range send {
				}
				return
			}
		}
	}()

	go func() {
		defer close(refreshDone)
		if h.presence == nil {
			return
		}
		ticker := time.NewTicker(h.refreshEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := h.presence.Refresh(ctx, sessionID, connID); err != nil {
					h.log.Warn("refresh presence failed", "session_id", sessionID, "error", err)
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "session", Payload: view}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		send <- h.handle(ctx, user, sessionID, inbound)
	}

	close(closeSignals)
	<-refreshDone
	close(send)
	<-writerDone
}

func (h *WSHandler) handle(ctx context.Context, user, sessionID string, inbound inboundMessage) outboundMessage[any] {
	switch inbound.Type {
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errorMessage(domain.ErrInvalidInteraction)
		}
		return h.record(ctx, user, sessionID, app.InteractionInput{
			QuestionID:     payload.QuestionID,
			SelectedOption: payload.OptionID,
			TimeMs:         payload.TimeMs,
		})
	case "skip":
		var payload skipPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errorMessage(domain.ErrInvalidInteraction)
		}
		return h.record(ctx, user, sessionID, app.InteractionInput{
			QuestionID: payload.QuestionID,
			Skip:       true,
			TimeMs:     payload.TimeMs,
		})
	case "complete":
		if _, err := h.service.CompleteSession(ctx, user, sessionID); err != nil {
			return h.failure(sessionID, err)
		}
		summary, err := h.service.GetSummary(ctx, user, sessionID)
		if err != nil {
			return h.failure(sessionID, err)
		}
		return outboundMessage[any]{Type: "summary", Payload: summary}
	default:
		return outboundMessage[any]{Type: "error", Payload: errorBody{Error: domain.KindValidation, Message: "unsupported message type"}}
	}
}

func (h *WSHandler) record(ctx context.Context, user, sessionID string, in app.InteractionInput) outboundMessage[any] {
	result, err := h.service.RecordInteraction(ctx, user, sessionID, in)
	if err != nil {
		return h.failure(sessionID, err)
	}
	return outboundMessage[any]{Type: "interactionResult", Payload: result}
}

func (h *WSHandler) failure(sessionID string, err error) outboundMessage[any] {
	if domain.KindOf(err) == domain.KindUpstream {
		h.log.Error("ws request failed", "session_id", sessionID, "error", err)
	}
	return errorMessage(err)
}

func errorMessage(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorFor(err)}
}
