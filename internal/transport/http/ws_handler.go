package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"quiz-coordinator/internal/domain"
	"quiz-coordinator/internal/session"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	factory  *session.Factory
	upgrader websocket.Upgrader
}

func NewWSHandler(factory *session.Factory) *WSHandler {
	return &WSHandler{
		factory: factory,
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
	QuestionIndex int    `json:"questionIndex"`
	Value         string `json:"value"`
}

type answerResult struct {
	QuestionIndex int    `json:"questionIndex"`
	Value         string `json:"value"`
	Correct       bool   `json:"correct"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// rejectionCode maps the coordinator's rejection results onto stable wire
// codes so the UI can show feedback without string-matching.
func rejectionCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrInvalidPhase):
		return "invalidPhase"
	case errors.Is(err, domain.ErrDuplicateAnswer):
		return "duplicateAnswer"
	case errors.Is(err, domain.ErrRoundMismatch):
		return "roundMismatch"
	case errors.Is(err, domain.ErrSessionNotFound):
		return "sessionNotFound"
	case errors.Is(err, domain.ErrQuestionSetNotFound):
		return "questionSetNotFound"
	}
	return "internal"
}

// ServeWS upgrades the request and runs one participant's client: it opens a
// coordinator, pumps snapshots out, and translates inbound commands into
// coordinator calls.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	userID := r.URL.Query().Get("userId")
	displayName := r.URL.Query().Get("name")
	if sessionID == "" || userID == "" || displayName == "" {
		http.Error(w, "missing sessionId, userId, or name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	coordinator, err := h.factory.Open(r.Context(), sessionID, userID, displayName)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Code: rejectionCode(err), Message: err.Error()}})
		return
	}
	defer coordinator.Close()

	heartbeatCtx, stopHeartbeat := context.WithCancel(context.Background())
	defer stopHeartbeat()
	go coordinator.RunHeartbeat(heartbeatCtx)

	updates, cancel := coordinator.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "state", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "joined", Payload: coordinator.Snapshot()}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "ready":
			if err := coordinator.MarkReady(); err != nil {
				send <- errorMessage(err)
			}
		case "start":
			if err := coordinator.StartSession(); err != nil {
				send <- errorMessage(err)
			}
		case "advance":
			if err := coordinator.AdvanceRound(r.Context()); err != nil {
				send <- errorMessage(err)
			}
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Code: "badPayload", Message: "invalid answer payload"}}
				continue
			}
			answer, err := coordinator.SubmitAnswer(payload.QuestionIndex, payload.Value)
			if err != nil {
				send <- errorMessage(err)
				continue
			}
			send <- outboundMessage[any]{Type: "answerResult", Payload: answerResult{
				QuestionIndex: answer.QuestionIndex,
				Value:         answer.SubmittedValue,
				Correct:       answer.IsCorrect,
			}}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Code: "badType", Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func errorMessage(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Code: rejectionCode(err), Message: err.Error()}}
}
