package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"career-check-service/internal/app"
	"career-check-service/internal/domain"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/gorilla/websocket"
)

const (
	sessionIDKey     = "sid"
	defaultWriteWait = 10 * time.Second
)

type WSHandler struct {
	service     *app.CareerService
	cookies     sessions.Store
	cookieName  string
	defaultBank string
	writeWait   time.Duration
	upgrader    websocket.Upgrader
}

func NewWSHandler(service *app.CareerService, cookies sessions.Store, cookieName, defaultBank string) *WSHandler {
	return &WSHandler{
		service:     service,
		cookies:     cookies,
		cookieName:  cookieName,
		defaultBank: defaultBank,
		writeWait:   defaultWriteWait,
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
	Value string `json:"value"`
	Index *int   `json:"index,omitempty"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and binds them to the caller's
// career check session. The session ID lives in a signed cookie, so a page
// reload reattaches to the same run.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	bankID := r.URL.Query().Get("bank")
	if bankID == "" {
		bankID = h.defaultBank
	}

	sessionID, header, err := h.sessionID(w, r)
	if err != nil {
		log.Printf("session cookie save failed: %v", err)
		http.Error(w, "could not establish session", http.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, header)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	if _, err := h.service.Open(ctx, sessionID, bankID); err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: toErrorPayload(err)})
		return
	}

	updates, cancel, err := h.service.Subscribe(ctx, sessionID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: toErrorPayload(err)})
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Single writer: gorilla connections do not support concurrent writes.
	go func() {
		defer close(writerDone)
		for msg := range send {
			_ = conn.SetWriteDeadline(time.Now().Add(h.writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				// Unblocks the read loop.
				_ = conn.Close()
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
				case send <- outboundMessage[any]{Type: "view", Payload: update}:
				case <-closeSignals:
					return
				case <-writerDone:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	// enqueue reports false once the writer has stopped.
	enqueue := func(msg outboundMessage[any]) bool {
		select {
		case send <- msg:
			return true
		case <-writerDone:
			return false
		}
	}

	// Inbound messages are handled one at a time, so answers apply in arrival order.
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if !h.handle(ctx, sessionID, inbound, enqueue) {
			break
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// handle applies one inbound message and queues the replies. It returns false
// when the connection can no longer be written to.
func (h *WSHandler) handle(ctx context.Context, sessionID string, inbound inboundMessage, enqueue func(outboundMessage[any]) bool) bool {
	var err error
	switch inbound.Type {
	case "start":
		_, err = h.service.Start(ctx, sessionID)
	case "retry":
		_, err = h.service.Retry(ctx, sessionID)
	case "back":
		_, err = h.service.BackToLanding(ctx, sessionID)
	case "answer":
		var payload answerPayload
		if jsonErr := json.Unmarshal(inbound.Payload, &payload); jsonErr != nil {
			return enqueue(outboundMessage[any]{Type: "error", Payload: errorPayload{Code: "bad_request", Message: "invalid answer payload"}})
		}
		value, parseErr := domain.ParseAnswer(payload.Value)
		if parseErr != nil {
			err = parseErr
			break
		}
		_, err = h.service.Answer(ctx, sessionID, value, payload.Index)
	case "view":
		var view domain.View
		view, err = h.service.View(ctx, sessionID)
		if err == nil {
			return enqueue(outboundMessage[any]{Type: "view", Payload: view})
		}
	default:
		return enqueue(outboundMessage[any]{Type: "error", Payload: errorPayload{Code: "bad_request", Message: "unsupported message type"}})
	}
	if err != nil {
		return enqueue(outboundMessage[any]{Type: "error", Payload: toErrorPayload(err)})
	}
	return true
}

// sessionID reads the session ID from the cookie, minting one on first visit.
// The returned header carries Set-Cookie for the upgrade response.
func (h *WSHandler) sessionID(w http.ResponseWriter, r *http.Request) (string, http.Header, error) {
	// A cookie that fails to decode still yields a fresh session.
	sess, _ := h.cookies.Get(r, h.cookieName)
	if id, ok := sess.Values[sessionIDKey].(string); ok && id != "" {
		return id, nil, nil
	}

	id := uuid.NewString()
	sess.Values[sessionIDKey] = id
	if err := sess.Save(r, w); err != nil {
		return "", nil, err
	}
	header := http.Header{}
	for _, cookie := range w.Header().Values("Set-Cookie") {
		header.Add("Set-Cookie", cookie)
	}
	return id, header, nil
}

func toErrorPayload(err error) errorPayload {
	code := "error"
	switch {
	case errors.Is(err, domain.ErrInvalidTransition):
		code = "invalid_transition"
	case errors.Is(err, domain.ErrInvalidAnswer):
		code = "invalid_answer"
	case errors.Is(err, domain.ErrSessionNotFound):
		code = "session_not_found"
	case errors.Is(err, domain.ErrBankNotFound):
		code = "bank_not_found"
	case errors.Is(err, domain.ErrIndexOutOfRange):
		code = "session_reset"
	}
	return errorPayload{Code: code, Message: err.Error()}
}
