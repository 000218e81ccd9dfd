package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"quizit-service/internal/app"
	"quizit-service/internal/domain"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ConnectionObserver is told about live connections opening and closing.
type ConnectionObserver interface {
	ConnectionOpened()
	ConnectionClosed()
}

type noopObserver struct{}

func (noopObserver) ConnectionOpened() {}
func (noopObserver) ConnectionClosed() {}

// WSConfig tunes the live session channel.
type WSConfig struct {
	// ViolationDebounce is the minimum spacing between counted violations on one connection.
	// Zero counts every report.
	ViolationDebounce time.Duration
	Observer          ConnectionObserver
	CheckOrigin       func(r *http.Request) bool
}

// WSHandler is the live session channel: the client streams heartbeats, progress, violations
// and its final submit over one socket and receives session events pushed by the server.
type WSHandler struct {
	sessions    *app.SessionService
	submissions *app.SubmissionCoordinator
	proctor     *app.Proctor
	events      *app.EventHub
	debounce    time.Duration
	observer    ConnectionObserver
	log         *zap.Logger
	upgrader    websocket.Upgrader
}

func NewWSHandler(sessions *app.SessionService, submissions *app.SubmissionCoordinator, proctor *app.Proctor, events *app.EventHub, cfg WSConfig, log *zap.Logger) *WSHandler {
	observer := cfg.Observer
	if observer == nil {
		observer = noopObserver{}
	}
	checkOrigin := cfg.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	return &WSHandler{
		sessions:    sessions,
		submissions: submissions,
		proctor:     proctor,
		events:      events,
		debounce:    cfg.ViolationDebounce,
		observer:    observer,
		log:         log.Named("ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type heartbeatPayload struct {
	RemainingSeconds int `json:"remainingSeconds"`
}

type progressPayload struct {
	Answers             []domain.SessionQuestion `json:"answers"`
	ActiveQuestionIndex *int                     `json:"activeQuestionIndex"`
	SkippedQuestions    []int                    `json:"skippedQuestions"`
}

type violationPayload struct {
	Participant *domain.ParticipantInfo `json:"participant"`
}

type submitPayload struct {
	Participant domain.ParticipantInfo `json:"participant"`
	Trigger     string                 `json:"trigger"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message   string `json:"message"`
	ErrorType string `json:"errorType"`
}

// ServeWS upgrades the request and binds the socket to one session, created on first connect.
// Query: participantId, quizId and optionally duration (minutes).
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	key := domain.SessionKey{ParticipantID: query.Get("participantId"), QuizID: query.Get("quizId")}
	if err := key.Validate(); err != nil {
		http.Error(w, "missing participantId or quizId", http.StatusBadRequest)
		return
	}
	duration, _ := strconv.Atoi(query.Get("duration"))

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := r.Context()
	session, err := h.sessions.CreateOrResume(ctx, key, duration)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: h.errorPayload(key, err)})
		return
	}

	updates, cancel := h.events.Subscribe(key)
	defer cancel()

	h.observer.ConnectionOpened()
	defer h.observer.ConnectionClosed()

	limit := rate.Inf
	if h.debounce > 0 {
		limit = rate.Every(h.debounce)
	}
	limiter := rate.NewLimiter(limit, 1)

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Only this goroutine writes to conn.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write failed", zap.String("session", key.String()), zap.Error(err))
				// unblocks the read loop
				_ = conn.Close()
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case event, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "event", Payload: event}:
				case <-writerDone:
					return
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	reply := func(typ string, payload any) {
		select {
		case send <- outboundMessage[any]{Type: typ, Payload: payload}:
		case <-writerDone:
		}
	}
	fail := func(err error) {
		reply("error", h.errorPayload(key, err))
	}

	reply("session", session)

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "heartbeat":
			var payload heartbeatPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				fail(domain.Validation("invalid heartbeat payload"))
				continue
			}
			if err := h.sessions.Heartbeat(ctx, key, payload.RemainingSeconds); err != nil {
				fail(err)
				continue
			}
			reply("heartbeat", heartbeatPayload{RemainingSeconds: max(payload.RemainingSeconds, 0)})
		case "progress":
			var payload progressPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				fail(domain.Validation("invalid progress payload"))
				continue
			}
			err := h.sessions.SaveProgress(ctx, app.Progress{
				Key:                 key,
				Answers:             payload.Answers,
				ActiveQuestionIndex: payload.ActiveQuestionIndex,
				SkippedQuestions:    payload.SkippedQuestions,
			})
			if err != nil {
				fail(err)
				continue
			}
			reply("progress", struct{}{})
		case "violation":
			var payload violationPayload
			if len(inbound.Payload) > 0 {
				if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
					fail(domain.Validation("invalid violation payload"))
					continue
				}
			}
			if !limiter.Allow() {
				// a blur and a visibility change from one tab switch arrive together
				reply("violation_ignored", struct{}{})
				continue
			}
			outcome, err := h.proctor.ReportViolation(ctx, key, payload.Participant)
			if err != nil {
				fail(err)
				continue
			}
			reply("violation", outcome)
		case "submit":
			var payload submitPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				fail(domain.Validation("invalid submit payload"))
				continue
			}
			submission, err := h.submissions.Submit(ctx, app.SubmitRequest{
				Key:         key,
				Participant: payload.Participant,
				Trigger:     domain.ParseTrigger(payload.Trigger),
			})
			if err != nil {
				fail(err)
				continue
			}
			reply("submitted", submission)
		default:
			fail(domain.Validation("unsupported message type %q", inbound.Type))
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) errorPayload(key domain.SessionKey, err error) errorPayload {
	kind := domain.KindOf(err)
	if kind == domain.KindInternal {
		h.log.Error("ws request failed", zap.String("session", key.String()), zap.Error(err))
		return errorPayload{Message: "internal error", ErrorType: kind.String()}
	}
	return errorPayload{Message: err.Error(), ErrorType: kind.String()}
}
