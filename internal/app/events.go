package app

import (
	"sync"
	"time"

	"quizit-service/internal/domain"
)

// EventType names a live session event.
type EventType string

const (
	EventViolation EventType = "violation"
	EventSubmitted EventType = "submitted"
)

// SessionEvent is pushed to every live connection of a session.
type SessionEvent struct {
	Type           EventType          `json:"type"`
	QuizID         string             `json:"quizId"`
	ParticipantID  string             `json:"participantId"`
	TabSwitchCount int                `json:"tabSwitchCount,omitempty"`
	Verdict        Verdict            `json:"verdict,omitempty"`
	Submission     *domain.Submission `json:"submission,omitempty"`
	At             time.Time          `json:"at"`
}

func (e SessionEvent) Key() domain.SessionKey {
	return domain.SessionKey{ParticipantID: e.ParticipantID, QuizID: e.QuizID}
}

// Publisher receives session events from the services.
type Publisher interface {
	Publish(event SessionEvent)
}

type noopPublisher struct{}

func (noopPublisher) Publish(SessionEvent) {}

// EventHub fans session events out to in-process subscribers. A participant with two tabs
// open on this node sees an auto-submit triggered from either. Tabs held by other replicas
// only learn of it on their next write or completion check.
type EventHub struct {
	mu          sync.Mutex
	subscribers map[domain.SessionKey]map[chan SessionEvent]struct{}
}

func NewEventHub() *EventHub {
	return &EventHub{subscribers: make(map[domain.SessionKey]map[chan SessionEvent]struct{})}
}

// Subscribe returns a channel of events for one session.
// The caller must invoke the returned cancel function to avoid leaks.
func (h *EventHub) Subscribe(key domain.SessionKey) (<-chan SessionEvent, func()) {
	ch := make(chan SessionEvent, 8)

	h.mu.Lock()
	subs, ok := h.subscribers[key]
	if !ok {
		subs = make(map[chan SessionEvent]struct{})
		h.subscribers[key] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs, ok := h.subscribers[key]
		if !ok {
			return
		}
		if _, ok := subs[ch]; ok {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(h.subscribers, key)
		}
	}
	return ch, cancel
}

// Publish never blocks: a full subscriber loses its oldest pending event.
func (h *EventHub) Publish(event SessionEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers[event.Key()] {
		select {
		case ch <- event:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
}

// Subscribers reports how many live subscriptions a session has.
func (h *EventHub) Subscribers(key domain.SessionKey) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[key])
}
