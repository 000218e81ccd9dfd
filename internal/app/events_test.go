package app_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"quizit-service/internal/app"
	"quizit-service/internal/domain"
	"quizit-service/internal/infra/memory"
)

func TestEventHubSubscribeAndCancel(t *testing.T) {
	hub := app.NewEventHub()
	events, cancel := hub.Subscribe(key("p1"))
	other, cancelOther := hub.Subscribe(key("p2"))
	defer cancelOther()

	hub.Publish(app.SessionEvent{Type: app.EventViolation, QuizID: quizID, ParticipantID: "p1", TabSwitchCount: 1})

	select {
	case ev := <-events:
		if ev.Type != app.EventViolation || ev.TabSwitchCount != 1 {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected event")
	}
	select {
	case ev := <-other:
		t.Fatalf("event leaked to another session: %+v", ev)
	default:
	}

	cancel()
	cancel()
	if _, ok := <-events; ok {
		t.Fatalf("expected channel closed after cancel")
	}
	if hub.Subscribers(key("p1")) != 0 {
		t.Fatalf("expected subscription removed")
	}
}

func TestEventHubDropsOldestForSlowSubscriber(t *testing.T) {
	hub := app.NewEventHub()
	events, cancel := hub.Subscribe(key("p1"))
	defer cancel()

	for i := 1; i <= 20; i++ {
		hub.Publish(app.SessionEvent{Type: app.EventViolation, QuizID: quizID, ParticipantID: "p1", TabSwitchCount: i})
	}
	var last app.SessionEvent
	for len(events) > 0 {
		last = <-events
	}
	if last.TabSwitchCount != 20 {
		t.Fatalf("expected newest event kept, got %d", last.TabSwitchCount)
	}
}

func TestAutoSubmitPublishesEvents(t *testing.T) {
	hub := app.NewEventHub()
	catalog := memory.NewQuizCatalog(map[string]domain.Quiz{quizID: sampleQuiz()})
	quizzes := memory.NewQuizRepository(catalog, time.Minute)
	sessions := memory.NewSessionStore()
	submissions := memory.NewSubmissionStore()
	service := app.NewSessionService(sessions, submissions, quizzes, app.NewQuestionSelector(rand.New(rand.NewSource(1))))
	coordinator := app.NewSubmissionCoordinator(sessions, submissions, quizzes, 0, app.WithEvents(hub))
	proctor := app.NewProctor(service, coordinator, app.ProctoringPolicy{MaxWarnings: 1}, app.WithEvents(hub))

	ctx := context.Background()
	if _, err := service.CreateOrResume(ctx, key("p1"), 30); err != nil {
		t.Fatalf("create: %v", err)
	}
	events, cancel := hub.Subscribe(key("p1"))
	defer cancel()

	info := participantInfo("R1")
	for i := 0; i < 2; i++ {
		if _, err := proctor.ReportViolation(ctx, key("p1"), &info); err != nil {
			t.Fatalf("violation: %v", err)
		}
	}

	var got []app.EventType
	for len(events) > 0 {
		got = append(got, (<-events).Type)
	}
	want := []app.EventType{app.EventViolation, app.EventViolation, app.EventSubmitted}
	if len(got) != len(want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected events %v, got %v", want, got)
		}
	}
}
