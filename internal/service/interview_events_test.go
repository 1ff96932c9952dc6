package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-interview-api/internal/middleware"
)

type recordingEvents struct {
	mu     sync.Mutex
	events []InterviewEvent
}

func (r *recordingEvents) Publish(ctx context.Context, event InterviewEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingEvents) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, 0, len(r.events))
	for _, event := range r.events {
		types = append(types, event.Type)
	}
	return types
}

func TestInterviewEventPublisherEncodesEvent(t *testing.T) {
	var subject string
	var payload []byte
	publisher := newInterviewEventPublisher(func(s string, data []byte) error {
		subject = s
		payload = data
		return nil
	}, "", zerolog.Nop())

	score := 7.5
	ctx := middleware.ContextWithCorrelation(context.Background(), "corr-1")
	publisher.Publish(ctx, InterviewEvent{Type: EventAnswerGraded, SessionID: 4, UserID: 9, QuestionID: 12, Score: &score})

	require.Equal(t, "interview.events", subject)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	require.Equal(t, EventAnswerGraded, decoded["type"])
	require.EqualValues(t, 4, decoded["sessionId"])
	require.EqualValues(t, 12, decoded["questionId"])
	require.EqualValues(t, 7.5, decoded["score"])
	require.Equal(t, "corr-1", decoded["correlationId"])
	require.NotEmpty(t, decoded["source"])
	require.NotEmpty(t, decoded["occurredAt"])
	require.NotContains(t, decoded, "readiness")
}

func TestInterviewEventPublisherSwallowsFailures(t *testing.T) {
	publisher := newInterviewEventPublisher(func(string, []byte) error {
		return errors.New("nats: connection closed")
	}, "interview.events", zerolog.Nop())

	require.NotPanics(t, func() {
		publisher.Publish(context.Background(), InterviewEvent{Type: EventSessionStarted, SessionID: 1})
	})
}

func TestInterviewEventPublisherWithoutConnection(t *testing.T) {
	publisher := NewInterviewEventPublisher(nil, "interview.events", zerolog.Nop())
	require.NotPanics(t, func() {
		publisher.Publish(context.Background(), InterviewEvent{Type: EventSessionStarted})
	})
}
