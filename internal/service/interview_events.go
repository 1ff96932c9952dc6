package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-interview-api/internal/middleware"
)

// Interview lifecycle event types.
const (
	EventSessionStarted   = "interview.session_started"
	EventAnswerGraded     = "interview.answer_graded"
	EventSessionCompleted = "interview.session_completed"
)

// InterviewEvent is published whenever a session changes state.
type InterviewEvent struct {
	Type          string    `json:"type"`
	SessionID     uint      `json:"sessionId"`
	UserID        uint      `json:"userId"`
	QuestionID    uint      `json:"questionId,omitempty"`
	Score         *float64  `json:"score,omitempty"`
	Readiness     string    `json:"readiness,omitempty"`
	CorrelationID string    `json:"correlationId,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
	Source        string    `json:"source"`
}

// InterviewEventPublisher fans lifecycle events out to other services.
type InterviewEventPublisher interface {
	Publish(ctx context.Context, event InterviewEvent)
}

type natsInterviewEvents struct {
	publish func(subject string, data []byte) error
	subject string
	nodeID  string
	logger  zerolog.Logger
}

// NewInterviewEventPublisher publishes events on the given NATS subject. A nil connection disables publishing.
func NewInterviewEventPublisher(conn *nats.Conn, subject string, logger zerolog.Logger) InterviewEventPublisher {
	var publish func(string, []byte) error
	if conn != nil {
		publish = conn.Publish
	}
	return newInterviewEventPublisher(publish, subject, logger)
}

func newInterviewEventPublisher(publish func(string, []byte) error, subject string, logger zerolog.Logger) *natsInterviewEvents {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = "interview.events"
	}
	return &natsInterviewEvents{
		publish: publish,
		subject: subject,
		nodeID:  uuid.NewString(),
		logger:  logger.With().Str("component", "interview_events").Logger(),
	}
}

// Publish never fails the caller; lost events are logged.
func (p *natsInterviewEvents) Publish(ctx context.Context, event InterviewEvent) {
	if p.publish == nil {
		return
	}

	event.Source = p.nodeID
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if event.CorrelationID == "" {
		event.CorrelationID = middleware.CorrelationIDFromContext(ctx)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn().Err(err).Str("type", event.Type).Msg("failed to encode interview event")
		return
	}

	if err := p.publish(p.subject, payload); err != nil {
		p.logger.Warn().Err(err).Str("type", event.Type).Uint("session_id", event.SessionID).Msg("failed to publish interview event")
	}
}
