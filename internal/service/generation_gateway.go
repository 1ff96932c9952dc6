package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"math"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-interview-api/internal/models"
	"github.com/noah-isme/gema-interview-api/internal/observability"
	"github.com/noah-isme/gema-interview-api/pkg/ai"
)

// Score bounds for per-question feedback.
const (
	MinFeedbackScore = 0.0
	MaxFeedbackScore = 10.0
)

// GenerationGatewayConfig bounds every call to the generation backend.
type GenerationGatewayConfig struct {
	Timeout      time.Duration
	MaxAttempts  int
	RetryBackoff time.Duration
}

// GenerationGateway is the only path from the interview engine to the generation backend.
// It applies timeouts and retries and rejects malformed output before it reaches storage.
type GenerationGateway struct {
	generator ai.Generator
	config    GenerationGatewayConfig
	sanitizer *bluemonday.Policy
	tracer    trace.Tracer
	logger    zerolog.Logger
}

// NewGenerationGateway wraps the generator. A nil generator makes every call fail with ErrGenerationUnavailable.
func NewGenerationGateway(generator ai.Generator, cfg GenerationGatewayConfig, logger zerolog.Logger) *GenerationGateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.RetryBackoff < 0 {
		cfg.RetryBackoff = 0
	}

	return &GenerationGateway{
		generator: generator,
		config:    cfg,
		sanitizer: bluemonday.StrictPolicy(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-interview-api/internal/service/generation"),
		logger:    logger.With().Str("component", "generation_gateway").Logger(),
	}
}

// GenerateQuestions returns exactly count validated questions.
func (g *GenerationGateway) GenerateQuestions(ctx context.Context, jobTitle, jobDescription string, count int) ([]ai.GeneratedQuestion, error) {
	var questions []ai.GeneratedQuestion
	err := g.call(ctx, "questions", func(callCtx context.Context) error {
		generated, err := g.generator.GenerateQuestions(callCtx, ai.QuestionRequest{
			JobTitle:       jobTitle,
			JobDescription: jobDescription,
			Count:          count,
		})
		if err != nil {
			return err
		}

		cleaned, err := g.cleanQuestions(generated, count)
		if err != nil {
			return err
		}
		questions = cleaned
		return nil
	})
	if err != nil {
		return nil, err
	}
	return questions, nil
}

// GradeAnswer returns validated feedback for a single answer.
func (g *GenerationGateway) GradeAnswer(ctx context.Context, input ai.GradeRequest) (ai.Feedback, error) {
	var feedback ai.Feedback
	err := g.call(ctx, "grade", func(callCtx context.Context) error {
		graded, err := g.generator.GradeAnswer(callCtx, input)
		if err != nil {
			return err
		}

		cleaned, err := g.cleanFeedback(graded)
		if err != nil {
			return err
		}
		feedback = cleaned
		return nil
	})
	if err != nil {
		return ai.Feedback{}, err
	}
	return feedback, nil
}

// Summarize returns the validated aggregate narrative for a finished session.
func (g *GenerationGateway) Summarize(ctx context.Context, input ai.SummaryRequest) (ai.Summary, error) {
	var summary ai.Summary
	err := g.call(ctx, "summarize", func(callCtx context.Context) error {
		generated, err := g.generator.Summarize(callCtx, input)
		if err != nil {
			return err
		}

		text := g.cleanText(generated.Summary)
		if text == "" {
			return fmt.Errorf("%w: summary is empty", ai.ErrMalformedResponse)
		}
		summary = ai.Summary{
			Summary:         text,
			TopStrengths:    g.cleanStatements(generated.TopStrengths),
			TopImprovements: g.cleanStatements(generated.TopImprovements),
			Recommendations: g.cleanStatements(generated.Recommendations),
		}
		return nil
	})
	if err != nil {
		return ai.Summary{}, err
	}
	return summary, nil
}

func (g *GenerationGateway) call(parent context.Context, operation string, fn func(ctx context.Context) error) error {
	if g.generator == nil {
		observability.GenerationCalls().WithLabelValues(operation, "unconfigured").Inc()
		return fmt.Errorf("%w: generation backend not configured", ErrGenerationUnavailable)
	}

	ctx, span := g.tracer.Start(parent, "generation."+operation, trace.WithAttributes(
		attribute.String("generation.operation", operation),
		attribute.Int("generation.max_attempts", g.config.MaxAttempts),
	))
	defer span.End()

	var lastErr error
	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, g.config.Timeout)
		defer cancel()

		err := fn(callCtx)
		if err != nil {
			lastErr = err
			g.logger.Warn().
				Err(err).
				Str("operation", operation).
				Int("attempt", attempt).
				Bool("timed_out", errors.Is(callCtx.Err(), context.DeadlineExceeded)).
				Msg("generation attempt failed")
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(g.backOff()),
		backoff.WithMaxTries(uint(g.config.MaxAttempts)),
	)
	if err == nil {
		observability.GenerationCalls().WithLabelValues(operation, "success").Inc()
		return nil
	}
	if lastErr == nil {
		lastErr = err
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, lastErr.Error())

	if errors.Is(lastErr, ai.ErrMalformedResponse) {
		observability.GenerationCalls().WithLabelValues(operation, "malformed").Inc()
		return fmt.Errorf("%w: %v", ErrMalformedGeneration, lastErr)
	}
	observability.GenerationCalls().WithLabelValues(operation, "unavailable").Inc()
	return fmt.Errorf("%w: %v", ErrGenerationUnavailable, lastErr)
}

// backOff spaces retries exponentially from RetryBackoff, capped at the per-attempt timeout.
func (g *GenerationGateway) backOff() backoff.BackOff {
	if g.config.RetryBackoff <= 0 {
		return &backoff.ZeroBackOff{}
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = g.config.RetryBackoff
	policy.MaxInterval = g.config.Timeout
	return policy
}

func (g *GenerationGateway) cleanQuestions(generated []ai.GeneratedQuestion, count int) ([]ai.GeneratedQuestion, error) {
	if len(generated) < count {
		return nil, fmt.Errorf("%w: expected %d questions, got %d", ai.ErrMalformedResponse, count, len(generated))
	}

	questions := make([]ai.GeneratedQuestion, 0, count)
	for idx, question := range generated[:count] {
		text := g.cleanText(question.Text)
		if text == "" {
			return nil, fmt.Errorf("%w: question %d has no text", ai.ErrMalformedResponse, idx)
		}

		category := strings.ToLower(g.cleanText(question.Category))
		if category == "" {
			category = models.DefaultQuestionCategory
		}

		questions = append(questions, ai.GeneratedQuestion{Text: text, Category: category})
	}

	return questions, nil
}

func (g *GenerationGateway) cleanFeedback(feedback ai.Feedback) (ai.Feedback, error) {
	if feedback.Score == nil {
		return ai.Feedback{}, fmt.Errorf("%w: feedback has no score", ai.ErrMalformedResponse)
	}
	score := *feedback.Score
	if math.IsNaN(score) || score < MinFeedbackScore || score > MaxFeedbackScore {
		return ai.Feedback{}, fmt.Errorf("%w: score %v outside [%.0f, %.0f]", ai.ErrMalformedResponse, score, MinFeedbackScore, MaxFeedbackScore)
	}

	return ai.Feedback{
		Score:       ai.Score(score),
		Strengths:   g.cleanStatements(feedback.Strengths),
		Weaknesses:  g.cleanStatements(feedback.Weaknesses),
		Suggestions: g.cleanStatements(feedback.Suggestions),
	}, nil
}

func (g *GenerationGateway) cleanStatements(items []string) []string {
	cleaned := make([]string, 0, len(items))
	for _, item := range items {
		if text := g.cleanText(item); text != "" {
			cleaned = append(cleaned, text)
		}
	}
	return cleaned
}

func (g *GenerationGateway) cleanText(value string) string {
	return plainText(g.sanitizer, value)
}

// sanitizeRounds bounds how many layers of entity encoding plainText peels off.
const sanitizeRounds = 8

// plainText strips markup and returns trimmed, unescaped text. Entities are decoded before
// sanitizing, and the pass repeats until the text is stable, so encoded markup never comes back live.
func plainText(policy *bluemonday.Policy, value string) string {
	text := value
	for round := 0; round < sanitizeRounds; round++ {
		next := html.UnescapeString(policy.Sanitize(html.UnescapeString(text)))
		if next == text {
			return strings.TrimSpace(text)
		}
		text = next
	}
	// still unstable: keep the escaped form
	return strings.TrimSpace(policy.Sanitize(text))
}
