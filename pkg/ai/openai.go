package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	aiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "interview",
		Subsystem: "ai",
		Name:      "generation_duration_seconds",
		Help:      "Duration of generation requests",
	}, []string{"model", "operation"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "interview",
		Subsystem: "ai",
		Name:      "generation_failures_total",
		Help:      "Number of failed generation requests",
	}, []string{"model", "operation"})
)

const (
	operationQuestions = "questions"
	operationGrade     = "grade"
	operationSummarize = "summarize"
)

// OpenAIConfig defines configuration options for the OpenAI generator.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIGenerator implements Generator against the OpenAI chat completion API.
type OpenAIGenerator struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIGenerator builds a new generator using the provided configuration.
func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}

	tracer := otel.Tracer("github.com/noah-isme/gema-interview-api/pkg/ai/openai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	client := openai.NewClientWithConfig(config)

	return &OpenAIGenerator{
		client: client,
		cfg:    cfg,
		tracer: tracer,
		logger: logger.With().Str("component", "openai_generator").Logger(),
	}, nil
}

// GenerateQuestions asks the model for job specific interview questions.
func (g *OpenAIGenerator) GenerateQuestions(ctx context.Context, input QuestionRequest) ([]GeneratedQuestion, error) {
	content, err := g.complete(ctx, operationQuestions, questionSystemPrompt(), buildQuestionPrompt(input))
	if err != nil {
		return nil, err
	}
	return parseQuestionsResponse(content)
}

// GradeAnswer asks the model to grade one answer.
func (g *OpenAIGenerator) GradeAnswer(ctx context.Context, input GradeRequest) (Feedback, error) {
	content, err := g.complete(ctx, operationGrade, gradeSystemPrompt(), buildGradePrompt(input))
	if err != nil {
		return Feedback{}, err
	}
	return parseFeedbackResponse(content)
}

// Summarize asks the model for the session level narrative.
func (g *OpenAIGenerator) Summarize(ctx context.Context, input SummaryRequest) (Summary, error) {
	content, err := g.complete(ctx, operationSummarize, summarySystemPrompt(), buildSummaryPrompt(input))
	if err != nil {
		return Summary{}, err
	}
	return parseSummaryResponse(content)
}

func (g *OpenAIGenerator) complete(parent context.Context, operation, system, user string) (string, error) {
	ctx, span := g.tracer.Start(parent, "openai."+operation, trace.WithAttributes(
		attribute.String("model", g.cfg.Model),
		attribute.String("operation", operation),
	))
	defer span.End()

	start := time.Now()
	request := openai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: system,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: user,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	resp, err := g.client.CreateChatCompletion(ctx, request)
	aiDuration.WithLabelValues(g.cfg.Model, operation).Observe(time.Since(start).Seconds())
	if err != nil {
		aiFailures.WithLabelValues(g.cfg.Model, operation).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("openai %s: %w", operation, err)
	}

	if len(resp.Choices) == 0 {
		err := fmt.Errorf("%w: no choices returned from openai", ErrMalformedResponse)
		aiFailures.WithLabelValues(g.cfg.Model, operation).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	g.logger.Debug().
		Str("operation", operation).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Msg("generation completed")

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func questionSystemPrompt() string {
	return "You are an experienced hiring manager preparing a mock interview. Respond with a JSON object " +
		`{"questions":[{"text":string,"category":string}]}. Categories are short lowercase tags such as ` +
		"behavioral, technical, situational or role-specific. Ask one question per entry."
}

func gradeSystemPrompt() string {
	return "You are an interview coach grading a candidate's answer. Respond with a JSON object " +
		`{"score":number,"strengths":[string],"weaknesses":[string],"suggestions":[string]}. ` +
		"The score is between 0 and 10 inclusive. Be specific and constructive."
}

func summarySystemPrompt() string {
	return "You are an interview coach summarizing a finished mock interview. Respond with a JSON object " +
		`{"overall_summary":string,"top_strengths":[string],"top_improvements":[string],"recommendations":[string]}.`
}

func buildQuestionPrompt(input QuestionRequest) string {
	builder := strings.Builder{}
	builder.WriteString("# Role\n")
	builder.WriteString(input.JobTitle)
	builder.WriteString("\n\n## Job Description\n")
	builder.WriteString(input.JobDescription)
	builder.WriteString("\n\n## Number of Questions\n")
	builder.WriteString(strconv.Itoa(input.Count))
	builder.WriteString("\nMix behavioral and technical questions relevant to the role. Return JSON.")
	return builder.String()
}

func buildGradePrompt(input GradeRequest) string {
	builder := strings.Builder{}
	builder.WriteString("# Role\n")
	builder.WriteString(input.JobTitle)
	builder.WriteString("\n\n## Job Description\n")
	builder.WriteString(input.JobDescription)
	builder.WriteString("\n\n## Question")
	if input.Category != "" {
		builder.WriteString(" (")
		builder.WriteString(input.Category)
		builder.WriteString(")")
	}
	builder.WriteString("\n")
	builder.WriteString(input.Question)
	builder.WriteString("\n\n## Candidate Answer\n")
	builder.WriteString(input.Answer)
	builder.WriteString("\nReturn JSON.")
	return builder.String()
}

func buildSummaryPrompt(input SummaryRequest) string {
	builder := strings.Builder{}
	builder.WriteString("# Role\n")
	builder.WriteString(input.JobTitle)
	builder.WriteString("\n\n## Job Description\n")
	builder.WriteString(input.JobDescription)
	builder.WriteString(fmt.Sprintf("\n\n## Result\nAverage score %.1f/10, readiness %s\n", input.AverageScore, input.Readiness))
	for idx, answer := range input.Answers {
		builder.WriteString(fmt.Sprintf("\n### Question %d (%s)\n%s\n", idx+1, answer.Category, answer.Question))
		builder.WriteString("Answer: ")
		builder.WriteString(answer.Answer)
		builder.WriteString("\n")
		if answer.Feedback.Score != nil {
			builder.WriteString(fmt.Sprintf("Score: %.1f\n", *answer.Feedback.Score))
		}
		if len(answer.Feedback.Strengths) > 0 {
			builder.WriteString("Strengths: ")
			builder.WriteString(strings.Join(answer.Feedback.Strengths, "; "))
			builder.WriteString("\n")
		}
		if len(answer.Feedback.Weaknesses) > 0 {
			builder.WriteString("Weaknesses: ")
			builder.WriteString(strings.Join(answer.Feedback.Weaknesses, "; "))
			builder.WriteString("\n")
		}
	}
	builder.WriteString("\nReturn JSON.")
	return builder.String()
}

func parseQuestionsResponse(content string) ([]GeneratedQuestion, error) {
	var data struct {
		Questions []GeneratedQuestion `json:"questions"`
	}
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		return nil, fmt.Errorf("%w: parse questions json: %v", ErrMalformedResponse, err)
	}
	return data.Questions, nil
}

func parseFeedbackResponse(content string) (Feedback, error) {
	var data Feedback
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		return Feedback{}, fmt.Errorf("%w: parse feedback json: %v", ErrMalformedResponse, err)
	}
	if data.Score == nil {
		return Feedback{}, fmt.Errorf("%w: feedback has no score", ErrMalformedResponse)
	}
	return data, nil
}

func parseSummaryResponse(content string) (Summary, error) {
	var data Summary
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		return Summary{}, fmt.Errorf("%w: parse summary json: %v", ErrMalformedResponse, err)
	}
	return data, nil
}
