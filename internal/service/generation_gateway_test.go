package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-interview-api/pkg/ai"
)

type stubGenerator struct {
	questionsFn func(ctx context.Context, input ai.QuestionRequest) ([]ai.GeneratedQuestion, error)
	gradeFn     func(ctx context.Context, input ai.GradeRequest) (ai.Feedback, error)
	summarizeFn func(ctx context.Context, input ai.SummaryRequest) (ai.Summary, error)

	questionCalls  atomic.Int32
	gradeCalls     atomic.Int32
	summarizeCalls atomic.Int32
}

func (s *stubGenerator) GenerateQuestions(ctx context.Context, input ai.QuestionRequest) ([]ai.GeneratedQuestion, error) {
	s.questionCalls.Add(1)
	if s.questionsFn != nil {
		return s.questionsFn(ctx, input)
	}
	questions := make([]ai.GeneratedQuestion, 0, input.Count)
	for i := 0; i < input.Count; i++ {
		questions = append(questions, ai.GeneratedQuestion{
			Text:     fmt.Sprintf("Question %d about %s", i+1, input.JobTitle),
			Category: "technical",
		})
	}
	return questions, nil
}

func (s *stubGenerator) GradeAnswer(ctx context.Context, input ai.GradeRequest) (ai.Feedback, error) {
	s.gradeCalls.Add(1)
	if s.gradeFn != nil {
		return s.gradeFn(ctx, input)
	}
	return ai.Feedback{Score: ai.Score(7), Strengths: []string{"clear"}, Weaknesses: []string{"brief"}, Suggestions: []string{"add numbers"}}, nil
}

func (s *stubGenerator) Summarize(ctx context.Context, input ai.SummaryRequest) (ai.Summary, error) {
	s.summarizeCalls.Add(1)
	if s.summarizeFn != nil {
		return s.summarizeFn(ctx, input)
	}
	return ai.Summary{
		Summary:         fmt.Sprintf("Average %.1f for %s", input.AverageScore, input.JobTitle),
		TopStrengths:    []string{"communication"},
		TopImprovements: []string{"depth"},
		Recommendations: []string{"practice system design"},
	}, nil
}

func newTestGateway(generator ai.Generator) *GenerationGateway {
	return NewGenerationGateway(generator, GenerationGatewayConfig{Timeout: time.Second, MaxAttempts: 2}, zerolog.Nop())
}

func TestGenerationGatewayQuestionsTruncatesAndDefaultsCategory(t *testing.T) {
	generator := &stubGenerator{questionsFn: func(ctx context.Context, input ai.QuestionRequest) ([]ai.GeneratedQuestion, error) {
		return []ai.GeneratedQuestion{
			{Text: " <b>Why Go?</b> ", Category: ""},
			{Text: "Describe a conflict", Category: "Behavioral"},
			{Text: "extra", Category: "technical"},
		}, nil
	}}
	gateway := newTestGateway(generator)

	questions, err := gateway.GenerateQuestions(context.Background(), "Backend", "Go", 2)
	require.NoError(t, err)
	require.Len(t, questions, 2)
	require.Equal(t, "Why Go?", questions[0].Text)
	require.Equal(t, "general", questions[0].Category)
	require.Equal(t, "behavioral", questions[1].Category)
}

func TestGenerationGatewayQuestionsRejectsShortBank(t *testing.T) {
	generator := &stubGenerator{questionsFn: func(ctx context.Context, input ai.QuestionRequest) ([]ai.GeneratedQuestion, error) {
		return []ai.GeneratedQuestion{{Text: "only one"}}, nil
	}}
	gateway := newTestGateway(generator)

	_, err := gateway.GenerateQuestions(context.Background(), "Backend", "Go", 3)
	require.True(t, errors.Is(err, ErrMalformedGeneration))
	require.EqualValues(t, 2, generator.questionCalls.Load(), "malformed replies are retried")
}

func TestGenerationGatewayQuestionsRejectsBlankText(t *testing.T) {
	generator := &stubGenerator{questionsFn: func(ctx context.Context, input ai.QuestionRequest) ([]ai.GeneratedQuestion, error) {
		return []ai.GeneratedQuestion{{Text: "fine"}, {Text: "<script></script>  "}}, nil
	}}
	gateway := newTestGateway(generator)

	_, err := gateway.GenerateQuestions(context.Background(), "Backend", "Go", 2)
	require.True(t, errors.Is(err, ErrMalformedGeneration))
}

func TestGenerationGatewayRetriesTransientFailure(t *testing.T) {
	generator := &stubGenerator{}
	generator.gradeFn = func(ctx context.Context, input ai.GradeRequest) (ai.Feedback, error) {
		if generator.gradeCalls.Load() == 1 {
			return ai.Feedback{}, errors.New("connection reset")
		}
		return ai.Feedback{Score: ai.Score(9), Strengths: []string{"depth", "  "}}, nil
	}
	gateway := newTestGateway(generator)

	feedback, err := gateway.GradeAnswer(context.Background(), ai.GradeRequest{Question: "q", Answer: "a"})
	require.NoError(t, err)
	require.Equal(t, 9.0, *feedback.Score)
	require.Equal(t, []string{"depth"}, feedback.Strengths)
	require.NotNil(t, feedback.Weaknesses)
	require.EqualValues(t, 2, generator.gradeCalls.Load())
}

func TestGenerationGatewayGradeRejectsOutOfRangeScore(t *testing.T) {
	for _, score := range []float64{-1, 10.5, math.NaN()} {
		generator := &stubGenerator{gradeFn: func(ctx context.Context, input ai.GradeRequest) (ai.Feedback, error) {
			return ai.Feedback{Score: ai.Score(score)}, nil
		}}
		gateway := newTestGateway(generator)

		_, err := gateway.GradeAnswer(context.Background(), ai.GradeRequest{})
		require.True(t, errors.Is(err, ErrMalformedGeneration), "score %v", score)
	}
}

func TestGenerationGatewayTimeoutIsUnavailable(t *testing.T) {
	generator := &stubGenerator{summarizeFn: func(ctx context.Context, input ai.SummaryRequest) (ai.Summary, error) {
		<-ctx.Done()
		return ai.Summary{}, ctx.Err()
	}}
	gateway := NewGenerationGateway(generator, GenerationGatewayConfig{Timeout: 20 * time.Millisecond, MaxAttempts: 1}, zerolog.Nop())

	_, err := gateway.Summarize(context.Background(), ai.SummaryRequest{})
	require.True(t, errors.Is(err, ErrGenerationUnavailable))
	require.False(t, errors.Is(err, ErrMalformedGeneration))
}

func TestGenerationGatewaySummaryRequiresText(t *testing.T) {
	generator := &stubGenerator{summarizeFn: func(ctx context.Context, input ai.SummaryRequest) (ai.Summary, error) {
		return ai.Summary{Summary: "   "}, nil
	}}
	gateway := newTestGateway(generator)

	_, err := gateway.Summarize(context.Background(), ai.SummaryRequest{})
	require.True(t, errors.Is(err, ErrMalformedGeneration))
}

func TestGenerationGatewayWithoutGenerator(t *testing.T) {
	gateway := newTestGateway(nil)

	_, err := gateway.GenerateQuestions(context.Background(), "Backend", "Go", 3)
	require.True(t, errors.Is(err, ErrGenerationUnavailable))
}

func TestGenerationGatewayGradeRequiresScore(t *testing.T) {
	generator := &stubGenerator{gradeFn: func(ctx context.Context, input ai.GradeRequest) (ai.Feedback, error) {
		var feedback ai.Feedback
		err := json.Unmarshal([]byte(`{"feedback":"nice answer","strengths":["ok"]}`), &feedback)
		return feedback, err
	}}
	gateway := newTestGateway(generator)

	_, err := gateway.GradeAnswer(context.Background(), ai.GradeRequest{Question: "q", Answer: "a"})
	require.True(t, errors.Is(err, ErrMalformedGeneration))
}

func TestPlainTextStripsEncodedMarkup(t *testing.T) {
	policy := bluemonday.StrictPolicy()
	cases := map[string]string{
		"<b>Design</b> a cache":                                      "Design a cache",
		"Tom's R&D team":                                             "Tom's R&D team",
		"&lt;b&gt;bold&lt;/b&gt; move":                               "bold move",
		"&amp;lt;i&amp;gt;nested&amp;lt;/i&amp;gt; encoding":         "nested encoding",
		"  &lt;script&gt;alert(1)&lt;/script&gt; Describe a project": "Describe a project",
	}

	for input, expected := range cases {
		cleaned := plainText(policy, input)
		require.NotContains(t, cleaned, "<", "input %q", input)
		require.Contains(t, cleaned, expected, "input %q", input)
	}
}

func TestGenerationGatewayStripsEncodedMarkupFromQuestions(t *testing.T) {
	generator := &stubGenerator{questionsFn: func(ctx context.Context, input ai.QuestionRequest) ([]ai.GeneratedQuestion, error) {
		return []ai.GeneratedQuestion{{Text: "&lt;script&gt;alert(1)&lt;/script&gt; Describe a project", Category: "Technical"}}, nil
	}}
	gateway := newTestGateway(generator)

	questions, err := gateway.GenerateQuestions(context.Background(), "Backend", "Go", 1)
	require.NoError(t, err)
	require.NotContains(t, questions[0].Text, "<script>")
	require.Contains(t, questions[0].Text, "Describe a project")
}
