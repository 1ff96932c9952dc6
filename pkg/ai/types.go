package ai

import (
	"context"
	"errors"
)

// ErrMalformedResponse indicates the model replied with content that could not be decoded.
var ErrMalformedResponse = errors.New("malformed generation response")

// QuestionRequest asks for interview questions tailored to a job posting.
type QuestionRequest struct {
	JobTitle       string
	JobDescription string
	Count          int
}

// GeneratedQuestion is a single question returned by the generator.
type GeneratedQuestion struct {
	Text     string `json:"text"`
	Category string `json:"category"`
}

// GradeRequest contains everything needed to grade one answer.
type GradeRequest struct {
	JobTitle       string
	JobDescription string
	Question       string
	Category       string
	Answer         string
}

// Feedback is the structured grading of one answer on a 0-10 scale. A nil Score means the
// model did not grade the answer.
type Feedback struct {
	Score       *float64 `json:"score"`
	Strengths   []string `json:"strengths"`
	Weaknesses  []string `json:"weaknesses"`
	Suggestions []string `json:"suggestions"`
}

// Score returns a pointer to v for building Feedback values.
func Score(v float64) *float64 {
	return &v
}

// GradedAnswer pairs a question and answer with the feedback it received.
type GradedAnswer struct {
	Question string
	Category string
	Answer   string
	Feedback Feedback
}

// SummaryRequest asks for the aggregate narrative of a finished session.
type SummaryRequest struct {
	JobTitle       string
	JobDescription string
	AverageScore   float64
	Readiness      string
	Answers        []GradedAnswer
}

// Summary is the aggregate prose returned for a finished session.
type Summary struct {
	Summary         string   `json:"overall_summary"`
	TopStrengths    []string `json:"top_strengths"`
	TopImprovements []string `json:"top_improvements"`
	Recommendations []string `json:"recommendations"`
}

// Generator is the external capability behind interview practice: it writes questions,
// grades answers and summarizes finished sessions.
type Generator interface {
	GenerateQuestions(ctx context.Context, input QuestionRequest) ([]GeneratedQuestion, error)
	GradeAnswer(ctx context.Context, input GradeRequest) (Feedback, error)
	Summarize(ctx context.Context, input SummaryRequest) (Summary, error)
}
