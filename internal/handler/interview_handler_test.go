package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-interview-api/internal/dto"
	"github.com/noah-isme/gema-interview-api/internal/handler"
	"github.com/noah-isme/gema-interview-api/internal/middleware"
	"github.com/noah-isme/gema-interview-api/internal/service"
)

type mockInterviewService struct {
	err           error
	lastUserID    uint
	lastSessionID uint
	lastStart     dto.StartInterviewRequest
	lastAnswer    dto.SubmitAnswerRequest
}

func (m *mockInterviewService) StartSession(_ context.Context, userID uint, req dto.StartInterviewRequest) (dto.StartInterviewResponse, error) {
	m.lastUserID = userID
	m.lastStart = req
	if m.err != nil {
		return dto.StartInterviewResponse{}, m.err
	}
	return dto.StartInterviewResponse{SessionID: 11, JobTitle: req.JobTitle, TotalQuestions: req.NumQuestions, State: "in_progress"}, nil
}

func (m *mockInterviewService) ListSessions(_ context.Context, userID uint) ([]dto.InterviewSessionSummary, error) {
	m.lastUserID = userID
	return []dto.InterviewSessionSummary{}, m.err
}

func (m *mockInterviewService) GetQuestions(_ context.Context, userID, sessionID uint) (dto.InterviewQuestionsResponse, error) {
	m.lastUserID, m.lastSessionID = userID, sessionID
	return dto.InterviewQuestionsResponse{SessionID: sessionID}, m.err
}

func (m *mockInterviewService) SubmitAnswer(_ context.Context, userID, sessionID uint, req dto.SubmitAnswerRequest) (dto.AnswerFeedbackResponse, error) {
	m.lastUserID, m.lastSessionID = userID, sessionID
	m.lastAnswer = req
	if m.err != nil {
		return dto.AnswerFeedbackResponse{}, m.err
	}
	return dto.AnswerFeedbackResponse{QuestionID: req.QuestionID, Score: 8, Label: dto.FeedbackLabel(8)}, nil
}

func (m *mockInterviewService) ResumeSession(_ context.Context, userID, sessionID uint) (dto.InterviewResumeResponse, error) {
	m.lastUserID, m.lastSessionID = userID, sessionID
	return dto.InterviewResumeResponse{SessionID: sessionID}, m.err
}

func (m *mockInterviewService) GetOverallFeedback(_ context.Context, userID, sessionID uint) (dto.OverallFeedbackResponse, error) {
	m.lastUserID, m.lastSessionID = userID, sessionID
	return dto.OverallFeedbackResponse{SessionID: sessionID}, m.err
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Details map[string]any  `json:"details"`
}

func newInterviewApp(svc service.InterviewService, userID uint, generation ...fiber.Handler) *fiber.App {
	app := fiber.New()
	group := app.Group("/api/v1/interview", func(c *fiber.Ctx) error {
		if userID > 0 {
			c.Locals(middleware.UserIDLocal, userID)
		}
		return c.Next()
	})
	handler.NewInterviewHandler(svc, zerolog.New(io.Discard)).Register(group, generation...)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) (*http.Response, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		switch v := body.(type) {
		case string:
			reader = bytes.NewBufferString(v)
		default:
			payload, err := json.Marshal(v)
			require.NoError(t, err)
			reader = bytes.NewReader(payload)
		}
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var decoded envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	require.NoError(t, json.Unmarshal(raw, &decoded), string(raw))
	return resp, decoded
}

func TestInterviewHandlerStartCreatesSession(t *testing.T) {
	svc := &mockInterviewService{}
	app := newInterviewApp(svc, 5)

	resp, body := doJSON(t, app, http.MethodPost, "/api/v1/interview/start", map[string]interface{}{
		"job_title":       "Backend Engineer",
		"job_description": "Go and Postgres",
		"num_questions":   3,
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.True(t, body.Success)

	var started dto.StartInterviewResponse
	require.NoError(t, json.Unmarshal(body.Data, &started))
	require.Equal(t, uint(11), started.SessionID)
	require.Equal(t, uint(5), svc.lastUserID)
	require.Equal(t, 3, svc.lastStart.NumQuestions)
}

func TestInterviewHandlerRequiresUser(t *testing.T) {
	app := newInterviewApp(&mockInterviewService{}, 0)

	resp, body := doJSON(t, app, http.MethodGet, "/api/v1/interview/sessions", nil)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	require.False(t, body.Success)
}

func TestInterviewHandlerRejectsBadInput(t *testing.T) {
	app := newInterviewApp(&mockInterviewService{}, 5)

	resp, _ := doJSON(t, app, http.MethodPost, "/api/v1/interview/start", "{not json")
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, body := doJSON(t, app, http.MethodGet, "/api/v1/interview/abc/questions", nil)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "id", body.Details["field"])

	resp, _ = doJSON(t, app, http.MethodGet, "/api/v1/interview/0/resume", nil)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestInterviewHandlerSubmitAnswer(t *testing.T) {
	svc := &mockInterviewService{}
	app := newInterviewApp(svc, 5)

	resp, body := doJSON(t, app, http.MethodPost, "/api/v1/interview/42/answer", map[string]interface{}{
		"question_id": 7,
		"answer":      "I would shard by tenant",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, uint(42), svc.lastSessionID)
	require.Equal(t, uint(7), svc.lastAnswer.QuestionID)

	var feedback dto.AnswerFeedbackResponse
	require.NoError(t, json.Unmarshal(body.Data, &feedback))
	require.Equal(t, "Excellent", feedback.Label)
}

func TestInterviewHandlerErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{service.ValidationError{Field: "num_questions", Message: "must be one of 3, 5, 7, 10"}, fiber.StatusBadRequest},
		{service.ErrInterviewSessionNotFound, fiber.StatusNotFound},
		{service.ErrInterviewQuestionNotFound, fiber.StatusNotFound},
		{service.ErrAnswerConflict, fiber.StatusConflict},
		{service.ErrInterviewIncomplete, fiber.StatusConflict},
		{fmt.Errorf("%w: score 11", service.ErrMalformedGeneration), fiber.StatusBadGateway},
		{fmt.Errorf("%w: deadline exceeded", service.ErrGenerationUnavailable), fiber.StatusServiceUnavailable},
		{fmt.Errorf("%w: disk full", service.ErrPersistence), fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			app := newInterviewApp(&mockInterviewService{err: tc.err}, 5)
			resp, body := doJSON(t, app, http.MethodPost, "/api/v1/interview/start", map[string]interface{}{
				"job_title":       "SRE",
				"job_description": "Kubernetes",
				"num_questions":   4,
			})
			require.Equal(t, tc.status, resp.StatusCode)
			require.False(t, body.Success)
			require.NotEmpty(t, body.Message)
		})
	}
}

func TestInterviewHandlerValidationDetailsNameField(t *testing.T) {
	app := newInterviewApp(&mockInterviewService{err: service.ValidationError{Field: "answer", Message: "is required"}}, 5)

	resp, body := doJSON(t, app, http.MethodPost, "/api/v1/interview/3/answer", map[string]interface{}{"question_id": 1, "answer": ""})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "answer", body.Details["field"])
	require.Equal(t, "answer: is required", body.Message)
}

func TestInterviewHandlerGenerationMiddlewareScope(t *testing.T) {
	guarded := map[string]int{}
	counter := func(c *fiber.Ctx) error {
		guarded[c.Route().Path]++
		return c.Next()
	}
	app := newInterviewApp(&mockInterviewService{}, 5, counter)

	doJSON(t, app, http.MethodPost, "/api/v1/interview/start", map[string]interface{}{"job_title": "a", "job_description": "b", "num_questions": 3})
	doJSON(t, app, http.MethodPost, "/api/v1/interview/1/answer", map[string]interface{}{"question_id": 1, "answer": "x"})
	doJSON(t, app, http.MethodGet, "/api/v1/interview/1/feedback", nil)
	doJSON(t, app, http.MethodGet, "/api/v1/interview/1/resume", nil)
	doJSON(t, app, http.MethodGet, "/api/v1/interview/sessions", nil)

	require.Equal(t, map[string]int{
		"/api/v1/interview/start":      1,
		"/api/v1/interview/:id/answer": 1,
	}, guarded)
}
