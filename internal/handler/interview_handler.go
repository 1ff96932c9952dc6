package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-interview-api/internal/dto"
	"github.com/noah-isme/gema-interview-api/internal/middleware"
	"github.com/noah-isme/gema-interview-api/internal/service"
	"github.com/noah-isme/gema-interview-api/internal/utils"
)

// InterviewHandler exposes practice session endpoints.
type InterviewHandler struct {
	service service.InterviewService
	logger  zerolog.Logger
}

// NewInterviewHandler constructs an interview handler.
func NewInterviewHandler(service service.InterviewService, logger zerolog.Logger) *InterviewHandler {
	return &InterviewHandler{
		service: service,
		logger:  logger.With().Str("component", "interview_handler").Logger(),
	}
}

// Register wires interview routes. The generation middlewares guard the endpoints that call the generation backend.
func (h *InterviewHandler) Register(router fiber.Router, generation ...fiber.Handler) {
	router.Post("/start", withMiddleware(generation, h.requireUser, h.start)...)
	router.Get("/sessions", h.requireUser, h.list)
	router.Get("/:id/questions", h.requireUser, h.questions)
	router.Post("/:id/answer", withMiddleware(generation, h.requireUser, h.answer)...)
	router.Get("/:id/feedback", h.requireUser, h.feedback)
	router.Get("/:id/resume", h.requireUser, h.resume)
}

func withMiddleware(middlewares []fiber.Handler, handlers ...fiber.Handler) []fiber.Handler {
	chain := make([]fiber.Handler, 0, len(middlewares)+len(handlers))
	chain = append(chain, middlewares...)
	return append(chain, handlers...)
}

func (h *InterviewHandler) requireUser(c *fiber.Ctx) error {
	if userIDFromContext(c) == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}
	return c.Next()
}

func (h *InterviewHandler) start(c *fiber.Ctx) error {
	userID := userIDFromContext(c)

	var payload dto.StartInterviewRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.StartSession(c.UserContext(), userID, payload)
	if err != nil {
		return h.handleError(c, err, "failed to start interview session")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "interview session started", response)
}

func (h *InterviewHandler) list(c *fiber.Ctx) error {
	userID := userIDFromContext(c)

	sessions, err := h.service.ListSessions(c.UserContext(), userID)
	if err != nil {
		return h.handleError(c, err, "failed to list interview sessions")
	}

	return utils.SendSuccess(c, "interview sessions retrieved", sessions)
}

func (h *InterviewHandler) questions(c *fiber.Ctx) error {
	sessionID, err := parseSessionID(c)
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "invalid session id", fiber.Map{"field": "id"})
	}
	userID := userIDFromContext(c)

	response, err := h.service.GetQuestions(c.UserContext(), userID, sessionID)
	if err != nil {
		return h.handleError(c, err, "failed to load interview questions")
	}

	return utils.SendSuccess(c, "interview questions retrieved", response)
}

func (h *InterviewHandler) answer(c *fiber.Ctx) error {
	sessionID, err := parseSessionID(c)
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "invalid session id", fiber.Map{"field": "id"})
	}
	userID := userIDFromContext(c)

	var payload dto.SubmitAnswerRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.SubmitAnswer(c.UserContext(), userID, sessionID, payload)
	if err != nil {
		return h.handleError(c, err, "failed to submit answer")
	}

	return utils.SendSuccess(c, "answer graded", response)
}

func (h *InterviewHandler) feedback(c *fiber.Ctx) error {
	sessionID, err := parseSessionID(c)
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "invalid session id", fiber.Map{"field": "id"})
	}
	userID := userIDFromContext(c)

	response, err := h.service.GetOverallFeedback(c.UserContext(), userID, sessionID)
	if err != nil {
		return h.handleError(c, err, "failed to load overall feedback")
	}

	return utils.SendSuccess(c, "overall feedback retrieved", response)
}

func (h *InterviewHandler) resume(c *fiber.Ctx) error {
	sessionID, err := parseSessionID(c)
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "invalid session id", fiber.Map{"field": "id"})
	}
	userID := userIDFromContext(c)

	response, err := h.service.ResumeSession(c.UserContext(), userID, sessionID)
	if err != nil {
		return h.handleError(c, err, "failed to resume interview session")
	}

	return utils.SendSuccess(c, "interview session resumed", response)
}

func (h *InterviewHandler) handleError(c *fiber.Ctx, err error, fallback string) error {
	var validationErr service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return utils.Fail(c, fiber.StatusBadRequest, validationErr.Error(), fiber.Map{"field": validationErr.Field})
	case errors.Is(err, service.ErrInterviewSessionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "interview session not found")
	case errors.Is(err, service.ErrInterviewQuestionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "interview question not found")
	case errors.Is(err, service.ErrAnswerConflict):
		return utils.SendError(c, fiber.StatusConflict, "question already answered")
	case errors.Is(err, service.ErrInterviewIncomplete):
		return utils.SendError(c, fiber.StatusConflict, "interview session has unanswered questions")
	case errors.Is(err, service.ErrMalformedGeneration):
		return utils.Fail(c, fiber.StatusBadGateway, "generation returned an unusable response, please retry", fiber.Map{"retryable": true})
	case errors.Is(err, service.ErrGenerationUnavailable):
		return utils.Fail(c, fiber.StatusServiceUnavailable, "generation is temporarily unavailable, please retry", fiber.Map{"retryable": true})
	default:
		logger := middleware.RequestLogger(h.logger, c)
		logger.Error().Err(err).Msg(fallback)
		return utils.SendError(c, fiber.StatusInternalServerError, fallback)
	}
}
