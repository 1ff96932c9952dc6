package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-interview-api/internal/dto"
	"github.com/noah-isme/gema-interview-api/internal/models"
	"github.com/noah-isme/gema-interview-api/internal/observability"
	"github.com/noah-isme/gema-interview-api/internal/repository"
	"github.com/noah-isme/gema-interview-api/pkg/ai"
)

// Answer revision policies.
const (
	AnswerPolicyLocked              = "locked"
	AnswerPolicyReviseUntilComplete = "revise_until_complete"
)

// IsAnswerPolicy reports whether name is a known answer revision policy.
func IsAnswerPolicy(name string) bool {
	switch name {
	case AnswerPolicyLocked, AnswerPolicyReviseUntilComplete:
		return true
	default:
		return false
	}
}

// DefaultQuestionCounts is the menu of session sizes offered when none is configured.
var DefaultQuestionCounts = []int{3, 5, 7, 10}

// InterviewConfig carries the policy knobs of the session engine.
type InterviewConfig struct {
	QuestionCounts []int
	AnswerPolicy   string
}

// InterviewService drives practice sessions from question generation to overall feedback.
type InterviewService interface {
	StartSession(ctx context.Context, userID uint, req dto.StartInterviewRequest) (dto.StartInterviewResponse, error)
	ListSessions(ctx context.Context, userID uint) ([]dto.InterviewSessionSummary, error)
	GetQuestions(ctx context.Context, userID, sessionID uint) (dto.InterviewQuestionsResponse, error)
	SubmitAnswer(ctx context.Context, userID, sessionID uint, req dto.SubmitAnswerRequest) (dto.AnswerFeedbackResponse, error)
	ResumeSession(ctx context.Context, userID, sessionID uint) (dto.InterviewResumeResponse, error)
	GetOverallFeedback(ctx context.Context, userID, sessionID uint) (dto.OverallFeedbackResponse, error)
}

type interviewService struct {
	repo      repository.InterviewRepository
	gateway   *GenerationGateway
	cache     OverallFeedbackCache
	events    InterviewEventPublisher
	validator *validator.Validate
	policy    *bluemonday.Policy
	config    InterviewConfig
	counts    map[int]struct{}
	group     singleflight.Group
	tracer    trace.Tracer
	logger    zerolog.Logger
	now       func() time.Time
}

// NewInterviewService wires the session engine. Cache and events may be nil.
func NewInterviewService(
	repo repository.InterviewRepository,
	gateway *GenerationGateway,
	cache OverallFeedbackCache,
	events InterviewEventPublisher,
	validate *validator.Validate,
	cfg InterviewConfig,
	logger zerolog.Logger,
) InterviewService {
	if validate == nil {
		validate = validator.New()
	}
	if cache == nil {
		cache = NewOverallFeedbackCache(nil, 0, logger)
	}
	if events == nil {
		events = NewInterviewEventPublisher(nil, "", logger)
	}
	if len(cfg.QuestionCounts) == 0 {
		cfg.QuestionCounts = DefaultQuestionCounts
	}
	if cfg.AnswerPolicy == "" {
		cfg.AnswerPolicy = AnswerPolicyLocked
	}

	counts := make(map[int]struct{}, len(cfg.QuestionCounts))
	for _, count := range cfg.QuestionCounts {
		counts[count] = struct{}{}
	}

	return &interviewService{
		repo:      repo,
		gateway:   gateway,
		cache:     cache,
		events:    events,
		validator: validate,
		policy:    bluemonday.StrictPolicy(),
		config:    cfg,
		counts:    counts,
		tracer:    otel.Tracer("github.com/noah-isme/gema-interview-api/internal/service/interview"),
		logger:    logger.With().Str("component", "interview_service").Logger(),
		now:       time.Now,
	}
}

func (s *interviewService) StartSession(ctx context.Context, userID uint, req dto.StartInterviewRequest) (dto.StartInterviewResponse, error) {
	req.JobTitle = plainText(s.policy, req.JobTitle)
	req.JobDescription = plainText(s.policy, req.JobDescription)
	if err := s.validator.Struct(req); err != nil {
		return dto.StartInterviewResponse{}, translateValidation(err)
	}
	if _, ok := s.counts[req.NumQuestions]; !ok {
		return dto.StartInterviewResponse{}, newValidationError("num_questions", "must be one of "+s.countMenu())
	}

	ctx, span := s.tracer.Start(ctx, "interview.start_session", trace.WithAttributes(
		attribute.Int("interview.question_count", req.NumQuestions),
	))
	defer span.End()

	session := models.InterviewSession{
		UserID:         userID,
		JobTitle:       req.JobTitle,
		JobDescription: req.JobDescription,
		TotalQuestions: req.NumQuestions,
	}

	generated, err := s.gateway.GenerateQuestions(ctx, session.JobTitle, session.JobDescription, session.TotalQuestions)
	if err != nil {
		s.logger.Warn().Err(err).Uint("user_id", userID).Msg("question generation failed")
		return dto.StartInterviewResponse{}, err
	}

	session.Questions = make([]models.InterviewQuestion, 0, len(generated))
	for idx, question := range generated {
		session.Questions = append(session.Questions, models.InterviewQuestion{
			Ordinal:  idx,
			Text:     question.Text,
			Category: question.Category,
		})
	}

	if err := s.repo.CreateSession(ctx, &session); err != nil {
		s.logger.Error().Err(err).Uint("user_id", userID).Msg("failed to persist interview session")
		return dto.StartInterviewResponse{}, persistenceError(err)
	}

	observability.SessionsStarted().Inc()
	s.events.Publish(ctx, InterviewEvent{Type: EventSessionStarted, SessionID: session.ID, UserID: userID})
	s.logger.Info().Uint("session_id", session.ID).Uint("user_id", userID).Int("questions", session.TotalQuestions).Msg("interview session started")

	return dto.StartInterviewResponse{
		SessionID:      session.ID,
		JobTitle:       session.JobTitle,
		TotalQuestions: session.TotalQuestions,
		State:          session.State(),
	}, nil
}

func (s *interviewService) ListSessions(ctx context.Context, userID uint) ([]dto.InterviewSessionSummary, error) {
	sessions, err := s.repo.ListSessions(ctx, userID)
	if err != nil {
		return nil, persistenceError(err)
	}

	summaries := make([]dto.InterviewSessionSummary, 0, len(sessions))
	for _, session := range sessions {
		summaries = append(summaries, dto.NewInterviewSessionSummary(session))
	}
	return summaries, nil
}

func (s *interviewService) GetQuestions(ctx context.Context, userID, sessionID uint) (dto.InterviewQuestionsResponse, error) {
	session, err := s.loadSession(ctx, userID, sessionID)
	if err != nil {
		return dto.InterviewQuestionsResponse{}, err
	}
	return dto.NewInterviewQuestionsResponse(session), nil
}

func (s *interviewService) SubmitAnswer(ctx context.Context, userID, sessionID uint, req dto.SubmitAnswerRequest) (dto.AnswerFeedbackResponse, error) {
	req.Answer = plainText(s.policy, req.Answer)
	if err := s.validator.Struct(req); err != nil {
		return dto.AnswerFeedbackResponse{}, translateValidation(err)
	}

	session, err := s.loadSession(ctx, userID, sessionID)
	if err != nil {
		return dto.AnswerFeedbackResponse{}, err
	}
	if session.IsCompleted {
		return dto.AnswerFeedbackResponse{}, fmt.Errorf("%w: session is completed", ErrAnswerConflict)
	}

	var question *models.InterviewQuestion
	for idx := range session.Questions {
		if session.Questions[idx].ID == req.QuestionID {
			question = &session.Questions[idx]
			break
		}
	}
	if question == nil {
		return dto.AnswerFeedbackResponse{}, ErrInterviewQuestionNotFound
	}

	revising := question.Answer != nil
	if revising && s.config.AnswerPolicy != AnswerPolicyReviseUntilComplete {
		return dto.AnswerFeedbackResponse{}, ErrAnswerConflict
	}

	ctx, span := s.tracer.Start(ctx, "interview.submit_answer", trace.WithAttributes(
		attribute.Int64("interview.session_id", int64(session.ID)),
		attribute.Int("interview.ordinal", question.Ordinal),
		attribute.Bool("interview.revision", revising),
	))
	defer span.End()

	feedback, err := s.gateway.GradeAnswer(ctx, ai.GradeRequest{
		JobTitle:       session.JobTitle,
		JobDescription: session.JobDescription,
		Question:       question.Text,
		Category:       question.Category,
		Answer:         req.Answer,
	})
	if err != nil {
		s.logger.Warn().Err(err).Uint("session_id", session.ID).Uint("question_id", question.ID).Msg("answer grading failed")
		return dto.AnswerFeedbackResponse{}, err
	}

	answer := &models.InterviewAnswer{
		QuestionID: question.ID,
		SessionID:  session.ID,
		Content:    req.Answer,
		Score:      *feedback.Score,
	}
	answer.SetFeedbackLists(feedback.Strengths, feedback.Weaknesses, feedback.Suggestions)

	if revising {
		err = s.repo.ReplaceAnswer(ctx, answer)
	} else {
		err = s.repo.CreateAnswer(ctx, answer)
	}
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrAnswerExists):
			return dto.AnswerFeedbackResponse{}, ErrAnswerConflict
		case errors.Is(err, repository.ErrSessionCompleted):
			return dto.AnswerFeedbackResponse{}, fmt.Errorf("%w: session is completed", ErrAnswerConflict)
		case errors.Is(err, gorm.ErrRecordNotFound):
			return dto.AnswerFeedbackResponse{}, ErrInterviewSessionNotFound
		default:
			s.logger.Error().Err(err).Uint("session_id", session.ID).Uint("question_id", question.ID).Msg("failed to persist answer")
			return dto.AnswerFeedbackResponse{}, persistenceError(err)
		}
	}

	response := dto.NewAnswerFeedbackResponse(*answer)
	observability.AnswersGraded().WithLabelValues(response.Label).Inc()
	score := response.Score
	s.events.Publish(ctx, InterviewEvent{
		Type:       EventAnswerGraded,
		SessionID:  session.ID,
		UserID:     userID,
		QuestionID: question.ID,
		Score:      &score,
	})

	return response, nil
}

func (s *interviewService) ResumeSession(ctx context.Context, userID, sessionID uint) (dto.InterviewResumeResponse, error) {
	session, err := s.loadSession(ctx, userID, sessionID)
	if err != nil {
		return dto.InterviewResumeResponse{}, err
	}

	response := dto.InterviewResumeResponse{
		SessionID:      session.ID,
		JobTitle:       session.JobTitle,
		State:          session.State(),
		AnsweredCount:  session.AnsweredCount(),
		TotalQuestions: session.TotalQuestions,
		Questions:      dto.NewInterviewQuestionResponseSlice(session.Questions),
	}

	if idx := session.FirstUnansweredIndex(); idx >= 0 {
		current := response.Questions[idx]
		response.CurrentIndex = idx
		response.CurrentQuestion = &current
		return response, nil
	}

	overall, err := s.overallFeedback(ctx, userID, session)
	if err != nil {
		return dto.InterviewResumeResponse{}, err
	}

	response.State = models.InterviewStateCompleted
	response.CurrentIndex = session.TotalQuestions
	response.OverallFeedback = &overall
	return response, nil
}

func (s *interviewService) GetOverallFeedback(ctx context.Context, userID, sessionID uint) (dto.OverallFeedbackResponse, error) {
	if cached, ok := s.cache.Get(ctx, userID, sessionID); ok {
		return cached, nil
	}

	session, err := s.loadSession(ctx, userID, sessionID)
	if err != nil {
		return dto.OverallFeedbackResponse{}, err
	}
	if session.FirstUnansweredIndex() >= 0 && session.OverallFeedback == nil {
		return dto.OverallFeedbackResponse{}, ErrInterviewIncomplete
	}

	return s.overallFeedback(ctx, userID, session)
}

// overallFeedback returns the stored aggregate or computes it once. Concurrent callers in this
// process share one computation; across processes the completion check-and-set picks the winner.
func (s *interviewService) overallFeedback(ctx context.Context, userID uint, session models.InterviewSession) (dto.OverallFeedbackResponse, error) {
	if session.OverallFeedback != nil {
		response := dto.NewOverallFeedbackResponse(*session.OverallFeedback)
		s.cache.Set(ctx, userID, response)
		return response, nil
	}

	result, err, _ := s.group.Do(strconv.FormatUint(uint64(session.ID), 10), func() (interface{}, error) {
		return s.aggregate(context.WithoutCancel(ctx), userID, session)
	})
	if err != nil {
		return dto.OverallFeedbackResponse{}, err
	}

	response := result.(dto.OverallFeedbackResponse)
	s.cache.Set(ctx, userID, response)
	return response, nil
}

// aggregateAttempts bounds recomputation when answers are revised during aggregation.
const aggregateAttempts = 3

func (s *interviewService) aggregate(ctx context.Context, userID uint, session models.InterviewSession) (dto.OverallFeedbackResponse, error) {
	ctx, span := s.tracer.Start(ctx, "interview.aggregate", trace.WithAttributes(
		attribute.Int64("interview.session_id", int64(session.ID)),
	))
	defer span.End()

	for attempt := 1; ; attempt++ {
		response, err := s.aggregateAnswers(ctx, userID, session)
		if !errors.Is(err, repository.ErrAnswersChanged) {
			return response, err
		}
		if attempt == aggregateAttempts {
			return dto.OverallFeedbackResponse{}, fmt.Errorf("%w: answers keep changing", ErrAnswerConflict)
		}

		s.logger.Info().Uint("session_id", session.ID).Int("attempt", attempt).Msg("answers revised during aggregation, recomputing")
		session, err = s.loadSession(ctx, userID, session.ID)
		if err != nil {
			return dto.OverallFeedbackResponse{}, err
		}
	}
}

func (s *interviewService) aggregateAnswers(ctx context.Context, userID uint, session models.InterviewSession) (dto.OverallFeedbackResponse, error) {
	if stored, err := s.repo.GetOverallFeedback(ctx, session.ID); err == nil {
		return dto.NewOverallFeedbackResponse(stored), nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.OverallFeedbackResponse{}, persistenceError(err)
	}

	scores := make([]float64, 0, len(session.Questions))
	answerIDs := make([]uint, 0, len(session.Questions))
	graded := make([]ai.GradedAnswer, 0, len(session.Questions))
	for _, question := range session.Questions {
		if question.Answer == nil {
			return dto.OverallFeedbackResponse{}, ErrInterviewIncomplete
		}
		scores = append(scores, question.Answer.Score)
		answerIDs = append(answerIDs, question.Answer.ID)
		graded = append(graded, ai.GradedAnswer{
			Question: question.Text,
			Category: question.Category,
			Answer:   question.Answer.Content,
			Feedback: ai.Feedback{
				Score:       ai.Score(question.Answer.Score),
				Strengths:   question.Answer.StrengthList(),
				Weaknesses:  question.Answer.WeaknessList(),
				Suggestions: question.Answer.SuggestionList(),
			},
		})
	}

	average := AverageScore(scores)
	readiness := ReadinessFor(average)

	summary, err := s.gateway.Summarize(ctx, ai.SummaryRequest{
		JobTitle:       session.JobTitle,
		JobDescription: session.JobDescription,
		AverageScore:   average,
		Readiness:      readiness,
		Answers:        graded,
	})
	if err != nil {
		s.logger.Warn().Err(err).Uint("session_id", session.ID).Msg("session summary failed")
		return dto.OverallFeedbackResponse{}, err
	}

	feedback := &models.InterviewOverallFeedback{
		AverageScore: average,
		Readiness:    readiness,
		Summary:      summary.Summary,
	}
	feedback.SetLists(summary.TopStrengths, summary.TopImprovements, summary.Recommendations)

	won, err := s.repo.CompleteSession(ctx, session.ID, answerIDs, feedback, s.now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrSessionIncomplete):
			return dto.OverallFeedbackResponse{}, ErrInterviewIncomplete
		case errors.Is(err, repository.ErrAnswersChanged):
			return dto.OverallFeedbackResponse{}, err
		}
		s.logger.Error().Err(err).Uint("session_id", session.ID).Msg("failed to complete interview session")
		return dto.OverallFeedbackResponse{}, persistenceError(err)
	}

	stored, err := s.repo.GetOverallFeedback(ctx, session.ID)
	if err != nil {
		return dto.OverallFeedbackResponse{}, persistenceError(err)
	}

	if won {
		observability.SessionsCompleted().WithLabelValues(stored.Readiness).Inc()
		s.events.Publish(ctx, InterviewEvent{
			Type:      EventSessionCompleted,
			SessionID: session.ID,
			UserID:    userID,
			Score:     &stored.AverageScore,
			Readiness: stored.Readiness,
		})
		s.logger.Info().Uint("session_id", session.ID).Float64("average_score", stored.AverageScore).Str("readiness", stored.Readiness).Msg("interview session completed")
	}

	return dto.NewOverallFeedbackResponse(stored), nil
}

func (s *interviewService) loadSession(ctx context.Context, userID, sessionID uint) (models.InterviewSession, error) {
	if sessionID == 0 {
		return models.InterviewSession{}, ErrInterviewSessionNotFound
	}

	session, err := s.repo.GetSession(ctx, userID, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.InterviewSession{}, ErrInterviewSessionNotFound
		}
		return models.InterviewSession{}, persistenceError(err)
	}
	return session, nil
}

func (s *interviewService) countMenu() string {
	counts := append([]int(nil), s.config.QuestionCounts...)
	sort.Ints(counts)
	labels := make([]string, 0, len(counts))
	for _, count := range counts {
		labels = append(labels, strconv.Itoa(count))
	}
	return strings.Join(labels, ", ")
}
