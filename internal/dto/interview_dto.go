package dto

import (
	"time"

	"github.com/noah-isme/gema-interview-api/internal/models"
)

// StartInterviewRequest is the payload for starting a practice session.
type StartInterviewRequest struct {
	JobTitle       string `json:"job_title" validate:"required,max=255"`
	JobDescription string `json:"job_description" validate:"required"`
	NumQuestions   int    `json:"num_questions" validate:"required,gt=0"`
}

// StartInterviewResponse identifies the freshly created session.
type StartInterviewResponse struct {
	SessionID      uint   `json:"session_id"`
	JobTitle       string `json:"job_title"`
	TotalQuestions int    `json:"total_questions"`
	State          string `json:"state"`
}

// SubmitAnswerRequest carries a user's answer to a single question.
type SubmitAnswerRequest struct {
	QuestionID uint   `json:"question_id" validate:"required,gt=0"`
	Answer     string `json:"answer" validate:"required"`
}

// AnswerFeedbackResponse is the per-question feedback returned after grading.
type AnswerFeedbackResponse struct {
	QuestionID  uint     `json:"question_id"`
	Score       float64  `json:"score"`
	Label       string   `json:"label"`
	Strengths   []string `json:"strengths"`
	Weaknesses  []string `json:"weaknesses"`
	Suggestions []string `json:"suggestions"`
}

// InterviewAnswerResponse inlines an answer and its feedback into a question.
type InterviewAnswerResponse struct {
	Content  string                 `json:"content"`
	Feedback AnswerFeedbackResponse `json:"feedback"`
}

// InterviewQuestionResponse describes one question of a session.
type InterviewQuestionResponse struct {
	ID       uint                     `json:"id"`
	Ordinal  int                      `json:"ordinal"`
	Text     string                   `json:"text"`
	Category string                   `json:"category"`
	Answer   *InterviewAnswerResponse `json:"answer,omitempty"`
}

// InterviewQuestionsResponse lists the question bank with progress figures.
type InterviewQuestionsResponse struct {
	SessionID      uint                        `json:"session_id"`
	State          string                      `json:"state"`
	AnsweredCount  int                         `json:"answered_count"`
	TotalQuestions int                         `json:"total_questions"`
	Questions      []InterviewQuestionResponse `json:"questions"`
}

// InterviewSessionSummary is the history view of a session.
type InterviewSessionSummary struct {
	SessionID      uint      `json:"session_id"`
	JobTitle       string    `json:"job_title"`
	TotalQuestions int       `json:"total_questions"`
	IsCompleted    bool      `json:"is_completed"`
	CreatedAt      time.Time `json:"created_at"`
}

// OverallFeedbackResponse is the aggregate readiness assessment of a session.
type OverallFeedbackResponse struct {
	SessionID       uint     `json:"session_id"`
	AverageScore    float64  `json:"average_score"`
	Readiness       string   `json:"readiness"`
	Summary         string   `json:"summary"`
	TopStrengths    []string `json:"top_strengths"`
	TopImprovements []string `json:"top_improvements"`
	Recommendations []string `json:"recommendations"`
}

// InterviewResumeResponse tells a client where to continue an interrupted session.
type InterviewResumeResponse struct {
	SessionID       uint                        `json:"session_id"`
	JobTitle        string                      `json:"job_title"`
	State           string                      `json:"state"`
	CurrentIndex    int                         `json:"current_index"`
	CurrentQuestion *InterviewQuestionResponse  `json:"current_question,omitempty"`
	AnsweredCount   int                         `json:"answered_count"`
	TotalQuestions  int                         `json:"total_questions"`
	Questions       []InterviewQuestionResponse `json:"questions"`
	OverallFeedback *OverallFeedbackResponse    `json:"overall_feedback,omitempty"`
}

// FeedbackLabel maps a per-question score onto a short qualitative label.
func FeedbackLabel(score float64) string {
	switch {
	case score >= 8:
		return "Excellent"
	case score >= 6:
		return "Good job"
	case score >= 4:
		return "Room for improvement"
	default:
		return "Keep practicing"
	}
}

// NewAnswerFeedbackResponse converts a stored answer into its feedback DTO.
func NewAnswerFeedbackResponse(answer models.InterviewAnswer) AnswerFeedbackResponse {
	return AnswerFeedbackResponse{
		QuestionID:  answer.QuestionID,
		Score:       answer.Score,
		Label:       FeedbackLabel(answer.Score),
		Strengths:   answer.StrengthList(),
		Weaknesses:  answer.WeaknessList(),
		Suggestions: answer.SuggestionList(),
	}
}

// NewInterviewQuestionResponse converts a question, inlining its answer when present.
func NewInterviewQuestionResponse(question models.InterviewQuestion) InterviewQuestionResponse {
	response := InterviewQuestionResponse{
		ID:       question.ID,
		Ordinal:  question.Ordinal,
		Text:     question.Text,
		Category: question.Category,
	}

	if question.Answer != nil {
		response.Answer = &InterviewAnswerResponse{
			Content:  question.Answer.Content,
			Feedback: NewAnswerFeedbackResponse(*question.Answer),
		}
	}

	return response
}

// NewInterviewQuestionResponseSlice converts an ordered question bank.
func NewInterviewQuestionResponseSlice(questions []models.InterviewQuestion) []InterviewQuestionResponse {
	responses := make([]InterviewQuestionResponse, 0, len(questions))
	for _, question := range questions {
		responses = append(responses, NewInterviewQuestionResponse(question))
	}
	return responses
}

// NewInterviewQuestionsResponse builds the question listing for a session.
func NewInterviewQuestionsResponse(session models.InterviewSession) InterviewQuestionsResponse {
	return InterviewQuestionsResponse{
		SessionID:      session.ID,
		State:          session.State(),
		AnsweredCount:  session.AnsweredCount(),
		TotalQuestions: session.TotalQuestions,
		Questions:      NewInterviewQuestionResponseSlice(session.Questions),
	}
}

// NewInterviewSessionSummary converts a session into its history entry.
func NewInterviewSessionSummary(session models.InterviewSession) InterviewSessionSummary {
	return InterviewSessionSummary{
		SessionID:      session.ID,
		JobTitle:       session.JobTitle,
		TotalQuestions: session.TotalQuestions,
		IsCompleted:    session.IsCompleted,
		CreatedAt:      session.CreatedAt,
	}
}

// NewOverallFeedbackResponse converts stored overall feedback into its DTO.
func NewOverallFeedbackResponse(feedback models.InterviewOverallFeedback) OverallFeedbackResponse {
	return OverallFeedbackResponse{
		SessionID:       feedback.SessionID,
		AverageScore:    feedback.AverageScore,
		Readiness:       feedback.Readiness,
		Summary:         feedback.Summary,
		TopStrengths:    feedback.TopStrengthList(),
		TopImprovements: feedback.TopImprovementList(),
		Recommendations: feedback.RecommendationList(),
	}
}
