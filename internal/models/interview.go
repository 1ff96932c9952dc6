package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Interview session lifecycle states.
const (
	InterviewStateCreated    = "created"
	InterviewStateInProgress = "in_progress"
	InterviewStateCompleted  = "completed"
)

// Readiness tiers in ascending order.
const (
	ReadinessNotReady    = "Not Ready"
	ReadinessNeedsWork   = "Needs Work"
	ReadinessReady       = "Ready"
	ReadinessHighlyReady = "Highly Ready"
)

// ReadinessTiers lists every readiness tier from lowest to highest.
var ReadinessTiers = []string{ReadinessNotReady, ReadinessNeedsWork, ReadinessReady, ReadinessHighlyReady}

// DefaultQuestionCategory is applied when the generator omits a category.
const DefaultQuestionCategory = "general"

// InterviewSession is one practice attempt for a job title/description pair.
type InterviewSession struct {
	ID              uint                      `gorm:"primaryKey" json:"id"`
	UserID          uint                      `gorm:"not null;index" json:"user_id"`
	JobTitle        string                    `gorm:"size:255;not null" json:"job_title"`
	JobDescription  string                    `gorm:"type:text;not null" json:"job_description"`
	TotalQuestions  int                       `gorm:"not null" json:"total_questions"`
	IsCompleted     bool                      `gorm:"not null;default:false" json:"is_completed"`
	CompletedAt     *time.Time                `json:"completed_at"`
	CreatedAt       time.Time                 `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time                 `json:"updated_at"`
	Questions       []InterviewQuestion       `gorm:"foreignKey:SessionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"questions,omitempty"`
	OverallFeedback *InterviewOverallFeedback `gorm:"foreignKey:SessionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"overall_feedback,omitempty"`
}

// State reports the lifecycle state. Sessions that were never persisted are still being generated.
func (s InterviewSession) State() string {
	switch {
	case s.ID == 0:
		return InterviewStateCreated
	case s.IsCompleted:
		return InterviewStateCompleted
	default:
		return InterviewStateInProgress
	}
}

// FirstUnansweredIndex scans questions in ordinal order and returns the position of the
// first one without an answer, or -1 when every question has been answered.
func (s InterviewSession) FirstUnansweredIndex() int {
	for idx, question := range s.Questions {
		if question.Answer == nil {
			return idx
		}
	}
	return -1
}

// AnsweredCount returns how many questions already carry an answer with feedback.
func (s InterviewSession) AnsweredCount() int {
	count := 0
	for _, question := range s.Questions {
		if question.Answer != nil {
			count++
		}
	}
	return count
}

// InterviewQuestion is one entry of a session's question bank.
type InterviewQuestion struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	SessionID uint             `gorm:"not null;uniqueIndex:idx_interview_question_ordinal" json:"session_id"`
	Ordinal   int              `gorm:"not null;uniqueIndex:idx_interview_question_ordinal" json:"ordinal"`
	Text      string           `gorm:"type:text;not null" json:"text"`
	Category  string           `gorm:"size:64;not null" json:"category"`
	CreatedAt time.Time        `json:"created_at"`
	Answer    *InterviewAnswer `gorm:"foreignKey:QuestionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"answer,omitempty"`
}

// InterviewAnswer stores the user's answer together with the feedback produced for it.
// Rows are only written once grading succeeded, so an answer never exists without feedback.
type InterviewAnswer struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	QuestionID  uint           `gorm:"not null;uniqueIndex" json:"question_id"`
	SessionID   uint           `gorm:"not null;index" json:"session_id"`
	Content     string         `gorm:"type:text;not null" json:"content"`
	Score       float64        `gorm:"not null" json:"score"`
	Strengths   datatypes.JSON `gorm:"type:json" json:"-"`
	Weaknesses  datatypes.JSON `gorm:"type:json" json:"-"`
	Suggestions datatypes.JSON `gorm:"type:json" json:"-"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// SetFeedbackLists serializes the feedback statement lists into their JSON columns.
func (a *InterviewAnswer) SetFeedbackLists(strengths, weaknesses, suggestions []string) {
	a.Strengths = encodeStatements(strengths)
	a.Weaknesses = encodeStatements(weaknesses)
	a.Suggestions = encodeStatements(suggestions)
}

// StrengthList returns the stored strength statements.
func (a InterviewAnswer) StrengthList() []string { return decodeStatements(a.Strengths) }

// WeaknessList returns the stored weakness statements.
func (a InterviewAnswer) WeaknessList() []string { return decodeStatements(a.Weaknesses) }

// SuggestionList returns the stored suggestion statements.
func (a InterviewAnswer) SuggestionList() []string { return decodeStatements(a.Suggestions) }

// InterviewOverallFeedback is the aggregate assessment written when a session completes.
type InterviewOverallFeedback struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	SessionID       uint           `gorm:"not null;uniqueIndex" json:"session_id"`
	AverageScore    float64        `gorm:"not null" json:"average_score"`
	Readiness       string         `gorm:"size:32;not null" json:"readiness"`
	Summary         string         `gorm:"type:text" json:"summary"`
	TopStrengths    datatypes.JSON `gorm:"type:json" json:"-"`
	TopImprovements datatypes.JSON `gorm:"type:json" json:"-"`
	Recommendations datatypes.JSON `gorm:"type:json" json:"-"`
	CreatedAt       time.Time      `json:"created_at"`
}

// TableName keeps the singular table name readable.
func (InterviewOverallFeedback) TableName() string {
	return "interview_overall_feedback"
}

// SetLists serializes the aggregate statement lists into their JSON columns.
func (f *InterviewOverallFeedback) SetLists(strengths, improvements, recommendations []string) {
	f.TopStrengths = encodeStatements(strengths)
	f.TopImprovements = encodeStatements(improvements)
	f.Recommendations = encodeStatements(recommendations)
}

// TopStrengthList returns the stored top strengths.
func (f InterviewOverallFeedback) TopStrengthList() []string { return decodeStatements(f.TopStrengths) }

// TopImprovementList returns the stored improvement areas.
func (f InterviewOverallFeedback) TopImprovementList() []string {
	return decodeStatements(f.TopImprovements)
}

// RecommendationList returns the stored recommendations.
func (f InterviewOverallFeedback) RecommendationList() []string {
	return decodeStatements(f.Recommendations)
}

func encodeStatements(items []string) datatypes.JSON {
	if items == nil {
		items = []string{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return datatypes.JSON([]byte("[]"))
	}
	return datatypes.JSON(data)
}

func decodeStatements(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return []string{}
	}

	var items []string
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		return []string{}
	}

	return items
}
