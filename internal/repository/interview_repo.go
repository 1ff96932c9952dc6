package repository

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-interview-api/internal/models"
)

// ErrAnswerExists indicates the question already carries an answer.
var ErrAnswerExists = errors.New("answer already exists")

// ErrSessionCompleted indicates the session reached its terminal state.
var ErrSessionCompleted = errors.New("session already completed")

// ErrSessionIncomplete indicates not every question of the session has been answered.
var ErrSessionIncomplete = errors.New("session has unanswered questions")

// ErrAnswersChanged indicates an answer was revised after the overall feedback was computed.
var ErrAnswersChanged = errors.New("session answers changed")

// InterviewRepository persists practice sessions, their question banks, answers and overall feedback.
type InterviewRepository interface {
	CreateSession(ctx context.Context, session *models.InterviewSession) error
	GetSession(ctx context.Context, userID, sessionID uint) (models.InterviewSession, error)
	ListSessions(ctx context.Context, userID uint) ([]models.InterviewSession, error)
	CreateAnswer(ctx context.Context, answer *models.InterviewAnswer) error
	ReplaceAnswer(ctx context.Context, answer *models.InterviewAnswer) error
	CompleteSession(ctx context.Context, sessionID uint, answerIDs []uint, feedback *models.InterviewOverallFeedback, completedAt time.Time) (bool, error)
	GetOverallFeedback(ctx context.Context, sessionID uint) (models.InterviewOverallFeedback, error)
}

type interviewRepository struct {
	db *gorm.DB
}

// NewInterviewRepository constructs a gorm backed interview repository.
func NewInterviewRepository(db *gorm.DB) InterviewRepository {
	return &interviewRepository{db: db}
}

// CreateSession stores the session and its question bank in one transaction.
func (r *interviewRepository) CreateSession(ctx context.Context, session *models.InterviewSession) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		questions := session.Questions
		if err := tx.Omit("Questions", "OverallFeedback").Create(session).Error; err != nil {
			return err
		}

		for i := range questions {
			questions[i].SessionID = session.ID
		}
		if len(questions) > 0 {
			if err := tx.Omit("Answer").Create(&questions).Error; err != nil {
				return err
			}
		}

		session.Questions = questions
		return nil
	})
}

func (r *interviewRepository) GetSession(ctx context.Context, userID, sessionID uint) (models.InterviewSession, error) {
	var session models.InterviewSession
	err := r.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("ordinal ASC")
		}).
		Preload("Questions.Answer").
		Preload("OverallFeedback").
		Where("id = ? AND user_id = ?", sessionID, userID).
		First(&session).Error
	if err != nil {
		return models.InterviewSession{}, err
	}
	return session, nil
}

func (r *interviewRepository) ListSessions(ctx context.Context, userID uint) ([]models.InterviewSession, error) {
	var sessions []models.InterviewSession
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

// CreateAnswer inserts the answer with its feedback. The unique index on question_id
// decides concurrent submissions for the same question.
func (r *interviewRepository) CreateAnswer(ctx context.Context, answer *models.InterviewAnswer) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureSessionOpen(tx, answer.SessionID); err != nil {
			return err
		}

		var existing int64
		if err := tx.Model(&models.InterviewAnswer{}).Where("question_id = ?", answer.QuestionID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrAnswerExists
		}

		return tx.Create(answer).Error
	})
	if isUniqueViolation(err) {
		return ErrAnswerExists
	}
	return err
}

// ReplaceAnswer swaps the stored answer and feedback for a question while its session is still open.
func (r *interviewRepository) ReplaceAnswer(ctx context.Context, answer *models.InterviewAnswer) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureSessionOpen(tx, answer.SessionID); err != nil {
			return err
		}

		if err := tx.Where("question_id = ?", answer.QuestionID).Delete(&models.InterviewAnswer{}).Error; err != nil {
			return err
		}

		answer.ID = 0
		return tx.Create(answer).Error
	})
	if isUniqueViolation(err) {
		return ErrAnswerExists
	}
	return err
}

// CompleteSession flips the completion flag with a conditional update and stores the
// overall feedback in the same transaction. answerIDs are the answers the feedback was
// computed from; ErrAnswersChanged is returned when the stored set differs. It reports
// false when another caller completed the session first; the caller must then read the
// stored feedback instead.
func (r *interviewRepository) CompleteSession(ctx context.Context, sessionID uint, answerIDs []uint, feedback *models.InterviewOverallFeedback, completedAt time.Time) (bool, error) {
	won := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session models.InterviewSession
		if err := lockSession(tx).Select("id", "total_questions", "is_completed").First(&session, sessionID).Error; err != nil {
			return err
		}
		if session.IsCompleted {
			return nil
		}

		var stored []uint
		if err := tx.Model(&models.InterviewAnswer{}).Where("session_id = ?", sessionID).Order("id ASC").Pluck("id", &stored).Error; err != nil {
			return err
		}
		if len(stored) < session.TotalQuestions {
			return ErrSessionIncomplete
		}
		expected := slices.Clone(answerIDs)
		slices.Sort(expected)
		if !slices.Equal(stored, expected) {
			return ErrAnswersChanged
		}

		result := tx.Model(&models.InterviewSession{}).
			Where("id = ? AND is_completed = ?", sessionID, false).
			Updates(map[string]interface{}{
				"is_completed": true,
				"completed_at": completedAt,
				"updated_at":   completedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		feedback.ID = 0
		feedback.SessionID = sessionID
		if err := tx.Create(feedback).Error; err != nil {
			return err
		}

		won = true
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}

	return won, nil
}

func (r *interviewRepository) GetOverallFeedback(ctx context.Context, sessionID uint) (models.InterviewOverallFeedback, error) {
	var feedback models.InterviewOverallFeedback
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&feedback).Error; err != nil {
		return models.InterviewOverallFeedback{}, err
	}
	return feedback, nil
}

// lockSession takes the session row lock so answer writes and completion serialize.
// SQLite ignores the locking clause.
func lockSession(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func ensureSessionOpen(tx *gorm.DB, sessionID uint) error {
	var session models.InterviewSession
	if err := lockSession(tx).Select("id", "is_completed").First(&session, sessionID).Error; err != nil {
		return err
	}
	if session.IsCompleted {
		return ErrSessionCompleted
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint") || strings.Contains(message, "duplicate key")
}
