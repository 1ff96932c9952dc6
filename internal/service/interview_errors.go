package service

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// ErrInterviewSessionNotFound indicates the session does not exist for the requesting user.
var ErrInterviewSessionNotFound = errors.New("interview session not found")

// ErrInterviewQuestionNotFound indicates the question does not belong to the session.
var ErrInterviewQuestionNotFound = errors.New("interview question not found")

// ErrAnswerConflict indicates the question already has an answer that cannot be replaced.
var ErrAnswerConflict = errors.New("question already answered")

// ErrInterviewIncomplete indicates overall feedback was requested before every question was answered.
var ErrInterviewIncomplete = errors.New("interview session has unanswered questions")

// ErrGenerationUnavailable indicates the generation backend timed out, failed or is not configured.
var ErrGenerationUnavailable = errors.New("generation unavailable")

// ErrMalformedGeneration indicates the generation backend replied with unusable content.
var ErrMalformedGeneration = errors.New("generation response malformed")

// ErrPersistence indicates the durable store failed.
var ErrPersistence = errors.New("persistence failure")

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func newValidationError(field, message string) error {
	return ValidationError{Field: field, Message: message}
}

func persistenceError(err error) error {
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}

// translateValidation converts the first validator failure into a ValidationError naming the JSON field.
func translateValidation(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return err
	}

	fieldErr := validationErrors[0]
	field := snakeCase(fieldErr.Field())
	switch fieldErr.Tag() {
	case "required":
		return newValidationError(field, "is required")
	case "max":
		return newValidationError(field, "must be at most "+fieldErr.Param()+" characters")
	case "gt":
		return newValidationError(field, "must be greater than "+fieldErr.Param())
	default:
		return newValidationError(field, "is invalid")
	}
}

func snakeCase(name string) string {
	var builder strings.Builder
	var prev rune
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 && unicode.IsLower(prev) {
				builder.WriteByte('_')
			}
			prev = r
			builder.WriteRune(unicode.ToLower(r))
			continue
		}
		builder.WriteRune(r)
		prev = r
	}
	return builder.String()
}
