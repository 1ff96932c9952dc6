package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-interview-api/internal/dto"
	"github.com/noah-isme/gema-interview-api/internal/observability"
)

// OverallFeedbackCache keeps immutable overall feedback close to the API nodes.
type OverallFeedbackCache interface {
	Get(ctx context.Context, userID, sessionID uint) (dto.OverallFeedbackResponse, bool)
	Set(ctx context.Context, userID uint, feedback dto.OverallFeedbackResponse)
}

type redisOverallFeedbackCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewOverallFeedbackCache builds a redis backed cache. A nil client disables caching.
func NewOverallFeedbackCache(client *redis.Client, ttl time.Duration, logger zerolog.Logger) OverallFeedbackCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &redisOverallFeedbackCache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "overall_feedback_cache").Logger(),
	}
}

func (c *redisOverallFeedbackCache) Get(ctx context.Context, userID, sessionID uint) (dto.OverallFeedbackResponse, bool) {
	if c.client == nil {
		return dto.OverallFeedbackResponse{}, false
	}

	cached, err := c.client.Get(ctx, overallFeedbackKey(userID, sessionID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Uint("session_id", sessionID).Msg("overall feedback cache read failed")
		}
		observability.OverallFeedbackCache().WithLabelValues("miss").Inc()
		return dto.OverallFeedbackResponse{}, false
	}

	var response dto.OverallFeedbackResponse
	if err := json.Unmarshal([]byte(cached), &response); err != nil {
		c.logger.Warn().Err(err).Uint("session_id", sessionID).Msg("failed to decode cached overall feedback")
		observability.OverallFeedbackCache().WithLabelValues("miss").Inc()
		return dto.OverallFeedbackResponse{}, false
	}

	observability.OverallFeedbackCache().WithLabelValues("hit").Inc()
	return response, true
}

func (c *redisOverallFeedbackCache) Set(ctx context.Context, userID uint, feedback dto.OverallFeedbackResponse) {
	if c.client == nil {
		return
	}

	payload, err := json.Marshal(feedback)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, overallFeedbackKey(userID, feedback.SessionID), payload, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Uint("session_id", feedback.SessionID).Msg("failed to cache overall feedback")
	}
}

func overallFeedbackKey(userID, sessionID uint) string {
	return fmt.Sprintf("interview:overall:v1:%d:%d", userID, sessionID)
}
