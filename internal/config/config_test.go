package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-interview-api/internal/service"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("INTERVIEW_JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, []int{3, 5, 7, 10}, cfg.QuestionCounts)
	require.Equal(t, service.AnswerPolicyLocked, cfg.AnswerPolicy)
	require.Equal(t, 30*time.Second, cfg.GenerationTimeout)
	require.Equal(t, 2, cfg.GenerationMaxAttempts)
	require.Equal(t, 24*time.Hour, cfg.FeedbackCacheTTL)
	require.Equal(t, "interview.events", cfg.EventsSubject)
	require.Equal(t, 20, cfg.GenerationRateLimitPerMin)
	require.Equal(t, "openai", cfg.AIProvider)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("INTERVIEW_JWT_SECRET", "secret")
	t.Setenv("INTERVIEW_APP_PORT", ":9090")
	t.Setenv("INTERVIEW_INTERVIEW_QUESTION_COUNTS", " 4, 8 ")
	t.Setenv("INTERVIEW_INTERVIEW_ANSWER_POLICY", "Revise_Until_Complete")
	t.Setenv("INTERVIEW_GENERATION_TIMEOUT", "5s")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddress())
	require.Equal(t, []int{4, 8}, cfg.QuestionCounts)
	require.Equal(t, service.AnswerPolicyReviseUntilComplete, cfg.AnswerPolicy)
	require.Equal(t, 5*time.Second, cfg.GenerationTimeout)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	cases := map[string]map[string]string{
		"missing secret": {},
		"unknown policy": {"INTERVIEW_JWT_SECRET": "s", "INTERVIEW_INTERVIEW_ANSWER_POLICY": "sometimes"},
		"bad counts":     {"INTERVIEW_JWT_SECRET": "s", "INTERVIEW_INTERVIEW_QUESTION_COUNTS": "3,zero"},
		"negative count": {"INTERVIEW_JWT_SECRET": "s", "INTERVIEW_INTERVIEW_QUESTION_COUNTS": "-1"},
		"bad timeout":    {"INTERVIEW_JWT_SECRET": "s", "INTERVIEW_GENERATION_TIMEOUT": "soon"},
		"bad cache ttl":  {"INTERVIEW_JWT_SECRET": "s", "INTERVIEW_INTERVIEW_FEEDBACK_CACHE_TTL": "1 day"},
	}

	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("INTERVIEW_JWT_SECRET", "")
			for key, value := range env {
				t.Setenv(key, value)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestLoadAcceptsEveryServicePolicy(t *testing.T) {
	for _, policy := range []string{service.AnswerPolicyLocked, service.AnswerPolicyReviseUntilComplete} {
		t.Setenv("INTERVIEW_JWT_SECRET", "secret")
		t.Setenv("INTERVIEW_INTERVIEW_ANSWER_POLICY", policy)

		cfg, err := Load()
		require.NoError(t, err)
		require.Equal(t, policy, cfg.AnswerPolicy)
	}
}
