package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/noah-isme/gema-interview-api/internal/service"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                   string
	AppEnv                    string
	AppPort                   string
	AllowOrigins              string
	DatabaseURL               string
	RedisURL                  string
	NATSURL                   string
	JWTSecret                 string
	AIProvider                string
	OpenAIAPIKey              string
	OpenAIModel               string
	OpenAIBaseURL             string
	GenerationTimeout         time.Duration
	GenerationMaxAttempts     int
	GenerationRetryBackoff    time.Duration
	QuestionCounts            []int
	AnswerPolicy              string
	FeedbackCacheTTL          time.Duration
	EventsSubject             string
	GenerationRateLimitPerMin int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// IsProduction reports whether the service runs in production mode.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("INTERVIEW")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Interview Practice API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.allow_origins", "*")
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("generation.timeout", "30s")
	v.SetDefault("generation.max_attempts", 2)
	v.SetDefault("generation.retry_backoff", "500ms")
	v.SetDefault("interview.question_counts", "3,5,7,10")
	v.SetDefault("interview.answer_policy", service.AnswerPolicyLocked)
	v.SetDefault("interview.feedback_cache_ttl", "24h")
	v.SetDefault("interview.events_subject", "interview.events")
	v.SetDefault("ratelimit.generation_per_minute", 20)

	timeout, err := parseDuration(v, "generation.timeout")
	if err != nil {
		return Config{}, err
	}
	backoff, err := parseDuration(v, "generation.retry_backoff")
	if err != nil {
		return Config{}, err
	}
	cacheTTL, err := parseDuration(v, "interview.feedback_cache_ttl")
	if err != nil {
		return Config{}, err
	}
	counts, err := parseQuestionCounts(v.GetString("interview.question_counts"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:                   v.GetString("app.name"),
		AppEnv:                    v.GetString("app.env"),
		AppPort:                   v.GetString("app.port"),
		AllowOrigins:              v.GetString("app.allow_origins"),
		DatabaseURL:               v.GetString("database.url"),
		RedisURL:                  v.GetString("redis.url"),
		NATSURL:                   v.GetString("nats.url"),
		JWTSecret:                 v.GetString("jwt.secret"),
		AIProvider:                strings.ToLower(strings.TrimSpace(v.GetString("ai.provider"))),
		OpenAIAPIKey:              v.GetString("openai_api_key"),
		OpenAIModel:               v.GetString("openai.model"),
		OpenAIBaseURL:             v.GetString("openai.base_url"),
		GenerationTimeout:         timeout,
		GenerationMaxAttempts:     v.GetInt("generation.max_attempts"),
		GenerationRetryBackoff:    backoff,
		QuestionCounts:            counts,
		AnswerPolicy:              strings.ToLower(strings.TrimSpace(v.GetString("interview.answer_policy"))),
		FeedbackCacheTTL:          cacheTTL,
		EventsSubject:             v.GetString("interview.events_subject"),
		GenerationRateLimitPerMin: v.GetInt("ratelimit.generation_per_minute"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.GenerationTimeout <= 0 {
		return Config{}, fmt.Errorf("generation timeout must be positive")
	}

	if cfg.GenerationMaxAttempts <= 0 {
		cfg.GenerationMaxAttempts = 1
	}

	if cfg.GenerationRateLimitPerMin <= 0 {
		cfg.GenerationRateLimitPerMin = 20
	}

	if !service.IsAnswerPolicy(cfg.AnswerPolicy) {
		return Config{}, fmt.Errorf("unknown answer policy %q", cfg.AnswerPolicy)
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	duration, err := time.ParseDuration(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return duration, nil
}

func parseQuestionCounts(raw string) ([]int, error) {
	parts := strings.Split(raw, ",")
	counts := make([]int, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		count, err := strconv.Atoi(part)
		if err != nil || count <= 0 {
			return nil, fmt.Errorf("invalid interview question count %q", part)
		}
		counts = append(counts, count)
	}
	if len(counts) == 0 {
		return nil, fmt.Errorf("interview question counts must not be empty")
	}
	return counts, nil
}
