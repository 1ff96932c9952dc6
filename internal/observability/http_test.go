package observability_test

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-interview-api/internal/observability"
)

func TestMetricsHandlerExposesInterviewCollectors(t *testing.T) {
	observability.SessionsStarted().Inc()
	observability.SessionsCompleted().WithLabelValues("Ready").Inc()

	app := fiber.New()
	app.Get("/metrics", observability.MetricsHandler())

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "interview_sessions_started_total")
	require.Contains(t, string(body), `interview_sessions_completed_total{readiness="Ready"}`)
}
