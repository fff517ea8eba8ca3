package handler_test

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/steward-api/internal/config"
	"github.com/noah-isme/steward-api/internal/handler"
)

func TestHealthCheck(t *testing.T) {
	cfg := config.Config{
		AppName: "Steward API",
		AppEnv:  "test",
	}

	app := fiber.New()
	app.Get("/api/v1/health", handler.HealthCheck(cfg, handler.HealthDependencies{Redis: true}))

	resp, body := perform(t, app, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.True(t, body.Success)

	var payload handler.HealthResponse
	require.NoError(t, json.Unmarshal(body.Data, &payload))
	require.Equal(t, "ok", payload.Status)
	require.Equal(t, cfg.AppName, payload.Service)
	require.Equal(t, cfg.AppEnv, payload.Environment)
	require.WithinDuration(t, time.Now().UTC(), payload.Timestamp, 2*time.Second)
	require.Equal(t, map[string]bool{
		"database": true,
		"redis":    true,
		"nats":     false,
		"billing":  false,
		"storage":  false,
	}, payload.Components)
}
