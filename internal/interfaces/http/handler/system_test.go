package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSystemRouter(checks map[string]HealthCheck) *gin.Engine {
	engine := gin.New()
	NewSystemHandler("erp-valuation", "1.2.3", checks).Routes().RegisterRoutes(engine.Group("/api/v1"))
	return engine
}

func TestSystemHandler_Info(t *testing.T) {
	engine := setupSystemRouter(nil)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/system/info", nil))

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeResponse(t, w).Data.(map[string]any)
	assert.Equal(t, "erp-valuation", data["name"])
	assert.Equal(t, "1.2.3", data["version"])
	assert.NotEmpty(t, data["go_version"])
}

func TestSystemHandler_Health(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]HealthCheck
		status int
		state  string
	}{
		{"no checks", nil, http.StatusOK, "ok"},
		{
			"all healthy",
			map[string]HealthCheck{"database": func(context.Context) error { return nil }},
			http.StatusOK, "ok",
		},
		{
			"database down",
			map[string]HealthCheck{
				"database": func(context.Context) error { return errors.New("connection refused") },
				"redis":    func(context.Context) error { return nil },
			},
			http.StatusServiceUnavailable, "unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := setupSystemRouter(tt.checks)

			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/system/health", nil))

			assert.Equal(t, tt.status, w.Code)
			resp := decodeResponse(t, w)
			assert.Equal(t, tt.status == http.StatusOK, resp.Success)
			data := resp.Data.(map[string]any)
			assert.Equal(t, tt.state, data["status"])
		})
	}
}
