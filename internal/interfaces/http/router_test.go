package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/referta/referta/internal/config"
	"github.com/referta/referta/internal/interfaces/http/handlers"
)

func testServer(t *testing.T, cfg config.ServerConfig) *Server {
	t.Helper()
	cfg.Mode = "test"
	return NewServer(cfg, RouterDeps{
		Analysis: handlers.NewAnalysisHandler(nil, nil, 0, nil),
		Health: handlers.NewHealthHandler(map[string]handlers.Pinger{
			"database": func(context.Context) error { return nil },
		}),
	})
}

func TestRouter_HealthAndReady(t *testing.T) {
	s := testServer(t, config.ServerConfig{Port: 8080})

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_APIRequiresKey(t *testing.T) {
	s := testServer(t, config.ServerConfig{Port: 8080, APIKey: "segreto"})

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/feedback/labeled", nil))
	// Route lives under /api/v1; the bare path is not found.
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/feedback/labeled", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Health stays open.
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
