package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	personaModel "github.com/zhouzirui/z-tavern/parlor/internal/model/persona"
	chatService "github.com/zhouzirui/z-tavern/parlor/internal/service/chat"
)

func newTestRouter(t *testing.T) (http.Handler, *chatService.Service) {
	t.Helper()
	store := personaModel.NewMemoryStore(personaModel.Seed())
	completer := chatService.CompleterFunc(func(context.Context, string) (string, error) {
		return "Ahoy there", nil
	})
	svc := chatService.NewService(store, nil, completer, chatService.Config{}, zerolog.Nop())
	return NewRouter(Deps{Personas: store, Chat: svc, Logger: zerolog.Nop()}), svc
}

func TestRouterHealth(t *testing.T) {
	router, svc := newTestRouter(t)
	_, err := svc.CreateSession(context.Background(), "pirate", false)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Status     string         `json:"status"`
		Completion bool           `json:"completion"`
		Sessions   map[string]int `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.True(t, body.Completion)
	assert.Equal(t, 1, body.Sessions["total"])
	assert.Equal(t, 1, body.Sessions["idle"])
}

func TestRouterMountsAPIRoutes(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/personas", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/session", strings.NewReader(`{"personaId":"chef","welcome":true}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stream/missing?message=hi", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouterPreflight(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/session", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
