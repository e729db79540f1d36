package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zhouzirui/lingo-chat/backend/internal/auth"
	"github.com/zhouzirui/lingo-chat/backend/internal/model/membership"
	"github.com/zhouzirui/lingo-chat/backend/internal/model/persona"
	conversationService "github.com/zhouzirui/lingo-chat/backend/internal/service/conversation"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type stubConversations struct{}

func (stubConversations) Authenticate(context.Context, auth.Credentials) (membership.Identity, error) {
	return membership.Identity{}, conversationService.ErrUnauthenticated
}

func (stubConversations) Handle(context.Context, auth.Credentials, conversationService.Request) (conversationService.Response, error) {
	return conversationService.Response{}, conversationService.ErrUnauthenticated
}

func (stubConversations) Status(context.Context, auth.Credentials, string) (conversationService.Status, error) {
	return conversationService.Status{}, conversationService.ErrUnauthenticated
}

func newTestRouter(p Pinger) http.Handler {
	return NewRouter(Options{
		Personas:       persona.NewCatalogStore(),
		Conversations:  stubConversations{},
		Quota:          p,
		QuotaBackend:   "memory",
		AllowedOrigins: []string{"http://localhost:3000"},
	})
}

func TestHealthz(t *testing.T) {
	resp := httptest.NewRecorder()
	newTestRouter(stubPinger{}).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	newTestRouter(stubPinger{err: errors.New("down")}).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
}

func TestRoutesMountedUnderAPI(t *testing.T) {
	r := newTestRouter(nil)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/personas", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected personas 200, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/quota/ep-01", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected quota 401 without credentials, got %d", resp.Code)
	}
}
