package auth

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubAuthenticator struct {
	identity Identity
	err      error
}

func (s *stubAuthenticator) Authenticate(ctx context.Context, r *http.Request) (Identity, error) {
	if s.err != nil {
		return Identity{}, s.err
	}
	return s.identity, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMiddlewarePassesIdentityToHandler(t *testing.T) {
	var got Identity
	handler := Middleware{
		Logger:        testLogger(),
		Authenticator: &stubAuthenticator{identity: Identity{Subject: "user-1", Roles: []string{RoleEditor}}},
		Authorize:     MethodRoleAuthorizer(),
	}.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/datasets", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if got.Subject != "user-1" {
		t.Fatalf("expected identity in context, got %+v", got)
	}
}

func TestMiddlewareRejectsUnauthenticated(t *testing.T) {
	var audited []DenyEvent
	handler := Middleware{
		Logger:        testLogger(),
		Authenticator: &stubAuthenticator{err: ErrUnauthenticated},
		Audit: func(ctx context.Context, event DenyEvent) error {
			audited = append(audited, event)
			return nil
		},
	}.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/datasets", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if len(audited) != 1 || audited[0].Reason != "unauthenticated" {
		t.Fatalf("expected one unauthenticated audit event, got %+v", audited)
	}
}

func TestMiddlewareForbidsInsufficientRole(t *testing.T) {
	handler := Middleware{
		Logger:        testLogger(),
		Authenticator: &stubAuthenticator{identity: Identity{Subject: "viewer", Roles: []string{RoleViewer}}},
		Authorize:     MethodRoleAuthorizer(),
	}.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodPost, "/datasets", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestMiddlewareSkipsHealthEndpoints(t *testing.T) {
	handler := Middleware{
		Logger:        testLogger(),
		Authenticator: &stubAuthenticator{err: ErrUnauthenticated},
		SkipPrefixes:  []string{"/healthz"},
	}.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for skipped prefix, got %d", rec.Code)
	}
}

func TestHasAtLeast(t *testing.T) {
	if !HasAtLeast([]string{RoleAdmin}, RoleEditor) {
		t.Fatalf("admin should satisfy editor")
	}
	if HasAtLeast([]string{RoleViewer}, RoleEditor) {
		t.Fatalf("viewer must not satisfy editor")
	}
	if HasAtLeast(nil, RoleViewer) {
		t.Fatalf("no roles must not satisfy viewer")
	}
}
