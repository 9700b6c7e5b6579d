package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/buildlance/buildlance/libs/auth"
)

func builderToken(t *testing.T, secret, sub, role string) string {
	t.Helper()
	token, err := auth.SignHS256(auth.Claims{
		Sub:   sub,
		Email: sub + "@example.com",
		Role:  role,
		Iat:   time.Now().Unix(),
		Exp:   time.Now().Add(1 * time.Hour).Unix(),
	}, secret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	return token
}

func TestRequireBuilderHS256(t *testing.T) {
	secret := "test-secret"
	h := RequireBuilder(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if BuilderID(r) != "builder-1" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}), secret, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/availability/rules", nil)
	req.Header.Set("Authorization", "Bearer "+builderToken(t, secret, "builder-1", "builder"))
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}

	reqBad := httptest.NewRequest(http.MethodGet, "/api/v1/availability/rules", nil)
	reqBad.Header.Set("Authorization", "Bearer not-a-token")
	rwBad := httptest.NewRecorder()
	h.ServeHTTP(rwBad, reqBad)
	if rwBad.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rwBad.Code)
	}
}

func TestRequireBuilderRejectsClients(t *testing.T) {
	secret := "test-secret"
	h := RequireBuilder(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), secret, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/availability/rules", nil)
	req.Header.Set("Authorization", "Bearer "+builderToken(t, secret, "client-1", "client"))
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rw.Code)
	}
}

func TestRequireBuilderMissingHeader(t *testing.T) {
	h := RequireBuilder(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), "secret", nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/availability/rules", nil)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rw.Code)
	}
}

func TestBuilderIDWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := BuilderID(req); got != "" {
		t.Fatalf("expected empty builder id, got %q", got)
	}
}
