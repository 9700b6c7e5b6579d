package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/buildlance/buildlance/libs/auth"
)

func signedToken(t *testing.T, secret, sub, role string) string {
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

func TestRequireAuthRewritesIdentityHeaders(t *testing.T) {
	secret := "test-secret"
	var gotUser, gotBuilder, gotRole string
	h := requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = r.Header.Get("X-User-Id")
		gotBuilder = r.Header.Get("X-Builder-Id")
		gotRole = r.Header.Get("X-Role")
		w.WriteHeader(http.StatusOK)
	}), secret, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/billing/subscription", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, secret, "builder-1", "builder"))
	// Caller-supplied identity headers must never survive.
	req.Header.Set("X-Builder-Id", "builder-2")
	req.Header.Set("X-Role", "admin")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)

	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	if gotUser != "builder-1" || gotBuilder != "builder-1" || gotRole != "builder" {
		t.Fatalf("identity headers = user %q builder %q role %q", gotUser, gotBuilder, gotRole)
	}
}

func TestRequireAuthNonBuilderGetsNoBuilderHeader(t *testing.T) {
	secret := "test-secret"
	var gotBuilder string
	h := requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBuilder = r.Header.Get("X-Builder-Id")
		w.WriteHeader(http.StatusOK)
	}), secret, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/billing/subscription", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, secret, "client-1", "client"))
	req.Header.Set("X-Builder-Id", "builder-2")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)

	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	if gotBuilder != "" {
		t.Fatalf("expected empty builder header, got %q", gotBuilder)
	}
}

func TestRequireAuthRejectsBadTokens(t *testing.T) {
	h := requireAuth(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), "test-secret", nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/billing/subscription", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rw.Code)
	}

	reqMissing := httptest.NewRequest(http.MethodGet, "/api/v1/billing/subscription", nil)
	rwMissing := httptest.NewRecorder()
	h.ServeHTTP(rwMissing, reqMissing)
	if rwMissing.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rwMissing.Code)
	}
}
