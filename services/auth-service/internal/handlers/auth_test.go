package handlers

import (
	"testing"
	"time"

	"github.com/buildlance/buildlance/libs/auth"
	"github.com/buildlance/buildlance/services/auth-service/internal/storage"
)

func TestPasswordHashing(t *testing.T) {
	password := "pass123"
	hash, err := hashPassword(password)
	if err != nil {
		t.Fatalf("hashPassword failed: %v", err)
	}
	if hash == "" {
		t.Fatal("expected non-empty hash")
	}
	if err := verifyPassword(hash, password); err != nil {
		t.Fatalf("verifyPassword should succeed: %v", err)
	}
	if err := verifyPassword(hash, "wrong-pass"); err == nil {
		t.Fatal("verifyPassword should fail for wrong password")
	}
}

func TestIssueJWTCarriesAccountClaims(t *testing.T) {
	signer := NewHS256Signer("unit-secret")
	account := storage.Account{
		ID:    "acct-1",
		Email: "mira@example.com",
		Role:  "builder",
	}
	token, err := issueJWT(account, signer)
	if err != nil {
		t.Fatalf("issueJWT failed: %v", err)
	}

	claims, err := auth.ParseAndVerifyHS256(token, "unit-secret")
	if err != nil {
		t.Fatalf("token did not verify: %v", err)
	}
	if claims.Sub != account.ID || claims.Email != account.Email || claims.Role != "builder" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.Exp <= time.Now().Unix() {
		t.Fatal("expected a future expiry")
	}
}
