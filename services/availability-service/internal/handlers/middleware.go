package handlers

import (
	"context"
	"net/http"

	"github.com/buildlance/buildlance/libs/auth"
)

type claimsKey struct{}

// RequireBuilder verifies the bearer token and admits only builder accounts.
// RS256 tokens are checked against the JWKS client when one is configured,
// HS256 against the shared secret otherwise.
func RequireBuilder(next http.Handler, jwtSecret string, jwksClient *auth.JWKSClient) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.BearerToken(r)
		if !ok {
			http.Error(w, "missing or invalid Authorization header", http.StatusUnauthorized)
			return
		}

		var claims *auth.Claims
		var err error

		if jwksClient != nil {
			header, herr := auth.ParseHeader(token)
			if herr != nil {
				http.Error(w, "invalid token header", http.StatusUnauthorized)
				return
			}
			if header.Alg == "RS256" && header.Kid != "" {
				pub, kerr := jwksClient.Get(header.Kid)
				if kerr != nil {
					http.Error(w, "invalid token key", http.StatusUnauthorized)
					return
				}
				claims, err = auth.VerifyRS256(token, pub)
			} else {
				claims, err = auth.ParseAndVerifyHS256(token, jwtSecret)
			}
		} else {
			claims, err = auth.ParseAndVerifyHS256(token, jwtSecret)
		}
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		if claims.Role != "builder" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	})
}

// BuilderID returns the authenticated builder id, empty when the request did
// not pass through RequireBuilder.
func BuilderID(r *http.Request) string {
	claims, _ := r.Context().Value(claimsKey{}).(*auth.Claims)
	if claims == nil {
		return ""
	}
	return claims.Sub
}
