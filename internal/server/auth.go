package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IssueToken signs an HS256 bearer token for subject. A ttl of zero
// issues a token without expiry.
func IssueToken(secret, subject string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("token secret is empty")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:   "freightview",
		Subject:  subject,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// VerifyToken checks an HS256 token against secret and returns its
// subject.
func VerifyToken(secret, tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer("freightview"))
	if err != nil {
		return "", fmt.Errorf("token parse error: %w", err)
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token")
	}
	return claims.Subject, nil
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			respondError(w, http.StatusUnauthorized, "bearer token required")
			return
		}
		subject, err := VerifyToken(s.config.TokenSecret, strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			s.logger.Warn("rejected token", "path", r.URL.Path, "err", err)
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		s.logger.Debug("authenticated", "subject", subject)
		next.ServeHTTP(w, r)
	})
}
