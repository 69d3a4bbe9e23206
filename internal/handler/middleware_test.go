package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ClareAI/astra-lead-service/internal/domain"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "unit-test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestJWTAuthMiddleware(t *testing.T) {
	var gotOperatorID string
	protected := JWTAuthMiddleware(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOperatorID = OperatorID(r)
		w.WriteHeader(http.StatusOK)
	}))

	validToken := signToken(t, testSecret, jwt.MapClaims{
		"sub":  "op-1",
		"role": "operator",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	cases := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"valid token", "Bearer " + validToken, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not.a.token", http.StatusUnauthorized},
		{
			"wrong secret",
			"Bearer " + signToken(t, "other-secret", jwt.MapClaims{"sub": "op-1", "exp": time.Now().Add(time.Hour).Unix()}),
			http.StatusUnauthorized,
		},
		{
			"expired token",
			"Bearer " + signToken(t, testSecret, jwt.MapClaims{"sub": "op-1", "exp": time.Now().Add(-time.Hour).Unix()}),
			http.StatusUnauthorized,
		},
		{
			"missing subject",
			"Bearer " + signToken(t, testSecret, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}),
			http.StatusUnauthorized,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gotOperatorID = ""
			req := httptest.NewRequest(http.MethodGet, "/api/leads", nil)
			if tc.authHeader != "" {
				req.Header.Set("Authorization", tc.authHeader)
			}
			rec := httptest.NewRecorder()

			protected.ServeHTTP(rec, req)
			assert.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantStatus == http.StatusOK {
				assert.Equal(t, "op-1", gotOperatorID)
			}
		})
	}
}

func TestJWTRejectsUnsignedAlgorithm(t *testing.T) {
	protected := JWTAuthMiddleware(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "op-1"})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/leads", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()

	protected.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookAuthMiddleware(t *testing.T) {
	protected := WebhookAuthMiddleware("hook-secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/gateway/message", nil)
	req.Header.Set("X-Webhook-Key", "hook-secret")
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/webhooks/gateway/message", nil)
	req.Header.Set("X-Webhook-Key", "wrong")
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/webhooks/gateway/message", nil)
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestValidationMiddlewareContentType(t *testing.T) {
	next := ValidationMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/leads", nil)
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	next.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/leads", nil)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec = httptest.NewRecorder()
	next.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWriteDomainError(t *testing.T) {
	cases := []struct {
		err        error
		wantStatus int
	}{
		{domain.ErrInvalidTransition, http.StatusConflict},
		{domain.ErrAlreadyClaimed, http.StatusConflict},
		{fmt.Errorf("wrapped: %w", domain.ErrAlreadyClaimed), http.StatusConflict},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrExternalUnavailable, http.StatusBadGateway},
		{errors.New("something else"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeDomainError(rec, tc.err)
		assert.Equal(t, tc.wantStatus, rec.Code, "error %v", tc.err)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	}
}
