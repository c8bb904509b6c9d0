package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"afps-server/internal/signaling"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	store := signaling.New(signaling.Config{
		SessionTTL:             time.Minute,
		OfferTimeout:           50 * time.Millisecond,
		InputMaxTokens:         10,
		InputRefillPerSecond:   10,
		MaxInvalidInputs:       5,
		MaxRateLimitDrops:      5,
		MaxClientHelloAttempts: 3,
		MaxPendingInputs:       8,
	})
	return NewRouter(RouterConfig{
		Store: store,
		RateLimitConfig: &RateLimitConfig{
			RequestsPerSecond: 1000,
			Burst:             1000,
		},
		DisableLogging: true,
	})
}

func TestHandleCreateSessionReturnsToken(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/session", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["token"] == "" {
		t.Error("expected a non-empty session token")
	}
}

func TestHandleCreateConnectionMissingSessionToken(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/webrtc/connect", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleCreateConnectionUnknownSession(t *testing.T) {
	router := newTestRouter(t)
	body, _ := json.Marshal(map[string]string{"sessionToken": "bogus"})
	req := httptest.NewRequest(http.MethodPost, "/webrtc/connect", bytes.NewBuffer(body))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown session, got %d", rec.Code)
	}
	var errBody map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &errBody); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if errBody["error"] == "" {
		t.Error("expected a non-empty error message")
	}
}

func TestHandleDrainCandidatesMissingParams(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/webrtc/candidates", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "OK" {
		t.Errorf("expected body %q, got %q", "OK", rec.Body.String())
	}
}

func TestBearerAuthMiddlewareRejectsMissingHeader(t *testing.T) {
	store := signaling.New(signaling.Config{SessionTTL: time.Minute, OfferTimeout: time.Second})
	router := NewRouter(RouterConfig{
		Store:       store,
		BearerToken: "secret",
		RateLimitConfig: &RateLimitConfig{
			RequestsPerSecond: 1000,
			Burst:             1000,
		},
		DisableLogging: true,
	})

	req := httptest.NewRequest(http.MethodPost, "/session", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestBearerAuthMiddlewareAcceptsMatchingToken(t *testing.T) {
	store := signaling.New(signaling.Config{SessionTTL: time.Minute, OfferTimeout: time.Second})
	router := NewRouter(RouterConfig{
		Store:       store,
		BearerToken: "secret",
		RateLimitConfig: &RateLimitConfig{
			RequestsPerSecond: 1000,
			Burst:             1000,
		},
		DisableLogging: true,
	})

	req := httptest.NewRequest(http.MethodPost, "/session", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid bearer token, got %d", rec.Code)
	}
}
