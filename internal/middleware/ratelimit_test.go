package middleware_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bensuskins/gymthon/internal/middleware"
	"github.com/bensuskins/gymthon/internal/models"
)

func limitedHandler(limit int) http.Handler {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return middleware.RateLimit("test", limit, time.Minute)(ok)
}

func requestAs(handler http.Handler, userID string, remoteAddr string) *httptest.ResponseRecorder {
	request := httptest.NewRequest(http.MethodPost, "/api/diet/generate", nil)
	request.RemoteAddr = remoteAddr
	if userID != "" {
		ctx := context.WithValue(request.Context(), middleware.UserContextKey, models.User{ID: userID})
		request = request.WithContext(ctx)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

func TestRateLimit_KeysByUser(t *testing.T) {
	handler := limitedHandler(2)

	for i := 0; i < 2; i++ {
		if recorder := requestAs(handler, "alice", "10.0.0.1:5000"); recorder.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, recorder.Code)
		}
	}

	recorder := requestAs(handler, "alice", "10.0.0.2:5000")
	if recorder.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 once the window is full, got %d", recorder.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(recorder.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["error"] != "rate_limited" || body["message"] != "Too many requests, please try again later" {
		t.Errorf("unexpected body %v", body)
	}

	if recorder := requestAs(handler, "bob", "10.0.0.1:5000"); recorder.Code != http.StatusOK {
		t.Errorf("expected a different user on the same address to pass, got %d", recorder.Code)
	}
}

func TestRateLimit_FallsBackToAddress(t *testing.T) {
	handler := limitedHandler(1)

	if recorder := requestAs(handler, "", "203.0.113.7:1111"); recorder.Code != http.StatusOK {
		t.Fatalf("expected first anonymous request to pass, got %d", recorder.Code)
	}
	if recorder := requestAs(handler, "", "203.0.113.7:2222"); recorder.Code != http.StatusTooManyRequests {
		t.Errorf("expected same address to be limited, got %d", recorder.Code)
	}
	if recorder := requestAs(handler, "", "198.51.100.4:1111"); recorder.Code != http.StatusOK {
		t.Errorf("expected another address to pass, got %d", recorder.Code)
	}
}

func TestRateLimit_IndependentWindows(t *testing.T) {
	generation := middleware.RateLimit("generation", 5, time.Minute)
	aiCost := middleware.RateLimit("ai", 1, time.Hour)
	handler := generation(aiCost(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	if recorder := requestAs(handler, "carol", "10.0.0.1:1"); recorder.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", recorder.Code)
	}
	if recorder := requestAs(handler, "carol", "10.0.0.1:1"); recorder.Code != http.StatusTooManyRequests {
		t.Errorf("expected the tighter window to reject, got %d", recorder.Code)
	}
}
