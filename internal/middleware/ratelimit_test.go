package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAllowWithinLimit(t *testing.T) {
	rl := NewRateLimiter()

	for i := 0; i < 5; i++ {
		if !rl.Allow("user:1", 5, time.Minute) {
			t.Fatalf("award %d should be allowed", i+1)
		}
	}
	if rl.Allow("user:1", 5, time.Minute) {
		t.Error("6th award in window should be denied")
	}

	// A different actor has its own window.
	if !rl.Allow("user:2", 5, time.Minute) {
		t.Error("separate actor should not share the window")
	}
}

func TestWindowExpiry(t *testing.T) {
	rl := NewRateLimiter()

	for i := 0; i < 3; i++ {
		rl.Allow("user:1", 3, 10*time.Millisecond)
	}
	if rl.Allow("user:1", 3, 10*time.Millisecond) {
		t.Error("should be denied inside the window")
	}

	time.Sleep(15 * time.Millisecond)

	if !rl.Allow("user:1", 3, 10*time.Millisecond) {
		t.Error("window should have reset")
	}
}

func TestCleanupDropsExpiredEntries(t *testing.T) {
	rl := NewRateLimiter()

	rl.Allow("stale", 5, 10*time.Millisecond)
	time.Sleep(15 * time.Millisecond)
	rl.Allow("live", 5, time.Minute)

	rl.Cleanup()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.entries["stale"]; ok {
		t.Error("stale entry survived cleanup")
	}
	if _, ok := rl.entries["live"]; !ok {
		t.Error("live entry lost in cleanup")
	}
}

func TestRateLimitKeyedByActor(t *testing.T) {
	rl := NewRateLimiter()

	handler := RateLimit(rl, ActorKey, 2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(userID string) int {
		req := httptest.NewRequest("POST", "/api/users/5/points", nil)
		req.Header.Set(HeaderUserID, userID)
		rec := httptest.NewRecorder()
		Identify(handler).ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if code := send("1"); code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, code)
		}
	}
	if code := send("1"); code != http.StatusTooManyRequests {
		t.Errorf("3rd request: status = %d, want 429", code)
	}

	// Another staff member is limited independently.
	if code := send("2"); code != http.StatusOK {
		t.Errorf("other actor: status = %d, want 200", code)
	}
}
