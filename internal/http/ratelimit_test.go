package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestIPLimiter_FixedWindow(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	rl := NewIPLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	if !rl.Allow("1.1.1.1") || !rl.Allow("1.1.1.1") {
		t.Fatal("first two requests must pass")
	}
	if rl.Allow("1.1.1.1") {
		t.Fatal("third request in the window must be refused")
	}
	if !rl.Allow("2.2.2.2") {
		t.Fatal("other ips have their own window")
	}

	now = now.Add(time.Minute)
	if !rl.Allow("1.1.1.1") {
		t.Fatal("new window must reset the count")
	}
	rl.Prune()
	if len(rl.buckets) != 1 {
		t.Fatalf("prune kept %d buckets", len(rl.buckets))
	}
}

func TestRateLimitIP_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/x", RateLimitIP(NewIPLimiter(1, time.Minute)), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("POST", "/x", nil))
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusNoContent || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("codes: %v", codes)
	}

	open := gin.New()
	open.POST("/x", RateLimitIP(nil), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	w := httptest.NewRecorder()
	open.ServeHTTP(w, httptest.NewRequest("POST", "/x", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("nil limiter must pass, got %d", w.Code)
	}
}
