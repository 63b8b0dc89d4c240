package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/templui/bullseye/internal/ctxkeys"
	"github.com/templui/bullseye/internal/observability"
	"github.com/templui/bullseye/internal/service"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRateLimit(t *testing.T) {
	limiter := NewRateLimiter(0.001, 2)
	defer limiter.Stop()
	handler := RateLimit(limiter)(ok)

	want := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}
	for i, status := range want {
		req := httptest.NewRequest(http.MethodGet, "/api/goals", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != status {
			t.Errorf("request %d: status = %d, want %d", i, rec.Code, status)
		}
	}

	// Another client has its own bucket.
	req := httptest.NewRequest(http.MethodGet, "/api/goals", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.2, 10.0.0.1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("other client status = %d, want 200", rec.Code)
	}
}

func TestRateLimiterCleanupAndStop(t *testing.T) {
	limiter := NewRateLimiter(1, 1)
	limiter.Allow("10.0.0.1")
	limiter.Allow("10.0.0.2")

	limiter.mu.Lock()
	limiter.idle = time.Minute
	limiter.visitors["10.0.0.1"].lastSeen = time.Now().Add(-2 * time.Minute)
	limiter.mu.Unlock()

	limiter.cleanup()
	limiter.mu.Lock()
	_, stale := limiter.visitors["10.0.0.1"]
	_, fresh := limiter.visitors["10.0.0.2"]
	limiter.mu.Unlock()
	if stale || !fresh {
		t.Errorf("after cleanup stale=%v fresh=%v, want false true", stale, fresh)
	}

	limiter.Stop()
	limiter.Stop()
	select {
	case <-limiter.done:
	case <-time.After(time.Second):
		t.Fatal("cleanup loop still running after Stop")
	}
}

func TestCSRFProtection(t *testing.T) {
	handler := CSRFProtection(false)(ok)
	token := generateCSRFToken()

	tests := []struct {
		name   string
		method string
		setup  func(*http.Request)
		want   int
	}{
		{"safe method", http.MethodGet, func(*http.Request) {}, http.StatusOK},
		{"anonymous post", http.MethodPost, func(*http.Request) {}, http.StatusOK},
		{"bearer post", http.MethodPost, func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer abc")
			r.AddCookie(&http.Cookie{Name: authCookieName, Value: "abc"})
		}, http.StatusOK},
		{"cookie post without token", http.MethodPost, func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: authCookieName, Value: "abc"})
			r.AddCookie(&http.Cookie{Name: csrfCookieName, Value: token})
		}, http.StatusForbidden},
		{"cookie post with token", http.MethodPost, func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: authCookieName, Value: "abc"})
			r.AddCookie(&http.Cookie{Name: csrfCookieName, Value: token})
			r.Header.Set(csrfHeader, token)
		}, http.StatusOK},
		{"cookie post with wrong token", http.MethodPost, func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: authCookieName, Value: "abc"})
			r.AddCookie(&http.Cookie{Name: csrfCookieName, Value: token})
			r.Header.Set(csrfHeader, generateCSRFToken())
		}, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/goals", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestIdentity(t *testing.T) {
	identities := service.NewIdentityService("test-secret", time.Hour)
	token, _, err := identities.Issue("alice")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	var got string
	handler := Identity(identities)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ctxkeys.Identity(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if got != "alice" {
		t.Errorf("identity = %q, want alice", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if got != "" {
		t.Errorf("identity = %q for invalid token, want empty", got)
	}
}

func TestRequestLoggingRecordsRoute(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/goals/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := Chain(mux, RequestLogging(mux))

	counter := observability.RequestCounter.WithLabelValues(http.MethodGet, "GET /api/goals/{id}", "418")
	before := counterValue(t, counter)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/goals/abc", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d, want 418", rec.Code)
	}
	if after := counterValue(t, counter); after != before+1 {
		t.Errorf("counter = %v, want %v", after, before+1)
	}
}

func counterValue(t *testing.T, c interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestChainOrder(t *testing.T) {
	var order []string
	tag := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	handler := Chain(ok, tag("first"), nil, tag("second"))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("order = %v, want [first second]", order)
	}
}
