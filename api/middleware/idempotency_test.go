package middleware

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type fakeStore struct {
	data map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string)}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	f.data[key] = str
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func requestWithPattern(method, url, pattern string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, url, body)
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{pattern}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestRouteTTLSelection(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		pattern string
		want    time.Duration
		ok      bool
	}{
		{"create order", http.MethodPost, "/api/v1/orders", defaultIdempotencyTTL, true},
		{"order cancel", http.MethodPost, "/api/v1/orders/456/cancel", criticalIdempotencyTTL, true},
		{"refund request", http.MethodPost, "/api/v1/orders/456/refunds", criticalIdempotencyTTL, true},
		{"refund decision", http.MethodPost, "/api/v1/admin/refunds/789/decision", criticalIdempotencyTTL, true},
		{"payout request", http.MethodPost, "/api/v1/sellers/123/payouts", criticalIdempotencyTTL, true},
		{"payout batch", http.MethodPost, "/api/v1/admin/payouts/process", criticalIdempotencyTTL, true},
		{"shipment status", http.MethodPost, "/api/v1/agent/shipments/42/status", defaultIdempotencyTTL, true},
		{"read is never captured", http.MethodGet, "/api/v1/orders", 0, false},
		{"detail is never captured", http.MethodGet, "/api/v1/orders/456", 0, false},
	}

	for _, tt := range tests {
		ttl, ok := routeTTL(tt.method, tt.pattern)
		if ok != tt.ok {
			t.Fatalf("%s: expected ok=%v got %v", tt.name, tt.ok, ok)
		}
		if ok && ttl != tt.want {
			t.Fatalf("%s: expected ttl=%v got %v", tt.name, tt.want, ttl)
		}
	}
}

func TestIdempotencyMiddlewareRequiresHeader(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusCreated)
	})

	req := requestWithPattern(http.MethodPost, "/api/v1/orders", "/api/v1/orders", strings.NewReader(`{"foo":"bar"}`))
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if handlerCalled {
		t.Fatalf("handler should not run without idempotency key")
	}
}

func TestIdempotencyMiddlewareReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	makeRequest := func() *httptest.ResponseRecorder {
		req := requestWithPattern(http.MethodPost, "/api/v1/orders", "/api/v1/orders", strings.NewReader(`{"foo":"bar"}`))
		req.Header.Set("Idempotency-Key", "abc")
		resp := httptest.NewRecorder()
		mw(handler).ServeHTTP(resp, req)
		return resp
	}

	first := makeRequest()
	if first.Code != http.StatusCreated {
		t.Fatalf("expected first response 201 got %d", first.Code)
	}

	second := makeRequest()
	if second.Code != http.StatusCreated {
		t.Fatalf("expected replay 201 got %d", second.Code)
	}
	if second.Body.String() != first.Body.String() {
		t.Fatalf("replay body mismatch: %q vs %q", second.Body.String(), first.Body.String())
	}
	if calls != 1 {
		t.Fatalf("handler should run once, ran %d times", calls)
	}
}

func TestIdempotencyMiddlewareRejectsKeyReuseWithNewBody(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	first := requestWithPattern(http.MethodPost, "/api/v1/orders", "/api/v1/orders", strings.NewReader(`{"total_cents":100}`))
	first.Header.Set("Idempotency-Key", "abc")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, first)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}

	second := requestWithPattern(http.MethodPost, "/api/v1/orders", "/api/v1/orders", strings.NewReader(`{"total_cents":999}`))
	second.Header.Set("Idempotency-Key", "abc")
	resp = httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, second)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 for reused key with new body got %d", resp.Code)
	}
}

func TestIdempotencyMiddlewareScopesByActor(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	})

	makeRequest := func(actor string) {
		req := requestWithPattern(http.MethodPost, "/api/v1/orders", "/api/v1/orders", strings.NewReader(`{"foo":"bar"}`))
		req.Header.Set("Idempotency-Key", "abc")
		if actor != "" {
			req = req.WithContext(WithActorID(req.Context(), uuid.MustParse(actor)))
		}
		resp := httptest.NewRecorder()
		mw(handler).ServeHTTP(resp, req)
	}

	makeRequest("4b51a712-0b1f-4f6e-9e6e-6a86ac8b6d01")
	makeRequest("97f3a1d4-2b57-4b8e-8d32-5a3f0f2d9c02")
	if calls != 2 {
		t.Fatalf("distinct actors must not share idempotency records, handler ran %d times", calls)
	}
}

func TestIdempotencyMiddlewareSkipsUnmatchedRoutes(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})

	req := requestWithPattern(http.MethodGet, "/api/v1/orders", "/api/v1/orders", nil)
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK || calls != 1 {
		t.Fatalf("reads must pass through untouched")
	}
	if len(store.data) != 0 {
		t.Fatalf("no record should be stored for unmatched routes")
	}
}
