package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/foodapp-backend/pkg/errors"
)

type memoryStore struct {
	mu   sync.Mutex
	vals map[string]string
	ttls map[string]time.Duration
}

func newMemoryStore() *memoryStore {
	return &memoryStore{vals: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vals[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.vals[key]; taken {
		return false, nil
	}
	m.vals[key], m.ttls[key] = value.(string), ttl
	return true, nil
}

func (m *memoryStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals[key], m.ttls[key] = value.(string), ttl
	return nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.vals, key)
		delete(m.ttls, key)
	}
	return nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "mem:" + scope + ":" + id
}

// countingHandler answers with the queued statuses in order, repeating the
// last one once the queue runs out.
type countingHandler struct {
	statuses []int
	calls    int
}

func (h *countingHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	status := h.statuses[len(h.statuses)-1]
	if h.calls < len(h.statuses) {
		status = h.statuses[h.calls]
	}
	h.calls++
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"call":` + strconv.Itoa(h.calls) + `}`))
}

func postOrder(key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	return req
}

func run(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error.Code
}

func TestIdempotencyRequiredKey(t *testing.T) {
	next := &countingHandler{statuses: []int{http.StatusCreated}}
	h := Idempotency(newMemoryStore(), nil, CheckoutIdempotency)(next)

	rec := run(h, postOrder("", `{}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, string(pkgerrors.CodeValidation), errorCode(t, rec))
	require.Zero(t, next.calls)

	rec = run(h, postOrder(strings.Repeat("k", maxIdempotencyKeyLength+1), `{}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Zero(t, next.calls)
}

func TestIdempotencyOptionalKeyPassesThrough(t *testing.T) {
	store := newMemoryStore()
	next := &countingHandler{statuses: []int{http.StatusOK}}
	h := Idempotency(store, nil, TransitionIdempotency)(next)

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, run(h, postOrder("", `{}`)).Code)
	}
	require.Equal(t, 2, next.calls)
	require.Empty(t, store.vals)
}

func TestIdempotencyReplaysCompletedResponse(t *testing.T) {
	store := newMemoryStore()
	next := &countingHandler{statuses: []int{http.StatusCreated}}
	h := Idempotency(store, nil, CheckoutIdempotency)(next)

	first := run(h, postOrder("abc", `{"location_id":"x"}`))
	require.Equal(t, http.StatusCreated, first.Code)
	require.Empty(t, first.Header().Get(IdempotentReplayedHeader))

	second := run(h, postOrder("abc", `{"location_id":"x"}`))
	require.Equal(t, http.StatusCreated, second.Code)
	require.Equal(t, "true", second.Header().Get(IdempotentReplayedHeader))
	require.Equal(t, "application/json", second.Header().Get("Content-Type"))
	require.Equal(t, first.Body.String(), second.Body.String())
	require.Equal(t, 1, next.calls)

	for key, ttl := range store.ttls {
		require.Equal(t, CheckoutIdempotency.TTL, ttl, key)
	}
}

func TestIdempotencyRejectsChangedBody(t *testing.T) {
	next := &countingHandler{statuses: []int{http.StatusCreated}}
	h := Idempotency(newMemoryStore(), nil, CheckoutIdempotency)(next)

	run(h, postOrder("xyz", `{"a":1}`))
	rec := run(h, postOrder("xyz", `{"a":2}`))

	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, string(pkgerrors.CodeIdempotency), errorCode(t, rec))
	require.Equal(t, 1, next.calls)
}

func TestIdempotencyRejectsConcurrentDuplicate(t *testing.T) {
	store := newMemoryStore()
	mw := Idempotency(store, nil, CheckoutIdempotency)

	var duplicate *httptest.ResponseRecorder
	outer := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inner := mw(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Fatal("duplicate must not reach the handler")
		}))
		duplicate = run(inner, postOrder("k1", `{}`))
		w.WriteHeader(http.StatusCreated)
	})

	require.Equal(t, http.StatusCreated, run(mw(outer), postOrder("k1", `{}`)).Code)
	require.NotNil(t, duplicate)
	require.Equal(t, http.StatusConflict, duplicate.Code)
	require.Equal(t, string(pkgerrors.CodeConflict), errorCode(t, duplicate))
}

func TestIdempotencySettlesByStatus(t *testing.T) {
	tests := []struct {
		name      string
		first     int
		wantCalls int
	}{
		{"server error releases", http.StatusServiceUnavailable, 2},
		{"conflict releases", http.StatusConflict, 2},
		{"validation error is kept", http.StatusBadRequest, 1},
		{"invalid transition is kept", http.StatusUnprocessableEntity, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := &countingHandler{statuses: []int{tt.first, http.StatusCreated}}
			h := Idempotency(newMemoryStore(), nil, CheckoutIdempotency)(next)

			require.Equal(t, tt.first, run(h, postOrder("retry", `{}`)).Code)
			second := run(h, postOrder("retry", `{}`))
			require.Equal(t, tt.wantCalls, next.calls)
			if tt.wantCalls == 1 {
				require.Equal(t, tt.first, second.Code)
			} else {
				require.Equal(t, http.StatusCreated, second.Code)
			}
		})
	}
}

func TestIdempotencyScopesKeysPerUser(t *testing.T) {
	next := &countingHandler{statuses: []int{http.StatusCreated}}
	h := Idempotency(newMemoryStore(), nil, CheckoutIdempotency)(next)

	for _, user := range []string{"user-a", "user-b"} {
		req := postOrder("shared", `{}`)
		run(h, req.WithContext(WithUserID(req.Context(), user)))
	}
	require.Equal(t, 2, next.calls)
}

func TestIdempotencyWithoutStoreIsPassThrough(t *testing.T) {
	next := &countingHandler{statuses: []int{http.StatusCreated}}
	h := Idempotency(nil, nil, CheckoutIdempotency)(next)

	require.Equal(t, http.StatusCreated, run(h, postOrder("", `{}`)).Code)
	require.Equal(t, 1, next.calls)
}
