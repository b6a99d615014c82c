package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/foodapp-backend/api/responses"
	pkgerrors "github.com/angelmondragon/foodapp-backend/pkg/errors"
	"github.com/angelmondragon/foodapp-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/foodapp-backend/pkg/redis"
)

const (
	IdempotencyKeyHeader     = "Idempotency-Key"
	IdempotentReplayedHeader = "Idempotent-Replayed"
	maxIdempotencyKeyLength  = 255
	pendingIdempotencyTTL    = time.Minute
	fallbackIdempotencyTTL   = 24 * time.Hour
)

// IdempotencyPolicy configures one guarded route.
type IdempotencyPolicy struct {
	// TTL is how long a completed response stays replayable.
	TTL time.Duration
	// RequireKey rejects requests that omit the header.
	RequireKey bool
}

var (
	CheckoutIdempotency   = IdempotencyPolicy{TTL: 7 * 24 * time.Hour, RequireKey: true}
	PaymentIdempotency    = IdempotencyPolicy{TTL: 7 * 24 * time.Hour}
	TransitionIdempotency = IdempotencyPolicy{TTL: 24 * time.Hour}
)

// storedResponse is the redis value behind a key. Pending marks a request
// that has claimed the key but not finished.
type storedResponse struct {
	Fingerprint string `json:"fingerprint"`
	Pending     bool   `json:"pending,omitempty"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

type idempotencyGuard struct {
	store  pkgredis.IdempotencyStore
	logg   *logger.Logger
	policy IdempotencyPolicy
}

// Idempotency replays the stored response for a repeated Idempotency-Key.
// The key is claimed before the handler runs so concurrent retries cannot
// both execute. 409 and 5xx answers release the key for another attempt.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger, policy IdempotencyPolicy) func(http.Handler) http.Handler {
	if policy.TTL <= 0 {
		policy.TTL = fallbackIdempotencyTTL
	}
	guard := &idempotencyGuard{store: store, logg: logg, policy: policy}
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			guard.serve(w, r, next)
		})
	}
}

func (g *idempotencyGuard) serve(w http.ResponseWriter, r *http.Request, next http.Handler) {
	ctx := r.Context()
	clientKey := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	switch {
	case clientKey == "" && g.policy.RequireKey:
		g.reject(ctx, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
		return
	case clientKey == "":
		next.ServeHTTP(w, r)
		return
	case len(clientKey) > maxIdempotencyKeyLength:
		g.reject(ctx, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key must be at most 255 characters"))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		g.reject(ctx, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	fingerprint := bodyFingerprint(body)
	key := g.store.IdempotencyKey(requestScope(r), clientKey)

	claimed, err := g.claim(ctx, key, fingerprint)
	if err != nil {
		g.reject(ctx, w, err)
		return
	}
	if !claimed {
		g.replay(ctx, w, key, fingerprint)
		return
	}

	capture := &responseCapture{ResponseWriter: w}
	next.ServeHTTP(capture, r)
	g.settle(ctx, key, fingerprint, capture)
}

func (g *idempotencyGuard) claim(ctx context.Context, key, fingerprint string) (bool, error) {
	marker, err := json.Marshal(storedResponse{Fingerprint: fingerprint, Pending: true})
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode idempotency marker")
	}
	claimed, err := g.store.SetNX(ctx, key, string(marker), pendingIdempotencyTTL)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key")
	}
	return claimed, nil
}

// settle stores the final answer, or drops the claim when the client is
// expected to retry.
func (g *idempotencyGuard) settle(ctx context.Context, key, fingerprint string, capture *responseCapture) {
	status := capture.statusCode()
	if status == http.StatusConflict || status >= http.StatusInternalServerError {
		if err := g.store.Del(ctx, key); err != nil {
			g.logFailure(ctx, "release idempotency key", err)
		}
		return
	}

	payload, err := json.Marshal(storedResponse{
		Fingerprint: fingerprint,
		Status:      status,
		ContentType: capture.Header().Get("Content-Type"),
		Body:        capture.body.Bytes(),
	})
	if err != nil {
		g.logFailure(ctx, "encode idempotency record", err)
		return
	}
	if err := g.store.Set(ctx, key, string(payload), g.policy.TTL); err != nil {
		g.logFailure(ctx, "persist idempotency record", err)
	}
}

func (g *idempotencyGuard) replay(ctx context.Context, w http.ResponseWriter, key, fingerprint string) {
	raw, err := g.store.Get(ctx, key)
	switch {
	case errors.Is(err, redis.Nil) || (err == nil && raw == ""):
		// released between SetNX and Get
		g.reject(ctx, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this idempotency key was just released, retry"))
		return
	case err != nil:
		g.reject(ctx, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load idempotency record"))
		return
	}

	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		g.reject(ctx, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	switch {
	case stored.Fingerprint != fingerprint:
		g.reject(ctx, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
	case stored.Pending:
		g.reject(ctx, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this idempotency key is still in progress"))
	default:
		if stored.ContentType != "" {
			w.Header().Set("Content-Type", stored.ContentType)
		}
		w.Header().Set(IdempotentReplayedHeader, "true")
		w.WriteHeader(stored.Status)
		_, _ = w.Write(stored.Body)
	}
}

func (g *idempotencyGuard) reject(ctx context.Context, w http.ResponseWriter, err error) {
	responses.WriteError(ctx, g.logg, w, err)
}

func (g *idempotencyGuard) logFailure(ctx context.Context, msg string, err error) {
	if g.logg != nil {
		g.logg.Error(ctx, msg, err)
	}
}

// requestScope keeps keys from colliding across users and endpoints.
func requestScope(r *http.Request) string {
	return strings.Join([]string{UserIDFromContext(r.Context()), r.Method, r.URL.Path}, "|")
}

func bodyFingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

type responseCapture struct {
	http.ResponseWriter
	body bytes.Buffer
	code int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.code == 0 {
		c.code = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.code == 0 {
		c.code = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusCode() int {
	if c.code == 0 {
		return http.StatusOK
	}
	return c.code
}
