package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/abubuhammad/georgy-marketplace-backend/api/responses"
	pkgerrors "github.com/abubuhammad/georgy-marketplace-backend/pkg/errors"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/logger"
	pkgredis "github.com/abubuhammad/georgy-marketplace-backend/pkg/redis"
)

const (
	idempotencyHeader      = "Idempotency-Key"
	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
)

// idempotencyRule matches a chi route pattern (or raw path) by prefix and
// suffix. An empty suffix means exact match on the prefix.
type idempotencyRule struct {
	method string
	prefix string
	suffix string
	ttl    time.Duration
}

func (r idempotencyRule) matches(method, pattern string) bool {
	if r.method != method {
		return false
	}
	if r.suffix == "" {
		// chi reports nested index routes with a trailing slash
		return strings.TrimSuffix(pattern, "/") == r.prefix
	}
	return strings.HasPrefix(pattern, r.prefix) && strings.HasSuffix(pattern, r.suffix)
}

// Routes that move money or mutate settlement state keep captures for a
// week; the rest expire after a day.
var idempotencyRules = []idempotencyRule{
	{method: http.MethodPost, prefix: "/api/v1/orders", ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, prefix: "/api/v1/orders/", suffix: "/status", ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, prefix: "/api/v1/agent/shipments/", suffix: "/status", ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, prefix: "/api/v1/admin/shipments/", suffix: "/assign", ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, prefix: "/api/v1/orders/", suffix: "/cancel", ttl: criticalIdempotencyTTL},
	{method: http.MethodPost, prefix: "/api/v1/orders/", suffix: "/refunds", ttl: criticalIdempotencyTTL},
	{method: http.MethodPost, prefix: "/api/v1/admin/refunds/", suffix: "/decision", ttl: criticalIdempotencyTTL},
	{method: http.MethodPost, prefix: "/api/v1/sellers/", suffix: "/payouts", ttl: criticalIdempotencyTTL},
	{method: http.MethodPost, prefix: "/api/v1/admin/payouts/process", ttl: criticalIdempotencyTTL},
}

// storedResponse is the redis value for a captured response.
type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType,omitempty"`
	BodyB64     string `json:"bodyB64"`
	RequestHash string `json:"requestHash"`
}

// Idempotency replays captured responses for repeated Idempotency-Key
// values. The key is scoped per actor, method and path; reusing a key with
// a different body is a conflict. A nil store disables the middleware.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, guarded := routeTTL(r.Method, routePattern(r))
			if !guarded || store == nil {
				next.ServeHTTP(w, r)
				return
			}

			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if clientKey == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, idempotencyHeader+" header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			sum := sha256.Sum256(body)
			requestHash := hex.EncodeToString(sum[:])

			scope := strings.Join([]string{
				ActorIDFromContext(r.Context()).String(),
				r.Method,
				r.URL.Path,
			}, "|")
			storageKey := store.IdempotencyKey(scope, clientKey)

			stored, getErr := store.Get(r.Context(), storageKey)
			if getErr != nil && !errors.Is(getErr, redis.Nil) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, getErr, "check idempotency"))
				return
			}
			if stored != "" {
				replayStored(r, w, logg, stored, requestHash)
				return
			}

			capture := &bufferingWriter{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			record := storedResponse{
				Status:      capture.statusOr(http.StatusOK),
				ContentType: capture.Header().Get("Content-Type"),
				BodyB64:     base64.StdEncoding.EncodeToString(capture.body.Bytes()),
				RequestHash: requestHash,
			}
			payload, marshalErr := json.Marshal(record)
			if marshalErr != nil {
				if logg != nil {
					logg.Error(r.Context(), "marshal idempotency record", marshalErr)
				}
				return
			}
			if _, setErr := store.SetNX(r.Context(), storageKey, string(payload), ttl); setErr != nil && logg != nil {
				logg.Error(r.Context(), "persist idempotency record", setErr)
			}
		})
	}
}

func replayStored(r *http.Request, w http.ResponseWriter, logg *logger.Logger, stored, requestHash string) {
	var record storedResponse
	if err := json.Unmarshal([]byte(stored), &record); err != nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	if record.RequestHash != requestHash {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
		return
	}
	if record.ContentType != "" {
		w.Header().Set("Content-Type", record.ContentType)
	}
	w.WriteHeader(record.Status)
	if decoded, err := base64.StdEncoding.DecodeString(record.BodyB64); err == nil {
		_, _ = w.Write(decoded)
	}
}

// routePattern prefers the chi route pattern; before routing (or in direct
// handler tests) it falls back to the raw path, which the prefix/suffix
// rules also accept.
func routePattern(r *http.Request) string {
	if r == nil {
		return ""
	}
	if ctx := chi.RouteContext(r.Context()); ctx != nil {
		if pattern := ctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

func routeTTL(method, pattern string) (time.Duration, bool) {
	if pattern == "" {
		return 0, false
	}
	for _, rule := range idempotencyRules {
		if rule.matches(method, pattern) {
			return rule.ttl, true
		}
	}
	return 0, false
}

// bufferingWriter tees the response body so it can be stored for replay.
type bufferingWriter struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (b *bufferingWriter) WriteHeader(code int) {
	b.status = code
	b.ResponseWriter.WriteHeader(code)
}

func (b *bufferingWriter) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	b.body.Write(p)
	return b.ResponseWriter.Write(p)
}

func (b *bufferingWriter) statusOr(fallback int) int {
	if b.status == 0 {
		return fallback
	}
	return b.status
}
