package auth

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Limits applied to failed logins per client address.
const (
	DefaultMaxAttempts = 5
	DefaultWindow      = time.Minute
	DefaultBlock       = 5 * time.Minute
)

// Guard requires the shared password on every request it wraps, as either
// "Authorization: Bearer <password>" or HTTP basic auth with any user name.
// Browsers opening /ws cannot set headers, so a "token" query parameter is
// also accepted.
type Guard struct {
	hash    string
	limiter *RateLimiter
	logger  *zap.Logger
	realm   string
}

// NewGuard hashes password once so it is not kept in memory in clear.
func NewGuard(password string, logger *zap.Logger) (*Guard, error) {
	return newGuard(password, DefaultCost, logger)
}

func newGuard(password string, cost int, logger *zap.Logger) (*Guard, error) {
	hash, err := HashPassword(password, cost)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{
		hash:    hash,
		limiter: NewRateLimiter(DefaultMaxAttempts, DefaultWindow, DefaultBlock),
		logger:  logger,
		realm:   "upscaler",
	}, nil
}

// Middleware rejects unauthenticated requests with 401, and clients with
// too many failures with 429.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := ClientIP(r)
		if ok, wait := g.limiter.Allow(client); !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
			http.Error(w, "too many failed attempts", http.StatusTooManyRequests)
			return
		}

		password, found := credentials(r)
		if !found || VerifyPassword(password, g.hash) != nil {
			if found {
				g.limiter.Fail(client)
				g.logger.Warn("authentication failed", zap.String("client", client), zap.String("path", r.URL.Path))
			}
			w.Header().Set("WWW-Authenticate", `Basic realm="`+g.realm+`"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		g.limiter.Reset(client)
		next.ServeHTTP(w, r)
	})
}

// Limiter exposes the failure limiter so the server can prune it.
func (g *Guard) Limiter() *RateLimiter { return g.limiter }

func credentials(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return token, true
		}
	}
	if _, password, ok := r.BasicAuth(); ok {
		return password, true
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, true
	}
	return "", false
}

// ClientIP returns the first X-Forwarded-For hop, X-Real-IP, or the remote
// host, in that order.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
