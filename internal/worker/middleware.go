package worker

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type requestIDKey struct{}

// orgIDPattern accepts UUIDs, slugs and numeric ids.
var orgIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_.:-]+$`)

// defaultOrigins is the CORS whitelist used when none is configured.
// Matching is exact so "evil-localhost.com" never passes.
var defaultOrigins = []string{
	"http://localhost",
	"http://localhost:3000",
	"http://localhost:5173",
	"http://127.0.0.1",
	"http://127.0.0.1:3000",
	"http://127.0.0.1:5173",
}

var (
	errUnauthorized = errors.New("unauthorized")
	errRateLimited  = errors.New("rate limit exceeded")
	errBodyTooLarge = errors.New("request body too large")
	errContentType  = errors.New("content type must be application/json")
)

// SecurityHeaders sets hardening headers and answers CORS preflights for
// the given exact-match origins.
func SecurityHeaders(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = defaultOrigins
	}
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(o, "/")] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Content-Security-Policy", "default-src 'none'")
			h.Set("Cache-Control", "no-store")

			if origin := r.Header.Get("Origin"); allowed[origin] {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Auth-Token, X-Request-ID")
				h.Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MaxBodySize rejects bodies larger than maxBytes.
func MaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				writeError(w, r, http.StatusRequestEntityTooLarge, errBodyTooLarge)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// TokenAuth checks a static shared token sent as X-Auth-Token or as a
// Bearer token. An empty token disables the check.
type TokenAuth struct {
	exempt map[string]bool
	token  string
}

// NewTokenAuth creates a TokenAuth for token. Health and readiness checks are exempt.
func NewTokenAuth(token string) *TokenAuth {
	return &TokenAuth{
		token: token,
		exempt: map[string]bool{
			"/health":    true,
			"/api/ready": true,
		},
	}
}

// Enabled reports whether requests must carry the token.
func (ta *TokenAuth) Enabled() bool {
	return ta.token != ""
}

// Middleware enforces the token on non-exempt paths.
func (ta *TokenAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !ta.Enabled() || ta.exempt[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		provided := r.Header.Get("X-Auth-Token")
		if provided == "" {
			provided, _ = strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(ta.token)) != 1 {
			writeError(w, r, http.StatusUnauthorized, errUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequestID propagates the client's X-Request-ID or assigns a new UUID.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the request ID stored by RequestID.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// RequestLogger logs one line per request.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		event := log.Debug()
		if status >= http.StatusInternalServerError {
			event = log.Warn()
		}
		event.
			Str("request_id", GetRequestID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// RequireJSONContentType rejects POST bodies that are not JSON.
func RequireJSONContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				writeError(w, r, http.StatusUnsupportedMediaType, errContentType)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// ValidateOrgID checks that an organization id is safe to pass to a query.
func ValidateOrgID(orgID string) error {
	if orgID == "" {
		return fmt.Errorf("organization id is required")
	}
	if len(orgID) > 128 {
		return fmt.Errorf("organization id too long (max 128 chars)")
	}
	if !orgIDPattern.MatchString(orgID) {
		return fmt.Errorf("invalid organization id: only letters, digits, '_', '.', ':' and '-' allowed")
	}
	return nil
}
