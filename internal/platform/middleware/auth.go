package middleware

import (
	"crypto/sha256"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"sherlock/pkg/requestcontext"
)

// APIKeyVerifier checks a presented bearer key against a bcrypt hash.
// Successful keys are remembered by digest so bcrypt runs once per key rather
// than once per request.
type APIKeyVerifier struct {
	hash []byte

	mu       sync.RWMutex
	accepted map[[sha256.Size]byte]struct{}
}

// NewAPIKeyVerifier returns nil when hash is empty, which disables auth.
func NewAPIKeyVerifier(hash string) *APIKeyVerifier {
	if hash == "" {
		return nil
	}
	return &APIKeyVerifier{
		hash:     []byte(hash),
		accepted: make(map[[sha256.Size]byte]struct{}),
	}
}

// Verify reports whether key matches the configured hash.
func (v *APIKeyVerifier) Verify(key string) bool {
	if key == "" {
		return false
	}
	digest := sha256.Sum256([]byte(key))

	v.mu.RLock()
	_, ok := v.accepted[digest]
	v.mu.RUnlock()
	if ok {
		return true
	}

	if bcrypt.CompareHashAndPassword(v.hash, []byte(key)) != nil {
		return false
	}
	v.mu.Lock()
	v.accepted[digest] = struct{}{}
	v.mu.Unlock()
	return true
}

// RequireAPIKey rejects requests without a valid "Authorization: Bearer <key>"
// header. A nil verifier lets every request through.
func RequireAPIKey(verifier *APIKeyVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if verifier == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if ok && verifier.Verify(strings.TrimSpace(key)) {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)
			description := "Missing or invalid Authorization header"
			if ok {
				description = "Invalid API key"
			}
			logger.WarnContext(ctx, "unauthorized access",
				"reason", description,
				"request_id", requestID,
			)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			if _, err := w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`)); err != nil {
				logger.ErrorContext(ctx, "failed to write unauthorized response",
					"error", err,
					"request_id", requestID,
				)
			}
		})
	}
}
