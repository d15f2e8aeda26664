package server

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/54b3r/docchat/internal/logging"
)

// requireKey guards next with Bearer authentication against the configured
// API keys. Any listed key is accepted, so a new key can be rolled out before
// the old one is withdrawn. With no keys configured next is returned as is.
// Rejections are counted by reason; the presented token is never logged.
func (s *Server) requireKey(handler string, next http.Handler) http.Handler {
	keys := make([][]byte, 0, len(s.cfg.APIKeys))
	for _, k := range s.cfg.APIKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, []byte(k))
		}
	}
	if len(keys) == 0 {
		return next
	}

	reject := func(w http.ResponseWriter, r *http.Request, reason, challenge, detail string) {
		log := logging.FromContext(r.Context())
		s.metrics.authRejectedTotal.WithLabelValues(handler, reason).Inc()
		log.Warn("request rejected", slog.String("handler", handler), slog.String("reason", reason))
		w.Header().Set("WWW-Authenticate", challenge)
		writeDetail(w, http.StatusUnauthorized, detail, log)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			reject(w, r, "missing", `Bearer realm="docchat"`, "authorization required")
			return
		}
		if !matchesAny(token, keys) {
			reject(w, r, "invalid", `Bearer realm="docchat" error="invalid_token"`, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// matchesAny compares token against every key in constant time, without
// stopping at the first match.
func matchesAny(token string, keys [][]byte) bool {
	t := []byte(token)
	found := 0
	for _, k := range keys {
		found |= subtle.ConstantTimeCompare(t, k)
	}
	return found == 1
}

// bearerToken returns the credential of an "Authorization: Bearer <token>"
// header, reporting false when the header is absent or uses another scheme.
func bearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
