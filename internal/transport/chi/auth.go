package chi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

const authRealm = `Bearer realm="dicomgw"`

// apiKeys is the configured key set. Tokens are compared in constant time
// against every key so a mismatch does not reveal how much of a key matched.
type apiKeys [][]byte

func newAPIKeys(keys []string) apiKeys {
	var out apiKeys
	for _, k := range keys {
		if k != "" {
			out = append(out, []byte(k))
		}
	}
	return out
}

func (k apiKeys) valid(token string) bool {
	match := 0
	for _, key := range k {
		match |= subtle.ConstantTimeCompare(key, []byte(token))
	}
	return match == 1
}

// bearerToken extracts the token of an Authorization header. The scheme is
// matched case-insensitively. A non-empty reason means the header is unusable.
func bearerToken(header string) (token, reason string) {
	if header == "" {
		return "", "missing authorization header"
	}
	scheme, token, _ := strings.Cut(header, " ")
	if !strings.EqualFold(scheme, "Bearer") {
		return "", "authorization header must use Bearer scheme"
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", "empty bearer token"
	}
	return token, ""
}

// skipsAuth reports whether r bypasses the key check: operational routes
// and CORS preflights, which browsers send without credentials.
func skipsAuth(r *http.Request) bool {
	if r.Method == http.MethodOptions {
		return true
	}
	return r.URL.Path == HealthPath || r.URL.Path == MetricsPath
}

// BearerAuthMiddleware guards every route except health, metrics and
// preflights with a static API key set. No keys disables it.
func BearerAuthMiddleware(keys []string) func(http.Handler) http.Handler {
	set := newAPIKeys(keys)

	return func(next http.Handler) http.Handler {
		if len(set) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipsAuth(r) {
				next.ServeHTTP(w, r)
				return
			}
			token, reason := bearerToken(r.Header.Get("Authorization"))
			if reason == "" && !set.valid(token) {
				reason = "invalid api key"
			}
			if reason != "" {
				w.Header().Set("WWW-Authenticate", authRealm)
				writeError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, reason)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
