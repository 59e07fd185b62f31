package httpx

import (
	"crypto/sha256"
	"net/http"

	"github.com/gorilla/csrf"
)

const (
	csrfCookie = "todokeeper_csrf"
	csrfField  = "_csrf"
	csrfHeader = "X-CSRF-Token"
)

// csrfKey stretches any configured secret to the 32 bytes gorilla/csrf wants.
func csrfKey(secret []byte) []byte {
	sum := sha256.Sum256(secret)
	return sum[:]
}

// csrf rejects unsafe requests without a valid token and exposes a token for
// the current client in the X-CSRF-Token response header. Forms and JSON
// clients may submit it in the _csrf field or the same header.
func (r *Router) csrf(next http.Handler) http.Handler {
	protect := csrf.Protect(csrfKey(r.csrfKey),
		csrf.CookieName(csrfCookie),
		csrf.FieldName(csrfField),
		csrf.RequestHeader(csrfHeader),
		csrf.Path("/"),
		csrf.HttpOnly(true),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.Secure(r.secureCookies),
		csrf.ErrorHandler(http.HandlerFunc(r.csrfFailed)),
	)

	exposed := protect(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set(csrfHeader, csrf.Token(req))
		next.ServeHTTP(w, req)
	}))

	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		// The Origin/Referer check only applies to requests that arrived over TLS.
		if req.TLS == nil {
			req = csrf.PlaintextHTTPRequest(req)
		}
		exposed.ServeHTTP(w, req)
	})
}

func (r *Router) csrfFailed(w http.ResponseWriter, req *http.Request) {
	r.logger.Warn(req.Context(), "csrf check failed",
		"method", req.Method, "path", req.URL.Path, "reason", csrf.FailureReason(req))
	writeError(w, http.StatusForbidden, "invalid csrf token")
}
