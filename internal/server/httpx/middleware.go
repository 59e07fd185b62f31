package httpx

import (
	"context"
	"net/http"
	"time"
)

const sessionCookie = "todokeeper_session"

type authContextKey struct{}

type authInfo struct {
	UserID    string
	SessionID string
	Token     string
}

type contextSetter interface {
	SetContext(context.Context)
}

// authInfoFromContext extracts the signed-in user, if any.
func authInfoFromContext(ctx context.Context) (authInfo, bool) {
	info, ok := ctx.Value(authContextKey{}).(authInfo)
	return info, ok
}

// audit logs one line per request.
func (r *Router) audit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next.ServeHTTP(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		actor := "anonymous"
		if info, ok := authInfoFromContext(ctx); ok {
			actor = info.UserID
		}
		r.logger.Info(ctx, "http request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
			"actor", actor,
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

// withTimeout bounds the work done on behalf of a single request.
func (r *Router) withTimeout(next http.Handler) http.Handler {
	if r.requestTimeout <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), r.requestTimeout)
		defer cancel()
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

// loadSession resolves the session cookie. A stale or revoked cookie is
// cleared and the request continues anonymously.
func (r *Router) loadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		c, err := req.Cookie(sessionCookie)
		if err != nil || c.Value == "" {
			next.ServeHTTP(w, req)
			return
		}

		sess, err := r.sessions.Authenticate(req.Context(), c.Value)
		if err != nil {
			r.logger.Debug(req.Context(), "session rejected", "error", err)
			clearSessionCookie(w)
			next.ServeHTTP(w, req)
			return
		}

		ctx := context.WithValue(req.Context(), authContextKey{}, authInfo{
			UserID:    sess.UserID,
			SessionID: sess.ID,
			Token:     c.Value,
		})
		if setter, ok := w.(contextSetter); ok {
			setter.SetContext(ctx)
		}
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

// requireLogin sends anonymous page requests to /login and answers JSON
// requests with 401.
func (r *Router) requireLogin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if _, ok := authInfoFromContext(req.Context()); !ok {
			if wantsJSON(req) {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			http.Redirect(w, req, "/login", http.StatusFound)
			return
		}
		next(w, req)
	}
}

func setSessionCookie(w http.ResponseWriter, req *http.Request, token string, validity time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(validity / time.Second),
		HttpOnly: true,
		Secure:   req.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
}
