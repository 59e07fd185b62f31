package httpx

import (
	"net/http"

	"github.com/gorilla/sessions"
)

const flashCookie = "todokeeper_flash"

var flashKinds = []string{"error", "info"}

// flash is a one-shot message shown on the next rendered page.
type flash struct {
	Kind    string
	Message string
}

func newFlashStore(key []byte, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore(key)
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// setFlash queues msg for the next page this client renders.
func (r *Router) setFlash(w http.ResponseWriter, req *http.Request, kind, msg string) {
	// A cookie that fails to decode still yields a fresh session.
	sess, _ := r.flashes.Get(req, flashCookie)
	sess.AddFlash(msg, kind)
	if err := sess.Save(req, w); err != nil {
		r.logger.Warn(req.Context(), "flash save failed", "error", err)
	}
}

// popFlash returns the pending message, if any, and clears it.
func (r *Router) popFlash(w http.ResponseWriter, req *http.Request) *flash {
	sess, _ := r.flashes.Get(req, flashCookie)
	var out *flash
	drained := false
	for _, kind := range flashKinds {
		for _, v := range sess.Flashes(kind) {
			drained = true
			if msg, ok := v.(string); ok && out == nil {
				out = &flash{Kind: kind, Message: msg}
			}
		}
	}
	if drained {
		if err := sess.Save(req, w); err != nil {
			r.logger.Warn(req.Context(), "flash save failed", "error", err)
		}
	}
	return out
}
