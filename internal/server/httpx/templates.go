package httpx

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/dmitrijs2005/todokeeper/internal/server/services"
	"github.com/gorilla/csrf"
)

//go:embed templates/*.html
var templateFS embed.FS

type todosPage struct {
	UserName string
	Grouped  *services.Grouped
}

type pageData struct {
	Title     string
	CSRFToken string
	CSRFField template.HTML
	Flash     *flash
	SignedIn  bool
	Page      any
}

func parseTemplates(loc *time.Location) (*template.Template, error) {
	return template.New("pages").
		Funcs(template.FuncMap{
			"date": func(t time.Time) string { return t.In(loc).Format("2006-01-02") },
			"dict": dict,
		}).
		ParseFS(templateFS, "templates/*.html")
}

func dict(kv ...any) (map[string]any, error) {
	if len(kv)%2 != 0 {
		return nil, errors.New("dict: odd number of arguments")
	}
	m := make(map[string]any, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict: key %v is not a string", kv[i])
		}
		m[k] = kv[i+1]
	}
	return m, nil
}

// render executes the named page into a buffer first so a template error
// still produces a clean 500.
func (r *Router) render(w http.ResponseWriter, req *http.Request, name, title string, page any) {
	_, signedIn := authInfoFromContext(req.Context())
	data := pageData{
		Title:     title,
		CSRFToken: csrf.Token(req),
		CSRFField: csrf.TemplateField(req),
		Flash:     r.popFlash(w, req),
		SignedIn:  signedIn,
		Page:      page,
	}

	var buf bytes.Buffer
	if err := r.pages.ExecuteTemplate(&buf, name, data); err != nil {
		r.logger.Error(req.Context(), "template render failed", "template", name, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
