// Package httpx is the web front end: HTML pages for browsers and JSON for
// API clients over the same routes, guarded by session and CSRF middleware.
package httpx

import (
	"context"
	"html/template"
	"net/http"
	"time"

	"github.com/dmitrijs2005/todokeeper/internal/logging"
	"github.com/dmitrijs2005/todokeeper/internal/server/auth"
	"github.com/dmitrijs2005/todokeeper/internal/server/models"
	"github.com/dmitrijs2005/todokeeper/internal/server/services"
	"github.com/gorilla/sessions"
)

type IdentityService interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.User, error)
	VerifyCredentials(ctx context.Context, email, password string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type TaskService interface {
	Create(ctx context.Context, ownerID, title, dueDate string) (*models.Task, error)
	ListGrouped(ctx context.Context, ownerID string) (*services.Grouped, error)
	Get(ctx context.Context, taskID, ownerID string) (*models.Task, error)
	SetCompleted(ctx context.Context, taskID, ownerID string, completed bool) (*models.Task, error)
	Delete(ctx context.Context, taskID, ownerID string) (bool, error)
}

type SessionManager interface {
	Start(ctx context.Context, userID string) (string, error)
	Authenticate(ctx context.Context, token string) (*auth.Session, error)
	End(ctx context.Context, token string) error
	Validity() time.Duration
}

// Options carries the Router's dependencies.
type Options struct {
	Logger         logging.Logger
	Identity       IdentityService
	Tasks          TaskService
	Sessions       SessionManager
	CSRFKey        []byte
	SecureCookies  bool
	RequestTimeout time.Duration
	Location       *time.Location
	DBHealth       func(context.Context) error
}

// Router wires HTTP endpoints to services.
type Router struct {
	mux            *http.ServeMux
	handler        http.Handler
	logger         logging.Logger
	identity       IdentityService
	tasks          TaskService
	sessions       SessionManager
	csrfKey        []byte
	secureCookies  bool
	flashes        *sessions.CookieStore
	pages          *template.Template
	requestTimeout time.Duration
	location       *time.Location
	dbHealth       func(context.Context) error
}

const healthCheckTimeout = 2 * time.Second

// NewRouter assembles routes with dependencies.
func NewRouter(opts Options) (*Router, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	pages, err := parseTemplates(loc)
	if err != nil {
		return nil, err
	}

	r := &Router{
		mux:            http.NewServeMux(),
		logger:         opts.Logger,
		identity:       opts.Identity,
		tasks:          opts.Tasks,
		sessions:       opts.Sessions,
		csrfKey:        opts.CSRFKey,
		secureCookies:  opts.SecureCookies,
		flashes:        newFlashStore(opts.CSRFKey, opts.SecureCookies),
		pages:          pages,
		requestTimeout: opts.RequestTimeout,
		location:       loc,
		dbHealth:       opts.DBHealth,
	}
	if r.logger == nil {
		r.logger = logging.Nop{}
	}
	r.register()
	r.handler = r.audit(r.withTimeout(r.csrf(r.loadSession(r.mux))))
	return r, nil
}

// ServeHTTP delegates to the middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

func (r *Router) register() {
	r.mux.HandleFunc("GET /{$}", r.handleIndex)
	r.mux.HandleFunc("GET /healthz", r.handleHealthz)

	r.mux.HandleFunc("GET /signup", r.handleSignupPage)
	r.mux.HandleFunc("POST /users", r.handleRegister)
	r.mux.HandleFunc("GET /login", r.handleLoginPage)
	r.mux.HandleFunc("POST /session", r.handleLogin)
	r.mux.HandleFunc("GET /signout", r.handleSignout)

	r.mux.HandleFunc("GET /todos", r.requireLogin(r.handleListTodos))
	r.mux.HandleFunc("POST /todos", r.requireLogin(r.handleCreateTodo))
	r.mux.HandleFunc("GET /todos/{id}", r.requireLogin(r.handleGetTodo))
	r.mux.HandleFunc("PUT /todos/{id}", r.requireLogin(r.handleSetCompleted))
	r.mux.HandleFunc("DELETE /todos/{id}", r.requireLogin(r.handleDeleteTodo))
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	status := "ok"
	code := http.StatusOK
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			r.logger.Warn(ctx, "database health check failed", "error", err)
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}
