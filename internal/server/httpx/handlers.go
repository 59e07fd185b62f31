package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dmitrijs2005/todokeeper/internal/common"
	"github.com/dmitrijs2005/todokeeper/internal/server/services"
)

const maxBodyBytes = 1 << 20

// decodeInput fills dst from a JSON body, or from the parsed form via fromForm.
func decodeInput(w http.ResponseWriter, req *http.Request, dst any, fromForm func(url.Values)) error {
	if isJSONBody(req) {
		body := http.MaxBytesReader(w, req.Body, maxBodyBytes)
		if err := json.NewDecoder(body).Decode(dst); err != nil {
			return common.NewValidationError("", "invalid JSON body")
		}
		return nil
	}
	if err := req.ParseForm(); err != nil {
		return common.NewValidationError("", "invalid form body")
	}
	fromForm(req.PostForm)
	return nil
}

// firstValue returns the first non-empty form value among keys.
func firstValue(v url.Values, keys ...string) string {
	for _, k := range keys {
		if s := v.Get(k); s != "" {
			return s
		}
	}
	return ""
}

// fail translates a service error into a response. Page requests get a
// flash message and a redirect to back.
func (r *Router) fail(w http.ResponseWriter, req *http.Request, err error, back string) {
	var ve *common.ValidationError
	switch {
	case errors.As(err, &ve):
		if wantsJSON(req) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": ve.Reason, "field": ve.Field})
			return
		}
		r.setFlash(w, req, "error", ve.Reason)
		http.Redirect(w, req, back, http.StatusFound)
	case errors.Is(err, common.ErrAuthentication):
		if wantsJSON(req) {
			writeError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		r.setFlash(w, req, "error", "invalid email or password")
		http.Redirect(w, req, "/login", http.StatusFound)
	case errors.Is(err, common.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		r.logger.Error(req.Context(), "request failed", "path", req.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (r *Router) handleIndex(w http.ResponseWriter, req *http.Request) {
	if _, ok := authInfoFromContext(req.Context()); ok {
		http.Redirect(w, req, "/todos", http.StatusFound)
		return
	}
	r.render(w, req, "index", "My Todo Manager", nil)
}

func (r *Router) handleSignupPage(w http.ResponseWriter, req *http.Request) {
	r.render(w, req, "signup", "Sign up", nil)
}

func (r *Router) handleLoginPage(w http.ResponseWriter, req *http.Request) {
	r.render(w, req, "login", "Login", nil)
}

func (r *Router) handleRegister(w http.ResponseWriter, req *http.Request) {
	var in struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Email     string `json:"email"`
		Password  string `json:"password"`
	}
	err := decodeInput(w, req, &in, func(v url.Values) {
		in.FirstName = v.Get("firstName")
		in.LastName = v.Get("lastName")
		in.Email = v.Get("email")
		in.Password = v.Get("password")
	})
	if err != nil {
		r.fail(w, req, err, "/signup")
		return
	}

	user, err := r.identity.Register(req.Context(), services.RegisterInput{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
		Password:  in.Password,
	})
	if err != nil {
		r.fail(w, req, err, "/signup")
		return
	}
	r.logger.Info(req.Context(), "user registered", "user_id", user.ID)

	if !r.startSession(w, req, user.ID) {
		return
	}
	if wantsJSON(req) {
		writeJSON(w, http.StatusCreated, map[string]string{
			"id":        user.ID,
			"firstName": user.FirstName,
			"lastName":  user.LastName,
			"email":     user.Email,
		})
		return
	}
	http.Redirect(w, req, "/todos", http.StatusFound)
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	err := decodeInput(w, req, &in, func(v url.Values) {
		in.Email = firstValue(v, "email", "emails")
		in.Password = firstValue(v, "password", "passwords")
	})
	if err != nil {
		r.fail(w, req, err, "/login")
		return
	}

	user, err := r.identity.VerifyCredentials(req.Context(), in.Email, in.Password)
	if err != nil {
		r.fail(w, req, err, "/login")
		return
	}

	if !r.startSession(w, req, user.ID) {
		return
	}
	if wantsJSON(req) {
		writeJSON(w, http.StatusOK, map[string]string{"id": user.ID, "email": user.Email})
		return
	}
	http.Redirect(w, req, "/todos", http.StatusFound)
}

func (r *Router) startSession(w http.ResponseWriter, req *http.Request, userID string) bool {
	token, err := r.sessions.Start(req.Context(), userID)
	if err != nil {
		r.fail(w, req, err, "/login")
		return false
	}
	setSessionCookie(w, req, token, r.sessions.Validity())
	return true
}

func (r *Router) handleSignout(w http.ResponseWriter, req *http.Request) {
	if info, ok := authInfoFromContext(req.Context()); ok {
		if err := r.sessions.End(req.Context(), info.Token); err != nil {
			r.logger.Warn(req.Context(), "session revoke failed", "error", err)
		}
	}
	clearSessionCookie(w)
	http.Redirect(w, req, "/", http.StatusFound)
}

func (r *Router) handleListTodos(w http.ResponseWriter, req *http.Request) {
	info, _ := authInfoFromContext(req.Context())

	grouped, err := r.tasks.ListGrouped(req.Context(), info.UserID)
	if err != nil {
		r.fail(w, req, err, "/")
		return
	}

	if wantsJSON(req) {
		writeJSON(w, http.StatusOK, toGroupedJSON(grouped, r.location))
		return
	}

	data := &todosPage{Grouped: grouped}
	if user, err := r.identity.FindByID(req.Context(), info.UserID); err == nil {
		data.UserName = user.FullName()
	}
	r.render(w, req, "todos", "To-Do Manager", data)
}

func (r *Router) handleCreateTodo(w http.ResponseWriter, req *http.Request) {
	info, _ := authInfoFromContext(req.Context())

	var in struct {
		Title   string `json:"title"`
		DueDate string `json:"dueDate"`
	}
	err := decodeInput(w, req, &in, func(v url.Values) {
		in.Title = v.Get("title")
		in.DueDate = v.Get("dueDate")
	})
	if err != nil {
		r.fail(w, req, err, "/todos")
		return
	}

	task, err := r.tasks.Create(req.Context(), info.UserID, in.Title, in.DueDate)
	if err != nil {
		r.fail(w, req, err, "/todos")
		return
	}

	if wantsJSON(req) {
		writeJSON(w, http.StatusOK, toTaskJSON(task, r.location))
		return
	}
	http.Redirect(w, req, "/todos", http.StatusFound)
}

func (r *Router) handleGetTodo(w http.ResponseWriter, req *http.Request) {
	info, _ := authInfoFromContext(req.Context())

	task, err := r.tasks.Get(req.Context(), req.PathValue("id"), info.UserID)
	if err != nil {
		r.fail(w, req, err, "/todos")
		return
	}
	writeJSON(w, http.StatusOK, toTaskJSON(task, r.location))
}

func (r *Router) handleSetCompleted(w http.ResponseWriter, req *http.Request) {
	info, _ := authInfoFromContext(req.Context())

	var in struct {
		Completed *bool `json:"completed"`
	}
	err := decodeInput(w, req, &in, func(v url.Values) {
		if b, err := strconv.ParseBool(v.Get("completed")); err == nil {
			in.Completed = &b
		}
	})
	if err == nil && in.Completed == nil {
		err = common.NewValidationError("completed", "completed must be true or false")
	}
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}

	task, err := r.tasks.SetCompleted(req.Context(), req.PathValue("id"), info.UserID, *in.Completed)
	if err != nil {
		r.fail(w, req, err, "/todos")
		return
	}
	writeJSON(w, http.StatusOK, toTaskJSON(task, r.location))
}

func (r *Router) handleDeleteTodo(w http.ResponseWriter, req *http.Request) {
	info, _ := authInfoFromContext(req.Context())

	ok, err := r.tasks.Delete(req.Context(), req.PathValue("id"), info.UserID)
	if err != nil {
		r.fail(w, req, err, "/todos")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": ok})
}
