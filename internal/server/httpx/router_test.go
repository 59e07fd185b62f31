package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"html"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/todokeeper/internal/server/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	srv      *httptest.Server
	identity *fakeIdentity
	tasks    *fakeTasks
	health   error
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return startHarness(t, httptest.NewServer)
}

func newTLSHarness(t *testing.T) *harness {
	t.Helper()
	return startHarness(t, httptest.NewTLSServer)
}

func startHarness(t *testing.T, start func(http.Handler) *httptest.Server) *harness {
	t.Helper()
	h := &harness{identity: newFakeIdentity(), tasks: newFakeTasks()}
	r, err := NewRouter(Options{
		Identity:       h.identity,
		Tasks:          h.tasks,
		Sessions:       auth.NewSessionManager(auth.NewMemorySessionStore(), []byte("session-secret"), time.Hour),
		CSRFKey:        []byte("csrf-key"),
		RequestTimeout: time.Second,
		Location:       time.UTC,
		DBHealth:       func(context.Context) error { return h.health },
	})
	require.NoError(t, err)
	h.srv = start(r)
	t.Cleanup(h.srv.Close)
	return h
}

// browser is one client with its own cookie jar and CSRF token.
type browser struct {
	t      *testing.T
	h      *harness
	client *http.Client
	csrf   string
}

func (h *harness) newBrowser(t *testing.T) *browser {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	b := &browser{t: t, h: h, client: &http.Client{
		Jar:       jar,
		Transport: h.srv.Client().Transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}}
	resp := b.do(http.MethodGet, "/login", nil, nil)
	b.csrf = resp.Header.Get(csrfHeader)
	require.NotEmpty(t, b.csrf)
	return b
}

func (b *browser) do(method, path string, body io.Reader, header http.Header) *http.Response {
	b.t.Helper()
	req, err := http.NewRequest(method, b.h.srv.URL+path, body)
	require.NoError(b.t, err)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := b.client.Do(req)
	require.NoError(b.t, err)
	b.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (b *browser) form(path string, v url.Values) *http.Response {
	b.t.Helper()
	v.Set(csrfField, b.csrf)
	return b.do(http.MethodPost, path, strings.NewReader(v.Encode()), http.Header{
		"Content-Type": {"application/x-www-form-urlencoded"},
	})
}

func (b *browser) json(method, path string, payload any) *http.Response {
	b.t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(b.t, err)
		body = bytes.NewReader(raw)
	}
	return b.do(method, path, body, http.Header{
		"Content-Type": {"application/json"},
		"Accept":       {"application/json"},
		csrfHeader:     {b.csrf},
	})
}

func (b *browser) signup(email string) {
	b.t.Helper()
	resp := b.form("/users", url.Values{
		"firstName": {"Ada"},
		"lastName":  {"Lovelace"},
		"email":     {email},
		"password":  {"analytical"},
	})
	require.Equal(b.t, http.StatusFound, resp.StatusCode)
	require.Equal(b.t, "/todos", resp.Header.Get("Location"))
}

func decode(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func sessionToken(b *browser) string {
	u, _ := url.Parse(b.h.srv.URL)
	for _, c := range b.client.Jar.Cookies(u) {
		if c.Name == sessionCookie {
			return c.Value
		}
	}
	return ""
}

func TestAnonymous_RedirectsOrUnauthorized(t *testing.T) {
	h := newHarness(t)
	b := h.newBrowser(t)

	resp := b.do(http.MethodGet, "/todos", nil, nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp = b.do(http.MethodGet, "/todos", nil, http.Header{"Accept": {"application/json"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCSRF_RejectsMissingOrForgedToken(t *testing.T) {
	h := newHarness(t)
	b := h.newBrowser(t)

	resp := b.do(http.MethodPost, "/users", strings.NewReader("firstName=Ada&email=a@b.c&password=12345678"),
		http.Header{"Content-Type": {"application/x-www-form-urlencoded"}})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = b.do(http.MethodPost, "/session", strings.NewReader(`{"email":"a@b.c","password":"x"}`),
		http.Header{"Content-Type": {"application/json"}, csrfHeader: {"forged"}})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// a token from another client does not match this client's cookie
	other := h.newBrowser(t)
	resp = b.do(http.MethodPost, "/session", strings.NewReader(`{"email":"a@b.c","password":"x"}`),
		http.Header{"Content-Type": {"application/json"}, csrfHeader: {other.csrf}})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Empty(t, h.identity.users)
}

var metaCSRF = regexp.MustCompile(`<meta name="csrf-token" content="([^"]+)">`)

func TestPages_EmbedCSRFToken(t *testing.T) {
	h := newHarness(t)
	b := h.newBrowser(t)

	for _, path := range []string{"/", "/login", "/signup"} {
		resp := b.do(http.MethodGet, path, nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		m := metaCSRF.FindSubmatch(body)
		require.NotNil(t, m, path)

		// tokens are masked per response but all of them stay valid for this client
		resp = b.do(http.MethodPost, "/session", strings.NewReader(`{"email":"a@b.c","password":"x"}`),
			http.Header{"Content-Type": {"application/json"}, csrfHeader: {html.UnescapeString(string(m[1]))}})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}

	for _, path := range []string{"/login", "/signup"} {
		resp := b.do(http.MethodGet, path, nil, nil)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), `name="`+csrfField+`"`, path)
	}
}

func TestCSRF_TLSRequiresSameOriginReferer(t *testing.T) {
	h := newTLSHarness(t)
	b := h.newBrowser(t)
	payload := `{"email":"a@b.c","password":"x"}`

	resp := b.do(http.MethodPost, "/session", strings.NewReader(payload),
		http.Header{"Content-Type": {"application/json"}, csrfHeader: {b.csrf}})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = b.do(http.MethodPost, "/session", strings.NewReader(payload), http.Header{
		"Content-Type": {"application/json"},
		"Referer":      {"https://evil.example/login"},
		csrfHeader:     {b.csrf},
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = b.do(http.MethodPost, "/session", strings.NewReader(payload), http.Header{
		"Content-Type": {"application/json"},
		"Referer":      {h.srv.URL + "/login"},
		csrfHeader:     {b.csrf},
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSignup_StartsSession(t *testing.T) {
	h := newHarness(t)
	b := h.newBrowser(t)
	b.signup("ada@example.com")

	resp := b.do(http.MethodGet, "/", nil, nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/todos", resp.Header.Get("Location"))

	resp = b.do(http.MethodGet, "/todos", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "Ada Lovelace")
}

func TestSignup_ValidationFlash(t *testing.T) {
	h := newHarness(t)
	b := h.newBrowser(t)

	resp := b.form("/users", url.Values{"firstName": {"Ada"}, "email": {"ada@example.com"}, "password": {"abcd"}})
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/signup", resp.Header.Get("Location"))

	resp = b.do(http.MethodGet, "/signup", nil, nil)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "password should be at least 8 characters")

	// flash is shown once
	resp = b.do(http.MethodGet, "/signup", nil, nil)
	body, _ = io.ReadAll(resp.Body)
	assert.NotContains(t, string(body), "password should be at least 8 characters")
}

func TestFlash_ForgedCookieIgnored(t *testing.T) {
	h := newHarness(t)
	b := h.newBrowser(t)

	u, err := url.Parse(h.srv.URL)
	require.NoError(t, err)
	b.client.Jar.SetCookies(u, []*http.Cookie{{Name: flashCookie, Value: "not-a-signed-value", Path: "/"}})

	resp := b.do(http.MethodGet, "/signup", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.NotContains(t, string(body), `class="flash`)
}

func TestLogin(t *testing.T) {
	h := newHarness(t)
	first := h.newBrowser(t)
	first.signup("ada@example.com")

	b := h.newBrowser(t)
	resp := b.form("/session", url.Values{"email": {"ada@example.com"}, "password": {"wrong-password"}})
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
	assert.Empty(t, sessionToken(b))

	resp = b.json(http.MethodPost, "/session", map[string]string{"email": "ada@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = b.form("/session", url.Values{"emails": {"ADA@example.com"}, "passwords": {"analytical"}})
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/todos", resp.Header.Get("Location"))
	assert.NotEmpty(t, sessionToken(b))
}

func TestTodoLifecycle_JSON(t *testing.T) {
	h := newHarness(t)
	b := h.newBrowser(t)
	b.signup("ada@example.com")

	resp := b.json(http.MethodPost, "/todos", map[string]string{"title": "Buy milk", "dueDate": "2030-01-01"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))
	var created taskJSON
	decode(t, resp, &created)
	require.NotEmpty(t, created.ID)
	assert.False(t, created.Completed)

	resp = b.json(http.MethodGet, "/todos", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var grouped map[string][]taskJSON
	decode(t, resp, &grouped)
	for _, k := range []string{"overDue", "dueToday", "dueLater", "completedItems"} {
		assert.Contains(t, grouped, k)
	}
	require.Len(t, grouped["dueLater"], 1)

	resp = b.json(http.MethodGet, "/todos/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = b.json(http.MethodPut, "/todos/"+created.ID, map[string]bool{"completed": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated taskJSON
	decode(t, resp, &updated)
	assert.True(t, updated.Completed)

	resp = b.json(http.MethodPut, "/todos/"+created.ID, map[string]string{})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var del map[string]bool
	resp = b.json(http.MethodDelete, "/todos/"+created.ID, nil)
	decode(t, resp, &del)
	assert.True(t, del["success"])

	resp = b.json(http.MethodDelete, "/todos/"+created.ID, nil)
	decode(t, resp, &del)
	assert.False(t, del["success"])

	resp = b.json(http.MethodGet, "/todos/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateTodo_Form(t *testing.T) {
	h := newHarness(t)
	b := h.newBrowser(t)
	b.signup("ada@example.com")

	resp := b.form("/todos", url.Values{"title": {"Buy"}, "dueDate": {"2030-01-01"}})
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/todos", resp.Header.Get("Location"))
	assert.Empty(t, h.tasks.rows)

	resp = b.form("/todos", url.Values{"title": {"Buy milk"}, "dueDate": {"2030-01-01"}})
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Len(t, h.tasks.rows, 1)

	resp = b.do(http.MethodGet, "/todos", nil, nil)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "Buy milk")
	assert.Contains(t, string(body), "2030-01-01")
}

func TestCreateTodo_ValidationJSON(t *testing.T) {
	h := newHarness(t)
	b := h.newBrowser(t)
	b.signup("ada@example.com")

	resp := b.json(http.MethodPost, "/todos", map[string]string{"title": "Buy milk"})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, "dueDate", body["field"])
	assert.Equal(t, "please select a due date", body["error"])
}

func TestCrossOwnerAccess(t *testing.T) {
	h := newHarness(t)
	alice := h.newBrowser(t)
	alice.signup("alice@example.com")
	bob := h.newBrowser(t)
	bob.signup("bob@example.com")

	resp := alice.json(http.MethodPost, "/todos", map[string]string{"title": "Alice's task", "dueDate": "2030-01-01"})
	var task taskJSON
	decode(t, resp, &task)

	resp = bob.json(http.MethodGet, "/todos/"+task.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = bob.json(http.MethodPut, "/todos/"+task.ID, map[string]bool{"completed": true})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var del map[string]bool
	resp = bob.json(http.MethodDelete, "/todos/"+task.ID, nil)
	decode(t, resp, &del)
	assert.False(t, del["success"])

	assert.False(t, h.tasks.rows[task.ID].Completed)
}

func TestSignout_RevokesSession(t *testing.T) {
	h := newHarness(t)
	b := h.newBrowser(t)
	b.signup("ada@example.com")
	token := sessionToken(b)
	require.NotEmpty(t, token)

	resp := b.do(http.MethodGet, "/signout", nil, nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	assert.Empty(t, sessionToken(b))

	// replaying the old cookie must not work
	resp = b.do(http.MethodGet, "/todos", nil, http.Header{
		"Accept": {"application/json"},
		"Cookie": {sessionCookie + "=" + token},
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestListTodos_StoreError(t *testing.T) {
	h := newHarness(t)
	b := h.newBrowser(t)
	b.signup("ada@example.com")
	h.tasks.mu.Lock()
	h.tasks.listErr = errors.New("db down")
	h.tasks.mu.Unlock()

	resp := b.json(http.MethodGet, "/todos", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, "internal error", body["error"])
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)
	b := h.newBrowser(t)

	resp := b.do(http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	h.health = errors.New("db down")
	resp = b.do(http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	var body map[string]any
	decode(t, resp, &body)
	assert.Equal(t, "degraded", body["status"])
}

func TestWantsJSON(t *testing.T) {
	tests := []struct {
		name       string
		accept, ct string
		want       bool
	}{
		{"browser", "text/html,application/xhtml+xml", "", false},
		{"api accept", "application/json", "", true},
		{"json body no accept", "", "application/json", true},
		{"json body html accept", "text/html", "application/json", false},
		{"form", "", "application/x-www-form-urlencoded", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/todos", nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			if tt.ct != "" {
				req.Header.Set("Content-Type", tt.ct)
			}
			assert.Equal(t, tt.want, wantsJSON(req))
		})
	}
}
