package testutil

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

const sessionCookie = "sid"

// WebAppOptions shapes the account form served by WebApp.
type WebAppOptions struct {
	// TokenField names the hidden anti-CSRF field. Empty serves no token.
	TokenField string
	// StaticToken, when set, is served to every session instead of a
	// per-session random value.
	StaticToken string
	// ExtraHidden adds hidden fields with fixed values to the account form.
	ExtraHidden []string
	// ValidateToken makes the save endpoint reject tokens that do not belong
	// to the acting session.
	ValidateToken bool
	// ActionURL overrides the account form action.
	ActionURL string
	// PublicForm shows the account form to anonymous visitors as well.
	PublicForm bool
	// FormCount repeats the account form. Above 1, the token of the i-th
	// copy is the session token suffixed with "-i".
	FormCount int
	// Users maps usernames to passwords. Defaults to alice/bob.
	Users map[string]string
}

type appSession struct {
	user  string
	token string
}

// WebApp is an in-process web application with form login, server-side
// sessions and one account form, used to exercise session-aware checks.
//
//	/login          login form, POST logs in and redirects to /account
//	/account        account form for sessions, a search form for visitors
//	/account/save   accepts the account form and redirects on success
//	/slow           blocks until the client goes away
type WebApp struct {
	*httptest.Server
	opts WebAppOptions

	mu        sync.Mutex
	sessions  map[string]*appSession
	submitted []string

	logins      atomic.Int32
	saves       atomic.Int32
	rejected    atomic.Int32
	slowStarted chan struct{}
	slowOnce    sync.Once
}

// NewWebApp starts the application; it is closed when the test ends.
func NewWebApp(t *testing.T, opts WebAppOptions) *WebApp {
	t.Helper()
	if opts.Users == nil {
		opts.Users = map[string]string{"alice": "alice-pass", "bob": "bob-pass"}
	}
	app := &WebApp{
		opts:        opts,
		sessions:    make(map[string]*appSession),
		slowStarted: make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/login", app.handleLogin)
	mux.HandleFunc("/account", app.handleAccount)
	mux.HandleFunc("/account/save", app.handleSave)
	mux.HandleFunc("/slow", app.handleSlow)
	app.Server = httptest.NewServer(mux)
	t.Cleanup(app.Server.Close)
	return app
}

// LoginURL is the login page.
func (a *WebApp) LoginURL() string { return a.URL + "/login" }

// AccountURL is the page carrying the account form.
func (a *WebApp) AccountURL() string { return a.URL + "/account" }

// SlowURL never answers on its own.
func (a *WebApp) SlowURL() string { return a.URL + "/slow" }

// SlowStarted is closed once a request reached /slow.
func (a *WebApp) SlowStarted() <-chan struct{} { return a.slowStarted }

// Logins counts successful logins.
func (a *WebApp) Logins() int { return int(a.logins.Load()) }

// Saves counts accepted form submissions.
func (a *WebApp) Saves() int { return int(a.saves.Load()) }

// Submitted lists the token values of accepted submissions in arrival order.
func (a *WebApp) Submitted() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.submitted...)
}

// Rejected counts submissions refused for a bad token.
func (a *WebApp) Rejected() int { return int(a.rejected.Load()) }

func (a *WebApp) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeHTML(w, loginPage)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	user := r.PostFormValue("username")
	if want, ok := a.opts.Users[user]; !ok || want != r.PostFormValue("password") {
		w.WriteHeader(http.StatusOK)
		writeHTML(w, `<p class="error">Invalid credentials</p>`+loginPage)
		return
	}

	sid := randomHex(16)
	token := a.opts.StaticToken
	if token == "" {
		token = randomHex(20)
	}
	a.mu.Lock()
	a.sessions[sid] = &appSession{user: user, token: token}
	a.mu.Unlock()
	a.logins.Add(1)

	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: sid, Path: "/", HttpOnly: true})
	http.Redirect(w, r, "/account", http.StatusFound)
}

func (a *WebApp) handleAccount(w http.ResponseWriter, r *http.Request) {
	session := a.session(r)
	if session == nil && !a.opts.PublicForm {
		writeHTML(w, searchForm)
		return
	}
	token := a.opts.StaticToken
	if session != nil {
		token = session.token
	}
	forms := searchForm
	if a.opts.FormCount > 1 {
		for i := 0; i < a.opts.FormCount; i++ {
			forms += a.accountForm(fmt.Sprintf("%s-%d", token, i))
		}
	} else {
		forms += a.accountForm(token)
	}
	writeHTML(w, forms)
}

func (a *WebApp) handleSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	session := a.session(r)
	if session == nil {
		http.Error(w, "login required", http.StatusUnauthorized)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	if a.opts.ValidateToken && a.opts.TokenField != "" && r.PostFormValue(a.opts.TokenField) != session.token {
		a.rejected.Add(1)
		http.Error(w, "invalid token", http.StatusForbidden)
		return
	}
	a.saves.Add(1)
	if a.opts.TokenField != "" {
		a.mu.Lock()
		a.submitted = append(a.submitted, r.PostFormValue(a.opts.TokenField))
		a.mu.Unlock()
	}
	http.Redirect(w, r, "/account", http.StatusSeeOther)
}

func (a *WebApp) handleSlow(w http.ResponseWriter, r *http.Request) {
	a.slowOnce.Do(func() { close(a.slowStarted) })
	<-r.Context().Done()
}

func (a *WebApp) session(r *http.Request) *appSession {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessions[c.Value]
}

func (a *WebApp) accountForm(token string) string {
	action := a.opts.ActionURL
	if action == "" {
		action = "/account/save"
	}
	var b strings.Builder
	fmt.Fprintf(&b, `<form action="%s" method="post">`, html.EscapeString(action))
	if a.opts.TokenField != "" {
		fmt.Fprintf(&b, `<input type="hidden" name="%s" value="%s">`,
			html.EscapeString(a.opts.TokenField), html.EscapeString(token))
	}
	for _, name := range a.opts.ExtraHidden {
		fmt.Fprintf(&b, `<input type="hidden" name="%s" value="fixed">`, html.EscapeString(name))
	}
	b.WriteString(`<input type="email" name="email" value="user@example.test">`)
	b.WriteString(`<button type="submit">Save</button></form>`)
	return b.String()
}

const loginPage = `<form action="/login" method="post">
<input type="text" name="username">
<input type="password" name="password">
<button type="submit">Sign in</button>
</form>`

const searchForm = `<form action="/search" method="get"><input type="text" name="q"></form>`

func writeHTML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprintf(w, "<!doctype html><html><head><title>App</title></head><body>%s</body></html>", body)
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}
