// Package auth mints authenticated sessions against a target's login form.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"

	"github.com/khanhnv2901/seca-probe/internal/cancel"
	"github.com/khanhnv2901/seca-probe/internal/htmlform"
	"github.com/khanhnv2901/seca-probe/internal/transport"
	"go.uber.org/zap"
)

var (
	// ErrLoginFormNotFound means the login page has no form with a password field.
	ErrLoginFormNotFound = errors.New("login form not found")
	// ErrLoginRejected means the target did not accept the credentials.
	ErrLoginRejected = errors.New("login rejected")
)

var usernameFieldPattern = regexp.MustCompile(`(?i)user|login|email|mail|account`)

// Session is one authenticated identity: a cookie store the target filled in
// during login.
type Session struct {
	Username string
	Jar      http.CookieJar
}

// Authenticator logs in and returns a fresh session.
type Authenticator interface {
	Login(tok *cancel.Token, loginURL, username, password string) (*Session, error)
}

// FormLogin submits the target's HTML login form.
type FormLogin struct {
	client *transport.Client
	logger *zap.Logger
}

// NewFormLogin creates a form-based authenticator.
func NewFormLogin(client *transport.Client, logger *zap.Logger) *FormLogin {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FormLogin{client: client, logger: logger}
}

// Login fetches the login page into a new cookie store, fills the first form
// that has a password field and submits it. The login is rejected when the
// target answers with an error status or shows the login form again.
func (l *FormLogin) Login(tok *cancel.Token, loginURL, username, password string) (*Session, error) {
	jar := transport.NewJar()

	page, err := l.client.Get(tok, loginURL, jar)
	if err != nil {
		return nil, fmt.Errorf("fetch login page: %w", err)
	}
	forms, err := htmlform.ParseForms(page.Body)
	if err != nil {
		return nil, fmt.Errorf("parse login page: %w", err)
	}
	form, ok := loginForm(forms)
	if !ok {
		return nil, fmt.Errorf("%s: %w", loginURL, ErrLoginFormNotFound)
	}

	overrides := map[string]string{}
	if name := usernameField(form); name != "" {
		overrides[name] = username
	}
	for _, f := range form.Fields {
		if f.Type == "password" {
			overrides[f.Name] = password
			break
		}
	}

	action, err := form.ResolveAction(page.FinalURL)
	if err != nil {
		return nil, fmt.Errorf("resolve login action: %w", err)
	}
	encoded := form.Values(overrides).Encode()

	req := transport.Request{Method: form.Method, Jar: jar}
	if form.Method == http.MethodGet {
		action.RawQuery = encoded
	} else {
		req.Body = []byte(encoded)
		req.Header = http.Header{"Content-Type": []string{"application/x-www-form-urlencoded"}}
	}
	req.URL = action.String()

	resp, err := l.client.Do(tok, req)
	if err != nil {
		return nil, fmt.Errorf("submit login form: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%s: status %d: %w", req.URL, resp.StatusCode, ErrLoginRejected)
	}
	if after, err := htmlform.ParseForms(resp.Body); err == nil {
		if _, stillThere := loginForm(after); stillThere {
			return nil, fmt.Errorf("%s: login form shown again: %w", req.URL, ErrLoginRejected)
		}
	}

	l.logger.Debug("logged in",
		zap.String("login_url", loginURL),
		zap.String("username", username),
	)
	return &Session{Username: username, Jar: jar}, nil
}

func loginForm(forms []htmlform.InputVector) (htmlform.InputVector, bool) {
	for _, form := range forms {
		for _, f := range form.Fields {
			if f.Type == "password" {
				return form, true
			}
		}
	}
	return htmlform.InputVector{}, false
}

func usernameField(form htmlform.InputVector) string {
	var first string
	for _, f := range form.Fields {
		if f.Type != "text" && f.Type != "email" {
			continue
		}
		if usernameFieldPattern.MatchString(f.Name) {
			return f.Name
		}
		if first == "" {
			first = f.Name
		}
	}
	return first
}
