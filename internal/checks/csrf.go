package checks

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/khanhnv2901/seca-probe/internal/auth"
	"github.com/khanhnv2901/seca-probe/internal/cancel"
	"github.com/khanhnv2901/seca-probe/internal/checker"
	"github.com/khanhnv2901/seca-probe/internal/htmlform"
	"github.com/khanhnv2901/seca-probe/internal/transport"
	"go.uber.org/zap"
)

// CSRFCheck looks for forms shown only to logged-in users that lack a
// session-bound anti-CSRF token.
//
// The page is fetched with the shared session and anonymously. Forms that
// only the session sees are candidates. A candidate without a recognizable
// token field is reported. For the others a second, independent session
// fetches the page again: a token value equal across sessions is not bound
// to the session, and differing values are replayed crosswise. A redirect in
// answer to the first session submitting the second session's token means
// the server did not validate the token.
type CSRFCheck struct {
	client   *transport.Client
	sessions *auth.Manager
}

// NewCSRFCheck builds the check.
func NewCSRFCheck(client *transport.Client, sessions *auth.Manager) *CSRFCheck {
	return &CSRFCheck{client: client, sessions: sessions}
}

func (c *CSRFCheck) Identity() checker.Identity {
	return checker.Identity{
		Name:                  "csrf",
		Description:           "Authenticated-only forms without a session-bound anti-CSRF token",
		TargetType:            checker.TargetPage,
		Family:                checker.FamilySecurity,
		RequiresAuthorization: true,
		CanRunDuringCrawl:     true,
	}
}

type protectedForm struct {
	form  htmlform.InputVector
	token htmlform.Field
	// occurrence ranks the form among same-shape forms on the page.
	occurrence int
}

func (c *CSRFCheck) Probe(tok *cancel.Token, target checker.Target, rec *checker.Recorder) error {
	uri := target.String()

	session, err := c.sessions.Shared(tok)
	if err != nil {
		return fmt.Errorf("authenticated session: %w", err)
	}
	authPage, err := c.client.Get(tok, uri, session.Jar)
	if err != nil {
		return fmt.Errorf("authenticated fetch: %w", err)
	}
	anonPage, err := c.client.Get(tok, uri, nil)
	if err != nil {
		return fmt.Errorf("anonymous fetch: %w", err)
	}

	authForms, err := htmlform.ParseForms(authPage.Body)
	if err != nil {
		return err
	}
	anonForms, err := htmlform.ParseForms(anonPage.Body)
	if err != nil {
		return err
	}
	base := authPage.FinalURL

	var protected []protectedForm
	for i, form := range authForms {
		if htmlform.Contains(anonForms, form) || htmlform.HasBenignField(form) {
			continue
		}
		field, ok := htmlform.FindTokenField(form)
		if !ok {
			rec.RaiseFinding(RefCSRFNoProtection, formPosition(form, base),
				"form shown only to authenticated users has no anti-CSRF token: "+form.Signature(), true)
			continue
		}
		protected = append(protected, protectedForm{form: form, token: field, occurrence: htmlform.Occurrence(authForms, i)})
	}
	if len(protected) == 0 {
		return nil
	}

	// Comparing tokens needs a session that shares nothing with the first one.
	second, err := c.sessions.Fresh(tok)
	if err != nil {
		return rec.HandleTransportError(err, zap.String("step", "second session login"))
	}
	secondPage, err := c.client.Get(tok, uri, second.Jar)
	if err != nil {
		return rec.HandleTransportError(err, zap.String("step", "second session fetch"))
	}
	secondForms, err := htmlform.ParseForms(secondPage.Body)
	if err != nil {
		rec.Logger().Debug("second session page not parsed", zap.Error(err))
		return nil
	}

	for _, p := range protected {
		idx := htmlform.MatchNth(secondForms, p.form, p.occurrence)
		if idx < 0 {
			continue
		}
		other, ok := htmlform.FindTokenField(secondForms[idx])
		if !ok {
			continue
		}
		if other.Value == p.token.Value {
			rec.RaiseFinding(RefCSRFTokenNotSessionBound, formPosition(p.form, base),
				fmt.Sprintf("field %q carries the same value %q in two independent sessions", p.token.Name, p.token.Value), true)
			continue
		}
		if err := c.replay(tok, rec, base, session, p, other.Value); err != nil {
			return err
		}
	}
	return nil
}

// replay submits the first session's form carrying a token issued to another
// session.
func (c *CSRFCheck) replay(tok *cancel.Token, rec *checker.Recorder, base *url.URL, session *auth.Session, p protectedForm, foreignToken string) error {
	action, err := p.form.ResolveAction(base)
	if err != nil {
		rec.Logger().Debug("form action not resolvable", zap.String("action", p.form.Action), zap.Error(err))
		return nil
	}
	encoded := p.form.Values(map[string]string{p.token.Name: foreignToken}).Encode()

	req := transport.Request{Method: p.form.Method, Jar: session.Jar, NoRedirect: true}
	if p.form.Method == http.MethodGet {
		action.RawQuery = encoded
	} else {
		req.Body = []byte(encoded)
		req.Header = http.Header{"Content-Type": []string{"application/x-www-form-urlencoded"}}
	}
	req.URL = action.String()

	resp, err := c.client.Do(tok, req)
	if err != nil {
		return rec.HandleTransportError(err, zap.String("step", "token replay"))
	}
	if isRedirect(resp.StatusCode) {
		rec.RaiseFinding(RefCSRFTokenNotValidated, formPosition(p.form, base),
			fmt.Sprintf("%s %s accepted field %q with a token from another session (status %d, Location %q)",
				req.Method, req.URL, p.token.Name, resp.StatusCode, resp.Header.Get("Location")), false)
	}
	return nil
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

func formPosition(form htmlform.InputVector, base *url.URL) string {
	if action, err := form.ResolveAction(base); err == nil {
		return form.Method + " " + action.String()
	}
	return form.Method + " " + form.Action
}
