package checks

import (
	"fmt"
	"net/http"

	"github.com/khanhnv2901/seca-probe/internal/cancel"
	"github.com/khanhnv2901/seca-probe/internal/checker"
	"github.com/khanhnv2901/seca-probe/internal/transport"
)

// CookieFlagsCheck inspects the attributes of cookies the server sets on its
// root page.
type CookieFlagsCheck struct {
	client *transport.Client
}

// NewCookieFlagsCheck builds the check.
func NewCookieFlagsCheck(client *transport.Client) *CookieFlagsCheck {
	return &CookieFlagsCheck{client: client}
}

func (c *CookieFlagsCheck) Identity() checker.Identity {
	return checker.Identity{
		Name:        "cookie-flags",
		Description: "Cookies set without Secure, HttpOnly or with an unsafe SameSite",
		TargetType:  checker.TargetServer,
		Family:      checker.FamilySecurity,
	}
}

func (c *CookieFlagsCheck) Probe(tok *cancel.Token, target checker.Target, rec *checker.Recorder) error {
	resp, err := c.client.Get(tok, target.String(), nil)
	if err != nil {
		return fmt.Errorf("fetch server root: %w", err)
	}
	for _, cookie := range resp.Cookies() {
		inspectCookie(cookie, target.IsTLS(), rec)
	}
	return nil
}

func inspectCookie(cookie *http.Cookie, overTLS bool, rec *checker.Recorder) {
	position := "cookie " + cookie.Name
	if overTLS && !cookie.Secure {
		rec.RaiseFinding(RefCookieMissingSecure, position,
			fmt.Sprintf("cookie %q is sent over plain http as well", cookie.Name), false)
	}
	if !cookie.HttpOnly {
		// Plenty of cookies are meant for scripts, so this one is a hint.
		rec.RaiseFinding(RefCookieMissingHTTPOnly, position,
			fmt.Sprintf("cookie %q is readable from JavaScript", cookie.Name), true)
	}
	if cookie.SameSite == http.SameSiteNoneMode && !cookie.Secure {
		rec.RaiseFinding(RefCookieSameSiteNone, position,
			fmt.Sprintf("cookie %q has SameSite=None without Secure and is rejected or sent cross-site", cookie.Name), false)
	}
}
