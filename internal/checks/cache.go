package checks

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/khanhnv2901/seca-probe/internal/auth"
	"github.com/khanhnv2901/seca-probe/internal/cancel"
	"github.com/khanhnv2901/seca-probe/internal/checker"
	"github.com/khanhnv2901/seca-probe/internal/transport"
)

// CacheControlCheck reports pages whose caching headers let shared or
// browser caches keep a copy. Pages fetched with a logged-in session must
// not be stored at all.
type CacheControlCheck struct {
	client   *transport.Client
	sessions *auth.Manager
}

// NewCacheControlCheck builds the check. sessions may be nil.
func NewCacheControlCheck(client *transport.Client, sessions *auth.Manager) *CacheControlCheck {
	return &CacheControlCheck{client: client, sessions: sessions}
}

func (c *CacheControlCheck) Identity() checker.Identity {
	return checker.Identity{
		Name:              "cache-control",
		Description:       "Missing or permissive caching headers, and cacheable authenticated pages",
		TargetType:        checker.TargetPage,
		Family:            checker.FamilySecurity,
		CanRunDuringCrawl: true,
	}
}

func (c *CacheControlCheck) Probe(tok *cancel.Token, target checker.Target, rec *checker.Recorder) error {
	jar, err := sharedJar(tok, c.sessions, rec)
	if err != nil {
		return err
	}
	page, err := c.client.Get(tok, target.String(), jar)
	if err != nil {
		return fmt.Errorf("fetch page: %w", err)
	}
	analyzeCachePolicy(page.Header, jar != nil, target.String(), rec)
	return nil
}

func analyzeCachePolicy(h http.Header, authenticated bool, position string, rec *checker.Recorder) {
	cacheControl := strings.ToLower(strings.Join(h.Values("Cache-Control"), ","))
	expires := h.Get("Expires")
	pragma := strings.ToLower(h.Get("Pragma"))

	if cacheControl == "" && expires == "" {
		content := "neither Cache-Control nor Expires is set"
		if pragma == "no-cache" {
			content += "; only the legacy Pragma: no-cache is present"
		}
		rec.RaiseFinding(RefCacheControlMissing, position, content, true)
		if authenticated {
			rec.RaiseFinding(RefCacheableAuthenticated, position,
				"an authenticated page is served without Cache-Control: no-store", false)
		}
		return
	}

	directives := cacheDirectives(cacheControl)
	_, noStore := directives["no-store"]
	_, noCache := directives["no-cache"]
	_, maxAge := directives["max-age"]
	_, private := directives["private"]
	_, public := directives["public"]

	if cacheControl != "" && !noStore && !noCache && !maxAge && !private {
		rec.RaiseFinding(RefCacheControlWeak, position,
			fmt.Sprintf("Cache-Control %q lacks an explicit max-age, no-cache or no-store", cacheControl), true)
	}
	if authenticated && !noStore {
		content := "an authenticated page is served without Cache-Control: no-store"
		if public {
			content = "an authenticated page is marked Cache-Control: public"
		}
		rec.RaiseFinding(RefCacheableAuthenticated, position, content, false)
	}
}

func cacheDirectives(value string) map[string]string {
	directives := make(map[string]string)
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, arg, _ := strings.Cut(part, "=")
		directives[strings.TrimSpace(name)] = strings.Trim(strings.TrimSpace(arg), `"`)
	}
	return directives
}
