package checks

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/khanhnv2901/seca-probe/internal/cancel"
	"github.com/khanhnv2901/seca-probe/internal/checker"
	"github.com/khanhnv2901/seca-probe/internal/htmlform"
	"github.com/khanhnv2901/seca-probe/internal/transport"
	"golang.org/x/net/publicsuffix"
)

// ThirdPartyScriptsCheck reports scripts loaded from other sites without
// Subresource Integrity, and scripts loaded over plain HTTP by an HTTPS page.
type ThirdPartyScriptsCheck struct {
	client *transport.Client
}

// NewThirdPartyScriptsCheck builds the check.
func NewThirdPartyScriptsCheck(client *transport.Client) *ThirdPartyScriptsCheck {
	return &ThirdPartyScriptsCheck{client: client}
}

func (c *ThirdPartyScriptsCheck) Identity() checker.Identity {
	return checker.Identity{
		Name:              "third-party-scripts",
		Description:       "Third-party scripts without Subresource Integrity and scripts loaded over HTTP",
		TargetType:        checker.TargetPage,
		Family:            checker.FamilySecurity,
		CanRunDuringCrawl: true,
	}
}

func (c *ThirdPartyScriptsCheck) Probe(tok *cancel.Token, target checker.Target, rec *checker.Recorder) error {
	page, err := c.client.Get(tok, target.String(), nil)
	if err != nil {
		return fmt.Errorf("fetch page: %w", err)
	}
	if !page.IsHTML() {
		return nil
	}
	doc, err := htmlform.ParseDocument(page.Body)
	if err != nil {
		return err
	}

	base := page.FinalURL
	if base == nil {
		base = target.URI()
	}
	position := target.String()
	seen := make(map[string]bool)

	doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		ref, err := url.Parse(strings.TrimSpace(src))
		if err != nil || src == "" {
			return
		}
		resolved := base.ResolveReference(ref)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		key := resolved.String()
		if seen[key] {
			return
		}
		seen[key] = true

		if base.Scheme == "https" && resolved.Scheme == "http" {
			rec.RaiseFinding(RefMixedContentScript, position,
				fmt.Sprintf("script %s is loaded over plain HTTP", key), false)
		}
		if !thirdParty(base, resolved) {
			return
		}
		if integrity, ok := s.Attr("integrity"); ok && strings.TrimSpace(integrity) != "" {
			return
		}
		rec.RaiseFinding(RefScriptWithoutSRI, position,
			fmt.Sprintf("third-party script %s has no integrity attribute", key), true)
	})
	return nil
}

// thirdParty reports whether u belongs to a different registrable domain
// than page. Hosts without a public suffix (IPs, localhost) compare by host.
func thirdParty(page, u *url.URL) bool {
	return registrableDomain(page.Hostname()) != registrableDomain(u.Hostname())
}

func registrableDomain(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if net.ParseIP(host) != nil {
		return host
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}
