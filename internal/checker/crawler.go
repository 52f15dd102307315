package checker

import (
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/khanhnv2901/seca-probe/internal/cancel"
	"github.com/khanhnv2901/seca-probe/internal/htmlform"
	"github.com/khanhnv2901/seca-probe/internal/transport"
	"go.uber.org/zap"
)

// CrawlOptions bounds page discovery.
type CrawlOptions struct {
	MaxDepth int
	MaxPages int
	// Jar, when set, crawls as a logged-in user.
	Jar    http.CookieJar
	Logger *zap.Logger
}

var assetExtensions = map[string]struct{}{
	".css":         {},
	".js":          {},
	".json":        {},
	".map":         {},
	".txt":         {},
	".png":         {},
	".jpg":         {},
	".jpeg":        {},
	".gif":         {},
	".svg":         {},
	".ico":         {},
	".webp":        {},
	".webmanifest": {},
	".mp4":         {},
	".mp3":         {},
	".woff":        {},
	".woff2":       {},
	".ttf":         {},
	".eot":         {},
	".pdf":         {},
	".zip":         {},
	".tar":         {},
}

// DiscoverPages walks same-host links breadth first from start and returns
// up to MaxPages canonical page URLs, not counting start, found within
// MaxDepth hops. Pages that fail to load or are not HTML are skipped. A
// triggered token stops discovery and its reason is returned with the pages
// found so far.
func DiscoverPages(tok *cancel.Token, client *transport.Client, start *url.URL, opts CrawlOptions) ([]string, error) {
	if opts.MaxDepth <= 0 || opts.MaxPages <= 0 {
		return nil, nil
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	type queueItem struct {
		url   *url.URL
		depth int
	}

	queue := []queueItem{{url: start, depth: 0}}
	seen := map[string]struct{}{canonicalURL(start): {}}
	discovered := make([]string, 0, opts.MaxPages)

	for len(queue) > 0 && len(discovered) < opts.MaxPages {
		if err := tok.Err(); err != nil {
			return discovered, err
		}

		item := queue[0]
		queue = queue[1:]

		resp, err := client.Get(tok, item.url.String(), opts.Jar)
		if err != nil {
			if cancel.IsCancelled(err) {
				return discovered, err
			}
			logger.Debug("crawl fetch failed", zap.String("url", item.url.String()), zap.Error(err))
			continue
		}
		if resp.StatusCode >= http.StatusBadRequest || !resp.IsHTML() {
			continue
		}

		for _, u := range extractLinks(resp.FinalURL, resp.Body) {
			if !hostsMatch(start, u) || looksLikeAsset(u.Path) {
				continue
			}
			key := canonicalURL(u)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			discovered = append(discovered, key)
			if len(discovered) >= opts.MaxPages {
				break
			}
			if item.depth+1 < opts.MaxDepth {
				queue = append(queue, queueItem{url: u, depth: item.depth + 1})
			}
		}
	}

	return discovered, nil
}

func extractLinks(base *url.URL, body []byte) []*url.URL {
	doc, err := htmlform.ParseDocument(body)
	if err != nil {
		return nil
	}
	var links []*url.URL
	doc.Find("a[href], area[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if resolved := resolveLink(base, href); resolved != nil {
			links = append(links, resolved)
		}
	})
	return links
}

func resolveLink(base *url.URL, href string) *url.URL {
	href = strings.TrimSpace(href)
	if href == "" {
		return nil
	}
	lower := strings.ToLower(href)
	switch {
	case strings.HasPrefix(lower, "javascript:"),
		strings.HasPrefix(lower, "mailto:"),
		strings.HasPrefix(lower, "tel:"):
		return nil
	}

	if strings.HasPrefix(href, "#/") {
		return buildURLFromPath(base, href[1:])
	}
	if strings.HasPrefix(href, "/#/") {
		return buildURLFromPath(base, href[2:])
	}

	ref, err := url.Parse(href)
	if err != nil {
		return nil
	}
	if ref.Scheme == "" {
		ref = base.ResolveReference(ref)
	}
	if ref == nil {
		return nil
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return nil
	}

	if strings.HasPrefix(ref.Fragment, "/") {
		ref.Path = ensureLeadingSlash(ref.Fragment)
	}
	ref.Fragment = ""
	normalizeSPAPath(ref)
	if ref.Path == "" {
		ref.Path = "/"
	}
	return ref
}

func buildURLFromPath(base *url.URL, path string) *url.URL {
	if base == nil {
		return nil
	}
	return &url.URL{
		Scheme: base.Scheme,
		Host:   base.Host,
		Path:   ensureLeadingSlash(path),
	}
}

func ensureLeadingSlash(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		return "/" + p
	}
	return p
}

func normalizeSPAPath(u *url.URL) {
	if u == nil {
		return
	}
	switch {
	case strings.HasPrefix(u.Path, "/#/"):
		u.Path = ensureLeadingSlash(strings.TrimPrefix(u.Path, "/#/"))
	case strings.HasPrefix(u.Path, "#/"):
		u.Path = ensureLeadingSlash(strings.TrimPrefix(u.Path, "#/"))
	}
}

func canonicalURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	copy := *u
	copy.Fragment = ""
	if copy.Path == "" {
		copy.Path = "/"
	}
	return copy.String()
}

func hostsMatch(a, b *url.URL) bool {
	return !sameHostEmpty(a) && !sameHostEmpty(b) && strings.EqualFold(a.Hostname(), b.Hostname())
}

func sameHostEmpty(u *url.URL) bool {
	return u == nil || u.Hostname() == ""
}

func looksLikeAsset(path string) bool {
	if path == "" || path == "/" {
		return false
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return false
	}
	_, blocked := assetExtensions[ext]
	return blocked
}
