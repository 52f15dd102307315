package checker

import (
	"fmt"
	"net/url"
	"strings"

	sharedErrors "github.com/khanhnv2901/seca-probe/internal/shared/errors"
)

// Target is an absolute URI and the category of checks that apply to it.
type Target struct {
	uri      *url.URL
	category TargetType
}

// NewTarget builds a target. uri must be an absolute http or https URL.
func NewTarget(uri *url.URL, category TargetType) (Target, error) {
	if uri == nil || !uri.IsAbs() || uri.Host == "" {
		return Target{}, sharedErrors.ErrInvalidTarget
	}
	if uri.Scheme != "http" && uri.Scheme != "https" {
		return Target{}, fmt.Errorf("%w: scheme %q", sharedErrors.ErrInvalidTarget, uri.Scheme)
	}
	if !category.Valid() {
		return Target{}, fmt.Errorf("invalid target category %q", category)
	}
	u := *uri
	u.Fragment = ""
	return Target{uri: &u, category: category}, nil
}

// URI returns a copy of the target URI.
func (t Target) URI() *url.URL {
	if t.uri == nil {
		return nil
	}
	u := *t.uri
	return &u
}

// Category returns the target category.
func (t Target) Category() TargetType {
	return t.category
}

// IsTLS reports whether the target is served over https.
func (t Target) IsTLS() bool {
	return t.uri != nil && t.uri.Scheme == "https"
}

func (t Target) String() string {
	if t.uri == nil {
		return ""
	}
	return t.uri.String()
}

// ParseTarget normalizes operator input into an absolute URL. It handles
// various input formats:
//   - example.com
//   - http://example.com
//   - https://example.com:443/path
//   - example.com:8080
func ParseTarget(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, sharedErrors.ErrEmptyTarget
	}

	parsed, err := url.Parse(raw)
	// A missing scheme, or one containing dots (host:port parsed as scheme:opaque),
	// means the operator typed a bare host.
	if err != nil || parsed.Scheme == "" || strings.Contains(parsed.Scheme, ".") || parsed.Host == "" {
		parsed, err = url.Parse("http://" + raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", sharedErrors.ErrInvalidTarget, err)
		}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme %q", sharedErrors.ErrInvalidTarget, parsed.Scheme)
	}
	if parsed.Hostname() == "" {
		return nil, sharedErrors.ErrInvalidTarget
	}
	if parsed.Path == "" {
		parsed.Path = "/"
	}
	parsed.Fragment = ""
	return parsed, nil
}

// ServerRoot returns scheme://host/ of u.
func ServerRoot(u *url.URL) *url.URL {
	return &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}
}
