package checks

import (
	"fmt"
	"strings"

	"github.com/khanhnv2901/seca-probe/internal/auth"
	"github.com/khanhnv2901/seca-probe/internal/checker"
	"github.com/khanhnv2901/seca-probe/internal/transport"
	"go.uber.org/zap"
)

// Deps are the collaborators shared by every check of a scan.
type Deps struct {
	Client   *transport.Client
	Sessions *auth.Manager
	Logger   *zap.Logger
}

// Constructor builds one check.
type Constructor func(Deps) checker.Check

// UnknownCheckError reports a check name missing from the registry.
type UnknownCheckError struct {
	Name  string
	Known []string
}

func (e *UnknownCheckError) Error() string {
	return fmt.Sprintf("unknown check %q (available: %s)", e.Name, strings.Join(e.Known, ", "))
}

type entry struct {
	name string
	ctor Constructor
}

// Registry maps check names to constructors. Order is the catalog order.
type Registry struct {
	entries []entry
}

// NewRegistry returns a registry with every built-in check.
func NewRegistry() *Registry {
	r := &Registry{}
	r.Register("csrf", func(d Deps) checker.Check { return NewCSRFCheck(d.Client, d.Sessions) })
	r.Register("csrf-token-entropy", func(d Deps) checker.Check { return NewTokenEntropyCheck(d.Client, d.Sessions) })
	r.Register("security-headers", func(d Deps) checker.Check { return NewSecurityHeadersCheck(d.Client) })
	r.Register("cookie-flags", func(d Deps) checker.Check { return NewCookieFlagsCheck(d.Client) })
	r.Register("cors", func(d Deps) checker.Check { return NewCORSCheck(d.Client) })
	r.Register("tls", func(d Deps) checker.Check { return NewTLSCheck(d.Client) })
	r.Register("cache-control", func(d Deps) checker.Check { return NewCacheControlCheck(d.Client, d.Sessions) })
	r.Register("js-libraries", func(d Deps) checker.Check { return NewJSLibrariesCheck(d.Client) })
	r.Register("third-party-scripts", func(d Deps) checker.Check { return NewThirdPartyScriptsCheck(d.Client) })
	r.Register("seo-metadata", func(d Deps) checker.Check { return NewSEOMetadataCheck(d.Client) })
	return r
}

// Register adds or replaces a constructor.
func (r *Registry) Register(name string, ctor Constructor) {
	for i := range r.entries {
		if r.entries[i].name == name {
			r.entries[i].ctor = ctor
			return
		}
	}
	r.entries = append(r.entries, entry{name: name, ctor: ctor})
}

// Names lists the registered check names in catalog order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.name
	}
	return names
}

// Build constructs the named checks in catalog order. An empty selection
// builds all of them. Names are matched case-insensitively and duplicates
// collapse.
func (r *Registry) Build(names []string, deps Deps) ([]checker.Check, error) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if !r.has(name) {
			return nil, &UnknownCheckError{Name: name, Known: r.Names()}
		}
		wanted[name] = true
	}

	var built []checker.Check
	for _, e := range r.entries {
		if len(wanted) > 0 && !wanted[e.name] {
			continue
		}
		built = append(built, e.ctor(deps))
	}
	deps.Logger.Debug("checks selected", zap.Strings("checks", namesOf(built)))
	return built, nil
}

// Catalog describes every registered check.
func (r *Registry) Catalog() []checker.Identity {
	ids := make([]checker.Identity, 0, len(r.entries))
	for _, e := range r.entries {
		// Identity never touches the collaborators.
		ids = append(ids, e.ctor(Deps{}).Identity())
	}
	return ids
}

func (r *Registry) has(name string) bool {
	for _, e := range r.entries {
		if e.name == name {
			return true
		}
	}
	return false
}

func namesOf(list []checker.Check) []string {
	names := make([]string, len(list))
	for i, c := range list {
		names[i] = c.Identity().Name
	}
	return names
}
