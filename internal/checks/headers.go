package checks

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/khanhnv2901/seca-probe/internal/cancel"
	"github.com/khanhnv2901/seca-probe/internal/checker"
	"github.com/khanhnv2901/seca-probe/internal/transport"
)

// headerRule describes one expected response header.
type headerRule struct {
	name     string
	required bool // a missing header is reported
	tlsOnly  bool // only meaningful on https targets
	evaluate func(value string) []string
	advice   string
}

var headerRules = []headerRule{
	{name: "Strict-Transport-Security", required: true, tlsOnly: true, evaluate: evaluateHSTS,
		advice: "add 'Strict-Transport-Security: max-age=31536000; includeSubDomains'"},
	{name: "Content-Security-Policy", required: true, evaluate: evaluateCSP,
		advice: "define a Content-Security-Policy with a default-src fallback"},
	{name: "X-Frame-Options", required: true, evaluate: evaluateFrameOptions,
		advice: "add 'X-Frame-Options: DENY' or 'SAMEORIGIN'"},
	{name: "X-Content-Type-Options", required: true, evaluate: evaluateContentTypeOptions,
		advice: "add 'X-Content-Type-Options: nosniff'"},
	{name: "Referrer-Policy", evaluate: evaluateReferrerPolicy},
	{name: "Cross-Origin-Opener-Policy", evaluate: evaluateCOOP},
}

var deprecatedHeaders = map[string]string{
	"Expect-CT":       "Expect-CT is obsolete",
	"Public-Key-Pins": "HPKP is obsolete and can lock users out",
}

var disclosureHeaders = []string{"Server", "X-Powered-By", "X-AspNet-Version", "X-AspNetMvc-Version"}

// SecurityHeadersCheck inspects the response headers of the server root.
type SecurityHeadersCheck struct {
	client *transport.Client
}

// NewSecurityHeadersCheck builds the check.
func NewSecurityHeadersCheck(client *transport.Client) *SecurityHeadersCheck {
	return &SecurityHeadersCheck{client: client}
}

func (c *SecurityHeadersCheck) Identity() checker.Identity {
	return checker.Identity{
		Name:        "security-headers",
		Description: "Missing, weak, deprecated and information-disclosing response headers",
		TargetType:  checker.TargetServer,
		Family:      checker.FamilySecurity,
	}
}

func (c *SecurityHeadersCheck) Probe(tok *cancel.Token, target checker.Target, rec *checker.Recorder) error {
	resp, err := c.client.Get(tok, target.String(), nil)
	if err != nil {
		return fmt.Errorf("fetch server root: %w", err)
	}
	analyzeHeaders(resp.Header, target.IsTLS(), rec)
	return nil
}

func analyzeHeaders(headers http.Header, overTLS bool, rec *checker.Recorder) {
	for _, rule := range headerRules {
		if rule.tlsOnly && !overTLS {
			continue
		}
		value := headers.Get(rule.name)
		if value == "" {
			if rule.required {
				rec.RaiseFinding(RefSecurityHeaderMissing, rule.name, rule.name+" header missing: "+rule.advice, false)
			}
			continue
		}
		if weaknesses := rule.evaluate(value); len(weaknesses) > 0 {
			rec.RaiseFinding(RefSecurityHeaderWeak, rule.name,
				fmt.Sprintf("%s: %q: %s", rule.name, value, strings.Join(weaknesses, "; ")), false)
		}
	}

	if xss := headers.Get("X-XSS-Protection"); xss != "" && xss != "0" {
		rec.RaiseFinding(RefSecurityHeaderDeprecated, "X-XSS-Protection",
			"X-XSS-Protection is deprecated and can introduce vulnerabilities; set it to 0 or remove it", false)
	}
	for name, reason := range deprecatedHeaders {
		if headers.Get(name) != "" {
			rec.RaiseFinding(RefSecurityHeaderDeprecated, name, reason, false)
		}
	}
	for _, name := range disclosureHeaders {
		if value := headers.Get(name); value != "" {
			rec.RaiseFinding(RefInformationDisclosure, name,
				fmt.Sprintf("%s header exposes %q", name, value), true)
		}
	}
}

func evaluateHSTS(value string) []string {
	var weak []string
	value = strings.ToLower(value)
	maxAge, ok := directiveValue(value, "max-age")
	switch {
	case !ok:
		weak = append(weak, "missing max-age")
	case maxAge == "0":
		weak = append(weak, "max-age=0 disables HSTS")
	case len(maxAge) < 8:
		// Anything below 10000000 seconds is under four months.
		weak = append(weak, "max-age shorter than one year")
	}
	if !strings.Contains(value, "includesubdomains") {
		weak = append(weak, "missing includeSubDomains")
	}
	return weak
}

func evaluateCSP(value string) []string {
	var weak []string
	directives := parseCSPDirectives(strings.ToLower(value))
	if _, ok := directives["default-src"]; !ok {
		if _, ok := directives["script-src"]; !ok {
			weak = append(weak, "neither default-src nor script-src is set")
		}
	}
	scripts, ok := directives["script-src"]
	if !ok {
		scripts = directives["default-src"]
	}
	for _, source := range scripts {
		switch {
		case source == "'unsafe-inline'":
			weak = append(weak, "scripts allow 'unsafe-inline'")
		case source == "'unsafe-eval'":
			weak = append(weak, "scripts allow 'unsafe-eval'")
		case source == "*":
			weak = append(weak, "scripts allow any origin")
		case source == "data:" || source == "blob:":
			weak = append(weak, "scripts allow "+source+" URLs")
		case strings.HasPrefix(source, "http:"):
			weak = append(weak, "scripts allow plain http sources")
		}
	}
	return weak
}

func evaluateFrameOptions(value string) []string {
	switch v := strings.ToUpper(strings.TrimSpace(value)); {
	case v == "DENY" || v == "SAMEORIGIN":
		return nil
	case strings.HasPrefix(v, "ALLOW-FROM"):
		return []string{"ALLOW-FROM is ignored by modern browsers, use CSP frame-ancestors"}
	}
	return []string{"invalid value"}
}

func evaluateContentTypeOptions(value string) []string {
	if strings.EqualFold(strings.TrimSpace(value), "nosniff") {
		return nil
	}
	return []string{"value must be nosniff"}
}

func evaluateReferrerPolicy(value string) []string {
	v := strings.ToLower(value)
	if strings.Contains(v, "unsafe-url") || strings.Contains(v, "no-referrer-when-downgrade") {
		return []string{"full URLs leak to other origins"}
	}
	return nil
}

func evaluateCOOP(value string) []string {
	if strings.EqualFold(strings.TrimSpace(value), "unsafe-none") {
		return []string{"unsafe-none provides no isolation"}
	}
	return nil
}

func parseCSPDirectives(value string) map[string][]string {
	result := make(map[string][]string)
	for _, part := range strings.Split(value, ";") {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		result[fields[0]] = fields[1:]
	}
	return result
}

func directiveValue(header, name string) (string, bool) {
	for _, part := range strings.Split(header, ";") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if found && strings.EqualFold(key, name) {
			return strings.Trim(value, `"`), true
		}
	}
	return "", false
}
