package htmlform

import "regexp"

// Hidden field names that are anti-CSRF tokens in common frameworks. A match
// is taken as authoritative.
var unambiguousTokenPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)csrf`),
	regexp.MustCompile(`(?i)xsrf`),
	regexp.MustCompile(`^authenticity_token$`),        // Rails
	regexp.MustCompile(`^__RequestVerificationToken$`), // ASP.NET
	regexp.MustCompile(`^_token$`),                     // Laravel
	regexp.MustCompile(`^_wpnonce$`),                   // WordPress
	regexp.MustCompile(`^form_key$`),                   // Magento
	regexp.MustCompile(`^form_token$`),                 // Drupal, phpBB
	regexp.MustCompile(`(?i)^anti.?forgery`),
}

// Broader names that only count when exactly one field matches.
var ambiguousTokenPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^token`),
	regexp.MustCompile(`(?i)token$`),
}

// Field names injected by payment and donation widgets. Forms carrying them
// are not application forms and are skipped.
var benignFieldNames = map[string]struct{}{
	"stripeToken":          {},
	"stripeTokenType":      {},
	"stripeEmail":          {},
	"hosted_button_id":     {},
	"paypal_token":         {},
	"braintree_nonce":      {},
	"payment_method_nonce": {},
	"g-recaptcha-response": {},
}

// FindTokenField returns the hidden field of v that carries an anti-CSRF
// token. Well-known token names win outright. Otherwise a field matching the
// broader token patterns is returned only when it is the single distinct
// name that matches.
func FindTokenField(v InputVector) (Field, bool) {
	for _, f := range v.Fields {
		if !f.IsHidden() {
			continue
		}
		if matchesAny(unambiguousTokenPatterns, f.Name) {
			return f, true
		}
	}

	var (
		candidate Field
		names     = make(map[string]struct{})
	)
	for _, f := range v.Fields {
		if !f.IsHidden() || !matchesAny(ambiguousTokenPatterns, f.Name) {
			continue
		}
		if _, seen := names[f.Name]; !seen {
			names[f.Name] = struct{}{}
			if len(names) == 1 {
				candidate = f
			}
		}
	}
	if len(names) == 1 {
		return candidate, true
	}
	return Field{}, false
}

// HasBenignField reports whether v contains a known third-party widget field.
func HasBenignField(v InputVector) bool {
	for _, f := range v.Fields {
		if _, ok := benignFieldNames[f.Name]; ok {
			return true
		}
	}
	return false
}

func matchesAny(patterns []*regexp.Regexp, name string) bool {
	for _, p := range patterns {
		if p.MatchString(name) {
			return true
		}
	}
	return false
}
