package checks

import (
	"fmt"
	"math"

	"github.com/khanhnv2901/seca-probe/internal/auth"
	"github.com/khanhnv2901/seca-probe/internal/cancel"
	"github.com/khanhnv2901/seca-probe/internal/checker"
	"github.com/khanhnv2901/seca-probe/internal/htmlform"
	consts "github.com/khanhnv2901/seca-probe/internal/shared/constants"
	"github.com/khanhnv2901/seca-probe/internal/transport"
)

// ShannonEntropy returns the entropy of s in bits per byte:
// -Σ p(b)·log2 p(b) over the observed byte values.
func ShannonEntropy(s string) float64 {
	if len(s) == 0 {
		return 0
	}

	var freq [256]int
	for i := 0; i < len(s); i++ {
		freq[s[i]]++
	}

	var entropy float64
	length := float64(len(s))
	for _, count := range freq {
		if count == 0 {
			continue
		}
		p := float64(count) / length
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// TokenEntropyCheck scores the randomness of anti-CSRF token values. It is
// corroborating evidence and runs independently of CSRFCheck.
type TokenEntropyCheck struct {
	client    *transport.Client
	sessions  *auth.Manager
	threshold float64
}

// NewTokenEntropyCheck builds the check. sessions may be nil or unconfigured,
// in which case the page is fetched anonymously.
func NewTokenEntropyCheck(client *transport.Client, sessions *auth.Manager) *TokenEntropyCheck {
	return &TokenEntropyCheck{client: client, sessions: sessions, threshold: consts.WeakTokenEntropy}
}

func (c *TokenEntropyCheck) Identity() checker.Identity {
	return checker.Identity{
		Name:              "csrf-token-entropy",
		Description:       "Anti-CSRF token values with low Shannon entropy",
		TargetType:        checker.TargetPage,
		Family:            checker.FamilySecurity,
		CanRunDuringCrawl: true,
	}
}

func (c *TokenEntropyCheck) Probe(tok *cancel.Token, target checker.Target, rec *checker.Recorder) error {
	jar, err := sharedJar(tok, c.sessions, rec)
	if err != nil {
		return err
	}

	page, err := c.client.Get(tok, target.String(), jar)
	if err != nil {
		return fmt.Errorf("fetch page: %w", err)
	}
	forms, err := htmlform.ParseForms(page.Body)
	if err != nil {
		return err
	}

	for _, form := range forms {
		field, ok := htmlform.FindTokenField(form)
		if !ok {
			continue
		}
		entropy := ShannonEntropy(field.Value)
		if entropy >= c.threshold {
			continue
		}
		rec.RaiseFinding(RefCSRFTokenLowEntropy, formPosition(form, page.FinalURL),
			fmt.Sprintf("field %q value %q has %.2f bits/symbol of entropy (threshold %.1f)",
				field.Name, field.Value, entropy, c.threshold), true)
	}
	return nil
}
