package checks

import (
	"fmt"
	"strings"

	"github.com/khanhnv2901/seca-probe/internal/cancel"
	"github.com/khanhnv2901/seca-probe/internal/checker"
	"github.com/khanhnv2901/seca-probe/internal/htmlform"
	"github.com/khanhnv2901/seca-probe/internal/transport"
)

// SEOMetadataCheck looks at the page title, meta description and top-level
// headings.
type SEOMetadataCheck struct {
	client *transport.Client
}

// NewSEOMetadataCheck builds the check.
func NewSEOMetadataCheck(client *transport.Client) *SEOMetadataCheck {
	return &SEOMetadataCheck{client: client}
}

func (c *SEOMetadataCheck) Identity() checker.Identity {
	return checker.Identity{
		Name:              "seo-metadata",
		Description:       "Missing title or meta description and a wrong number of h1 headings",
		TargetType:        checker.TargetPage,
		Family:            checker.FamilySEO,
		CanRunDuringCrawl: true,
	}
}

func (c *SEOMetadataCheck) Probe(tok *cancel.Token, target checker.Target, rec *checker.Recorder) error {
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

	position := target.String()
	if strings.TrimSpace(doc.Find("head title").First().Text()) == "" {
		rec.RaiseFinding(RefSEOMissingTitle, position, "the page has no <title>", false)
	}
	description, _ := doc.Find(`meta[name="description"]`).First().Attr("content")
	if strings.TrimSpace(description) == "" {
		rec.RaiseFinding(RefSEOMissingDescription, position, "the page has no meta description", false)
	}
	if n := doc.Find("h1").Length(); n != 1 {
		rec.RaiseFinding(RefSEOHeadingCount, position, fmt.Sprintf("the page has %d <h1> headings, expected one", n), true)
	}
	return nil
}
