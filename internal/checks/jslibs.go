package checks

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/khanhnv2901/seca-probe/internal/cancel"
	"github.com/khanhnv2901/seca-probe/internal/checker"
	"github.com/khanhnv2901/seca-probe/internal/htmlform"
	"github.com/khanhnv2901/seca-probe/internal/transport"
)

// jsLibrary is a client-side library with a known vulnerable version range.
type jsLibrary struct {
	name    string
	pattern *regexp.Regexp
	fixedIn string
	cves    string
}

// Versions are read from CDN-style script paths such as
// jquery-3.4.1.min.js or lodash@4.17.11.
var jsLibraries = []jsLibrary{
	{"jQuery", regexp.MustCompile(`(?i)jquery[/@-](\d+\.\d+(?:\.\d+)?)`), "3.5.0", "CVE-2020-11022, CVE-2020-11023"},
	{"AngularJS", regexp.MustCompile(`(?i)angular(?:js)?[/@-](1\.\d+(?:\.\d+)?)`), "1.7.9", "CVE-2019-10768"},
	{"Lodash", regexp.MustCompile(`(?i)lodash(?:\.js)?[/@-](\d+\.\d+(?:\.\d+)?)`), "4.17.12", "CVE-2019-10744"},
	{"Moment.js", regexp.MustCompile(`(?i)moment(?:\.js)?[/@-](\d+\.\d+(?:\.\d+)?)`), "2.29.2", "CVE-2022-24785"},
	{"Bootstrap", regexp.MustCompile(`(?i)bootstrap[/@-](\d+\.\d+(?:\.\d+)?)`), "3.4.0", "CVE-2019-8331"},
}

// JSLibrariesCheck looks for script includes of library versions with
// published vulnerabilities.
type JSLibrariesCheck struct {
	client *transport.Client
}

// NewJSLibrariesCheck builds the check.
func NewJSLibrariesCheck(client *transport.Client) *JSLibrariesCheck {
	return &JSLibrariesCheck{client: client}
}

func (c *JSLibrariesCheck) Identity() checker.Identity {
	return checker.Identity{
		Name:              "js-libraries",
		Description:       "Script includes of JavaScript libraries with known vulnerabilities",
		TargetType:        checker.TargetPage,
		Family:            checker.FamilySecurity,
		CanRunDuringCrawl: true,
	}
}

func (c *JSLibrariesCheck) Probe(tok *cancel.Token, target checker.Target, rec *checker.Recorder) error {
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

	seen := make(map[string]bool)
	doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		for _, lib := range jsLibraries {
			m := lib.pattern.FindStringSubmatch(src)
			if m == nil || compareVersion(m[1], lib.fixedIn) >= 0 {
				continue
			}
			key := lib.name + "@" + m[1]
			if seen[key] {
				continue
			}
			seen[key] = true
			rec.RaiseFinding(RefVulnerableJSLibrary, src,
				fmt.Sprintf("%s %s is older than %s (%s)", lib.name, m[1], lib.fixedIn, lib.cves), true)
		}
	})
	return nil
}

// compareVersion orders dotted numeric versions. Missing or non-numeric
// parts count as zero.
func compareVersion(a, b string) int {
	pa, pb := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(pa) || i < len(pb); i++ {
		na, nb := versionPart(pa, i), versionPart(pb, i)
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		}
	}
	return 0
}

func versionPart(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	n, err := strconv.Atoi(parts[i])
	if err != nil {
		return 0
	}
	return n
}
