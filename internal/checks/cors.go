package checks

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/khanhnv2901/seca-probe/internal/cancel"
	"github.com/khanhnv2901/seca-probe/internal/checker"
	"github.com/khanhnv2901/seca-probe/internal/transport"
)

// probeOrigin is sent as the Origin of the cross-origin request. It belongs
// to a reserved domain, so no real site can own it.
const probeOrigin = "https://seca-probe.example"

// CORSCheck sends a request from a foreign origin and inspects which
// cross-origin access the server grants.
type CORSCheck struct {
	client *transport.Client
}

// NewCORSCheck builds the check.
func NewCORSCheck(client *transport.Client) *CORSCheck {
	return &CORSCheck{client: client}
}

func (c *CORSCheck) Identity() checker.Identity {
	return checker.Identity{
		Name:        "cors",
		Description: "Cross-origin resource sharing granted to arbitrary origins",
		TargetType:  checker.TargetServer,
		Family:      checker.FamilySecurity,
	}
}

func (c *CORSCheck) Probe(tok *cancel.Token, target checker.Target, rec *checker.Recorder) error {
	resp, err := c.client.Do(tok, transport.Request{
		Method: http.MethodGet,
		URL:    target.String(),
		Header: http.Header{"Origin": []string{probeOrigin}},
	})
	if err != nil {
		return fmt.Errorf("cross-origin request: %w", err)
	}
	analyzeCORS(resp.Header, target.String(), rec)
	return nil
}

func analyzeCORS(headers http.Header, position string, rec *checker.Recorder) {
	origin := headers.Get("Access-Control-Allow-Origin")
	credentials := strings.EqualFold(headers.Get("Access-Control-Allow-Credentials"), "true")

	switch origin {
	case "":
	case "*":
		rec.RaiseFinding(RefCORSWildcardOrigin, position,
			"Access-Control-Allow-Origin: * lets any site read responses", !credentials)
	case probeOrigin, "null":
		content := fmt.Sprintf("the server echoed Origin %q", origin)
		if credentials {
			content += " and allows credentials, so any site can read authenticated responses"
		}
		if !varyIncludesOrigin(headers.Values("Vary")) {
			content += "; Vary: Origin is missing"
		}
		rec.RaiseFinding(RefCORSReflectedOrigin, position, content, !credentials)
	}

	for _, name := range []string{"Access-Control-Allow-Headers", "Access-Control-Expose-Headers"} {
		if strings.Contains(headers.Get(name), "*") {
			rec.RaiseFinding(RefCORSWildcardHeaders, position, name+" contains a wildcard", true)
		}
	}
}

func varyIncludesOrigin(values []string) bool {
	for _, value := range values {
		for _, token := range strings.Split(value, ",") {
			if strings.EqualFold(strings.TrimSpace(token), "origin") {
				return true
			}
		}
	}
	return false
}
