package checks

import (
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/khanhnv2901/seca-probe/internal/cancel"
	"github.com/khanhnv2901/seca-probe/internal/checker"
	"github.com/khanhnv2901/seca-probe/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *transport.Client) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server, transport.NewClientWithTransport(server.Client().Transport, transport.Options{Timeout: 2 * time.Second})
}

func serverTarget(t *testing.T, raw string) checker.Target {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	target, err := checker.NewTarget(checker.ServerRoot(u), checker.TargetServer)
	require.NoError(t, err)
	return target
}

func refs(issues []checker.Issue) map[string]int {
	counts := make(map[string]int)
	for _, issue := range issues {
		counts[issue.Ref]++
	}
	return counts
}

func TestSecurityHeaders_MissingAndDisclosure(t *testing.T) {
	server, client := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "Apache/2.4.1")
		w.Header().Set("X-Powered-By", "PHP/5.6")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
	})

	out := runCheck(t, NewSecurityHeadersCheck(client), serverTarget(t, server.URL))

	require.Equal(t, checker.OutcomeFailedWithIssues, out.Kind, "err: %v", out.Err)
	got := refs(out.Issues)
	// HSTS is not expected on plain http.
	assert.Equal(t, 3, got[RefSecurityHeaderMissing])
	assert.Equal(t, 2, got[RefInformationDisclosure])
	assert.Equal(t, 1, got[RefSecurityHeaderDeprecated])
	assert.Zero(t, got[RefSecurityHeaderWeak])
}

func TestSecurityHeaders_WeakValues(t *testing.T) {
	server, client := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' 'unsafe-inline'")
		w.Header().Set("X-Frame-Options", "ALLOW-FROM https://example.com")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "unsafe-url")
	})

	out := runCheck(t, NewSecurityHeadersCheck(client), serverTarget(t, server.URL))

	got := refs(out.Issues)
	assert.Equal(t, 3, got[RefSecurityHeaderWeak])
	assert.Zero(t, got[RefSecurityHeaderMissing])
}

func TestSecurityHeaders_Hardened(t *testing.T) {
	server, client := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-XSS-Protection", "0")
	})

	out := runCheck(t, NewSecurityHeadersCheck(client), serverTarget(t, server.URL))

	assert.Equal(t, checker.OutcomePassed, out.Kind, "issues: %+v", out.Issues)
}

func TestEvaluateHSTS(t *testing.T) {
	assert.Empty(t, evaluateHSTS("max-age=31536000; includeSubDomains"))
	assert.Contains(t, evaluateHSTS("max-age=0"), "max-age=0 disables HSTS")
	assert.Contains(t, evaluateHSTS("max-age=3600; includeSubDomains"), "max-age shorter than one year")
	assert.Contains(t, evaluateHSTS("includeSubDomains"), "missing max-age")
}

func TestCookieFlags(t *testing.T) {
	server, client := serve(t, func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "1", HttpOnly: true})
		http.SetCookie(w, &http.Cookie{Name: "theme", Value: "dark"})
		http.SetCookie(w, &http.Cookie{Name: "track", Value: "x", HttpOnly: true, SameSite: http.SameSiteNoneMode})
	})

	out := runCheck(t, NewCookieFlagsCheck(client), serverTarget(t, server.URL))

	require.Equal(t, checker.OutcomeFailedWithIssues, out.Kind, "err: %v", out.Err)
	got := refs(out.Issues)
	assert.Equal(t, 1, got[RefCookieMissingHTTPOnly])
	assert.Equal(t, 1, got[RefCookieSameSiteNone])
	// Secure is only demanded from https servers.
	assert.Zero(t, got[RefCookieMissingSecure])
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
		maybeFP bool
	}{
		{
			name:    "wildcard origin",
			headers: map[string]string{"Access-Control-Allow-Origin": "*"},
			want:    RefCORSWildcardOrigin,
			maybeFP: true,
		},
		{
			name: "reflected origin with credentials",
			headers: map[string]string{
				"Access-Control-Allow-Origin":      probeOrigin,
				"Access-Control-Allow-Credentials": "true",
				"Vary":                             "Origin",
			},
			want: RefCORSReflectedOrigin,
		},
		{
			name:    "wildcard headers",
			headers: map[string]string{"Access-Control-Allow-Headers": "*"},
			want:    RefCORSWildcardHeaders,
			maybeFP: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, client := serve(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("Origin") != probeOrigin {
					http.Error(w, "origin missing", http.StatusBadRequest)
					return
				}
				for k, v := range tt.headers {
					w.Header().Set(k, v)
				}
			})

			out := runCheck(t, NewCORSCheck(client), serverTarget(t, server.URL))

			require.Len(t, out.Issues, 1, "err: %v", out.Err)
			assert.Equal(t, tt.want, out.Issues[0].Ref)
			assert.Equal(t, tt.maybeFP, out.Issues[0].MaybeFalsePositive)
		})
	}
}

func TestCORS_NoHeaders(t *testing.T) {
	server, client := serve(t, func(w http.ResponseWriter, r *http.Request) {})

	out := runCheck(t, NewCORSCheck(client), serverTarget(t, server.URL))

	assert.Equal(t, checker.OutcomePassed, out.Kind)
}

func TestTLS_PlainHTTP(t *testing.T) {
	server, client := serve(t, func(w http.ResponseWriter, r *http.Request) {})

	out := runCheck(t, NewTLSCheck(client), serverTarget(t, server.URL))

	require.Len(t, out.Issues, 1)
	assert.Equal(t, RefTLSNotEnabled, out.Issues[0].Ref)
}

func TestTLS_ModernServer(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	t.Cleanup(server.Close)
	client := transport.NewClientWithTransport(server.Client().Transport, transport.Options{Timeout: 2 * time.Second})

	out := runCheck(t, NewTLSCheck(client), serverTarget(t, server.URL))

	require.NotEqual(t, checker.OutcomeFatalError, out.Kind, "err: %v", out.Err)
	got := refs(out.Issues)
	assert.Zero(t, got[RefTLSNotEnabled])
	assert.Zero(t, got[RefTLSOutdatedProtocol])
	assert.Zero(t, got[RefTLSWeakCipher])
	assert.Zero(t, got[RefTLSCertificateExpired])
}

// weakTLSCheck reports the synthetic connection state as the server's.
type weakTLSCheck struct {
	*TLSCheck
	state *tls.ConnectionState
}

func (c weakTLSCheck) Probe(_ *cancel.Token, target checker.Target, rec *checker.Recorder) error {
	c.inspect(c.state, target.URI().Host, rec)
	return nil
}

func TestTLS_InspectWeakState(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cert := &x509.Certificate{
		Subject:            pkix.Name{CommonName: "legacy.example"},
		NotAfter:           now.Add(5 * 24 * time.Hour),
		SignatureAlgorithm: x509.SHA1WithRSA,
		PublicKey:          &rsa.PublicKey{N: new(big.Int).Lsh(big.NewInt(1), 1023), E: 65537},
	}
	chk := weakTLSCheck{
		TLSCheck: &TLSCheck{now: func() time.Time { return now }},
		state: &tls.ConnectionState{
			Version:          tls.VersionTLS10,
			CipherSuite:      tls.TLS_RSA_WITH_3DES_EDE_CBC_SHA,
			PeerCertificates: []*x509.Certificate{cert},
		},
	}

	out := runCheck(t, chk, serverTarget(t, "https://legacy.example/"))

	got := refs(out.Issues)
	assert.Equal(t, map[string]int{
		RefTLSOutdatedProtocol:    1,
		RefTLSWeakCipher:          1,
		RefTLSCertificateExpiring: 1,
		RefTLSWeakSignature:       1,
		RefTLSWeakKey:             1,
	}, got)
}

func TestTLS_ExpiredCertificate(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	chk := weakTLSCheck{
		TLSCheck: &TLSCheck{now: func() time.Time { return now }},
		state: &tls.ConnectionState{
			Version:     tls.VersionTLS13,
			CipherSuite: tls.TLS_AES_128_GCM_SHA256,
			PeerCertificates: []*x509.Certificate{{
				NotAfter:           now.Add(-time.Hour),
				SignatureAlgorithm: x509.SHA256WithRSA,
			}},
		},
	}

	out := runCheck(t, chk, serverTarget(t, "https://expired.example/"))

	require.Len(t, out.Issues, 1)
	assert.Equal(t, RefTLSCertificateExpired, out.Issues[0].Ref)
}

func TestJSLibraries(t *testing.T) {
	server, client := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head>
<script src="https://code.jquery.com/jquery-3.4.1.min.js"></script>
<script src="/static/jquery-3.4.1.min.js"></script>
<script src="https://cdn.jsdelivr.net/npm/lodash@4.17.21/lodash.min.js"></script>
<script src="https://cdnjs.cloudflare.com/ajax/libs/moment.js/2.29.1/moment.min.js"></script>
</head></html>`)
	})

	out := runCheck(t, NewJSLibrariesCheck(client), pageTarget(t, server.URL+"/"))

	require.Equal(t, checker.OutcomeFailedWithIssues, out.Kind, "err: %v", out.Err)
	require.Len(t, out.Issues, 2)
	assert.Contains(t, out.Issues[0].Content, "jQuery 3.4.1")
	assert.Contains(t, out.Issues[1].Content, "Moment.js 2.29.1")
}

func TestCompareVersion(t *testing.T) {
	assert.Equal(t, -1, compareVersion("3.4.1", "3.5.0"))
	assert.Equal(t, 0, compareVersion("3.5", "3.5.0"))
	assert.Equal(t, 1, compareVersion("4.17.21", "4.17.12"))
	assert.Equal(t, 1, compareVersion("10.0", "9.9.9"))
}

func TestSEOMetadata(t *testing.T) {
	server, client := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if r.URL.Path == "/good" {
			fmt.Fprint(w, `<html><head><title>Shop</title><meta name="description" content="Things"></head><body><h1>Shop</h1></body></html>`)
			return
		}
		fmt.Fprint(w, `<html><head></head><body><h1>a</h1><h1>b</h1></body></html>`)
	})

	out := runCheck(t, NewSEOMetadataCheck(client), pageTarget(t, server.URL+"/bad"))
	assert.Equal(t, map[string]int{
		RefSEOMissingTitle:       1,
		RefSEOMissingDescription: 1,
		RefSEOHeadingCount:       1,
	}, refs(out.Issues))

	out = runCheck(t, NewSEOMetadataCheck(client), pageTarget(t, server.URL+"/good"))
	assert.Equal(t, checker.OutcomePassed, out.Kind)
}

func TestServerCheckFetchFailureIsFatal(t *testing.T) {
	server, client := serve(t, func(w http.ResponseWriter, r *http.Request) {})
	target := serverTarget(t, server.URL)
	server.Close()

	out := runCheck(t, NewSecurityHeadersCheck(client), target)

	assert.Equal(t, checker.OutcomeFatalError, out.Kind)
	var netErr *transport.NetworkError
	assert.True(t, errors.As(out.Err, &netErr), "err: %v", out.Err)
}
