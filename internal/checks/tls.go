package checks

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/khanhnv2901/seca-probe/internal/cancel"
	"github.com/khanhnv2901/seca-probe/internal/checker"
	consts "github.com/khanhnv2901/seca-probe/internal/shared/constants"
	"github.com/khanhnv2901/seca-probe/internal/transport"
)

// versionSSL30 is spelled out so SSL 3.0 can be named without the
// deprecated tls constant.
const versionSSL30 uint16 = 0x0300

// Suites without forward secrecy or built on broken primitives.
var weakCipherSuites = map[uint16]bool{
	tls.TLS_RSA_WITH_RC4_128_SHA:                true,
	tls.TLS_RSA_WITH_3DES_EDE_CBC_SHA:           true,
	tls.TLS_RSA_WITH_AES_128_CBC_SHA:            true,
	tls.TLS_RSA_WITH_AES_256_CBC_SHA:            true,
	tls.TLS_RSA_WITH_AES_128_GCM_SHA256:         true,
	tls.TLS_RSA_WITH_AES_256_GCM_SHA384:         true,
	tls.TLS_ECDHE_ECDSA_WITH_RC4_128_SHA:        true,
	tls.TLS_ECDHE_RSA_WITH_RC4_128_SHA:          true,
	tls.TLS_ECDHE_RSA_WITH_3DES_EDE_CBC_SHA:     true,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA256: true,
}

// TLSCheck inspects the negotiated connection and leaf certificate of the
// server.
type TLSCheck struct {
	client *transport.Client
	now    func() time.Time
}

// NewTLSCheck builds the check.
func NewTLSCheck(client *transport.Client) *TLSCheck {
	return &TLSCheck{client: client, now: time.Now}
}

func (c *TLSCheck) Identity() checker.Identity {
	return checker.Identity{
		Name:        "tls",
		Description: "Plain http, outdated protocols, weak ciphers and certificate problems",
		TargetType:  checker.TargetServer,
		Family:      checker.FamilySecurity,
	}
}

func (c *TLSCheck) Probe(tok *cancel.Token, target checker.Target, rec *checker.Recorder) error {
	if !target.IsTLS() {
		rec.RaiseFinding(RefTLSNotEnabled, target.String(), "the server is reached over plain http", false)
		return nil
	}
	resp, err := c.client.Get(tok, target.String(), nil)
	if err != nil {
		return fmt.Errorf("tls handshake: %w", err)
	}
	if resp.TLS == nil {
		return fmt.Errorf("no tls connection state for %s", target)
	}
	c.inspect(resp.TLS, target.URI().Host, rec)
	return nil
}

func (c *TLSCheck) inspect(state *tls.ConnectionState, position string, rec *checker.Recorder) {
	if state.Version < tls.VersionTLS12 {
		rec.RaiseFinding(RefTLSOutdatedProtocol, position,
			fmt.Sprintf("negotiated %s; only TLS 1.2 and 1.3 are acceptable", tlsVersionString(state.Version)), false)
	}
	if weakCipherSuites[state.CipherSuite] {
		rec.RaiseFinding(RefTLSWeakCipher, position,
			fmt.Sprintf("negotiated cipher suite %s", tls.CipherSuiteName(state.CipherSuite)), false)
	}
	if len(state.PeerCertificates) > 0 {
		c.inspectCertificate(state.PeerCertificates[0], position, rec)
	}
}

func (c *TLSCheck) inspectCertificate(cert *x509.Certificate, position string, rec *checker.Recorder) {
	now := c.now()
	switch {
	case now.After(cert.NotAfter):
		rec.RaiseFinding(RefTLSCertificateExpired, position,
			fmt.Sprintf("certificate for %q expired on %s", cert.Subject.CommonName, cert.NotAfter.Format(time.DateOnly)), false)
	case cert.NotAfter.Sub(now) < consts.TLSSoonExpiryWindow:
		rec.RaiseFinding(RefTLSCertificateExpiring, position,
			fmt.Sprintf("certificate for %q expires on %s", cert.Subject.CommonName, cert.NotAfter.Format(time.DateOnly)), false)
	}

	switch cert.SignatureAlgorithm {
	case x509.MD2WithRSA, x509.MD5WithRSA, x509.SHA1WithRSA, x509.DSAWithSHA1, x509.ECDSAWithSHA1:
		rec.RaiseFinding(RefTLSWeakSignature, position,
			"certificate signed with "+cert.SignatureAlgorithm.String(), false)
	}

	switch key := cert.PublicKey.(type) {
	case *rsa.PublicKey:
		if bits := key.N.BitLen(); bits < 2048 {
			rec.RaiseFinding(RefTLSWeakKey, position, fmt.Sprintf("RSA key of %d bits, at least 2048 required", bits), false)
		}
	case *ecdsa.PublicKey:
		if bits := key.Curve.Params().BitSize; bits < 224 {
			rec.RaiseFinding(RefTLSWeakKey, position, fmt.Sprintf("ECDSA key of %d bits, at least 224 required", bits), false)
		}
	}
}

func tlsVersionString(version uint16) string {
	switch version {
	case versionSSL30:
		return "SSL 3.0"
	case tls.VersionTLS10:
		return "TLS 1.0"
	case tls.VersionTLS11:
		return "TLS 1.1"
	case tls.VersionTLS12:
		return "TLS 1.2"
	case tls.VersionTLS13:
		return "TLS 1.3"
	}
	return fmt.Sprintf("unknown (0x%04x)", version)
}
