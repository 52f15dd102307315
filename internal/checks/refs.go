// Package checks holds the concrete probes run by the scanner and the
// registry that builds them by name.
package checks

// Issue refs. They are stable identifiers stored with every finding.
const (
	RefCSRFNoProtection         = "csrf-no-protection"
	RefCSRFTokenNotSessionBound = "csrf-token-not-session-bound"
	RefCSRFTokenNotValidated    = "csrf-token-not-validated"
	RefCSRFTokenLowEntropy      = "csrf-token-low-entropy"

	RefSecurityHeaderMissing    = "security-header-missing"
	RefSecurityHeaderWeak       = "security-header-weak"
	RefSecurityHeaderDeprecated = "security-header-deprecated"
	RefInformationDisclosure    = "information-disclosure"

	RefCookieMissingSecure   = "cookie-missing-secure"
	RefCookieMissingHTTPOnly = "cookie-missing-httponly"
	RefCookieSameSiteNone    = "cookie-samesite-none-insecure"

	RefCORSWildcardOrigin  = "cors-wildcard-origin"
	RefCORSReflectedOrigin = "cors-reflected-origin"
	RefCORSWildcardHeaders = "cors-wildcard-headers"

	RefTLSNotEnabled          = "tls-not-enabled"
	RefTLSOutdatedProtocol    = "tls-outdated-protocol"
	RefTLSWeakCipher          = "tls-weak-cipher"
	RefTLSCertificateExpired  = "tls-certificate-expired"
	RefTLSCertificateExpiring = "tls-certificate-expiring"
	RefTLSWeakSignature       = "tls-weak-signature"
	RefTLSWeakKey             = "tls-weak-key"

	RefVulnerableJSLibrary = "vulnerable-js-library"
	RefScriptWithoutSRI    = "script-without-sri"
	RefMixedContentScript  = "mixed-content-script"

	RefCacheControlMissing    = "cache-control-missing"
	RefCacheControlWeak       = "cache-control-weak"
	RefCacheableAuthenticated = "cacheable-authenticated-page"

	RefSEOMissingTitle       = "seo-missing-title"
	RefSEOMissingDescription = "seo-missing-description"
	RefSEOHeadingCount       = "seo-h1-count"
)
