package checks

import (
	"net/http"

	"github.com/khanhnv2901/seca-probe/internal/auth"
	"github.com/khanhnv2901/seca-probe/internal/cancel"
	"github.com/khanhnv2901/seca-probe/internal/checker"
	"go.uber.org/zap"
)

// sharedJar returns the shared session's cookies when a login is configured.
// A failed login falls back to an anonymous view; only cancellation is
// returned.
func sharedJar(tok *cancel.Token, sessions *auth.Manager, rec *checker.Recorder) (http.CookieJar, error) {
	if !sessions.Configured() {
		return nil, nil
	}
	session, err := sessions.Shared(tok)
	if err != nil {
		return nil, rec.HandleTransportError(err, zap.String("step", "shared login"), zap.Bool("anonymous_fallback", true))
	}
	return session.Jar, nil
}
