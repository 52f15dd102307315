// Package transport is the HTTP collaborator used by every check. It binds
// requests to cancellation tokens, applies per-request cookie stores and
// timeouts, and classifies failures as cancelled, timed out or network errors.
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/khanhnv2901/seca-probe/internal/cancel"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds a single request when neither the request nor the
	// client sets one.
	DefaultTimeout = 10 * time.Second
	// MaxBodyBytes caps how much of a response body is buffered.
	MaxBodyBytes = 2 << 20

	defaultUserAgent = "seca-probe/1.0 (+authorized security testing)"
	maxRedirects     = 10
)

// Request describes one probe request.
type Request struct {
	Method  string
	URL     string
	Header  http.Header
	Body    []byte
	Timeout time.Duration

	// Jar is the cookie store of the acting session. Nil sends an anonymous
	// request with no cookies at all.
	Jar http.CookieJar

	// NoRedirect returns 3xx responses as-is instead of following them.
	NoRedirect bool
}

// Response is a fully buffered HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	FinalURL   *url.URL
	TLS        *tls.ConnectionState
}

// Cookies parses the Set-Cookie headers of the response.
func (r *Response) Cookies() []*http.Cookie {
	if r == nil {
		return nil
	}
	return (&http.Response{Header: r.Header}).Cookies()
}

// IsHTML reports whether the response looks like an HTML document.
func (r *Response) IsHTML() bool {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	return ct == "" || strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}

// Options configures a Client.
type Options struct {
	Timeout   time.Duration
	RateLimit int // requests per second, 0 disables pacing
	UserAgent string
	Insecure  bool
	Logger    *zap.Logger
}

// Client issues probe requests over a shared connection pool.
type Client struct {
	transport http.RoundTripper
	timeout   time.Duration
	limiter   *rate.Limiter
	userAgent string
	logger    *zap.Logger
}

// NewClient builds a client with its own transport.
func NewClient(opts Options) *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: opts.Insecure, // #nosec G402 -- operator opt-in for lab targets
			MinVersion:         tls.VersionTLS10,
		},
	}
	return NewClientWithTransport(transport, opts)
}

// NewClientWithTransport builds a client around an existing round tripper,
// e.g. an httptest server's transport.
func NewClientWithTransport(rt http.RoundTripper, opts Options) *Client {
	if rt == nil {
		rt = http.DefaultTransport
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateLimit)
	}

	return &Client{
		transport: rt,
		timeout:   timeout,
		limiter:   limiter,
		userAgent: userAgent,
		logger:    logger,
	}
}

// NewJar returns an empty cookie store for a session.
func NewJar() http.CookieJar {
	// cookiejar.New currently never returns an error.
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		panic(fmt.Sprintf("transport: cookie jar: %v", err))
	}
	return jar
}

// Get is a convenience wrapper for a GET request.
func (c *Client) Get(tok *cancel.Token, rawURL string, jar http.CookieJar) (*Response, error) {
	return c.Do(tok, Request{Method: http.MethodGet, URL: rawURL, Jar: jar})
}

// Do sends the request. The returned error wraps cancel.ErrCancelled when tok
// triggered, ErrTimeout when the request deadline passed, and is a
// *NetworkError for every other failure.
func (c *Client) Do(tok *cancel.Token, req Request) (*Response, error) {
	if tok == nil {
		return nil, errors.New("transport: nil cancellation token")
	}
	if err := tok.Err(); err != nil {
		return nil, err
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(tok.Context()); err != nil {
			if reason := tok.Err(); reason != nil {
				return nil, reason
			}
			return nil, &NetworkError{Method: method, URL: req.URL, Err: err}
		}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, cancelTimeout := context.WithTimeout(tok.Context(), timeout)
	defer cancelTimeout()

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, &NetworkError{Method: method, URL: req.URL, Err: err}
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}

	client := &http.Client{
		Transport: c.transport,
		Jar:       req.Jar,
	}
	if req.NoRedirect {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	} else {
		client.CheckRedirect = func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		}
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, c.classify(tok, ctx, method, req.URL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
	if err != nil {
		return nil, c.classify(tok, ctx, method, req.URL, err)
	}

	c.logger.Debug("probe request",
		zap.String("method", method),
		zap.String("url", req.URL),
		zap.Int("status", resp.StatusCode),
		zap.Bool("session", req.Jar != nil),
	)

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
		FinalURL:   resp.Request.URL,
		TLS:        resp.TLS,
	}, nil
}

func (c *Client) classify(tok *cancel.Token, ctx context.Context, method, rawURL string, err error) error {
	if reason := tok.Err(); reason != nil {
		return fmt.Errorf("%s %s: %w", method, rawURL, reason)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s %s: %w", method, rawURL, ErrTimeout)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%s %s: %w", method, rawURL, ErrTimeout)
	}
	return &NetworkError{Method: method, URL: rawURL, Err: err}
}
