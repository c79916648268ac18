package session

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

var challengeMarkers = [][]byte{
	[]byte("just a moment"),
	[]byte("cf-chl"),
	[]byte("challenge-platform"),
	[]byte("checking your browser"),
}

type HTTPOptions struct {
	UserAgent string
	Timeout   time.Duration
	// Transport is wrapped with the cloudflare bypass. Nil uses a fresh
	// http.Transport.
	Transport http.RoundTripper
	Logger    logrus.FieldLogger
}

// HTTPProvider performs the handshake with a plain GET through a transport
// that mimics a desktop browser, and returns whatever cookies the site set.
type HTTPProvider struct {
	client    *resty.Client
	userAgent string
	log       logrus.FieldLogger
}

func NewHTTPProvider(opts HTTPOptions) *HTTPProvider {
	base := opts.Transport
	if base == nil {
		base = &http.Transport{Proxy: http.ProxyFromEnvironment}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	jar, _ := cookiejar.New(nil)

	client := resty.New().
		SetTransport(cloudflarebp.AddCloudFlareByPass(base)).
		SetCookieJar(jar).
		SetTimeout(timeout).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		SetHeader("Accept-Language", "en-US,en;q=0.9")

	return &HTTPProvider{
		client:    client,
		userAgent: opts.UserAgent,
		log:       log,
	}
}

func (p *HTTPProvider) Session(ctx context.Context, rawURL string) (Session, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return Session{}, fmt.Errorf("%w: bad url %q", ErrCredentials, rawURL)
	}
	// the bypass transport would pick a random agent we could not report back
	if p.userAgent == "" {
		return Session{}, fmt.Errorf("%w: no user agent configured", ErrCredentials)
	}

	log := p.log.WithField("url", rawURL)
	log.Debug("starting handshake")

	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("User-Agent", p.userAgent).
		Get(rawURL)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrCredentials, err)
	}

	if resp.IsError() {
		if isChallenge(resp.StatusCode(), resp.Body()) {
			return Session{}, fmt.Errorf("%w: %w (HTTP %d)", ErrCredentials, ErrChallenge, resp.StatusCode())
		}
		return Session{}, fmt.Errorf("%w: HTTP %d", ErrCredentials, resp.StatusCode())
	}

	cookies := map[string]string{}
	for _, c := range p.client.GetClient().Jar.Cookies(u) {
		cookies[c.Name] = c.Value
	}
	for _, c := range resp.Cookies() {
		cookies[c.Name] = c.Value
	}

	log.WithField("cookies", len(cookies)).Debug("handshake done")

	return Session{
		URL:       rawURL,
		UserAgent: p.userAgent,
		Cookies:   cookies,
	}, nil
}

func isChallenge(status int, body []byte) bool {
	if status != http.StatusForbidden && status != http.StatusServiceUnavailable {
		return false
	}
	low := bytes.ToLower(body)
	for _, m := range challengeMarkers {
		if bytes.Contains(low, m) {
			return true
		}
	}
	return false
}
