// Package session acquires the cookies and user agent that let later requests
// pass the target site's anti-bot check.
package session

import (
	"context"
	"errors"
	"net/url"
	"sort"
	"strings"
)

var (
	// ErrCredentials is returned when no session could be acquired.
	ErrCredentials = errors.New("credential acquisition failed")
	// ErrChallenge means the handshake was answered with a challenge page.
	ErrChallenge = errors.New("anti-bot challenge not passed")
)

// Session is a cookie set plus the user agent it was obtained with. Both must
// be sent together.
type Session struct {
	URL       string
	UserAgent string
	Cookies   map[string]string
}

// Domain is the host the cookies belong to.
func (s Session) Domain() string {
	u, err := url.Parse(s.URL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// CookieHeader renders the cookies as a Cookie header value, sorted by name.
func (s Session) CookieHeader() string {
	parts := make([]string, 0, len(s.Cookies))
	for k, v := range s.Cookies {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

type Provider interface {
	Session(ctx context.Context, rawURL string) (Session, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, rawURL string) (Session, error)

func (f ProviderFunc) Session(ctx context.Context, rawURL string) (Session, error) {
	return f(ctx, rawURL)
}

// Static always hands out the same user agent and cookies. Used when the user
// supplies cookies by hand.
type Static struct {
	UserAgent string
	Cookies   map[string]string
}

func (s Static) Session(_ context.Context, rawURL string) (Session, error) {
	if s.UserAgent == "" {
		return Session{}, ErrCredentials
	}
	return Session{URL: rawURL, UserAgent: s.UserAgent, Cookies: s.Cookies}, nil
}

// ParseCookieHeader splits "a=1; b=2" into a map. Malformed pairs are skipped.
func ParseCookieHeader(h string) map[string]string {
	out := map[string]string{}
	for _, part := range strings.Split(h, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			continue
		}
		out[k] = strings.TrimSpace(v)
	}
	return out
}
