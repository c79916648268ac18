package session

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type cacheEntry struct {
	sess    Session
	expires time.Time
}

// Cached shares one handshake per host between concurrent callers and keeps
// the result for ttl. Failures are not cached.
type Cached struct {
	inner Provider
	ttl   time.Duration
	now   func() time.Time

	group singleflight.Group

	mu      sync.Mutex
	entries map[string]cacheEntry
}

func NewCached(inner Provider, ttl time.Duration) *Cached {
	return &Cached{
		inner:   inner,
		ttl:     ttl,
		now:     time.Now,
		entries: map[string]cacheEntry{},
	}
}

func (c *Cached) Session(ctx context.Context, rawURL string) (Session, error) {
	key := hostKey(rawURL)

	c.mu.Lock()
	e, ok := c.entries[key]
	c.mu.Unlock()
	if ok && c.now().Before(e.expires) {
		s := e.sess
		s.URL = rawURL
		return s, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		s, err := c.inner.Session(ctx, rawURL)
		if err != nil {
			return Session{}, err
		}

		c.mu.Lock()
		c.entries[key] = cacheEntry{sess: s, expires: c.now().Add(c.ttl)}
		c.mu.Unlock()

		return s, nil
	})
	if err != nil {
		return Session{}, err
	}

	s := v.(Session)
	s.URL = rawURL
	return s, nil
}

func hostKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Scheme + "://" + u.Host
}
