// Package browsertest provides an in-memory browser.Launcher that serves
// canned HTML, for testing scrapers without Chrome.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/brogergvhs/comickd/internal/browser"
	"github.com/brogergvhs/comickd/internal/session"

	"github.com/PuerkitoBio/goquery"
)

// Page serves Responses by URL. When Frames is set, HTML returns the frame for
// the current scroll step instead, which models infinite scroll.
type Page struct {
	Responses map[string]string
	Frames    []string
	// NavigateFailures makes the first n navigations fail.
	NavigateFailures int

	mu          sync.Mutex
	current     string
	scrolls     int
	navigations []string
	closed      bool
}

var _ browser.Page = (*Page)(nil)

func (p *Page) Navigate(_ context.Context, url string, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.navigations = append(p.navigations, url)
	if p.NavigateFailures > 0 {
		p.NavigateFailures--
		return fmt.Errorf("%w: %s", browser.ErrNavigationTimeout, url)
	}
	if _, ok := p.Responses[url]; !ok && len(p.Frames) == 0 {
		return fmt.Errorf("net::ERR_NAME_NOT_RESOLVED at %s", url)
	}

	p.current = url
	p.scrolls = 0
	return nil
}

func (p *Page) WaitVisible(_ context.Context, selector string, _ time.Duration) error {
	p.mu.Lock()
	html := p.htmlLocked()
	p.mu.Unlock()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return err
	}
	if doc.Find(selector).Length() == 0 {
		return fmt.Errorf("%w: %s", browser.ErrSelectorTimeout, selector)
	}
	return nil
}

func (p *Page) ScrollToBottom(context.Context) error {
	return nil
}

func (p *Page) ScrollBy(context.Context, int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.scrolls < len(p.Frames)-1 {
		p.scrolls++
	}
	return nil
}

func (p *Page) AtBottom(context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scrolls >= len(p.Frames)-1, nil
}

func (p *Page) HTML(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.htmlLocked(), nil
}

func (p *Page) Attributes(_ context.Context, selector, attr string) ([]string, error) {
	p.mu.Lock()
	html := p.htmlLocked()
	p.mu.Unlock()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var out []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr(attr); ok && v != "" {
			out = append(out, v)
		}
	})
	return out, nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

func (p *Page) Navigations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.navigations...)
}

func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Page) htmlLocked() string {
	if len(p.Frames) > 0 {
		return p.Frames[p.scrolls]
	}
	return p.Responses[p.current]
}

// Launcher hands out pages built by NewPage and records every session it was
// opened with.
type Launcher struct {
	NewPage func() *Page
	OpenErr error

	mu       sync.Mutex
	sessions []session.Session
	pages    []*Page
}

func (l *Launcher) Open(_ context.Context, s session.Session) (browser.Page, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sessions = append(l.sessions, s)
	if l.OpenErr != nil {
		return nil, l.OpenErr
	}

	p := l.NewPage()
	l.pages = append(l.pages, p)
	return p, nil
}

func (l *Launcher) Sessions() []session.Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]session.Session(nil), l.sessions...)
}

func (l *Launcher) Pages() []*Page {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Page(nil), l.pages...)
}
