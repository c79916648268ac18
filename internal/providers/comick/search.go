package comick

import (
	"context"
	"fmt"

	"github.com/brogergvhs/comickd/internal/browser"
	"github.com/brogergvhs/comickd/internal/providers"
	"github.com/brogergvhs/comickd/internal/session"

	"github.com/sirupsen/logrus"
)

// Searcher queries the site's search page, which loads more hits as it is
// scrolled.
type Searcher struct {
	sessions session.Provider
	browser  browser.Launcher
	opts     Options
	log      logrus.FieldLogger
}

func NewSearcher(sessions session.Provider, launcher browser.Launcher, opts Options, log logrus.FieldLogger) *Searcher {
	return &Searcher{
		sessions: sessions,
		browser:  launcher,
		opts:     opts.withDefaults(),
		log:      log,
	}
}

var _ providers.ComicSearcher = (*Searcher)(nil)

func (s *Searcher) Search(ctx context.Context, query string) ([]providers.Comic, error) {
	searchURL := SearchURL(s.opts.BaseURL, query)
	log := s.log.WithField("query", query)

	sess, err := s.sessions.Session(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	page, err := s.browser.Open(ctx, sess)
	if err != nil {
		return nil, fmt.Errorf("open browser: %w", err)
	}
	defer page.Close()

	if err := page.Navigate(ctx, searchURL, s.opts.NavigationTimeout); err != nil {
		return nil, err
	}

	var results []providers.Comic
	seen := map[string]bool{}

	for i := 0; i < maxSearchScrolls; i++ {
		if err := page.ScrollBy(ctx, searchScrollStep); err != nil {
			return results, err
		}
		if err := browser.Sleep(ctx, s.opts.SearchScrollDelay); err != nil {
			return results, err
		}

		html, err := page.HTML(ctx)
		if err != nil {
			return results, err
		}

		hits, err := ParseSearchResults(html, s.opts.BaseURL)
		if err != nil {
			return results, err
		}
		for _, h := range hits {
			if !seen[h.URL] {
				seen[h.URL] = true
				results = append(results, h)
			}
		}

		bottom, err := page.AtBottom(ctx)
		if err != nil {
			return results, err
		}
		if bottom {
			break
		}
	}

	log.WithField("results", len(results)).Info("search done")
	return results, nil
}
