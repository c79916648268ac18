package comick

import (
	"context"
	"fmt"

	"github.com/brogergvhs/comickd/internal/browser"
	"github.com/brogergvhs/comickd/internal/providers"
	"github.com/brogergvhs/comickd/internal/retry"
	"github.com/brogergvhs/comickd/internal/session"

	"github.com/sirupsen/logrus"
)

// Extractor collects the page image URLs of one chapter.
type Extractor struct {
	sessions session.Provider
	browser  browser.Launcher
	opts     Options
	log      logrus.FieldLogger
}

func NewExtractor(sessions session.Provider, launcher browser.Launcher, opts Options, log logrus.FieldLogger) *Extractor {
	return &Extractor{
		sessions: sessions,
		browser:  launcher,
		opts:     opts.withDefaults(),
		log:      log,
	}
}

var _ providers.ImageExtractor = (*Extractor)(nil)

// Extract returns the CDN image URLs in DOM order together with the user agent
// and cookies they must be fetched with. On error the set is empty.
func (e *Extractor) Extract(ctx context.Context, chapterURL string) (providers.ImageSet, error) {
	empty := providers.ImageSet{ChapterURL: chapterURL}
	log := e.log.WithField("chapter", chapterURL)

	sess, err := e.sessions.Session(ctx, chapterURL)
	if err != nil {
		return empty, err
	}

	page, err := e.browser.Open(ctx, sess)
	if err != nil {
		return empty, fmt.Errorf("open browser: %w", err)
	}
	defer page.Close()

	_, err = retry.Do(ctx, retry.Policy{
		MaxAttempts: e.opts.NavigationRetries,
		Delay:       e.opts.NavigationRetryDelay,
		OnRetry: func(attempt int, err error) {
			log.WithError(err).WithField("attempt", attempt).Warn("navigation failed, retrying")
		},
	}, func(ctx context.Context, _ int) (struct{}, error) {
		return struct{}{}, page.Navigate(ctx, chapterURL, e.opts.NavigationTimeout)
	})
	if err != nil {
		return empty, fmt.Errorf("navigate after %d attempts: %w", e.opts.NavigationRetries, err)
	}

	if err := browser.Sleep(ctx, e.opts.ImageSettleDelay); err != nil {
		return empty, err
	}

	urls, err := page.Attributes(ctx, e.opts.ImageSelector(), "src")
	if err != nil {
		return empty, fmt.Errorf("collect images: %w", err)
	}

	log.WithField("images", len(urls)).Debug("images extracted")

	return providers.ImageSet{
		ChapterURL: chapterURL,
		URLs:       urls,
		UserAgent:  sess.UserAgent,
		Cookies:    sess.Cookies,
	}, nil
}
