package comick

import (
	"context"
	"fmt"
	"sort"

	"github.com/brogergvhs/comickd/internal/browser"
	"github.com/brogergvhs/comickd/internal/providers"
	"github.com/brogergvhs/comickd/internal/session"

	"github.com/sirupsen/logrus"
)

// Resolver walks a comic's listing pages (?page=1, 2, ...) and collects one
// Chapter per chapter number.
//
// Pagination ends when the chapter links never show up, a page has no
// rows, a page after the first adds nothing new, or a page fails to load.
type Resolver struct {
	sessions session.Provider
	browser  browser.Launcher
	opts     Options
	log      logrus.FieldLogger
}

func NewResolver(sessions session.Provider, launcher browser.Launcher, opts Options, log logrus.FieldLogger) *Resolver {
	return &Resolver{
		sessions: sessions,
		browser:  launcher,
		opts:     opts.withDefaults(),
		log:      log,
	}
}

var _ providers.ChapterResolver = (*Resolver)(nil)

// Resolve returns the chapters sorted by number. Errors are returned only
// when no page could be opened at all; anything collected before a later
// page failure is kept.
func (r *Resolver) Resolve(ctx context.Context, comicURL string) ([]providers.Chapter, error) {
	log := r.log.WithField("comic", comicURL)

	sess, err := r.sessions.Session(ctx, comicURL)
	if err != nil {
		return nil, err
	}

	page, err := r.browser.Open(ctx, sess)
	if err != nil {
		return nil, fmt.Errorf("open browser: %w", err)
	}
	defer page.Close()

	seen := map[float64]providers.Chapter{}

	for n := 1; r.opts.MaxPages <= 0 || n <= r.opts.MaxPages; n++ {
		if ctx.Err() != nil {
			break
		}

		added, more := r.scrapePage(ctx, page, comicURL, n, seen, log.WithField("page", n))
		if !more {
			break
		}
		if added == 0 && n > 1 {
			log.WithField("page", n).Debug("no new chapters, end of list")
			break
		}
	}

	list := Sorted(seen)
	log.WithField("chapters", len(list)).Info("chapter list resolved")

	return list, nil
}

// scrapePage merges the chapters of listing page n into seen and reports how
// many were new, and whether pagination may continue.
func (r *Resolver) scrapePage(
	ctx context.Context,
	page browser.Page,
	comicURL string,
	n int,
	seen map[float64]providers.Chapter,
	log logrus.FieldLogger,
) (int, bool) {
	pageURL, err := PageURL(comicURL, n)
	if err != nil {
		log.WithError(err).Error("bad comic url")
		return 0, false
	}

	if err := page.Navigate(ctx, pageURL, r.opts.NavigationTimeout); err != nil {
		log.WithError(err).Warn("navigation failed, stopping")
		return 0, false
	}

	if err := page.WaitVisible(ctx, ChapterLinkSelector, r.opts.SelectorTimeout); err != nil {
		log.WithError(err).Debug("no chapter links, end of list")
		return 0, false
	}
	if err := browser.Sleep(ctx, r.opts.ListSettleDelay); err != nil {
		return 0, false
	}

	if err := page.ScrollToBottom(ctx); err != nil {
		log.WithError(err).Warn("scroll failed")
		return 0, false
	}
	if err := browser.Sleep(ctx, r.opts.ListSettleDelay); err != nil {
		return 0, false
	}

	html, err := page.HTML(ctx)
	if err != nil {
		log.WithError(err).Warn("reading page failed, stopping")
		return 0, false
	}

	list, rows, err := ParseChapterRows(html, r.opts.BaseURL)
	if err != nil {
		log.WithError(err).Warn("parsing page failed, stopping")
		return 0, false
	}
	if rows == 0 {
		log.Debug("no chapter rows, end of list")
		return 0, false
	}

	added := Merge(seen, list)
	log.WithField("new", added).Debug("page scraped")

	return added, true
}

// Merge adds the chapters whose number is not in seen yet. The first
// occurrence of a number wins. It returns how many were added.
func Merge(seen map[float64]providers.Chapter, list []providers.Chapter) int {
	added := 0
	for _, c := range list {
		if _, ok := seen[c.Number]; ok {
			continue
		}
		seen[c.Number] = c
		added++
	}
	return added
}

// Sorted materializes seen in ascending chapter order.
func Sorted(seen map[float64]providers.Chapter) []providers.Chapter {
	out := make([]providers.Chapter, 0, len(seen))
	for _, c := range seen {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}
