// Package browser is the headless browser capability used by the scrapers:
// navigate, wait for a selector, scroll, read the rendered DOM.
package browser

import (
	"context"
	"errors"
	"time"

	"github.com/brogergvhs/comickd/internal/session"
)

var (
	ErrNavigationTimeout = errors.New("navigation timed out")
	ErrSelectorTimeout   = errors.New("selector wait timed out")
)

// Page is one browser context. It is not safe for concurrent use; every task
// opens its own and closes it when done.
type Page interface {
	// Navigate loads url and waits for the load event.
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	ScrollToBottom(ctx context.Context) error
	ScrollBy(ctx context.Context, px int) error
	// AtBottom reports whether the viewport reached the end of the document.
	AtBottom(ctx context.Context) (bool, error)
	HTML(ctx context.Context) (string, error)
	// Attributes returns the non-empty values of attr for every element
	// matching selector, in document order.
	Attributes(ctx context.Context, selector, attr string) ([]string, error)
	Close() error
}

// Launcher opens pages seeded with a session's user agent and cookies.
type Launcher interface {
	Open(ctx context.Context, s session.Session) (Page, error)
}

// Sleep waits d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
