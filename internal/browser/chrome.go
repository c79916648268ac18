package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/brogergvhs/comickd/internal/session"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
)

// Chrome launches a fresh Chrome process per page.
type Chrome struct {
	Headless bool
	Log      logrus.FieldLogger
}

func (c *Chrome) Open(ctx context.Context, s session.Session) (Page, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if s.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(s.UserAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	p := &chromePage{
		ctx:    browserCtx,
		cancel: func() { cancelBrowser(); cancelAlloc() },
	}

	// first Run starts the browser; it must not carry a timeout or the
	// browser would die with it
	var actions []chromedp.Action
	if len(s.Cookies) > 0 {
		domain := s.Domain()
		cookies := make([]*network.CookieParam, 0, len(s.Cookies))
		for name, value := range s.Cookies {
			cookies = append(cookies, &network.CookieParam{
				Name:   name,
				Value:  value,
				Domain: domain,
				Path:   "/",
			})
		}
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			return network.SetCookies(cookies).Do(ctx)
		}))
	}

	if err := chromedp.Run(browserCtx, actions...); err != nil {
		p.cancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	if c.Log != nil {
		c.Log.WithFields(logrus.Fields{"cookies": len(s.Cookies), "headless": c.Headless}).Debug("browser started")
	}

	return p, nil
}

type chromePage struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// run executes actions on the page, bounded by timeout and by the caller's ctx.
func (p *chromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx := p.ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(runCtx)
	}
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (p *chromePage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	err := p.run(ctx, timeout, chromedp.Navigate(url))
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrNavigationTimeout, url)
	}
	return err
}

func (p *chromePage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	err := p.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrSelectorTimeout, selector)
	}
	return err
}

func (p *chromePage) ScrollToBottom(ctx context.Context) error {
	return p.run(ctx, 0, chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil))
}

func (p *chromePage) ScrollBy(ctx context.Context, px int) error {
	return p.run(ctx, 0, chromedp.Evaluate(fmt.Sprintf(`window.scrollBy(0, %d)`, px), nil))
}

func (p *chromePage) AtBottom(ctx context.Context) (bool, error) {
	var bottom bool
	err := p.run(ctx, 0, chromedp.Evaluate(
		`(window.pageYOffset + window.innerHeight) >= document.body.scrollHeight`, &bottom))
	return bottom, err
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	err := p.run(ctx, 0, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (p *chromePage) Attributes(ctx context.Context, selector, attr string) ([]string, error) {
	sel, _ := json.Marshal(selector)
	name, _ := json.Marshal(attr)

	js := fmt.Sprintf(
		`Array.from(document.querySelectorAll(%s)).map(e => e.getAttribute(%s)).filter(v => !!v)`,
		sel, name,
	)

	var out []string
	if err := p.run(ctx, 0, chromedp.Evaluate(js, &out)); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *chromePage) Close() error {
	p.cancel()
	return nil
}
