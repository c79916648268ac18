package comick

import (
	"fmt"
	"time"
)

const (
	DefaultBaseURL = "https://comick.io"
	DefaultCDNHost = "meo.comick.pictures"

	ChapterRowSelector  = `tr.group`
	ChapterLinkSelector = `a[href*="/comic/"][href*="chapter"]`
	TitleSelector       = `span[title]`
	GroupSelector       = `a[href*="/group/"]`

	SearchLinkSelector  = `a[href*="/comic/"]`
	SearchTitleSelector = `p.font-bold`

	searchScrollStep = 500
	maxSearchScrolls = 200
)

type Options struct {
	BaseURL string
	CDNHost string

	NavigationTimeout    time.Duration
	NavigationRetries    int
	NavigationRetryDelay time.Duration
	SelectorTimeout      time.Duration

	// ListSettleDelay is waited after the chapter links show up and again
	// after scrolling the listing to the bottom.
	ListSettleDelay time.Duration
	// ImageSettleDelay gives the reader time to attach its <img> tags.
	ImageSettleDelay  time.Duration
	SearchScrollDelay time.Duration

	// MaxPages caps listing pagination; 0 means no cap.
	MaxPages int
}

func DefaultOptions() Options {
	return Options{
		BaseURL:              DefaultBaseURL,
		CDNHost:              DefaultCDNHost,
		NavigationTimeout:    30 * time.Second,
		NavigationRetries:    3,
		NavigationRetryDelay: 5 * time.Second,
		SelectorTimeout:      30 * time.Second,
		ListSettleDelay:      3 * time.Second,
		ImageSettleDelay:     5 * time.Second,
		SearchScrollDelay:    time.Second,
	}
}

func (o Options) withDefaults() Options {
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	if o.CDNHost == "" {
		o.CDNHost = DefaultCDNHost
	}
	if o.NavigationRetries < 1 {
		o.NavigationRetries = 1
	}
	return o
}

// ImageSelector matches the page images served from the CDN.
func (o Options) ImageSelector() string {
	return fmt.Sprintf(`img[src*=%q]`, o.CDNHost)
}
