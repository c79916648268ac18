package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Output  string `yaml:"output"`
	BaseURL string `yaml:"base_url"`
	CDNHost string `yaml:"cdn_host"`

	ImageWorkers    int           `yaml:"image_workers"`
	ChapterWorkers  int           `yaml:"chapter_workers"`
	ImageRetries    int           `yaml:"image_retries"`
	ImageRetryDelay time.Duration `yaml:"image_retry_delay"`
	ImageTimeout    time.Duration `yaml:"image_timeout"`

	NavigationRetries    int           `yaml:"navigation_retries"`
	NavigationRetryDelay time.Duration `yaml:"navigation_retry_delay"`
	NavigationTimeout    time.Duration `yaml:"navigation_timeout"`
	SelectorTimeout      time.Duration `yaml:"selector_timeout"`
	ListSettleDelay      time.Duration `yaml:"list_settle_delay"`
	ImageSettleDelay     time.Duration `yaml:"image_settle_delay"`
	SearchScrollDelay    time.Duration `yaml:"search_scroll_delay"`
	MaxPages             int           `yaml:"max_pages"`
	Headless             bool          `yaml:"headless"`

	ConvertPDF     bool `yaml:"convert_pdf"`
	DeleteAfterPDF bool `yaml:"delete_after_pdf"`
	CBZ            bool `yaml:"cbz"`
	PDFQuality     int  `yaml:"pdf_quality"`

	UserAgent  string        `yaml:"user_agent"`
	Cookie     string        `yaml:"cookie"`
	CookieFile string        `yaml:"cookie_file"`
	SessionTTL time.Duration `yaml:"session_ttl"`

	Debug bool `yaml:"debug"`
}

// Options carries CLI flags. Zero values mean "not given".
type Options struct {
	IgnoreConfig   bool
	Debug          bool
	Output         string
	ImageWorkers   int
	ChapterWorkers int
	MaxPages       int
	ConvertPDF     bool
	DeleteAfterPDF bool
	CBZ            bool
	Headful        bool
	UserAgent      string
	Cookie         string
	CookieFile     string
}

func DefaultConfig() *Config {
	return &Config{
		BaseURL:              "https://comick.io",
		CDNHost:              "meo.comick.pictures",
		ImageWorkers:         10,
		ChapterWorkers:       10,
		ImageRetries:         3,
		ImageRetryDelay:      2 * time.Second,
		ImageTimeout:         30 * time.Second,
		NavigationRetries:    3,
		NavigationRetryDelay: 5 * time.Second,
		NavigationTimeout:    30 * time.Second,
		SelectorTimeout:      30 * time.Second,
		ListSettleDelay:      3 * time.Second,
		ImageSettleDelay:     5 * time.Second,
		SearchScrollDelay:    time.Second,
		Headless:             true,
		PDFQuality:           95,
		SessionTTL:           10 * time.Minute,
	}
}

func SaveYAML(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// loadYAML reads path over the defaults, so keys missing from the file keep
// their default value.
func loadYAML(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	c := DefaultConfig()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, err
	}

	return c, nil
}

// LoadMerged resolves the effective config: flags over the active profile
// over defaults. The string describes where the config came from.
func LoadMerged(store *Store, opts Options) (*Config, string, error) {
	if opts.IgnoreConfig {
		cfg := DefaultConfig()
		mergeConfig(cfg, opts)
		normalizeDefaults(cfg)
		return cfg, "(ignored config)", nil
	}

	activePath, err := store.ActivePath()
	if errors.Is(err, ErrNoConfig) || (err == nil && activePath == "") {
		cfg := DefaultConfig()
		mergeConfig(cfg, opts)
		normalizeDefaults(cfg)
		return cfg, "(default config in memory; run `comickd config init` to create one)", nil
	}
	if err != nil {
		return nil, "", err
	}

	cfg, err := loadYAML(activePath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config %s: %w", activePath, err)
	}

	mergeConfig(cfg, opts)
	normalizeDefaults(cfg)

	return cfg, activePath, nil
}

func mergeConfig(c *Config, o Options) {
	if o.Output != "" {
		c.Output = o.Output
	}
	if o.ImageWorkers != 0 {
		c.ImageWorkers = o.ImageWorkers
	}
	if o.ChapterWorkers != 0 {
		c.ChapterWorkers = o.ChapterWorkers
	}
	if o.MaxPages != 0 {
		c.MaxPages = o.MaxPages
	}
	if o.Debug {
		c.Debug = true
	}
	if o.ConvertPDF {
		c.ConvertPDF = true
	}
	if o.DeleteAfterPDF {
		c.DeleteAfterPDF = true
	}
	if o.CBZ {
		c.CBZ = true
	}
	if o.Headful {
		c.Headless = false
	}
	if o.UserAgent != "" {
		c.UserAgent = o.UserAgent
	}
	if o.Cookie != "" {
		c.Cookie = o.Cookie
	}
	if o.CookieFile != "" {
		c.CookieFile = o.CookieFile
	}
}

func normalizeDefaults(c *Config) {
	def := DefaultConfig()

	if c.BaseURL == "" {
		c.BaseURL = def.BaseURL
	}
	if c.CDNHost == "" {
		c.CDNHost = def.CDNHost
	}
	if c.ImageWorkers <= 0 {
		c.ImageWorkers = def.ImageWorkers
	}
	if c.ChapterWorkers <= 0 {
		c.ChapterWorkers = def.ChapterWorkers
	}
	if c.ImageRetries <= 0 {
		c.ImageRetries = def.ImageRetries
	}
	if c.NavigationRetries <= 0 {
		c.NavigationRetries = def.NavigationRetries
	}
	if c.ImageTimeout <= 0 {
		c.ImageTimeout = def.ImageTimeout
	}
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = def.NavigationTimeout
	}
	if c.SelectorTimeout <= 0 {
		c.SelectorTimeout = def.SelectorTimeout
	}
	if c.PDFQuality <= 0 || c.PDFQuality > 100 {
		c.PDFQuality = def.PDFQuality
	}
	// deleting only makes sense once the images live in a PDF
	if !c.ConvertPDF {
		c.DeleteAfterPDF = false
	}
}

func (c *Config) Print(w io.Writer) {
	p := func(format string, args ...any) { _, _ = fmt.Fprintf(w, format, args...) }

	if c.Output != "" {
		p(" -output: %s\n", c.Output)
	}
	p(" -base_url: %s\n", c.BaseURL)
	p(" -image_workers: %d\n", c.ImageWorkers)
	p(" -chapter_workers: %d\n", c.ChapterWorkers)
	p(" -image_retries: %d (every %s)\n", c.ImageRetries, c.ImageRetryDelay)
	p(" -navigation_retries: %d (every %s)\n", c.NavigationRetries, c.NavigationRetryDelay)
	if c.MaxPages > 0 {
		p(" -max_pages: %d\n", c.MaxPages)
	}
	if !c.Headless {
		p(" -headless: %t\n", c.Headless)
	}
	if c.ConvertPDF {
		p(" -convert_pdf: %t (quality %d)\n", c.ConvertPDF, c.PDFQuality)
	}
	if c.DeleteAfterPDF {
		p(" -delete_after_pdf: %t\n", c.DeleteAfterPDF)
	}
	if c.CBZ {
		p(" -cbz: %t\n", c.CBZ)
	}
	if c.UserAgent != "" {
		p(" -user_agent: %s\n", c.UserAgent)
	}
	if c.CookieFile != "" {
		p(" -cookie_file: %s\n", c.CookieFile)
	}
	if c.Debug {
		p(" -debug: %t\n", c.Debug)
	}
}
