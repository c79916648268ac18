package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/brogergvhs/comickd/internal/archive"
	"github.com/brogergvhs/comickd/internal/browser"
	"github.com/brogergvhs/comickd/internal/chapters"
	"github.com/brogergvhs/comickd/internal/config"
	"github.com/brogergvhs/comickd/internal/downloader"
	"github.com/brogergvhs/comickd/internal/orchestrator"
	"github.com/brogergvhs/comickd/internal/providers"
	"github.com/brogergvhs/comickd/internal/providers/comick"
	"github.com/brogergvhs/comickd/internal/session"
	"github.com/brogergvhs/comickd/internal/ui"
	"github.com/brogergvhs/comickd/internal/util"

	"github.com/manifoldco/promptui"
	"github.com/sirupsen/logrus"
)

// app holds everything a command needs once the config is resolved.
type app struct {
	cfg      *config.Config
	log      *logrus.Logger
	sessions session.Provider
	launcher browser.Launcher
	// out receives listings, progress bars and the summary.
	out io.Writer
}

func newApp(opts config.Options) (*app, error) {
	opts.IgnoreConfig = flagIgnoreConfig
	opts.Debug = opts.Debug || flagDebug

	cfg, usedPath, err := config.LoadMerged(config.DefaultStore(), opts)
	if err != nil {
		return nil, err
	}

	log := ui.NewLogger(cfg.Debug)
	log.WithField("config", usedPath).Debug("config loaded")

	return &app{
		cfg:      cfg,
		log:      log,
		sessions: sessionProvider(cfg, log),
		launcher: &browser.Chrome{Headless: cfg.Headless, Log: log},
		out:      os.Stdout,
	}, nil
}

// sessionProvider uses a fixed cookie header when one is configured and
// falls back to a cached HTTP handshake otherwise.
func sessionProvider(cfg *config.Config, log logrus.FieldLogger) session.Provider {
	ua := util.PickUserAgent(cfg.UserAgent)

	if header := util.LoadCookieHeader(cfg.Cookie, cfg.CookieFile); header != "" {
		return session.Static{UserAgent: ua, Cookies: session.ParseCookieHeader(header)}
	}

	return session.NewCached(session.NewHTTPProvider(session.HTTPOptions{
		UserAgent: ua,
		Timeout:   cfg.NavigationTimeout,
		Logger:    log,
	}), cfg.SessionTTL)
}

func scraperOptions(cfg *config.Config) comick.Options {
	return comick.Options{
		BaseURL:              cfg.BaseURL,
		CDNHost:              cfg.CDNHost,
		NavigationTimeout:    cfg.NavigationTimeout,
		NavigationRetries:    cfg.NavigationRetries,
		NavigationRetryDelay: cfg.NavigationRetryDelay,
		SelectorTimeout:      cfg.SelectorTimeout,
		ListSettleDelay:      cfg.ListSettleDelay,
		ImageSettleDelay:     cfg.ImageSettleDelay,
		SearchScrollDelay:    cfg.SearchScrollDelay,
		MaxPages:             cfg.MaxPages,
	}
}

func downloaderOptions(cfg *config.Config) downloader.Options {
	return downloader.Options{
		Workers:     cfg.ImageWorkers,
		MaxAttempts: cfg.ImageRetries,
		RetryDelay:  cfg.ImageRetryDelay,
		Timeout:     cfg.ImageTimeout,
		Headers:     downloader.DefaultHeaders(),
	}
}

func orchestratorOptions(cfg *config.Config) orchestrator.Options {
	return orchestrator.Options{
		Workers:        cfg.ChapterWorkers,
		ConvertToPDF:   cfg.ConvertPDF,
		DeleteAfterPDF: cfg.DeleteAfterPDF,
		CBZ:            cfg.CBZ,
	}
}

// outputDir is the configured output, or downloads/<slug>.
func outputDir(cfg *config.Config, comicURL string) string {
	if cfg.Output != "" {
		return cfg.Output
	}
	return filepath.Join("downloads", chapters.ComicSlug(comicURL))
}

func (a *app) resolver() providers.ChapterResolver {
	return comick.NewResolver(a.sessions, a.launcher, scraperOptions(a.cfg), a.log)
}

func (a *app) searcher() providers.ComicSearcher {
	return comick.NewSearcher(a.sessions, a.launcher, scraperOptions(a.cfg), a.log)
}

// resolveChapters turns a comic or single-chapter URL into a sorted list.
func (a *app) resolveChapters(ctx context.Context, url string) ([]chapters.Chapter, error) {
	if chapters.IsChapterURL(url) {
		return []chapters.Chapter{chapters.SingleChapter(url)}, nil
	}

	fmt.Fprintln(a.out, "Fetching chapter list...")
	list, err := a.resolver().Resolve(ctx, url)
	if err != nil {
		return nil, err
	}
	return chapters.Wrap(list), nil
}

type downloadRequest struct {
	URL       string
	Selection string
	DryRun    bool
}

func (a *app) download(ctx context.Context, req downloadRequest) error {
	all, err := a.resolveChapters(ctx, req.URL)
	if err != nil {
		return err
	}
	if len(all) == 0 {
		return fmt.Errorf("no chapters found at %s", req.URL)
	}

	selection := req.Selection
	if selection == "" && len(all) > 1 && isTerminal(os.Stdin) {
		printChapters(a.out, all)
		selection, err = promptSelection(len(all))
		if err != nil {
			return err
		}
	}
	if selection == "" {
		selection = "all"
	}

	selected, err := chapters.Select(all, selection)
	if err != nil {
		return err
	}
	if len(selected) == 0 {
		return fmt.Errorf("no chapters selected")
	}

	out := outputDir(a.cfg, req.URL)

	if req.DryRun {
		fmt.Fprintf(a.out, "Dry-run: %d chapters selected, output %s\n\n", len(selected), out)
		printChapters(a.out, selected)
		return nil
	}

	if err := os.MkdirAll(out, 0755); err != nil {
		return fmt.Errorf("cannot create output folder: %w", err)
	}
	util.SetupInterruptHandler(out)

	fmt.Fprintln(a.out, "Config:")
	a.cfg.Print(a.out)
	fmt.Fprintln(a.out)

	client := util.NewHTTPClient(util.HTTPClientOptions{
		Timeout:   a.cfg.ImageTimeout,
		UserAgent: util.PickUserAgent(a.cfg.UserAgent),
		Cookie:    util.LoadCookieHeader(a.cfg.Cookie, a.cfg.CookieFile),
		Logger:    a.log,
	})

	orch := orchestrator.New(
		comick.NewExtractor(a.sessions, a.launcher, scraperOptions(a.cfg), a.log),
		downloader.New(client, downloaderOptions(a.cfg), a.log),
		archive.NewPDFAssembler(a.cfg.PDFQuality, a.log),
		a.log,
	)

	pm := ui.NewProgressManager(a.out)
	overall := pm.Overall(len(selected))
	orch.NewProgress = func(c chapters.Chapter, _ int) downloader.Progress {
		return pm.Register("Ch." + c.Label())
	}

	opts := orchestratorOptions(a.cfg)
	opts.OnProgress = func(done, total, _ int) { overall.Set(done, total) }

	start := time.Now()
	sum := orch.Run(ctx, selected, out, opts)
	pm.Close()

	ui.Summary{
		Chapters:  sum.Total,
		Completed: sum.Completed,
		Failed:    sum.Failed,
		Empty:     sum.Empty,
		Images:    sum.Saved,
		Skipped:   sum.Skipped,
		Broken:    sum.Broken,
		Bytes:     sum.Bytes,
		Elapsed:   time.Since(start),
	}.Print(a.out)

	for _, r := range sum.Results {
		if r.Err != nil {
			fmt.Fprintf(a.out, "  %s: %v\n", r.Chapter.Title, r.Err)
		}
	}
	fmt.Fprintf(a.out, "\nSaved to %s\n", out)

	return nil
}

func printChapters(w io.Writer, list []chapters.Chapter) {
	for i, ch := range list {
		_, _ = fmt.Fprintf(w, "%4d) %-12s %s\n", i+1, "Ch."+ch.Label(), ch.Title)
	}
	_, _ = fmt.Fprintln(w)
}

func promptSelection(n int) (string, error) {
	prompt := promptui.Prompt{
		Label:   fmt.Sprintf("Chapters to download (1-%d, e.g. 1,3-5 or all)", n),
		Default: "all",
		Validate: func(s string) error {
			_, err := chapters.ParseSelection(s, n)
			return err
		},
	}

	res, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("selection cancelled")
	}
	return res, nil
}

func isTerminal(f *os.File) bool {
	st, err := f.Stat()
	if err != nil {
		return false
	}
	return st.Mode()&os.ModeCharDevice != 0
}
