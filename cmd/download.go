package cmd

import (
	"context"
	"fmt"

	"github.com/brogergvhs/comickd/internal/config"

	"github.com/spf13/cobra"
)

var (
	flagURL      string
	flagChapters string
	flagDryRun   bool

	flagOutput         string
	flagImageWorkers   int
	flagChapterWorkers int
	flagMaxPages       int
	flagPDF            bool
	flagDeleteImages   bool
	flagCBZ            bool
	flagHeadful        bool

	flagCookie     string
	flagCookieFile string
	flagUserAgent  string
)

func init() {
	downloadCmd := &cobra.Command{
		Use:   "download [url]",
		Short: "Download chapters of a comic, or a single chapter. Uses the selected config, overwritten by CLI flags",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runDownload,
	}

	downloadCmd.Flags().StringVar(&flagURL, "url", "", "comic or chapter page URL")
	downloadCmd.Flags().StringVar(&flagChapters, "chapters", "", "chapters to download by index (e.g. all, 5, 1,3-5); prompts when empty")
	downloadCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "show what would be downloaded, don’t download")
	addRuntimeFlags(downloadCmd)

	rootCmd.AddCommand(downloadCmd)
}

// addRuntimeFlags registers the flags that map onto config.Options.
func addRuntimeFlags(c *cobra.Command) {
	c.Flags().StringVar(&flagOutput, "output", "", "output folder (default downloads/<comic>)")
	c.Flags().IntVar(&flagImageWorkers, "image-workers", 0, "parallel image downloads per chapter")
	c.Flags().IntVar(&flagChapterWorkers, "chapter-workers", 0, "parallel chapters")
	c.Flags().IntVar(&flagMaxPages, "max-pages", 0, "stop chapter-list pagination after this many pages")
	c.Flags().BoolVar(&flagPDF, "pdf", false, "bundle each chapter into a PDF")
	c.Flags().BoolVar(&flagDeleteImages, "delete-images", false, "delete the images once the PDF is written")
	c.Flags().BoolVar(&flagCBZ, "cbz", false, "bundle each chapter into a CBZ as well")
	c.Flags().BoolVar(&flagHeadful, "headful", false, "show the browser window")

	c.Flags().StringVar(&flagCookie, "cookie", "", "cookie string, e.g. \"key=value; other=123\"")
	c.Flags().StringVar(&flagCookieFile, "cookie-file", "", "path to a text file with cookies (one header line)")
	c.Flags().StringVar(&flagUserAgent, "user-agent", "", "override User-Agent")
}

func runtimeOptions() config.Options {
	return config.Options{
		Output:         flagOutput,
		ImageWorkers:   flagImageWorkers,
		ChapterWorkers: flagChapterWorkers,
		MaxPages:       flagMaxPages,
		ConvertPDF:     flagPDF,
		DeleteAfterPDF: flagDeleteImages,
		CBZ:            flagCBZ,
		Headful:        flagHeadful,
		Cookie:         flagCookie,
		CookieFile:     flagCookieFile,
		UserAgent:      flagUserAgent,
	}
}

func runDownload(cmd *cobra.Command, args []string) error {
	url := flagURL
	if url == "" && len(args) == 1 {
		url = args[0]
	}
	if url == "" {
		return fmt.Errorf("missing comic URL (pass it as an argument or with --url)")
	}

	a, err := newApp(runtimeOptions())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	return a.download(ctx, downloadRequest{
		URL:       url,
		Selection: flagChapters,
		DryRun:    flagDryRun,
	})
}
