package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/brogergvhs/comickd/internal/config"

	"github.com/spf13/cobra"
)

var chaptersCmd = &cobra.Command{
	Use:   "chapters <url>",
	Short: "List the chapters of a comic with their indices",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(config.Options{MaxPages: flagListMaxPages, Headful: flagListHeadful})
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		list, err := a.resolveChapters(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Found %d chapters.\n\n", len(list))
		printChapters(os.Stdout, list)
		return nil
	},
}

var (
	flagListMaxPages int
	flagListHeadful  bool
)

func init() {
	chaptersCmd.Flags().IntVar(&flagListMaxPages, "max-pages", 0, "stop pagination after this many pages")
	chaptersCmd.Flags().BoolVar(&flagListHeadful, "headful", false, "show the browser window")
	rootCmd.AddCommand(chaptersCmd)
}
