package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

var flagPick bool

func init() {
	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search comick.io and optionally download a result",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSearch,
	}

	searchCmd.Flags().BoolVar(&flagPick, "pick", false, "choose a result and download it")
	searchCmd.Flags().StringVar(&flagChapters, "chapters", "", "chapters to download after picking (e.g. all, 1,3-5)")
	addRuntimeFlags(searchCmd)

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	a, err := newApp(runtimeOptions())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	results, err := a.searcher().Search(ctx, query)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Printf("No results for %q\n", query)
		return nil
	}

	if !flagPick {
		for i, c := range results {
			fmt.Printf("%3d) %s\n     %s\n", i+1, c.Title, c.URL)
		}
		return nil
	}

	items := make([]string, len(results))
	for i, c := range results {
		items[i] = c.Title
	}

	prompt := promptui.Select{
		Label: "Select comic",
		Items: items,
		Size:  15,
	}

	idx, _, err := prompt.Run()
	if err != nil {
		return fmt.Errorf("selection cancelled")
	}

	return a.download(ctx, downloadRequest{URL: results[idx].URL, Selection: flagChapters})
}
