package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/brogergvhs/comickd/internal/config"

	"github.com/spf13/cobra"
)

var configResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Overwrite the active config with default values",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.DefaultStore().Reset()
		if errors.Is(err, config.ErrNoConfig) {
			return fmt.Errorf("%w: run `comickd config init` first", err)
		}
		if err != nil {
			return err
		}

		fmt.Printf("Reset active config: %s\n\n", path)
		config.DefaultConfig().Print(os.Stdout)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configResetCmd)
}
