package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/hurou927/relload/internal/pipeline"
)

var createReset bool

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the configured tables in dependency order",
	Long:  `Creates every configured table in one transaction, parents before children, then verifies the created tables against their declared traits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		pool, deps, err := connect(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		if createReset {
			cfg.Reset = true
		}
		res, err := pipeline.Materialize(ctx, deps, cfg)
		if err != nil {
			return err
		}

		fmt.Fprintln(os.Stderr, "Created tables:")
		for i, name := range res.Order {
			fmt.Fprintf(os.Stderr, "  %d. %s\n", i+1, name)
		}
		return nil
	},
}

func init() {
	createCmd.Flags().BoolVar(&createReset, "reset", false, "drop the configured tables first (overrides config)")
	rootCmd.AddCommand(createCmd)
}
