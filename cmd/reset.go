package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/hurou927/relload/internal/pipeline"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop the configured tables in reverse creation order",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		pool, deps, err := connect(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		return pipeline.Reset(ctx, deps, cfg)
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)
}
