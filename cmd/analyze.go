package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hurou927/relload/internal/graph"
	"github.com/hurou927/relload/internal/pipeline"
)

var analyzeFormat string

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze the FK dependency graph of the configured DDL",
	Long: `Parses the configured CREATE TABLE statements without connecting to the database,
builds the FK dependency graph, and outputs it in the specified format. Exits non-zero
when the tables cannot be scheduled.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := pipeline.Analyze(cfg.Tables)
		if err != nil {
			return err
		}

		switch analyzeFormat {
		case "mermaid":
			err = graph.WriteMermaid(os.Stdout, g)
		case "text":
			err = graph.WriteText(os.Stdout, g)
		default:
			return fmt.Errorf("unknown format: %s (supported: mermaid, text)", analyzeFormat)
		}
		if err != nil {
			return err
		}

		_, err = pipeline.BuildPlan(cfg.Tables, cfg.DeclaredTables)
		return err
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "mermaid", "output format: mermaid or text")
	rootCmd.AddCommand(analyzeCmd)
}
