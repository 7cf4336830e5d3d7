package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hurou927/relload/internal/output"
	"github.com/hurou927/relload/internal/pipeline"
	"github.com/hurou927/relload/internal/source"
)

var (
	loadSource   string
	reportPath   string
	reportFormat string
	loadReset    bool
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Create the configured tables and load the source file into them",
	Long: `Creates the configured tables in dependency order, then loads every source row
across them in one transaction per row. Rows that keep failing after cleaning are
dropped and reported; the run itself only fails on schema or configuration errors.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if loadSource != "" {
			cfg.Source.Path = loadSource
		}
		if loadReset {
			cfg.Reset = true
		}
		if reportFormat != "" {
			cfg.Report.Format = reportFormat
		}
		if reportPath != "" {
			cfg.Report.Path = reportPath
		}
		if err := cfg.ValidateForLoad(); err != nil {
			return err
		}

		src, err := source.ReadFile(cfg.Source.Path, source.Options{
			Delimiter:  []rune(cfg.Source.Delimiter)[0],
			NullValues: cfg.NullSet(),
		})
		if err != nil {
			return err
		}
		logger.Info("source read",
			zap.String("path", cfg.Source.Path),
			zap.Int("rows", len(src.Records)),
			zap.Int("empty_rows", src.Skipped),
		)

		pool, deps, err := connect(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		res, err := pipeline.Run(ctx, deps, cfg, src.Header, src.Records)
		if res != nil && res.Stats != nil {
			if werr := writeReport(res); werr != nil && err == nil {
				err = werr
			}
		}
		return err
	},
}

func writeReport(res *pipeline.Result) error {
	w := os.Stdout
	if p := cfg.Report.Path; p != "" && p != "-" {
		f, err := os.Create(p)
		if err != nil {
			return fmt.Errorf("creating report file: %w", err)
		}
		defer f.Close()
		w = f
	}
	if err := output.NewWriter(w).Write(res.Stats, cfg.Report.Format); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Load complete (run %s):\n", res.RunID)
	for _, line := range res.Summary() {
		fmt.Fprintln(os.Stderr, line)
	}
	if len(res.Uncovered) > 0 {
		fmt.Fprintf(os.Stderr, "Source fields not loaded: %s\n", strings.Join(res.Uncovered, ", "))
	}
	if w != os.Stdout {
		fmt.Fprintf(os.Stderr, "Report written to: %s\n", cfg.Report.Path)
	}
	return nil
}

func init() {
	loadCmd.Flags().StringVar(&loadSource, "source", "", "source CSV path (overrides config)")
	loadCmd.Flags().StringVar(&reportPath, "report", "", "report output path, - for stdout (overrides config)")
	loadCmd.Flags().StringVar(&reportFormat, "format", "", "report format: text, yaml or json (overrides config)")
	loadCmd.Flags().BoolVar(&loadReset, "reset", false, "drop the configured tables first (overrides config)")
	rootCmd.AddCommand(loadCmd)
}
