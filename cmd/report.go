package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/expbench/expbench/internal/pricing"
	"github.com/expbench/expbench/internal/report"
	"github.com/expbench/expbench/internal/result"
)

func newReportCmd() *cobra.Command {
	var (
		in          string
		format      string
		outPath     string
		pricingPath string
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Aggregate a results file into pass-rate and latency tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			if format == "html" && outPath == "" {
				return fmt.Errorf("--out is required for html reports")
			}
			records, err := result.ReadJSONL(in)
			if err != nil {
				return err
			}
			var table *pricing.Table
			if pricingPath != "" {
				table, err = pricing.Load(pricingPath)
				if err != nil {
					return err
				}
			}
			w := io.Writer(os.Stdout)
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("creating %s: %w", outPath, err)
				}
				defer f.Close()
				w = f
			}
			sum, err := report.Generate(records, format, w, table)
			if err != nil {
				return err
			}
			if outPath != "" {
				fmt.Printf("Wrote %s report for %d records (%d model series) to %s\n",
					format, sum.NRecords, sum.NSeries, outPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "results JSONL path")
	cmd.Flags().StringVar(&format, "format", "table", "output format (table, markdown, json, html)")
	cmd.Flags().StringVar(&outPath, "out", "", "write the report to a file instead of stdout")
	cmd.Flags().StringVar(&pricingPath, "pricing", "", "pricing YAML enabling estimated cost columns")
	cmd.MarkFlagRequired("in")
	return cmd
}
