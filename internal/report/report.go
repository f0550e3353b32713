package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/expbench/expbench/internal/pricing"
	"github.com/expbench/expbench/internal/result"
)

type Summary struct {
	NRecords int
	NSeries  int
	NGroups  int
}

// Generate aggregates trial records and renders them in the requested
// format. A nil pricing table leaves the cost column empty.
func Generate(records []*result.TrialRecord, format string, w io.Writer, table *pricing.Table) (*Summary, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no records found")
	}
	series := Aggregate(records, table)

	var err error
	switch format {
	case "markdown":
		err = writeMarkdown(series, w)
	case "json":
		err = writeJSON(series, w)
	case "html":
		err = writeHTML(series, w)
	default:
		err = writeTable(series, w)
	}
	if err != nil {
		return nil, err
	}

	nGroups := 0
	for _, s := range series {
		nGroups += len(s.Cells)
	}
	return &Summary{NRecords: len(records), NSeries: len(series), NGroups: nGroups}, nil
}

func writeTable(series []Series, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tYEARS\tN\tPASS A\tPASS B\tPASS ALL\tTTLT P50\tTTLT P90\tEXEC P50\tEXEC P90\tMEAN COST")
	fmt.Fprintln(tw, strings.Repeat("-", 100))
	for _, s := range series {
		for _, c := range s.Cells {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%.0f%%\t%.0f%%\t%.0f%%\t%s\t%s\t%s\t%s\t%s\n",
				s.ModelKey, c.Years, c.N,
				c.PassA*100, c.PassB*100, c.PassAll*100,
				fmtMS(c.TTLTp50), fmtMS(c.TTLTp90), fmtMS(c.ExecP50), fmtMS(c.ExecP90),
				fmtCost(c.MeanCostUSD))
		}
	}
	return tw.Flush()
}

func writeMarkdown(series []Series, w io.Writer) error {
	fmt.Fprintln(w, "| Model | Years | N | Pass A | Pass B | Pass All | TTLT p50 | TTLT p90 | Exec p50 | Exec p90 | Mean Cost |")
	fmt.Fprintln(w, "|---|---|---|---|---|---|---|---|---|---|---|")
	for _, s := range series {
		for _, c := range s.Cells {
			fmt.Fprintf(w, "| %s | %d | %d | %.0f%% | %.0f%% | %.0f%% | %s | %s | %s | %s | %s |\n",
				s.ModelKey, c.Years, c.N,
				c.PassA*100, c.PassB*100, c.PassAll*100,
				fmtMS(c.TTLTp50), fmtMS(c.TTLTp90), fmtMS(c.ExecP50), fmtMS(c.ExecP90),
				fmtCost(c.MeanCostUSD))
		}
	}
	return nil
}

func writeJSON(series []Series, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(series)
}

func fmtMS(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *v)
}

func fmtCost(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("$%.4f", *v)
}
