package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/expbench/expbench/internal/config"
	"github.com/expbench/expbench/internal/result"
	"github.com/expbench/expbench/internal/score"
)

func newRescoreCmd() *cobra.Command {
	var (
		dir       string
		benchPath string
	)
	cmd := &cobra.Command{
		Use:   "rescore",
		Short: "Re-grade stored trial outputs against the benchmark's expected values",
		Long: "Walk an output directory and re-grade each trial's exec_stdout.txt against the " +
			"benchmark's expected values, rewriting record.json in place. Only trials whose " +
			"verdict came from grading stdout are touched; provider, parse and execution " +
			"failures keep theirs. The results JSONL is not rewritten.",
		RunE: func(cmd *cobra.Command, args []string) error {
			bench, err := config.Load(benchPath)
			if err != nil {
				return err
			}
			root, err := filepath.EvalSymlinks(dir)
			if err != nil {
				return fmt.Errorf("resolving %s: %w", dir, err)
			}

			var recordFiles []string
			err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return nil
				}
				if info.Name() == "record.json" {
					recordFiles = append(recordFiles, path)
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("walking %s: %w", root, err)
			}
			if len(recordFiles) == 0 {
				return fmt.Errorf("no record.json files found in %s", root)
			}

			var rescored, changed int
			for _, path := range recordFiles {
				rec, err := result.ReadRecordJSON(path)
				if err != nil {
					log.Warn("skipping record", "path", path, "err", err)
					continue
				}
				if rec.BenchmarkID != bench.ID {
					log.Warn("skipping record from another benchmark", "path", path, "benchmark_id", rec.BenchmarkID)
					continue
				}
				if !gradedFromStdout(rec) {
					log.Debug("skipping ungraded record", "path", path, "error_kind", rec.ErrorKind)
					continue
				}
				trialDir := filepath.Dir(path)
				stdout, err := os.ReadFile(filepath.Join(trialDir, "exec_stdout.txt"))
				if err != nil {
					log.Warn("skipping record without stdout artifact", "path", path, "err", err)
					continue
				}

				oldStatus, oldKind := rec.Status, rec.ErrorKind

				ev := score.EvalTwoLineStdout(string(stdout), bench.ExpectedA, bench.ExpectedB)
				rec.ExpectedA = bench.ExpectedA
				rec.ExpectedB = bench.ExpectedB
				rec.PassedA = boolPtr(ev.PassedA)
				rec.PassedB = boolPtr(ev.PassedB)
				rec.PassedAll = boolPtr(ev.PassedAll)
				rec.OutputA = ev.OutputA
				rec.OutputB = ev.OutputB
				if ev.PassedAll {
					rec.Status = result.StatusOK
					rec.ErrorKind = ""
					rec.ErrorMessage = ""
				} else {
					rec.Status = result.StatusError
					rec.ErrorKind = ev.ErrorKind
					rec.ErrorMessage = ev.ErrorMsg
				}

				if err := result.WriteRecordJSON(trialDir, rec); err != nil {
					log.Warn("writing record", "path", path, "err", err)
					continue
				}
				rescored++
				if rec.Status != oldStatus || rec.ErrorKind != oldKind {
					changed++
					fmt.Printf("  %s years=%d run=%d: %s → %s\n", rec.ModelKey, rec.Years, rec.RunIndex,
						verdict(oldStatus, oldKind), verdict(rec.Status, rec.ErrorKind))
				}
			}
			fmt.Printf("Rescored %d records, %d verdicts changed\n", rescored, changed)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "output root or run directory holding trial artifacts")
	cmd.Flags().StringVar(&benchPath, "benchmark", "", "benchmark YAML path")
	cmd.MarkFlagRequired("dir")
	cmd.MarkFlagRequired("benchmark")
	return cmd
}

// gradedFromStdout reports whether the record's verdict came from grading
// captured stdout. Those are the only verdicts an expected-value fix can
// change; earlier-stage failures never reached grading.
func gradedFromStdout(rec *result.TrialRecord) bool {
	if rec.Status == result.StatusOK {
		return true
	}
	return rec.ErrorKind == "" || rec.ErrorKind == result.KindOutputParseError
}

func verdict(status string, kind result.ErrorKind) string {
	if kind == "" {
		return status
	}
	return status + "/" + string(kind)
}

func boolPtr(b bool) *bool {
	return &b
}
