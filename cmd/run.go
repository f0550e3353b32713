package cmd

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/expbench/expbench/internal/adapter"
	"github.com/expbench/expbench/internal/config"
	"github.com/expbench/expbench/internal/model"
	"github.com/expbench/expbench/internal/runner"
	"github.com/expbench/expbench/internal/sandbox"
)

var (
	flagBenchmark   string
	flagOut         string
	flagOutputDir   string
	flagModels      string
	flagYears       string
	flagRuns        int
	flagWarmup      int
	flagTimeoutS    float64
	flagMaxTokens   int
	flagTemperature float64
	flagConcurrency int
	flagSandbox     string
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a benchmark run",
		RunE:  runBenchmark,
	}
	cmd.Flags().StringVar(&flagBenchmark, "benchmark", "", "benchmark YAML path")
	cmd.Flags().StringVar(&flagOut, "out", "", "results JSONL path (appended)")
	cmd.Flags().StringVar(&flagOutputDir, "output-dir", ".output", "root directory for per-trial artifacts")
	cmd.Flags().StringVar(&flagModels, "models", "", "comma-separated provider:model specs (overrides benchmark)")
	cmd.Flags().StringVar(&flagYears, "years", "", "comma-separated years values (overrides benchmark)")
	cmd.Flags().IntVar(&flagRuns, "runs-per-setting", 2, "measured runs per (model, years) setting")
	cmd.Flags().IntVar(&flagWarmup, "warmup", 1, "warmup calls per (model, years) setting")
	cmd.Flags().Float64Var(&flagTimeoutS, "timeout-s", 120, "per-call and per-execution timeout in seconds")
	cmd.Flags().IntVar(&flagMaxTokens, "max-output-tokens", 1024, "completion token cap")
	cmd.Flags().Float64Var(&flagTemperature, "temperature", 0, "sampling temperature")
	cmd.Flags().IntVar(&flagConcurrency, "concurrency", 1, "parallel trials")
	cmd.Flags().StringVar(&flagSandbox, "sandbox", "", "execution backend: process or docker (overrides benchmark)")
	cmd.MarkFlagRequired("benchmark")
	cmd.MarkFlagRequired("out")
	return cmd
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	bench, err := config.Load(flagBenchmark)
	if err != nil {
		return err
	}
	if err := applyOverrides(cmd, bench); err != nil {
		return err
	}

	specs, err := parseSpecs(bench.Models)
	if err != nil {
		return err
	}
	if len(specs) == 0 {
		return fmt.Errorf("no models configured: set models in %s or pass --models", flagBenchmark)
	}

	retry := adapter.RetryConfig{
		MaxAttempts: bench.Retry.MaxAttempts,
		BaseDelay:   time.Duration(bench.Retry.BaseDelayS * float64(time.Second)),
		MaxDelay:    time.Duration(bench.Retry.MaxDelayS * float64(time.Second)),
	}
	adapters, err := adapter.ForProviders(specs, retry)
	if err != nil {
		return err
	}

	if bench.Sandbox.Backend == config.SandboxProcess {
		if _, err := exec.LookPath(bench.Sandbox.Interpreter[0]); err != nil {
			return fmt.Errorf("sandbox interpreter %q not found in PATH", bench.Sandbox.Interpreter[0])
		}
	}
	sb, err := sandbox.New(bench.Sandbox.Backend, bench.Sandbox.Interpreter, bench.Sandbox.Image)
	if err != nil {
		return err
	}

	eng := runner.New(bench, specs, adapters, sb, log.Default())
	sum, err := eng.Run(cmd.Context(), flagOutputDir, flagOut)
	if err != nil {
		return err
	}
	fmt.Printf("Run %s wrote %d records to %s\n", sum.RunID, sum.RecordsWritten, sum.RecordsPath)
	fmt.Printf("Artifacts under %s\n", sum.RunRoot)
	return nil
}

// applyOverrides folds explicitly set flags over the benchmark file's
// values. Flags left untouched never override the file, so the file's own
// defaults survive even when they differ from the flag defaults.
func applyOverrides(cmd *cobra.Command, bench *config.Benchmark) error {
	f := cmd.Flags()
	if f.Changed("models") {
		models := splitCSV(flagModels)
		if len(models) == 0 {
			return fmt.Errorf("--models must name at least one provider:model spec")
		}
		bench.Models = config.StringList(models)
	}
	if f.Changed("years") {
		years, err := parseYears(flagYears)
		if err != nil {
			return err
		}
		bench.Years = config.IntList(years)
	}
	if f.Changed("runs-per-setting") {
		if flagRuns < 1 {
			return fmt.Errorf("--runs-per-setting must be at least 1")
		}
		bench.Settings.RunsPerSetting = flagRuns
	}
	if f.Changed("warmup") {
		if flagWarmup < 0 {
			return fmt.Errorf("--warmup must not be negative")
		}
		bench.Settings.Warmup = flagWarmup
	}
	if f.Changed("timeout-s") {
		bench.Settings.TimeoutS = flagTimeoutS
	}
	if f.Changed("max-output-tokens") {
		bench.Settings.MaxOutputTokens = flagMaxTokens
	}
	if f.Changed("temperature") {
		bench.Settings.Temperature = flagTemperature
	}
	if f.Changed("concurrency") {
		if flagConcurrency < 1 {
			return fmt.Errorf("--concurrency must be at least 1")
		}
		bench.Settings.Concurrency = flagConcurrency
	}
	if f.Changed("sandbox") {
		if flagSandbox != config.SandboxProcess && flagSandbox != config.SandboxDocker {
			return fmt.Errorf("--sandbox must be %q or %q", config.SandboxProcess, config.SandboxDocker)
		}
		bench.Sandbox.Backend = flagSandbox
	}
	return nil
}

func parseSpecs(models []string) ([]model.Spec, error) {
	specs := make([]model.Spec, 0, len(models))
	for _, m := range models {
		ms, err := model.ParseSpec(m)
		if err != nil {
			return nil, err
		}
		specs = append(specs, ms)
	}
	return specs, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseYears(s string) ([]int, error) {
	parts := splitCSV(s)
	if len(parts) == 0 {
		return nil, fmt.Errorf("--years must name at least one value")
	}
	years := make([]int, 0, len(parts))
	for _, p := range parts {
		y, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid --years value %q", p)
		}
		years = append(years, y)
	}
	return years, nil
}
