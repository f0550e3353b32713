package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/expbench/expbench/internal/config"
)

func newListCmd() *cobra.Command {
	var benchPath string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show what a benchmark file would run",
		RunE: func(cmd *cobra.Command, args []string) error {
			bench, err := config.Load(benchPath)
			if err != nil {
				return err
			}
			fmt.Printf("Benchmark: %s\n", bench.ID)
			fmt.Println("Models:")
			for _, m := range bench.Models {
				fmt.Printf("  - %s\n", m)
			}
			fmt.Printf("Years: %s\n", joinInts(bench.Years))
			s := bench.Settings
			fmt.Printf("Runs per setting: %d (plus %d warmup)\n", s.RunsPerSetting, s.Warmup)
			fmt.Printf("Timeout: %gs, max output tokens: %d, temperature: %g, concurrency: %d\n",
				s.TimeoutS, s.MaxOutputTokens, s.Temperature, s.Concurrency)
			if bench.Sandbox.Backend == config.SandboxDocker {
				fmt.Printf("Sandbox: docker (%s)\n", bench.Sandbox.Image)
			} else {
				fmt.Printf("Sandbox: process (%s)\n", strings.Join(bench.Sandbox.Interpreter, " "))
			}
			settings := len(bench.Models) * len(bench.Years)
			fmt.Printf("Total: %d measured trials, %d warmup calls\n",
				settings*s.RunsPerSetting, settings*s.Warmup)
			return nil
		},
	}
	cmd.Flags().StringVar(&benchPath, "benchmark", "", "benchmark YAML path")
	cmd.MarkFlagRequired("benchmark")
	return cmd
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}
