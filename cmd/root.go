package cmd

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/expbench/expbench/internal/dotenv"
)

var flagVerbose bool

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "expbench",
		Short: "Benchmark harness for years-of-experience prompt experiments",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagVerbose {
				log.SetLevel(log.DebugLevel)
			}
			if cwd, err := os.Getwd(); err == nil {
				loaded, err := dotenv.Load(cwd)
				if err != nil {
					log.Warn("skipping .env", "err", err)
				} else if loaded != "" {
					log.Debug("loaded environment", "path", loaded)
				}
			}
		},
	}
	root.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "enable debug logging")
	root.AddCommand(newRunCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newRescoreCmd())
	return root
}
