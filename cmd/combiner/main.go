package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	var configPath string
	rootCmd := &cobra.Command{
		Use:   "combiner",
		Short: "Synthesize solver strategies from tactic sequences",
		Long: `combiner measures candidate tactic sequences on a corpus of formulas and
induces a decision tree that picks a sequence per formula from probe values.

        $ combiner synth -c corpus/ -t tactics.txt -o strategy.json
        `,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the YAML config file (env COMBINER_CONFIG)")

	rootCmd.AddCommand(
		newSynthCmd(&configPath),
		newCacheCmd(&configPath),
		newEvalCmd(&configPath),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
