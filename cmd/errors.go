package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var errorsCmd = &cobra.Command{
	Use:   "errors",
	Short: "Inspect error handling and circuit breakers",
}

// -- errors stats --

var errorsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show handled-error statistics for the trailing window",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		window, _ := cmd.Flags().GetDuration("window")

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(env.Orchestrator.ErrorStatistics(window))
	},
}

// -- errors reset-breaker --

var errorsResetBreakerCmd = &cobra.Command{
	Use:   "reset-breaker <component>",
	Short: "Reset a component's circuit breaker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if !env.Orchestrator.ResetBreaker(args[0]) {
			return fmt.Errorf("no circuit breaker for component %q", args[0])
		}
		fmt.Printf("Circuit breaker for %s reset.\n", args[0])
		return nil
	},
}

func init() {
	errorsStatsCmd.Flags().Duration("window", time.Hour, "time window for stats (e.g. 1h, 24h)")

	errorsCmd.AddCommand(errorsStatsCmd)
	errorsCmd.AddCommand(errorsResetBreakerCmd)
	rootCmd.AddCommand(errorsCmd)
}
