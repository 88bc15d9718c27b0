package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Analyze campaign performance and apply optimizations",
}

// -- optimize analyze --

var optimizeAnalyzeCmd = &cobra.Command{
	Use:   "analyze <campaign-id>",
	Short: "Produce an optimization analysis for a campaign",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Orchestrator.LoadLedger(ctx, args[0]); err != nil {
			return eris.Wrap(err, "optimize analyze")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(env.Orchestrator.Analyze(args[0]))
	},
}

// -- optimize apply --

var optimizeApplyCmd = &cobra.Command{
	Use:   "apply <campaign-id>",
	Short: "Apply the analysis's immediate and risk-mitigation actions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Orchestrator.LoadLedger(ctx, args[0]); err != nil {
			return eris.Wrap(err, "optimize apply")
		}

		report := env.Orchestrator.Adapt(ctx, args[0])

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	optimizeCmd.AddCommand(optimizeAnalyzeCmd)
	optimizeCmd.AddCommand(optimizeApplyCmd)
	rootCmd.AddCommand(optimizeCmd)
}
