package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/reengage-labs/campaign-cli/internal/model"
)

var roiCmd = &cobra.Command{
	Use:   "roi",
	Short: "Track investments and conversions and compute ROI",
}

// -- roi show --

var roiShowCmd = &cobra.Command{
	Use:   "show <campaign-id>",
	Short: "Compute the campaign's current ROI from the ledger",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Orchestrator.LoadLedger(ctx, args[0]); err != nil {
			return eris.Wrap(err, "roi show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(env.Orchestrator.ROI(args[0]))
	},
}

// -- roi invest --

var roiInvestCmd = &cobra.Command{
	Use:   "invest <campaign-id>",
	Short: "Record a campaign investment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		amount, _ := cmd.Flags().GetFloat64("amount")
		category, _ := cmd.Flags().GetString("category")
		if amount <= 0 {
			return eris.New("roi invest: --amount must be > 0")
		}

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		env.Orchestrator.TrackInvestment(ctx, args[0], amount, category)
		return nil
	},
}

// -- roi convert --

var roiConvertCmd = &cobra.Command{
	Use:   "convert <campaign-id>",
	Short: "Record a conversion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		student, _ := cmd.Flags().GetString("student")
		revenue, _ := cmd.Flags().GetFloat64("revenue")
		convType, _ := cmd.Flags().GetString("type")
		if revenue <= 0 {
			return eris.New("roi convert: --revenue must be > 0")
		}

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		env.Orchestrator.TrackConversion(ctx, args[0], student, revenue, convType)
		return nil
	},
}

// -- roi ledger --

var roiLedgerCmd = &cobra.Command{
	Use:   "ledger <campaign-id>",
	Short: "Dump the campaign's persisted ledger entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		invs, err := st.ListInvestments(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "roi ledger")
		}
		convs, err := st.ListConversions(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "roi ledger")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Investments []model.Investment `json:"investments"`
			Conversions []model.Conversion `json:"conversions"`
		}{invs, convs})
	},
}

func init() {
	roiInvestCmd.Flags().Float64("amount", 0, "investment amount")
	roiInvestCmd.Flags().String("category", "media", "investment category (media, staff_time, tools, incentives)")

	roiConvertCmd.Flags().String("student", "", "converting student id")
	roiConvertCmd.Flags().Float64("revenue", 0, "conversion revenue")
	roiConvertCmd.Flags().String("type", "plan_renewal", "conversion type (plan_renewal, trial, upgrade)")

	roiCmd.AddCommand(roiShowCmd)
	roiCmd.AddCommand(roiInvestCmd)
	roiCmd.AddCommand(roiConvertCmd)
	roiCmd.AddCommand(roiLedgerCmd)
	rootCmd.AddCommand(roiCmd)
}
