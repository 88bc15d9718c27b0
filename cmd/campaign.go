package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/reengage-labs/campaign-cli/internal/model"
	"github.com/reengage-labs/campaign-cli/internal/store"
)

var campaignCmd = &cobra.Command{
	Use:   "campaign",
	Short: "Start, inspect, and stop reactivation campaigns",
}

// -- campaign start --

var campaignStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a new campaign and run its pattern to completion",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("campaign"); err != nil {
			return err
		}
		ctx := cmd.Context()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		id, _ := cmd.Flags().GetString("id")
		name, _ := cmd.Flags().GetString("name")
		audience, _ := cmd.Flags().GetInt("audience-size")
		roiTarget, _ := cmd.Flags().GetFloat64("roi-target")
		budget, _ := cmd.Flags().GetFloat64("budget")
		roster, _ := cmd.Flags().GetString("roster")
		wait, _ := cmd.Flags().GetBool("wait")

		if roiTarget == 0 {
			roiTarget = cfg.Campaign.ROITarget
		}
		if budget == 0 {
			budget = cfg.Campaign.BudgetLimit
		}

		campaignCfg := model.CampaignConfig{
			CampaignID:         id,
			Name:               name,
			TargetAudienceSize: audience,
			ROITarget:          roiTarget,
			BudgetLimit:        budget,
			TimeConstraints:    model.TimeConstraints{HorizonDays: cfg.Campaign.HorizonDays},
		}
		if roster != "" {
			campaignCfg.DataSources = map[string]string{"roster": roster}
		}

		res, err := env.Orchestrator.StartCampaign(ctx, campaignCfg)
		if err != nil {
			return eris.Wrap(err, "campaign start")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}

		if wait {
			env.Orchestrator.Wait(res.CampaignID)
			status, err := env.Orchestrator.Status(ctx, res.CampaignID)
			if err != nil {
				return eris.Wrap(err, "campaign start")
			}
			return enc.Encode(status.Pattern)
		}
		return nil
	},
}

// -- campaign list --

var campaignListCmd = &cobra.Command{
	Use:   "list",
	Short: "List campaigns",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		campaigns, err := st.ListCampaigns(ctx, store.CampaignFilter{
			Status: model.CampaignStatus(status),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "campaign list")
		}

		if len(campaigns) == 0 {
			fmt.Fprintln(os.Stderr, "No campaigns found.")
			return nil
		}

		formatCampaignList(os.Stdout, campaigns)
		return nil
	},
}

// -- campaign status --

var campaignStatusCmd = &cobra.Command{
	Use:   "status <campaign-id>",
	Short: "Show the merged live status of a campaign",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		status, err := env.Orchestrator.Status(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "campaign status")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	},
}

// -- campaign stop --

var campaignStopCmd = &cobra.Command{
	Use:   "stop <campaign-id>",
	Short: "Stop a running campaign",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Orchestrator.StopCampaign(ctx, args[0]); err != nil {
			return eris.Wrap(err, "campaign stop")
		}

		fmt.Printf("Campaign %s stopped.\n", args[0])
		return nil
	},
}

func init() {
	campaignStartCmd.Flags().String("id", "", "campaign id (generated when empty)")
	campaignStartCmd.Flags().String("name", "", "campaign name")
	campaignStartCmd.Flags().Int("audience-size", 0, "target audience size (derived from roster when 0)")
	campaignStartCmd.Flags().Float64("roi-target", 0, "ROI target percentage (default from config)")
	campaignStartCmd.Flags().Float64("budget", 0, "budget limit (default from config)")
	campaignStartCmd.Flags().String("roster", "", "path to a student roster xlsx export")
	campaignStartCmd.Flags().Bool("wait", true, "wait for the pattern run to finish")

	campaignListCmd.Flags().String("status", "", "filter by status (pending, running, completed, failed, stopped)")
	campaignListCmd.Flags().Int("limit", 50, "max number of campaigns to display")

	campaignCmd.AddCommand(campaignStartCmd)
	campaignCmd.AddCommand(campaignListCmd)
	campaignCmd.AddCommand(campaignStatusCmd)
	campaignCmd.AddCommand(campaignStopCmd)
	rootCmd.AddCommand(campaignCmd)
}

// formatCampaignList writes a tabular list of campaigns to w.
func formatCampaignList(out io.Writer, campaigns []model.Campaign) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tSTATUS\tAUDIENCE\tROI_TARGET\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t--------\t----------\t-------")

	for _, c := range campaigns {
		name := c.Config.Name
		if len(name) > 30 {
			name = name[:27] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.0f\t%s\n",
			c.ID,
			name,
			c.Status,
			c.Config.TargetAudienceSize,
			c.Config.ROITarget,
			c.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}
