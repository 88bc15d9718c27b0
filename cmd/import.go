package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reengage-labs/campaign-cli/internal/audience"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import student data",
}

// -- import roster --

var importRosterCmd = &cobra.Command{
	Use:   "roster <file.xlsx>",
	Short: "Import a student roster export into the store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		sheet, _ := cmd.Flags().GetString("sheet")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		students, err := audience.LoadRoster(args[0], audience.RosterOptions{SheetName: sheet})
		if err != nil {
			return eris.Wrap(err, "import roster")
		}
		cleaned, report := audience.Clean(students)

		n, err := st.UpsertStudents(ctx, cleaned)
		if err != nil {
			return eris.Wrap(err, "import roster")
		}
		zap.L().Info("roster imported",
			zap.String("file", args[0]),
			zap.Int64("upserted", n),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	importRosterCmd.Flags().String("sheet", "", "sheet name (first sheet when empty)")

	importCmd.AddCommand(importRosterCmd)
	rootCmd.AddCommand(importCmd)
}
