package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ExportCallsCmd creates the exportCalls command
func ExportCallsCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exportCalls",
		Short: "Publish the call list to the reports spreadsheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.SheetsClient == nil {
				return fmt.Errorf("reports are not configured (set reports.spreadsheetID)")
			}
			tab, _ := cmd.Flags().GetString("tab")
			if tab == "" {
				tab = app.Cfg.Reports.Tab
			}

			calls, err := app.Calls.GetCallList(app.Ctx, nil, nil)
			if err != nil {
				return err
			}

			app.Logger.Debug("exportCalls command", zap.String("tab", tab), zap.Int("calls", len(calls)))

			if err := app.SheetsClient.PublishCallReport(app.Cfg.Reports.SpreadsheetID, tab, app.Clock.Now(), calls); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Exported %d calls\n\n", len(calls))
			return nil
		},
	}
	cmd.Flags().String("tab", "", "Sheet tab to overwrite (defaults to the configured tab)")
	return cmd
}
