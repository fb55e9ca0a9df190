package sheetsclient

import (
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/volunteer-dispatch/pkg/core/model"
)

// DefaultReportTab is used when no tab is configured
const DefaultReportTab = "Calls"

const reportTimeLayout = "2006-01-02 15:04"

var callReportHeader = []interface{}{
	"Call", "Type", "Address", "Opened", "Status", "Remaining", "Last volunteer", "Treatment time", "Assignments",
}

// PublishCallReport overwrites the tab with the call list as of generatedAt.
// The tab is created if it does not exist.
func (c *Client) PublishCallReport(spreadsheetID, tab string, generatedAt time.Time, calls []model.CallInList) error {
	if spreadsheetID == "" {
		return fmt.Errorf("no spreadsheet configured for call reports")
	}
	if tab == "" {
		tab = DefaultReportTab
	}

	exists, err := c.SheetExists(spreadsheetID, tab)
	if err != nil {
		return err
	}
	if !exists {
		if _, err := c.CreateSheet(spreadsheetID, tab); err != nil {
			return fmt.Errorf("failed to create tab: %w", err)
		}
	}

	if err := c.ReplaceSheet(spreadsheetID, tab, callReportRows(generatedAt, calls)); err != nil {
		return fmt.Errorf("failed to publish call report: %w", err)
	}

	c.logger.Info("Call report published",
		zap.String("spreadsheet_id", spreadsheetID),
		zap.String("tab", tab),
		zap.Int("calls", len(calls)))
	return nil
}

// callReportRows lays out a title row, a blank row, the header and one row per call
func callReportRows(generatedAt time.Time, calls []model.CallInList) [][]interface{} {
	rows := make([][]interface{}, 0, len(calls)+3)
	rows = append(rows,
		[]interface{}{"Generated " + generatedAt.Format(reportTimeLayout)},
		[]interface{}{},
		callReportHeader,
	)

	for _, call := range calls {
		rows = append(rows, []interface{}{
			strconv.Itoa(call.CallID),
			string(call.Type),
			call.Address,
			call.OpenedAt.Format(reportTimeLayout),
			call.Status.String(),
			formatDuration(call.RemainingTime),
			call.LastVolunteerName,
			formatDuration(call.TreatmentTime),
			strconv.Itoa(call.AssignmentCount),
		})
	}
	return rows
}

func formatDuration(d *time.Duration) string {
	if d == nil {
		return ""
	}
	return d.Round(time.Minute).String()
}
