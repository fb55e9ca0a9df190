package commands

import "github.com/spf13/cobra"

// AddAll registers every command on root
func AddAll(root *cobra.Command, app *AppContext) {
	root.AddCommand(
		// calls
		ListCallsCmd(app),
		CallCountsCmd(app),
		CallDetailsCmd(app),
		CallStatusCmd(app),
		AddCallCmd(app),
		UpdateCallCmd(app),
		DeleteCallCmd(app),
		ClosedCallsCmd(app),
		OpenCallsCmd(app),
		TakeCallCmd(app),
		CloseAssignmentCmd(app),
		CancelAssignmentCmd(app),

		// volunteers
		LoginCmd(app),
		ListVolunteersCmd(app),
		VolunteerDetailsCmd(app),
		AddVolunteerCmd(app),
		UpdateVolunteerCmd(app),
		DeleteVolunteerCmd(app),

		// administration
		ClockCmd(app),
		AdvanceClockCmd(app),
		SetClockCmd(app),
		RiskRangeCmd(app),
		ResetConfigCmd(app),
		ResetDatabaseCmd(app),
		ExpireOverdueCmd(app),
		SimulateCmd(app),
		ExportCallsCmd(app),

		InteractiveCmd(app),
	)
}
