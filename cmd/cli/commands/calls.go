package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/volunteer-dispatch/pkg/core/model"
	"github.com/jakechorley/volunteer-dispatch/pkg/core/services"
)

// ListCallsCmd creates the listCalls command
func ListCallsCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listCalls",
		Short: "List calls with their derived status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filterArg, _ := cmd.Flags().GetString("filter")
			sortArg, _ := cmd.Flags().GetString("sort")

			var filter *services.CallFilter
			if filterArg != "" {
				field, value, ok := strings.Cut(filterArg, "=")
				if !ok {
					return fmt.Errorf("filter must look like field=value, got: %s", filterArg)
				}
				f, err := model.ParseCallField(field)
				if err != nil {
					return err
				}
				filter = &services.CallFilter{Field: f, Value: value}
			}

			var sortBy *model.CallField
			if sortArg != "" {
				f, err := model.ParseCallField(sortArg)
				if err != nil {
					return err
				}
				sortBy = &f
			}

			app.Logger.Debug("listCalls command", zap.String("filter", filterArg), zap.String("sort", sortArg))

			calls, err := app.Calls.GetCallList(app.Ctx, filter, sortBy)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\nFound %d calls:\n\n", len(calls))
			fmt.Fprintf(out, "%-6s %-10s %-16s %-16s %-10s %-20s %s\n",
				"ID", "Type", "Status", "Opened", "Remaining", "Last volunteer", "Address")
			for _, c := range calls {
				volunteer := c.LastVolunteerName
				if volunteer == "" {
					volunteer = "-"
				}
				fmt.Fprintf(out, "%-6d %-10s %-16s %-16s %-10s %-20s %s\n",
					c.CallID,
					c.Type,
					c.Status,
					c.OpenedAt.Format(displayTime),
					formatDuration(c.RemainingTime),
					volunteer,
					c.Address,
				)
			}
			fmt.Fprintln(out)

			return nil
		},
	}

	cmd.Flags().String("filter", "", "Only show calls where field=value (e.g. status=Open)")
	cmd.Flags().String("sort", "", "Sort by field (id, type, opened_at, address, status, volunteer, remaining, treatment, assignments)")

	return cmd
}

// CallCountsCmd creates the callCounts command
func CallCountsCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "callCounts",
		Short: "Show how many calls are in each status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			counts, err := app.Calls.GetCallCountsByStatus(app.Ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out)
			for _, c := range counts {
				fmt.Fprintf(out, "  %d %-16s %d\n", int(c.Status), c.Status, c.Count)
			}
			fmt.Fprintln(out)
			return nil
		},
	}
}

// CallDetailsCmd creates the callDetails command
func CallDetailsCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "callDetails <call_id>",
		Short: "Show a call with its assignment history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			callID, err := parseID("call_id", args[0])
			if err != nil {
				return err
			}

			details, err := app.Calls.GetCallDetails(app.Ctx, callID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			c := details.Call
			fmt.Fprintf(out, "\nCall %d (%s)\n", c.ID, c.Type)
			fmt.Fprintf(out, "Status:      %s\n", details.Status)
			fmt.Fprintf(out, "Address:     %s (%.5f, %.5f)\n", c.Address, c.Latitude, c.Longitude)
			fmt.Fprintf(out, "Description: %s\n", formatOptional(c.Description))
			fmt.Fprintf(out, "Opened:      %s\n", c.OpenedAt.Format(displayTime))
			fmt.Fprintf(out, "Deadline:    %s\n\n", formatTime(c.MaxTime))

			if len(details.Assignments) == 0 {
				fmt.Fprintln(out, "No assignments yet.")
				return nil
			}

			fmt.Fprintf(out, "Assignments:\n")
			for _, a := range details.Assignments {
				fmt.Fprintf(out, "  #%-4d %-20s %s -> %s  %s\n",
					a.AssignmentID,
					fmt.Sprintf("%s (%d)", a.VolunteerName, a.VolunteerID),
					a.EntryTime.Format(displayTime),
					formatTime(a.EndTime),
					formatEndType(a.EndType),
				)
			}
			fmt.Fprintln(out)
			return nil
		},
	}
}

// callFlags holds the flags shared by addCall and updateCall
type callFlags struct {
	description string
	deadline    string
	within      time.Duration
}

func (f *callFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.description, "description", "", "Free text description")
	cmd.Flags().StringVar(&f.deadline, "deadline", "", "Deadline as RFC3339 or \"YYYY-MM-DD HH:MM\"")
	cmd.Flags().DurationVar(&f.within, "within", 0, "Deadline relative to the simulated clock (e.g. 90m)")
}

// apply copies the changed flags onto call
func (f *callFlags) apply(cmd *cobra.Command, app *AppContext, call *model.Call) error {
	if cmd.Flags().Changed("description") {
		d := f.description
		call.Description = &d
	}
	switch {
	case cmd.Flags().Changed("deadline") && cmd.Flags().Changed("within"):
		return fmt.Errorf("use either --deadline or --within, not both")
	case cmd.Flags().Changed("deadline"):
		t, err := parseTime(f.deadline)
		if err != nil {
			return err
		}
		call.MaxTime = &t
	case cmd.Flags().Changed("within"):
		t := app.Clock.Now().Add(f.within)
		call.MaxTime = &t
	}
	return nil
}

// AddCallCmd creates the addCall command
func AddCallCmd(app *AppContext) *cobra.Command {
	var flags callFlags
	cmd := &cobra.Command{
		Use:   "addCall <type> <address>",
		Short: "Open a new call (type is Transport or PickUp)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			call := model.Call{
				Type:    model.CallType(args[0]),
				Address: args[1],
			}
			if err := flags.apply(cmd, app, &call); err != nil {
				return err
			}

			app.Logger.Debug("addCall command", zap.String("type", args[0]), zap.String("address", args[1]))

			id, err := app.Calls.AddCall(app.Ctx, call)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Call %d opened at %s\n\n", id, app.Clock.Now().Format(displayTime))
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

// UpdateCallCmd creates the updateCall command
func UpdateCallCmd(app *AppContext) *cobra.Command {
	var flags callFlags
	cmd := &cobra.Command{
		Use:   "updateCall <call_id>",
		Short: "Change a call that is not closed or expired",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			callID, err := parseID("call_id", args[0])
			if err != nil {
				return err
			}

			details, err := app.Calls.GetCallDetails(app.Ctx, callID)
			if err != nil {
				return err
			}
			call := details.Call

			if cmd.Flags().Changed("type") {
				t, _ := cmd.Flags().GetString("type")
				call.Type = model.CallType(t)
			}
			if cmd.Flags().Changed("address") {
				call.Address, _ = cmd.Flags().GetString("address")
			}
			if noDeadline, _ := cmd.Flags().GetBool("no-deadline"); noDeadline {
				call.MaxTime = nil
			}
			if err := flags.apply(cmd, app, &call); err != nil {
				return err
			}

			if err := app.Calls.UpdateCall(app.Ctx, call); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Call %d updated\n\n", callID)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().String("type", "", "New call type")
	cmd.Flags().String("address", "", "New address")
	cmd.Flags().Bool("no-deadline", false, "Remove the deadline")
	return cmd
}

// DeleteCallCmd creates the deleteCall command
func DeleteCallCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deleteCall <call_id>",
		Short: "Delete an open call that was never assigned",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			callID, err := parseID("call_id", args[0])
			if err != nil {
				return err
			}
			if err := app.Calls.DeleteCall(app.Ctx, callID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Call %d deleted\n\n", callID)
			return nil
		},
	}
}

// parseCallType returns nil for an empty flag
func parseCallType(s string) (*model.CallType, error) {
	if s == "" {
		return nil, nil
	}
	for _, t := range []model.CallType{model.CallTypeTransport, model.CallTypePickUp} {
		if strings.EqualFold(string(t), s) {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unknown call type %q (expected Transport or PickUp)", s)
}

// ClosedCallsCmd creates the closedCalls command
func ClosedCallsCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "closedCalls <volunteer_id>",
		Short: "List the calls a volunteer has finished",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			volunteerID, err := parseID("volunteer_id", args[0])
			if err != nil {
				return err
			}
			typeArg, _ := cmd.Flags().GetString("type")
			callType, err := parseCallType(typeArg)
			if err != nil {
				return err
			}
			var sortBy *model.ClosedCallField
			if s, _ := cmd.Flags().GetString("sort"); s != "" {
				f, err := model.ParseClosedCallField(s)
				if err != nil {
					return err
				}
				sortBy = &f
			}

			calls, err := app.Calls.GetClosedCallsByVolunteer(app.Ctx, volunteerID, callType, sortBy)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\n%d closed calls for volunteer %d:\n\n", len(calls), volunteerID)
			for _, c := range calls {
				fmt.Fprintf(out, "  %-6d %-10s %-16s %-16s %-26s %s\n",
					c.CallID,
					c.Type,
					c.EntryTime.Format(displayTime),
					formatTime(c.EndTime),
					c.EndType,
					c.Address,
				)
			}
			fmt.Fprintln(out)
			return nil
		},
	}
	cmd.Flags().String("type", "", "Only show calls of this type")
	cmd.Flags().String("sort", "", "Sort by field (id, type, address, opened_at, entry_time, end_time, end_type)")
	return cmd
}

// OpenCallsCmd creates the openCalls command
func OpenCallsCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "openCalls <volunteer_id>",
		Short: "List calls a volunteer could take, with their distance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			volunteerID, err := parseID("volunteer_id", args[0])
			if err != nil {
				return err
			}
			typeArg, _ := cmd.Flags().GetString("type")
			callType, err := parseCallType(typeArg)
			if err != nil {
				return err
			}
			var sortBy *model.OpenCallField
			if s, _ := cmd.Flags().GetString("sort"); s != "" {
				f, err := model.ParseOpenCallField(s)
				if err != nil {
					return err
				}
				sortBy = &f
			}

			calls, err := app.Calls.GetOpenCallsForVolunteer(app.Ctx, volunteerID, callType, sortBy)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\n%d open calls for volunteer %d:\n\n", len(calls), volunteerID)
			for _, c := range calls {
				marker := " "
				if !c.WithinMaxDistance {
					marker = "*"
				}
				fmt.Fprintf(out, "  %-6d %-10s %-12s %8.2f km%s %-16s %s\n",
					c.CallID,
					c.Type,
					c.Status,
					c.DistanceKm,
					marker,
					formatTime(c.MaxTime),
					c.Address,
				)
			}
			fmt.Fprintln(out, "\n  * beyond the volunteer's maximum distance")
			fmt.Fprintln(out)
			return nil
		},
	}
	cmd.Flags().String("type", "", "Only show calls of this type")
	cmd.Flags().String("sort", "", "Sort by field (id, type, address, opened_at, max_time, distance)")
	return cmd
}

// TakeCallCmd creates the takeCall command
func TakeCallCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "takeCall <volunteer_id> <call_id>",
		Short: "Assign an open call to a volunteer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			volunteerID, err := parseID("volunteer_id", args[0])
			if err != nil {
				return err
			}
			callID, err := parseID("call_id", args[1])
			if err != nil {
				return err
			}

			assignmentID, err := app.Calls.AssignCallToVolunteer(app.Ctx, volunteerID, callID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Volunteer %d took call %d (assignment %d)\n\n", volunteerID, callID, assignmentID)
			return nil
		},
	}
}

// CloseAssignmentCmd creates the closeAssignment command
func CloseAssignmentCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "closeAssignment <volunteer_id> <assignment_id>",
		Short: "Mark an assignment as cared for",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			volunteerID, err := parseID("volunteer_id", args[0])
			if err != nil {
				return err
			}
			assignmentID, err := parseID("assignment_id", args[1])
			if err != nil {
				return err
			}

			if err := app.Calls.CloseCall(app.Ctx, volunteerID, assignmentID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Assignment %d closed\n\n", assignmentID)
			return nil
		},
	}
}

// CancelAssignmentCmd creates the cancelAssignment command
func CancelAssignmentCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancelAssignment <requester_id> <assignment_id>",
		Short: "Cancel an open assignment (own, or any as an administrator)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			requesterID, err := parseID("requester_id", args[0])
			if err != nil {
				return err
			}
			assignmentID, err := parseID("assignment_id", args[1])
			if err != nil {
				return err
			}

			if err := app.Calls.CancelCall(app.Ctx, requesterID, assignmentID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Assignment %d cancelled\n\n", assignmentID)
			return nil
		},
	}
}

// CallStatusCmd creates the callStatus command
func CallStatusCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "callStatus <call_id>",
		Short: "Show the derived status of a call",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			callID, err := parseID("call_id", args[0])
			if err != nil {
				return err
			}
			status, err := app.Calls.DetermineStatus(app.Ctx, callID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d)\n", status, int(status))
			return nil
		},
	}
}
