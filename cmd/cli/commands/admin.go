package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jakechorley/volunteer-dispatch/pkg/clock"
)

// ClockCmd creates the clock command
func ClockCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clock",
		Short: "Show the simulated clock and risk range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "Clock:      %s\nRisk range: %s\n",
				app.Admin.GetClock().Format(displayTime), app.Admin.GetRiskRange())
			return nil
		},
	}
}

// AdvanceClockCmd creates the advanceClock command
func AdvanceClockCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "advanceClock <unit>",
		Short: "Move the clock forward by one minute, hour, day, month or year",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			unit, err := clock.ParseUnit(args[0])
			if err != nil {
				return err
			}
			now, err := app.Admin.AdvanceClock(app.Ctx, unit)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Clock: %s\n", now.Format(displayTime))
			return nil
		},
	}
}

// SetClockCmd creates the setClock command
func SetClockCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "setClock <time>",
		Short: "Set the clock (RFC3339 or \"YYYY-MM-DD HH:MM\")",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseTime(args[0])
			if err != nil {
				return err
			}
			if err := app.Admin.SetClock(app.Ctx, t); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Clock: %s\n", app.Admin.GetClock().Format(displayTime))
			return nil
		},
	}
}

// RiskRangeCmd creates the riskRange command
func RiskRangeCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "riskRange [duration]",
		Short: "Show or set how long before a deadline a call is at risk",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				d, err := time.ParseDuration(args[0])
				if err != nil {
					return fmt.Errorf("invalid duration %q: %w", args[0], err)
				}
				if err := app.Admin.SetRiskRange(d); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Risk range: %s\n", app.Admin.GetRiskRange())
			return nil
		},
	}
}

// ResetConfigCmd creates the resetConfig command
func ResetConfigCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resetConfig",
		Short: "Restore the initial clock and risk range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app.Admin.ResetConfig()
			fmt.Fprintf(cmd.OutOrStdout(), "Clock: %s\nRisk range: %s\n",
				app.Admin.GetClock().Format(displayTime), app.Admin.GetRiskRange())
			return nil
		},
	}
}

// ResetDatabaseCmd creates the resetDatabase command
func ResetDatabaseCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resetDatabase",
		Short: "Delete every volunteer, call and assignment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				return fmt.Errorf("resetDatabase deletes all records, pass --yes to confirm")
			}
			if err := app.Admin.ResetDatabase(app.Ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Database reset")
			return nil
		},
	}
	cmd.Flags().Bool("yes", false, "Confirm deleting all records")
	return cmd
}

// ExpireOverdueCmd creates the expireOverdue command
func ExpireOverdueCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "expireOverdue",
		Short: "End open assignments of calls past their deadline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := app.Admin.ExpireOverdueCalls(app.Ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Expired %d assignments\n", n)
			return nil
		},
	}
}
