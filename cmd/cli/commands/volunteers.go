package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/volunteer-dispatch/pkg/core/model"
)

// LoginCmd creates the login command
func LoginCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "login <name> <password>",
		Short: "Check a volunteer's credentials and show their role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := app.Volunteers.Login(app.Ctx, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Logged in as %s (%s)\n\n", strings.TrimSpace(args[0]), role)
			return nil
		},
	}
}

// ListVolunteersCmd creates the listVolunteers command
func ListVolunteersCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listVolunteers",
		Short: "List volunteers with their counters and current call",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var active *bool
			if cmd.Flags().Changed("active") {
				a, _ := cmd.Flags().GetBool("active")
				active = &a
			}
			var sortBy *model.VolunteerField
			if s, _ := cmd.Flags().GetString("sort"); s != "" {
				f, err := model.ParseVolunteerField(s)
				if err != nil {
					return err
				}
				sortBy = &f
			}

			volunteers, err := app.Volunteers.GetVolunteerList(app.Ctx, active, sortBy)
			if err != nil {
				return err
			}

			app.Logger.Debug("Volunteers fetched", zap.Int("count", len(volunteers)))

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\nFound %d volunteers:\n\n", len(volunteers))
			for _, v := range volunteers {
				status := "active"
				if !v.Active {
					status = "inactive"
				}
				current := ""
				if v.CurrentCallID != nil {
					current = fmt.Sprintf(" - handling call %d", *v.CurrentCallID)
					if v.CurrentCallType != nil {
						current += fmt.Sprintf(" (%s)", *v.CurrentCallType)
					}
				}
				fmt.Fprintf(out, "- %s (%d) - %s - handled %d, cancelled %d, expired %d%s\n",
					v.Name,
					v.ID,
					status,
					v.Counters.Handled,
					v.Counters.Cancelled,
					v.Counters.Expired,
					current,
				)
			}
			fmt.Fprintln(out)
			return nil
		},
	}
	cmd.Flags().Bool("active", false, "Filter by active state (--active or --active=false)")
	cmd.Flags().String("sort", "", "Sort by field (id, name, handled, cancelled, expired)")
	return cmd
}

// VolunteerDetailsCmd creates the volunteerDetails command
func VolunteerDetailsCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "volunteerDetails <volunteer_id>",
		Short: "Show a volunteer with their current call",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			volunteerID, err := parseID("volunteer_id", args[0])
			if err != nil {
				return err
			}

			details, err := app.Volunteers.GetVolunteerDetails(app.Ctx, volunteerID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			v := details.Volunteer
			fmt.Fprintf(out, "\n%s (%d) - %s\n", v.Name, v.ID, v.Role)
			fmt.Fprintf(out, "Active:       %t\n", v.Active)
			fmt.Fprintf(out, "Phone:        %s\n", v.Phone)
			fmt.Fprintf(out, "Email:        %s\n", v.Email)
			fmt.Fprintf(out, "Address:      %s\n", formatOptional(&v.Address))
			fmt.Fprintf(out, "Max distance: %s (%s)\n", formatKm(v.MaxDistance), v.DistanceType)
			fmt.Fprintf(out, "Handled %d, cancelled %d, expired %d\n\n",
				details.Counters.Handled, details.Counters.Cancelled, details.Counters.Expired)

			if c := details.CurrentCall; c != nil {
				fmt.Fprintf(out, "Current call %d (%s, %s), assignment %d since %s, %.2f km away\n  %s\n\n",
					c.CallID, c.Type, c.Status, c.AssignmentID, c.EntryTime.Format(displayTime), c.DistanceKm, c.Address)
			}
			return nil
		},
	}
}

// volunteerFlags holds the profile flags shared by addVolunteer and updateVolunteer
type volunteerFlags struct {
	phone        string
	email        string
	address      string
	role         string
	active       bool
	maxDistance  float64
	distanceType string
	password     string
}

func (f *volunteerFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.phone, "phone", "", "Ten digit phone number")
	cmd.Flags().StringVar(&f.email, "email", "", "Email address")
	cmd.Flags().StringVar(&f.address, "address", "", "Home address")
	cmd.Flags().StringVar(&f.role, "role", string(model.RoleWorker), "Administrator or Worker")
	cmd.Flags().BoolVar(&f.active, "active", true, "Whether the volunteer takes calls")
	cmd.Flags().Float64Var(&f.maxDistance, "max-distance", 0, "Maximum distance in km (0 for unlimited)")
	cmd.Flags().StringVar(&f.distanceType, "distance-type", string(model.DistanceAir), "Air, Walking or Driving")
	cmd.Flags().StringVar(&f.password, "password", "", "Password")
}

// apply copies the changed flags onto vol; with all set every flag is copied
func (f *volunteerFlags) apply(cmd *cobra.Command, vol *model.Volunteer, all bool) {
	changed := func(name string) bool { return all || cmd.Flags().Changed(name) }
	if changed("phone") {
		vol.Phone = f.phone
	}
	if changed("email") {
		vol.Email = f.email
	}
	if changed("address") {
		vol.Address = f.address
	}
	if changed("role") {
		vol.Role = model.Role(f.role)
	}
	if changed("active") {
		vol.Active = f.active
	}
	if changed("max-distance") {
		if f.maxDistance == 0 {
			vol.MaxDistance = nil
		} else {
			d := f.maxDistance
			vol.MaxDistance = &d
		}
	}
	if changed("distance-type") {
		vol.DistanceType = model.DistanceType(f.distanceType)
	}
}

// AddVolunteerCmd creates the addVolunteer command
func AddVolunteerCmd(app *AppContext) *cobra.Command {
	var flags volunteerFlags
	cmd := &cobra.Command{
		Use:   "addVolunteer <id> <name>",
		Short: "Register a volunteer under their national id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("id", args[0])
			if err != nil {
				return err
			}
			vol := model.Volunteer{ID: id, Name: args[1]}
			flags.apply(cmd, &vol, true)

			if err := app.Volunteers.CreateVolunteer(app.Ctx, vol, flags.password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Volunteer %s (%d) registered\n\n", vol.Name, vol.ID)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

// UpdateVolunteerCmd creates the updateVolunteer command
func UpdateVolunteerCmd(app *AppContext) *cobra.Command {
	var flags volunteerFlags
	cmd := &cobra.Command{
		Use:   "updateVolunteer <requester_id> <volunteer_id>",
		Short: "Change a volunteer's profile (own, or any as an administrator)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			requesterID, err := parseID("requester_id", args[0])
			if err != nil {
				return err
			}
			volunteerID, err := parseID("volunteer_id", args[1])
			if err != nil {
				return err
			}

			details, err := app.Volunteers.GetVolunteerDetails(app.Ctx, volunteerID)
			if err != nil {
				return err
			}
			vol := details.Volunteer
			if cmd.Flags().Changed("name") {
				vol.Name, _ = cmd.Flags().GetString("name")
			}
			flags.apply(cmd, &vol, false)

			var newPassword *string
			if cmd.Flags().Changed("password") {
				newPassword = &flags.password
			}

			if err := app.Volunteers.UpdateVolunteer(app.Ctx, requesterID, vol, newPassword); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Volunteer %d updated\n\n", volunteerID)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().String("name", "", "New full name")
	return cmd
}

// DeleteVolunteerCmd creates the deleteVolunteer command
func DeleteVolunteerCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deleteVolunteer <volunteer_id>",
		Short: "Delete a volunteer who never took a call",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			volunteerID, err := parseID("volunteer_id", args[0])
			if err != nil {
				return err
			}
			if err := app.Volunteers.DeleteVolunteer(app.Ctx, volunteerID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Volunteer %d deleted\n\n", volunteerID)
			return nil
		},
	}
}
