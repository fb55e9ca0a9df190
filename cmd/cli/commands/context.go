package commands

import (
	"context"

	"go.uber.org/zap"

	"github.com/jakechorley/volunteer-dispatch/internal/config"
	"github.com/jakechorley/volunteer-dispatch/pkg/clients/sheetsclient"
	"github.com/jakechorley/volunteer-dispatch/pkg/clock"
	"github.com/jakechorley/volunteer-dispatch/pkg/core/services"
	"github.com/jakechorley/volunteer-dispatch/pkg/core/validation"
	"github.com/jakechorley/volunteer-dispatch/pkg/db"
	"github.com/jakechorley/volunteer-dispatch/pkg/geo"
)

// AppContext holds the application dependencies shared across all commands
type AppContext struct {
	Cfg          *config.Config
	SessionID    string
	SheetsClient *sheetsclient.Client
	Database     db.Database
	Clock        *clock.Provider
	Locator      *geo.Locator
	Calls        *services.CallService
	Volunteers   *services.VolunteerService
	Admin        *services.AdminService
	Logger       *zap.Logger
	Ctx          context.Context
}

// Wire builds the clock and the engines on top of database. A nil mailer disables notifications.
func (app *AppContext) Wire(database db.Database, geocoder geo.Geocoder, mailer services.Mailer) {
	app.Database = database
	app.Clock = clock.NewProvider(app.Cfg.InitialTime(), app.Cfg.RiskRange)
	app.Locator = geo.NewLocator(geocoder)

	var notifier *services.Notifier
	if mailer != nil {
		notifier = services.NewNotifier(mailer, app.Logger)
	}

	validator := validation.New(app.Locator)
	app.Calls = services.NewCallService(database, app.Clock, validator, app.Locator, notifier, app.Logger)
	app.Volunteers = services.NewVolunteerService(database, app.Clock, validator, app.Logger)
	app.Admin = services.NewAdminService(database, app.Clock, app.Logger)
}
