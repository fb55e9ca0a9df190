// Package validation checks calls and volunteers before they are written and
// resolves their addresses to coordinates. A successful validation mutates its
// input: coordinates are overwritten and volunteer passwords are hashed.
package validation

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jakechorley/volunteer-dispatch/pkg/core/errs"
	"github.com/jakechorley/volunteer-dispatch/pkg/core/model"
	"github.com/jakechorley/volunteer-dispatch/pkg/geo"
)

const MaxDescriptionLength = 500

type callRules struct {
	Type        string  `name:"type" validate:"oneof=Transport PickUp"`
	Description string  `name:"description" validate:"max=500"`
	Address     string  `name:"address" validate:"notblank"`
	Latitude    float64 `name:"latitude" validate:"gte=-90,lte=90"`
	Longitude   float64 `name:"longitude" validate:"gte=-180,lte=180"`
}

type volunteerRules struct {
	ID           int      `name:"id" validate:"nationalid"`
	Name         string   `name:"name" validate:"min=2"`
	Phone        string   `name:"phone" validate:"len=10,number"`
	Email        string   `name:"email" validate:"contains=@,contains=."`
	Role         string   `name:"role" validate:"oneof=Administrator Worker"`
	Latitude     *float64 `name:"latitude" validate:"omitnil,gte=-90,lte=90"`
	Longitude    *float64 `name:"longitude" validate:"omitnil,gte=-180,lte=180"`
	MaxDistance  *float64 `name:"max_distance" validate:"omitnil,gt=0"`
	DistanceType string   `name:"distance_type" validate:"oneof=Air Walking Driving"`
}

// Validator is the single gate through which calls and volunteers are checked
// and geocoded.
type Validator struct {
	validate *validator.Validate
	geocoder geo.Geocoder
}

// New creates a Validator that resolves addresses with g
func New(g geo.Geocoder) *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("name")
	})
	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("nationalid", func(fl validator.FieldLevel) bool {
		return ValidNationalID(int(fl.Field().Int()))
	})
	_ = v.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
		return StrongPassword(fl.Field().String())
	})
	return &Validator{validate: v, geocoder: g}
}

// ValidateCall checks call and, on success, overwrites its coordinates with
// the geocoded address.
func (v *Validator) ValidateCall(ctx context.Context, call *model.Call) error {
	rules := callRules{
		Type:      string(call.Type),
		Address:   call.Address,
		Latitude:  call.Latitude,
		Longitude: call.Longitude,
	}
	if call.Description != nil {
		rules.Description = *call.Description
	}
	if err := v.check(rules); err != nil {
		return err
	}
	if call.MaxTime != nil && !call.OpenedAt.Before(*call.MaxTime) {
		return errs.Validation("max_time", "must be after the opening time %s", call.OpenedAt.Format("2006-01-02 15:04"))
	}

	coords, err := v.resolve(ctx, call.Address)
	if err != nil {
		return err
	}
	call.Latitude = coords.Latitude
	call.Longitude = coords.Longitude
	return nil
}

// ValidateVolunteer checks vol and, on success, geocodes its address and sets
// PasswordHash. A nil newPassword keeps oldHash; otherwise newPassword must
// meet the strength policy and is hashed.
func (v *Validator) ValidateVolunteer(ctx context.Context, vol *model.Volunteer, newPassword *string, oldHash string) error {
	rules := volunteerRules{
		ID:           vol.ID,
		Name:         strings.TrimSpace(vol.Name),
		Phone:        vol.Phone,
		Email:        vol.Email,
		Role:         string(vol.Role),
		Latitude:     vol.Latitude,
		Longitude:    vol.Longitude,
		MaxDistance:  vol.MaxDistance,
		DistanceType: string(vol.DistanceType),
	}
	if err := v.check(rules); err != nil {
		return err
	}

	hash := oldHash
	if newPassword != nil {
		if err := v.validate.Var(*newPassword, "strongpassword"); err != nil {
			return errs.Validation("password", "must be at least %d characters with upper and lower case letters, a digit and a symbol", MinPasswordLength)
		}
		var err error
		if hash, err = HashPassword(*newPassword); err != nil {
			return errs.Wrap(errs.ErrEngine, err, "password hashing failed")
		}
	}
	if hash == "" {
		return errs.Validation("password", "is required")
	}

	var lat, lon *float64
	if strings.TrimSpace(vol.Address) != "" {
		coords, err := v.resolve(ctx, vol.Address)
		if err != nil {
			return err
		}
		lat, lon = &coords.Latitude, &coords.Longitude
	}

	vol.PasswordHash = hash
	vol.Latitude = lat
	vol.Longitude = lon
	return nil
}

func (v *Validator) check(rules any) error {
	err := v.validate.Struct(rules)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return errs.Wrap(errs.ErrValidation, err, "invalid input")
	}
	fe := fieldErrs[0]
	return errs.Validation(fe.Field(), "%s", describe(fe))
}

func (v *Validator) resolve(ctx context.Context, address string) (geo.Coordinates, error) {
	coords, err := v.geocoder.Geocode(ctx, address)
	if errors.Is(err, geo.ErrNoMatch) {
		return geo.Coordinates{}, errs.Validation("address", "%q could not be resolved", address)
	}
	if err != nil {
		return geo.Coordinates{}, errs.Wrap(errs.ErrEngine, err, "geocoding %q", address)
	}
	return coords, nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "notblank":
		return "must not be blank"
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %q", fe.Param(), fmt.Sprint(fe.Value()))
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "gte", "lte":
		return fmt.Sprintf("%v is out of range", derefValue(fe.Value()))
	case "gt":
		return "must be positive"
	case "len", "number":
		return "must be exactly 10 digits"
	case "contains":
		return "must contain '@' and '.'"
	case "nationalid":
		return fmt.Sprintf("%v fails the national id checksum", fe.Value())
	}
	return fmt.Sprintf("failed %s rule", fe.Tag())
}

func derefValue(v any) any {
	if p, ok := v.(*float64); ok && p != nil {
		return *p
	}
	return v
}
