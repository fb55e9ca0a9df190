package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/volunteer-dispatch/pkg/clock"
	"github.com/jakechorley/volunteer-dispatch/pkg/core/errs"
	"github.com/jakechorley/volunteer-dispatch/pkg/core/model"
	"github.com/jakechorley/volunteer-dispatch/pkg/db"
	"github.com/jakechorley/volunteer-dispatch/pkg/metrics"
)

// ClockReader supplies a consistent view of the simulated clock and risk window
type ClockReader interface {
	Snapshot() clock.Snapshot
}

// CallValidator checks a call and geocodes its address
type CallValidator interface {
	ValidateCall(ctx context.Context, call *model.Call) error
}

// VolunteerValidator checks a volunteer, hashes a new password and geocodes its address
type VolunteerValidator interface {
	ValidateVolunteer(ctx context.Context, vol *model.Volunteer, newPassword *string, oldHash string) error
}

// engine holds what every service needs
type engine struct {
	db     db.Database
	clock  ClockReader
	logger *zap.Logger
}

// finish maps err to an engine error, records the outcome and logs failures
func (e *engine) finish(operation string, err error) error {
	err = errs.Engine(err, "%s failed", operation)
	metrics.RecordOperation(operation, errs.KindName(err))
	if err != nil {
		e.logger.Debug("Operation failed", zap.String("operation", operation), zap.Error(err))
	}
	return err
}

// storeErr gives store failures the matching engine kind
func storeErr(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	if errs.IsKnown(err) {
		return err
	}
	switch {
	case errors.Is(err, db.ErrNotFound):
		return errs.Wrap(errs.ErrNotFound, err, format, args...)
	case errors.Is(err, db.ErrAlreadyExists):
		return errs.Wrap(errs.ErrAlreadyExists, err, format, args...)
	}
	return errs.Wrap(errs.ErrEngine, err, format, args...)
}

func assignmentsOfCall(callID int) func(model.Assignment) bool {
	return func(a model.Assignment) bool { return a.CallID == callID }
}

func assignmentsOfVolunteer(volunteerID int) func(model.Assignment) bool {
	return func(a model.Assignment) bool { return a.VolunteerID == volunteerID }
}

// groupByCall indexes assignments by call id
func groupByCall(assignments []model.Assignment) map[int][]model.Assignment {
	byCall := make(map[int][]model.Assignment)
	for _, a := range assignments {
		byCall[a.CallID] = append(byCall[a.CallID], a)
	}
	return byCall
}

// volunteerNames returns a lookup of volunteer names by id
func volunteerNames(ctx context.Context, store db.VolunteerStore) (map[int]string, error) {
	volunteers, err := store.ListVolunteers(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list volunteers: %w", err)
	}
	names := make(map[int]string, len(volunteers))
	for _, v := range volunteers {
		names[v.ID] = v.Name
	}
	return names, nil
}
