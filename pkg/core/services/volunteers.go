package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/jakechorley/volunteer-dispatch/pkg/core/errs"
	"github.com/jakechorley/volunteer-dispatch/pkg/core/model"
	"github.com/jakechorley/volunteer-dispatch/pkg/core/status"
	"github.com/jakechorley/volunteer-dispatch/pkg/core/validation"
	"github.com/jakechorley/volunteer-dispatch/pkg/db"
	"github.com/jakechorley/volunteer-dispatch/pkg/geo"
)

// VolunteerService is the volunteer engine: login, volunteer CRUD and the
// counters derived from assignment history.
type VolunteerService struct {
	engine
	validator VolunteerValidator
}

func NewVolunteerService(database db.Database, clk ClockReader, validator VolunteerValidator, logger *zap.Logger) *VolunteerService {
	return &VolunteerService{
		engine:    engine{db: database, clock: clk, logger: logger},
		validator: validator,
	}
}

// Login checks the password of the volunteer with the given name and returns their role
func (s *VolunteerService) Login(ctx context.Context, name, password string) (model.Role, error) {
	role, err := s.login(ctx, name, password)
	return role, s.finish("Login", err)
}

func (s *VolunteerService) login(ctx context.Context, name, password string) (model.Role, error) {
	name = strings.TrimSpace(name)
	vol, err := s.db.FindVolunteer(ctx, func(v model.Volunteer) bool { return v.Name == name })
	if err != nil {
		return "", storeErr(err, "volunteer %q", name)
	}
	if !validation.CheckPassword(vol.PasswordHash, password) {
		return "", errs.New(errs.ErrInvalidValue, "wrong password for volunteer %q", name)
	}

	s.logger.Info("Volunteer logged in", zap.Int("volunteer_id", vol.ID), zap.String("role", string(vol.Role)))
	return vol.Role, nil
}

// GetVolunteerList summarises every volunteer, optionally only those whose
// active flag equals isActive, sorted by sortBy (by id when nil).
func (s *VolunteerService) GetVolunteerList(ctx context.Context, isActive *bool, sortBy *model.VolunteerField) ([]model.VolunteerInList, error) {
	rows, err := s.volunteerList(ctx, isActive, sortBy)
	return rows, s.finish("GetVolunteerList", err)
}

func (s *VolunteerService) volunteerList(ctx context.Context, isActive *bool, sortBy *model.VolunteerField) ([]model.VolunteerInList, error) {
	volunteers, err := s.db.ListVolunteers(ctx, func(v model.Volunteer) bool {
		return isActive == nil || v.Active == *isActive
	})
	if err != nil {
		return nil, storeErr(err, "volunteers")
	}
	assignments, err := s.db.ListAssignments(ctx, nil)
	if err != nil {
		return nil, storeErr(err, "assignments")
	}
	calls, err := s.db.ListCalls(ctx, nil)
	if err != nil {
		return nil, storeErr(err, "calls")
	}
	callTypes := make(map[int]model.CallType, len(calls))
	for _, c := range calls {
		callTypes[c.ID] = c.Type
	}

	byVolunteer := make(map[int][]model.Assignment)
	for _, a := range assignments {
		byVolunteer[a.VolunteerID] = append(byVolunteer[a.VolunteerID], a)
	}

	rows := make([]model.VolunteerInList, 0, len(volunteers))
	for _, v := range volunteers {
		row := model.VolunteerInList{
			ID:       v.ID,
			Name:     v.Name,
			Active:   v.Active,
			Counters: countersOf(byVolunteer[v.ID]),
		}
		if current, ok := openAssignment(byVolunteer[v.ID]); ok {
			callID := current.CallID
			callType := callTypes[callID]
			row.CurrentCallID = &callID
			row.CurrentCallType = &callType
		}
		rows = append(rows, row)
	}

	if err := sortRows(rows, sortBy, volunteerComparator); err != nil {
		return nil, err
	}
	return rows, nil
}

// countersOf derives the handled, cancelled and expired counters from a volunteer's assignments
func countersOf(assignments []model.Assignment) model.VolunteerCounters {
	var c model.VolunteerCounters
	for _, a := range assignments {
		if a.EndType == nil {
			continue
		}
		switch *a.EndType {
		case model.EndTypeCared:
			c.Handled++
		case model.EndTypeAdministratorCancellation:
			c.Cancelled++
		case model.EndTypeExpiredCancellation:
			c.Expired++
		}
	}
	return c
}

// openAssignment returns the most recent assignment that has not ended
func openAssignment(assignments []model.Assignment) (model.Assignment, bool) {
	var open []model.Assignment
	for _, a := range assignments {
		if a.IsOpen() {
			open = append(open, a)
		}
	}
	return latestAssignment(open)
}

// CreateVolunteer validates vol, hashes password and stores it under its own id
func (s *VolunteerService) CreateVolunteer(ctx context.Context, vol model.Volunteer, password string) error {
	return s.finish("CreateVolunteer", s.createVolunteer(ctx, vol, password))
}

func (s *VolunteerService) createVolunteer(ctx context.Context, vol model.Volunteer, password string) error {
	if err := s.validator.ValidateVolunteer(ctx, &vol, &password, ""); err != nil {
		return err
	}

	err := s.db.InTx(ctx, func(tx db.Store) error {
		if _, err := tx.GetVolunteer(ctx, vol.ID); err == nil {
			return errs.New(errs.ErrAlreadyExists, "volunteer %d", vol.ID)
		}
		return storeErr(tx.CreateVolunteer(ctx, vol), "volunteer %d", vol.ID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Volunteer created",
		zap.Int("volunteer_id", vol.ID),
		zap.String("name", vol.Name),
		zap.String("role", string(vol.Role)))
	return nil
}

// GetVolunteerDetails returns a volunteer with counters and the call they are handling, if any
func (s *VolunteerService) GetVolunteerDetails(ctx context.Context, volunteerID int) (*model.VolunteerDetails, error) {
	details, err := s.volunteerDetails(ctx, volunteerID)
	return details, s.finish("GetVolunteerDetails", err)
}

func (s *VolunteerService) volunteerDetails(ctx context.Context, volunteerID int) (*model.VolunteerDetails, error) {
	vol, err := s.db.GetVolunteer(ctx, volunteerID)
	if err != nil {
		return nil, storeErr(err, "volunteer %d", volunteerID)
	}
	assignments, err := s.db.ListAssignments(ctx, assignmentsOfVolunteer(volunteerID))
	if err != nil {
		return nil, storeErr(err, "assignments of volunteer %d", volunteerID)
	}

	details := &model.VolunteerDetails{
		Volunteer: vol,
		Counters:  countersOf(assignments),
	}

	current, ok := openAssignment(assignments)
	if !ok {
		return details, nil
	}
	call, err := s.db.GetCall(ctx, current.CallID)
	if err != nil {
		return nil, storeErr(err, "call %d", current.CallID)
	}
	callAssignments, err := s.db.ListAssignments(ctx, assignmentsOfCall(call.ID))
	if err != nil {
		return nil, storeErr(err, "assignments of call %d", call.ID)
	}
	snap := s.clock.Snapshot()

	inProgress := &model.CallInProgress{
		AssignmentID: current.ID,
		CallID:       call.ID,
		Type:         call.Type,
		Description:  call.Description,
		Address:      call.Address,
		OpenedAt:     call.OpenedAt,
		MaxTime:      call.MaxTime,
		EntryTime:    current.EntryTime,
		Status:       status.Resolve(call, callAssignments, snap.Now, snap.RiskRange),
	}
	if vol.Latitude != nil && vol.Longitude != nil {
		inProgress.DistanceKm = geo.Haversine(
			geo.Coordinates{Latitude: *vol.Latitude, Longitude: *vol.Longitude},
			geo.Coordinates{Latitude: call.Latitude, Longitude: call.Longitude},
		)
	}
	details.CurrentCall = inProgress
	return details, nil
}

// UpdateVolunteer replaces a volunteer's record on behalf of requesterID, who
// must be that volunteer or an administrator. Only administrators may change
// roles. A nil newPassword keeps the stored password hash.
func (s *VolunteerService) UpdateVolunteer(ctx context.Context, requesterID int, vol model.Volunteer, newPassword *string) error {
	return s.finish("UpdateVolunteer", s.updateVolunteer(ctx, requesterID, vol, newPassword))
}

func (s *VolunteerService) updateVolunteer(ctx context.Context, requesterID int, vol model.Volunteer, newPassword *string) error {
	requester, err := s.db.GetVolunteer(ctx, requesterID)
	if err != nil {
		return storeErr(err, "requester %d", requesterID)
	}
	isAdmin := requester.Role == model.RoleAdministrator
	if requesterID != vol.ID && !isAdmin {
		return errs.Unauthorized("volunteer %d may not update volunteer %d", requesterID, vol.ID)
	}

	existing, err := s.db.GetVolunteer(ctx, vol.ID)
	if err != nil {
		return storeErr(err, "volunteer %d", vol.ID)
	}
	if vol.Role != existing.Role && !isAdmin {
		return errs.Unauthorized("only an administrator may change the role of volunteer %d", vol.ID)
	}

	if err := s.validator.ValidateVolunteer(ctx, &vol, newPassword, existing.PasswordHash); err != nil {
		return err
	}
	if err := s.db.UpdateVolunteer(ctx, vol); err != nil {
		return storeErr(err, "volunteer %d", vol.ID)
	}

	s.logger.Info("Volunteer updated",
		zap.Int("volunteer_id", vol.ID),
		zap.Int("requester_id", requesterID),
		zap.Bool("password_changed", newPassword != nil))
	return nil
}

// DeleteVolunteer removes a volunteer who has never been assigned a call
func (s *VolunteerService) DeleteVolunteer(ctx context.Context, volunteerID int) error {
	return s.finish("DeleteVolunteer", s.deleteVolunteer(ctx, volunteerID))
}

func (s *VolunteerService) deleteVolunteer(ctx context.Context, volunteerID int) error {
	err := s.db.InTx(ctx, func(tx db.Store) error {
		if _, err := tx.GetVolunteer(ctx, volunteerID); err != nil {
			return storeErr(err, "volunteer %d", volunteerID)
		}
		assignments, err := tx.ListAssignments(ctx, assignmentsOfVolunteer(volunteerID))
		if err != nil {
			return storeErr(err, "assignments of volunteer %d", volunteerID)
		}
		if len(assignments) > 0 {
			return errs.New(errs.ErrDeletionImpossible, "volunteer %d is referenced by %d assignment(s)", volunteerID, len(assignments))
		}
		return storeErr(tx.DeleteVolunteer(ctx, volunteerID), "volunteer %d", volunteerID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Volunteer deleted", zap.Int("volunteer_id", volunteerID))
	return nil
}
