package services

import (
	"context"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/volunteer-dispatch/pkg/core/errs"
	"github.com/jakechorley/volunteer-dispatch/pkg/core/model"
	"github.com/jakechorley/volunteer-dispatch/pkg/core/status"
	"github.com/jakechorley/volunteer-dispatch/pkg/db"
	"github.com/jakechorley/volunteer-dispatch/pkg/geo"
	"github.com/jakechorley/volunteer-dispatch/pkg/metrics"
)

// CallService is the call engine: call CRUD, status-derived listings and the
// assignment lifecycle.
type CallService struct {
	engine
	validator CallValidator
	geocoder  geo.Geocoder
	notifier  *Notifier
}

// NewCallService creates the call engine. notifier may be nil.
func NewCallService(database db.Database, clk ClockReader, validator CallValidator, geocoder geo.Geocoder, notifier *Notifier, logger *zap.Logger) *CallService {
	return &CallService{
		engine:    engine{db: database, clock: clk, logger: logger},
		validator: validator,
		geocoder:  geocoder,
		notifier:  notifier,
	}
}

// DetermineStatus derives the current status of a call
func (s *CallService) DetermineStatus(ctx context.Context, callID int) (model.Status, error) {
	st, err := s.determineStatus(ctx, s.db, callID)
	return st, s.finish("DetermineStatus", err)
}

func (s *CallService) determineStatus(ctx context.Context, store db.Store, callID int) (model.Status, error) {
	call, err := store.GetCall(ctx, callID)
	if err != nil {
		return 0, storeErr(err, "call %d", callID)
	}
	assignments, err := store.ListAssignments(ctx, assignmentsOfCall(callID))
	if err != nil {
		return 0, storeErr(err, "assignments of call %d", callID)
	}
	snap := s.clock.Snapshot()
	return status.Resolve(call, assignments, snap.Now, snap.RiskRange), nil
}

// GetCallCountsByStatus returns the number of calls in every status, ordered by status code
func (s *CallService) GetCallCountsByStatus(ctx context.Context) ([]model.StatusCount, error) {
	counts, err := s.callCountsByStatus(ctx)
	if err == nil {
		metrics.SetStatusCounts(counts)
	}
	return counts, s.finish("GetCallCountsByStatus", err)
}

func (s *CallService) callCountsByStatus(ctx context.Context) ([]model.StatusCount, error) {
	calls, byCall, err := s.loadCalls(ctx)
	if err != nil {
		return nil, err
	}
	snap := s.clock.Snapshot()

	tally := make(map[model.Status]int)
	for _, c := range calls {
		tally[status.Resolve(c, byCall[c.ID], snap.Now, snap.RiskRange)]++
	}

	counts := make([]model.StatusCount, 0, len(model.AllStatuses))
	for _, st := range model.AllStatuses {
		counts = append(counts, model.StatusCount{Status: st, Count: tally[st]})
	}
	return counts, nil
}

// GetCallList projects every call into a summary row, optionally keeps only the
// rows matching filter, and sorts by sortBy (by id when nil).
func (s *CallService) GetCallList(ctx context.Context, filter *CallFilter, sortBy *model.CallField) ([]model.CallInList, error) {
	rows, err := s.callList(ctx, filter, sortBy)
	return rows, s.finish("GetCallList", err)
}

func (s *CallService) callList(ctx context.Context, filter *CallFilter, sortBy *model.CallField) ([]model.CallInList, error) {
	var match func(model.CallInList) bool
	if filter != nil {
		var err error
		if match, err = callMatcher(*filter); err != nil {
			return nil, err
		}
	}

	calls, byCall, err := s.loadCalls(ctx)
	if err != nil {
		return nil, err
	}
	names, err := volunteerNames(ctx, s.db)
	if err != nil {
		return nil, storeErr(err, "volunteers")
	}
	snap := s.clock.Snapshot()

	rows := make([]model.CallInList, 0, len(calls))
	for _, c := range calls {
		row := summarizeCall(c, byCall[c.ID], names, snap.Now, snap.RiskRange)
		if match == nil || match(row) {
			rows = append(rows, row)
		}
	}

	if err := sortRows(rows, sortBy, callComparator); err != nil {
		return nil, err
	}
	s.logger.Debug("Built call list", zap.Int("rows", len(rows)), zap.Int("calls", len(calls)))
	return rows, nil
}

func summarizeCall(c model.Call, assignments []model.Assignment, names map[int]string, now time.Time, riskRange time.Duration) model.CallInList {
	st := status.Resolve(c, assignments, now, riskRange)
	row := model.CallInList{
		CallID:          c.ID,
		Type:            c.Type,
		Address:         c.Address,
		OpenedAt:        c.OpenedAt,
		Status:          st,
		AssignmentCount: len(assignments),
	}
	if c.MaxTime != nil {
		remaining := c.MaxTime.Sub(now)
		row.RemainingTime = &remaining
	}
	if last, ok := latestAssignment(assignments); ok {
		id := last.ID
		row.LastAssignmentID = &id
		row.LastVolunteerName = names[last.VolunteerID]
		if st == model.StatusClosed && last.EndTime != nil {
			treatment := last.EndTime.Sub(c.OpenedAt)
			row.TreatmentTime = &treatment
		}
	}
	return row
}

// latestAssignment returns the assignment with the greatest entry time regardless of the clock
func latestAssignment(assignments []model.Assignment) (model.Assignment, bool) {
	if len(assignments) == 0 {
		return model.Assignment{}, false
	}
	sorted := slices.Clone(assignments)
	status.SortByEntryTime(sorted)
	return sorted[len(sorted)-1], true
}

// GetCallDetails returns a call with its status and assignment history
func (s *CallService) GetCallDetails(ctx context.Context, callID int) (*model.CallDetails, error) {
	details, err := s.callDetails(ctx, callID)
	return details, s.finish("GetCallDetails", err)
}

func (s *CallService) callDetails(ctx context.Context, callID int) (*model.CallDetails, error) {
	call, err := s.db.GetCall(ctx, callID)
	if err != nil {
		return nil, storeErr(err, "call %d", callID)
	}
	assignments, err := s.db.ListAssignments(ctx, assignmentsOfCall(callID))
	if err != nil {
		return nil, storeErr(err, "assignments of call %d", callID)
	}
	names, err := volunteerNames(ctx, s.db)
	if err != nil {
		return nil, storeErr(err, "volunteers")
	}
	snap := s.clock.Snapshot()

	status.SortByEntryTime(assignments)
	history := make([]model.AssignmentInCall, 0, len(assignments))
	for _, a := range assignments {
		history = append(history, model.AssignmentInCall{
			AssignmentID:  a.ID,
			VolunteerID:   a.VolunteerID,
			VolunteerName: names[a.VolunteerID],
			EntryTime:     a.EntryTime,
			EndTime:       a.EndTime,
			EndType:       a.EndType,
		})
	}

	return &model.CallDetails{
		Call:        call,
		Status:      status.Resolve(call, assignments, snap.Now, snap.RiskRange),
		Assignments: history,
	}, nil
}

// AddCall opens a call at the current clock, geocodes it and stores it.
// Active volunteers whose range covers the call are notified.
func (s *CallService) AddCall(ctx context.Context, call model.Call) (int, error) {
	id, err := s.addCall(ctx, call)
	return id, s.finish("AddCall", err)
}

func (s *CallService) addCall(ctx context.Context, call model.Call) (int, error) {
	call.ID = 0
	call.OpenedAt = s.clock.Snapshot().Now
	if err := s.validator.ValidateCall(ctx, &call); err != nil {
		return 0, err
	}

	id, err := s.db.CreateCall(ctx, call)
	if err != nil {
		return 0, storeErr(err, "creating call")
	}
	call.ID = id
	s.logger.Info("Call added",
		zap.Int("call_id", id),
		zap.String("type", string(call.Type)),
		zap.String("address", call.Address))

	if s.notifier != nil {
		volunteers, err := s.db.ListVolunteers(ctx, func(v model.Volunteer) bool { return v.Active })
		if err != nil {
			s.logger.Warn("Skipping new call notifications", zap.Int("call_id", id), zap.Error(err))
		} else {
			s.notifier.NewCallAvailable(call, volunteers)
		}
	}
	return id, nil
}

// UpdateCall overwrites the mutable fields of a call that is not yet closed or expired.
// The opening time is kept from the stored call.
func (s *CallService) UpdateCall(ctx context.Context, call model.Call) error {
	return s.finish("UpdateCall", s.updateCall(ctx, call))
}

func (s *CallService) updateCall(ctx context.Context, call model.Call) error {
	existing, err := s.db.GetCall(ctx, call.ID)
	if err != nil {
		return storeErr(err, "call %d", call.ID)
	}
	call.OpenedAt = existing.OpenedAt
	if err := s.validator.ValidateCall(ctx, &call); err != nil {
		return err
	}

	err = s.db.InTx(ctx, func(tx db.Store) error {
		st, err := s.determineStatus(ctx, tx, call.ID)
		if err != nil {
			return err
		}
		if st == model.StatusClosed || st == model.StatusExpired {
			return errs.Logic("call %d is %s and can no longer be edited", call.ID, st)
		}
		return storeErr(tx.UpdateCall(ctx, call), "call %d", call.ID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Call updated", zap.Int("call_id", call.ID))
	return nil
}

// DeleteCall removes a call that has never been assigned and is still Open
func (s *CallService) DeleteCall(ctx context.Context, callID int) error {
	return s.finish("DeleteCall", s.deleteCall(ctx, callID))
}

func (s *CallService) deleteCall(ctx context.Context, callID int) error {
	err := s.db.InTx(ctx, func(tx db.Store) error {
		call, err := tx.GetCall(ctx, callID)
		if err != nil {
			return storeErr(err, "call %d", callID)
		}
		assignments, err := tx.ListAssignments(ctx, assignmentsOfCall(callID))
		if err != nil {
			return storeErr(err, "assignments of call %d", callID)
		}
		if len(assignments) > 0 {
			return errs.New(errs.ErrDeletionImpossible, "call %d has %d assignment(s)", callID, len(assignments))
		}
		snap := s.clock.Snapshot()
		if st := status.Resolve(call, nil, snap.Now, snap.RiskRange); st != model.StatusOpen {
			return errs.New(errs.ErrDeletionImpossible, "call %d is %s, only Open calls can be deleted", callID, st)
		}
		return storeErr(tx.DeleteCall(ctx, callID), "call %d", callID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Call deleted", zap.Int("call_id", callID))
	return nil
}

// GetClosedCallsByVolunteer lists the finished assignments of a volunteer,
// optionally only for calls of callType, sorted by sortBy (by call id when nil).
func (s *CallService) GetClosedCallsByVolunteer(ctx context.Context, volunteerID int, callType *model.CallType, sortBy *model.ClosedCallField) ([]model.ClosedCallInList, error) {
	rows, err := s.closedCallsByVolunteer(ctx, volunteerID, callType, sortBy)
	return rows, s.finish("GetClosedCallsByVolunteer", err)
}

func (s *CallService) closedCallsByVolunteer(ctx context.Context, volunteerID int, callType *model.CallType, sortBy *model.ClosedCallField) ([]model.ClosedCallInList, error) {
	assignments, err := s.db.ListAssignments(ctx, func(a model.Assignment) bool {
		return a.VolunteerID == volunteerID && a.EndType != nil
	})
	if err != nil {
		return nil, storeErr(err, "assignments of volunteer %d", volunteerID)
	}

	rows := make([]model.ClosedCallInList, 0, len(assignments))
	for _, a := range assignments {
		call, err := s.db.GetCall(ctx, a.CallID)
		if err != nil {
			return nil, storeErr(err, "call %d of assignment %d", a.CallID, a.ID)
		}
		if callType != nil && call.Type != *callType {
			continue
		}
		rows = append(rows, model.ClosedCallInList{
			CallID:    call.ID,
			Type:      call.Type,
			Address:   call.Address,
			OpenedAt:  call.OpenedAt,
			EntryTime: a.EntryTime,
			EndTime:   a.EndTime,
			EndType:   *a.EndType,
		})
	}

	idOrder := model.ClosedCallFieldID
	if sortBy == nil {
		sortBy = &idOrder
	}
	if err := sortRows(rows, sortBy, closedCallComparator); err != nil {
		return nil, err
	}
	return rows, nil
}

// GetOpenCallsForVolunteer lists the calls a volunteer may take, each with its
// great-circle distance from the volunteer's address.
func (s *CallService) GetOpenCallsForVolunteer(ctx context.Context, volunteerID int, callType *model.CallType, sortBy *model.OpenCallField) ([]model.OpenCallInList, error) {
	rows, err := s.openCallsForVolunteer(ctx, volunteerID, callType, sortBy)
	return rows, s.finish("GetOpenCallsForVolunteer", err)
}

func (s *CallService) openCallsForVolunteer(ctx context.Context, volunteerID int, callType *model.CallType, sortBy *model.OpenCallField) ([]model.OpenCallInList, error) {
	vol, err := s.db.GetVolunteer(ctx, volunteerID)
	if err != nil {
		return nil, storeErr(err, "volunteer %d", volunteerID)
	}
	origin, err := s.volunteerLocation(ctx, vol)
	if err != nil {
		return nil, err
	}

	calls, byCall, err := s.loadCalls(ctx)
	if err != nil {
		return nil, err
	}
	snap := s.clock.Snapshot()

	var rows []model.OpenCallInList
	for _, c := range calls {
		if callType != nil && c.Type != *callType {
			continue
		}
		st := status.Resolve(c, byCall[c.ID], snap.Now, snap.RiskRange)
		if !st.IsOpenForAssignment() {
			continue
		}
		distance := geo.Haversine(origin, geo.Coordinates{Latitude: c.Latitude, Longitude: c.Longitude})
		rows = append(rows, model.OpenCallInList{
			CallID:            c.ID,
			Type:              c.Type,
			Description:       c.Description,
			Address:           c.Address,
			OpenedAt:          c.OpenedAt,
			MaxTime:           c.MaxTime,
			Status:            st,
			DistanceKm:        distance,
			WithinMaxDistance: vol.MaxDistance == nil || distance <= *vol.MaxDistance,
		})
	}

	if err := sortRows(rows, sortBy, openCallComparator); err != nil {
		return nil, err
	}
	return rows, nil
}

// volunteerLocation returns the stored coordinates of vol, geocoding its address
// when none are stored.
func (s *CallService) volunteerLocation(ctx context.Context, vol model.Volunteer) (geo.Coordinates, error) {
	if vol.Latitude != nil && vol.Longitude != nil {
		return geo.Coordinates{Latitude: *vol.Latitude, Longitude: *vol.Longitude}, nil
	}
	if vol.Address == "" {
		return geo.Coordinates{}, errs.Logic("volunteer %d has no address to measure distance from", vol.ID)
	}
	coords, err := s.geocoder.Geocode(ctx, vol.Address)
	if err != nil {
		return geo.Coordinates{}, errs.Wrap(errs.ErrEngine, err, "geocoding address of volunteer %d", vol.ID)
	}
	return coords, nil
}

// AssignCallToVolunteer records that a volunteer took a call at the current clock.
// The call must be open for assignment and have no open assignment, and the
// volunteer must be active and not already handling another call.
func (s *CallService) AssignCallToVolunteer(ctx context.Context, volunteerID, callID int) (int, error) {
	id, err := s.assignCall(ctx, volunteerID, callID)
	return id, s.finish("AssignCallToVolunteer", err)
}

func (s *CallService) assignCall(ctx context.Context, volunteerID, callID int) (int, error) {
	var assignmentID int
	err := s.db.InTx(ctx, func(tx db.Store) error {
		call, err := tx.GetCall(ctx, callID)
		if err != nil {
			return storeErr(err, "call %d", callID)
		}
		vol, err := tx.GetVolunteer(ctx, volunteerID)
		if err != nil {
			return storeErr(err, "volunteer %d", volunteerID)
		}
		if !vol.Active {
			return errs.Logic("volunteer %d is not active", volunteerID)
		}

		assignments, err := tx.ListAssignments(ctx, assignmentsOfCall(callID))
		if err != nil {
			return storeErr(err, "assignments of call %d", callID)
		}
		for _, a := range assignments {
			if a.IsOpen() {
				return errs.Logic("call %d already has open assignment %d", callID, a.ID)
			}
		}

		snap := s.clock.Snapshot()
		if st := status.Resolve(call, assignments, snap.Now, snap.RiskRange); !st.IsOpenForAssignment() {
			return errs.Logic("call %d is %s and cannot be assigned", callID, st)
		}

		busy, err := tx.ListAssignments(ctx, func(a model.Assignment) bool {
			return a.VolunteerID == volunteerID && a.IsOpen()
		})
		if err != nil {
			return storeErr(err, "assignments of volunteer %d", volunteerID)
		}
		if len(busy) > 0 {
			return errs.Logic("volunteer %d is already handling call %d", volunteerID, busy[0].CallID)
		}

		assignmentID, err = tx.CreateAssignment(ctx, model.Assignment{
			CallID:      callID,
			VolunteerID: volunteerID,
			EntryTime:   snap.Now,
		})
		return storeErr(err, "creating assignment for call %d", callID)
	})
	if err != nil {
		return 0, err
	}

	metrics.AssignmentsOpenedTotal.Inc()
	s.logger.Info("Call assigned",
		zap.Int("call_id", callID),
		zap.Int("volunteer_id", volunteerID),
		zap.Int("assignment_id", assignmentID))
	return assignmentID, nil
}

// CloseCall marks an assignment as handled. Only the assigned volunteer may close it.
func (s *CallService) CloseCall(ctx context.Context, volunteerID, assignmentID int) error {
	return s.finish("CloseCall", s.closeCall(ctx, volunteerID, assignmentID))
}

func (s *CallService) closeCall(ctx context.Context, volunteerID, assignmentID int) error {
	err := s.db.InTx(ctx, func(tx db.Store) error {
		a, err := tx.GetAssignment(ctx, assignmentID)
		if err != nil {
			return storeErr(err, "assignment %d", assignmentID)
		}
		if a.VolunteerID != volunteerID {
			return errs.Unauthorized("volunteer %d is not assigned to assignment %d", volunteerID, assignmentID)
		}
		if !a.IsOpen() {
			return errs.Logic("assignment %d is already closed", assignmentID)
		}
		return endAssignment(ctx, tx, a, s.clock.Snapshot().Now, model.EndTypeCared)
	})
	if err != nil {
		return err
	}

	metrics.RecordAssignmentEnded(model.EndTypeCared)
	s.logger.Info("Call closed",
		zap.Int("assignment_id", assignmentID),
		zap.Int("volunteer_id", volunteerID))
	return nil
}

// CancelCall ends an open assignment. The assigned volunteer cancels it for
// themselves; an administrator may cancel anyone's, and the volunteer is notified.
func (s *CallService) CancelCall(ctx context.Context, requesterID, assignmentID int) error {
	return s.finish("CancelCall", s.cancelCall(ctx, requesterID, assignmentID))
}

func (s *CallService) cancelCall(ctx context.Context, requesterID, assignmentID int) error {
	var cancelled model.Assignment
	var endType model.EndType
	err := s.db.InTx(ctx, func(tx db.Store) error {
		a, err := tx.GetAssignment(ctx, assignmentID)
		if err != nil {
			return storeErr(err, "assignment %d", assignmentID)
		}
		if !a.IsOpen() {
			return errs.Logic("assignment %d is already closed", assignmentID)
		}

		endType = model.EndTypeSelfCancellation
		if requesterID != a.VolunteerID {
			requester, err := tx.GetVolunteer(ctx, requesterID)
			if err != nil {
				return storeErr(err, "requester %d", requesterID)
			}
			if requester.Role != model.RoleAdministrator {
				return errs.Unauthorized("volunteer %d may not cancel assignment %d", requesterID, assignmentID)
			}
			endType = model.EndTypeAdministratorCancellation
		}

		cancelled = a
		return endAssignment(ctx, tx, a, s.clock.Snapshot().Now, endType)
	})
	if err != nil {
		return err
	}

	metrics.RecordAssignmentEnded(endType)
	s.logger.Info("Assignment cancelled",
		zap.Int("assignment_id", assignmentID),
		zap.Int("requester_id", requesterID),
		zap.String("end_type", string(endType)))

	if endType == model.EndTypeAdministratorCancellation && s.notifier != nil {
		s.notifyCancellation(ctx, cancelled)
	}
	return nil
}

func (s *CallService) notifyCancellation(ctx context.Context, a model.Assignment) {
	vol, err := s.db.GetVolunteer(ctx, a.VolunteerID)
	if err != nil {
		s.logger.Warn("Skipping cancellation notice", zap.Int("assignment_id", a.ID), zap.Error(err))
		return
	}
	call, err := s.db.GetCall(ctx, a.CallID)
	if err != nil {
		s.logger.Warn("Skipping cancellation notice", zap.Int("assignment_id", a.ID), zap.Error(err))
		return
	}
	if err := s.notifier.AssignmentCancelled(vol, call); err != nil {
		s.logger.Warn("Failed to send cancellation notice", zap.Int("assignment_id", a.ID), zap.Error(err))
	}
}

func endAssignment(ctx context.Context, tx db.Store, a model.Assignment, now time.Time, endType model.EndType) error {
	a.EndTime = &now
	a.EndType = &endType
	return storeErr(tx.UpdateAssignment(ctx, a), "assignment %d", a.ID)
}

// loadCalls reads every call and its assignments, grouped by call id, from one snapshot
func (s *CallService) loadCalls(ctx context.Context) ([]model.Call, map[int][]model.Assignment, error) {
	var calls []model.Call
	var assignments []model.Assignment
	err := s.db.View(ctx, func(tx db.Store) error {
		var err error
		if calls, err = tx.ListCalls(ctx, nil); err != nil {
			return storeErr(err, "calls")
		}
		if assignments, err = tx.ListAssignments(ctx, nil); err != nil {
			return storeErr(err, "assignments")
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return calls, groupByCall(assignments), nil
}
