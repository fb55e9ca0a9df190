package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/volunteer-dispatch/pkg/core/errs"
	"github.com/jakechorley/volunteer-dispatch/pkg/core/model"
	"github.com/jakechorley/volunteer-dispatch/pkg/core/validation"
)

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.seedVolunteers(t)

	role, err := env.volunteers.Login(env.ctx, "admin", testPassword)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdministrator, role)

	role, err = env.volunteers.Login(env.ctx, " dana ", testPassword)
	require.NoError(t, err)
	assert.Equal(t, model.RoleWorker, role)

	_, err = env.volunteers.Login(env.ctx, "dana", "wrong")
	assertKind(t, err, errs.ErrInvalidValue)

	_, err = env.volunteers.Login(env.ctx, "nobody", testPassword)
	assertKind(t, err, errs.ErrNotFound)
}

func TestCreateVolunteer_HashesPasswordAndGeocodes(t *testing.T) {
	env := newTestEnv(t)

	env.createVolunteer(t, newVolunteer(workerID, "dana", model.RoleWorker, addrJaffa))

	stored, err := env.db.GetVolunteer(env.ctx, workerID)
	require.NoError(t, err)
	assert.NotEqual(t, testPassword, stored.PasswordHash)
	assert.True(t, validation.CheckPassword(stored.PasswordHash, testPassword))
	require.NotNil(t, stored.Latitude)
	assert.Equal(t, knownAddresses[addrJaffa].Latitude, *stored.Latitude)
}

func TestCreateVolunteer_Failures(t *testing.T) {
	env := newTestEnv(t)
	env.createVolunteer(t, newVolunteer(workerID, "dana", model.RoleWorker, addrJaffa))

	err := env.volunteers.CreateVolunteer(env.ctx, newVolunteer(workerID, "other", model.RoleWorker, addrJaffa), testPassword)
	assertKind(t, err, errs.ErrAlreadyExists)

	err = env.volunteers.CreateVolunteer(env.ctx, newVolunteer(19, "bad id", model.RoleWorker, addrJaffa), testPassword)
	assertKind(t, err, errs.ErrValidation)

	err = env.volunteers.CreateVolunteer(env.ctx, newVolunteer(otherWorkerID, "weak", model.RoleWorker, addrJaffa), "password")
	assertKind(t, err, errs.ErrValidation)

	volunteers, err := env.db.ListVolunteers(env.ctx, nil)
	require.NoError(t, err)
	require.Len(t, volunteers, 1)
	assert.Equal(t, "dana", volunteers[0].Name)
}

func TestGetVolunteerList_CountersAndCurrentCall(t *testing.T) {
	env := newTestEnv(t)
	env.seedVolunteers(t)

	handled := env.addCall(t, model.CallTypeTransport, addrJaffa, 0)
	a := env.assign(t, workerID, handled)
	require.NoError(t, env.calls.CloseCall(env.ctx, workerID, a))

	selfCancelled := env.addCall(t, model.CallTypeTransport, addrJaffa, 0)
	a = env.assign(t, workerID, selfCancelled)
	require.NoError(t, env.calls.CancelCall(env.ctx, workerID, a))

	adminCancelled := env.addCall(t, model.CallTypeTransport, addrJaffa, 0)
	a = env.assign(t, workerID, adminCancelled)
	require.NoError(t, env.calls.CancelCall(env.ctx, adminID, a))

	overdue := env.addCall(t, model.CallTypeTransport, addrJaffa, 30*time.Minute)
	env.assign(t, workerID, overdue)
	_, err := env.admin.AdvanceClock(env.ctx, "hour")
	require.NoError(t, err)

	current := env.addCall(t, model.CallTypePickUp, addrJaffa, 0)
	env.assign(t, workerID, current)

	rows, err := env.volunteers.GetVolunteerList(env.ctx, nil, nil)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []int{workerID, otherWorkerID, distantWorkerID, adminID}, volunteerIDs(rows))

	dana := rows[0]
	assert.Equal(t, model.VolunteerCounters{Handled: 1, Cancelled: 1, Expired: 1}, dana.Counters)
	require.NotNil(t, dana.CurrentCallID)
	assert.Equal(t, current, *dana.CurrentCallID)
	assert.Equal(t, model.CallTypePickUp, *dana.CurrentCallType)

	assert.Nil(t, rows[1].CurrentCallID)
	assert.Zero(t, rows[1].Counters)
}

func TestGetVolunteerList_ActiveFilterAndSort(t *testing.T) {
	env := newTestEnv(t)
	env.seedVolunteers(t)
	v, err := env.db.GetVolunteer(env.ctx, otherWorkerID)
	require.NoError(t, err)
	v.Active = false
	require.NoError(t, env.db.UpdateVolunteer(env.ctx, v))

	callID := env.addCall(t, model.CallTypeTransport, addrJaffa, 0)
	a := env.assign(t, distantWorkerID, callID)
	require.NoError(t, env.calls.CloseCall(env.ctx, distantWorkerID, a))

	inactive := false
	rows, err := env.volunteers.GetVolunteerList(env.ctx, &inactive, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{otherWorkerID}, volunteerIDs(rows))

	byName := model.VolunteerFieldName
	active := true
	rows, err = env.volunteers.GetVolunteerList(env.ctx, &active, &byName)
	require.NoError(t, err)
	assert.Equal(t, []string{"admin", "dana", "omer"}, volunteerNamesOf(rows))

	byHandled := model.VolunteerFieldHandled
	rows, err = env.volunteers.GetVolunteerList(env.ctx, &active, &byHandled)
	require.NoError(t, err)
	assert.Equal(t, distantWorkerID, rows[len(rows)-1].ID)

	bogus := model.VolunteerField("age")
	_, err = env.volunteers.GetVolunteerList(env.ctx, nil, &bogus)
	assertKind(t, err, errs.ErrValidation)
}

func TestGetVolunteerDetails(t *testing.T) {
	env := newTestEnv(t)
	env.seedVolunteers(t)
	callID := env.addCall(t, model.CallTypeTransport, addrJaffa, 0)
	assignmentID := env.assign(t, workerID, callID)

	details, err := env.volunteers.GetVolunteerDetails(env.ctx, workerID)
	require.NoError(t, err)
	assert.Equal(t, "dana", details.Volunteer.Name)
	require.NotNil(t, details.CurrentCall)
	assert.Equal(t, assignmentID, details.CurrentCall.AssignmentID)
	assert.Equal(t, callID, details.CurrentCall.CallID)
	assert.Equal(t, model.StatusInTreatment, details.CurrentCall.Status)
	assert.InDelta(t, 0.44, details.CurrentCall.DistanceKm, 0.05)

	details, err = env.volunteers.GetVolunteerDetails(env.ctx, otherWorkerID)
	require.NoError(t, err)
	assert.Nil(t, details.CurrentCall)

	_, err = env.volunteers.GetVolunteerDetails(env.ctx, 59)
	assertKind(t, err, errs.ErrNotFound)
}

func TestUpdateVolunteer_SelfKeepsPasswordWhenOmitted(t *testing.T) {
	env := newTestEnv(t)
	env.seedVolunteers(t)
	before, err := env.db.GetVolunteer(env.ctx, workerID)
	require.NoError(t, err)

	update := before
	update.Phone = "0549876543"
	update.Address = addrTelAviv
	update.PasswordHash = ""
	require.NoError(t, env.volunteers.UpdateVolunteer(env.ctx, workerID, update, nil))

	after, err := env.db.GetVolunteer(env.ctx, workerID)
	require.NoError(t, err)
	assert.Equal(t, "0549876543", after.Phone)
	assert.Equal(t, before.PasswordHash, after.PasswordHash)
	assert.Equal(t, knownAddresses[addrTelAviv].Latitude, *after.Latitude)

	_, err = env.volunteers.Login(env.ctx, "dana", testPassword)
	assert.NoError(t, err)
}

func TestUpdateVolunteer_NewPasswordIsHashed(t *testing.T) {
	env := newTestEnv(t)
	env.seedVolunteers(t)
	vol, err := env.db.GetVolunteer(env.ctx, workerID)
	require.NoError(t, err)

	require.NoError(t, env.volunteers.UpdateVolunteer(env.ctx, workerID, vol, ptr("N3w!password")))

	_, err = env.volunteers.Login(env.ctx, "dana", "N3w!password")
	assert.NoError(t, err)
	_, err = env.volunteers.Login(env.ctx, "dana", testPassword)
	assertKind(t, err, errs.ErrInvalidValue)
}

func TestUpdateVolunteer_Authorization(t *testing.T) {
	env := newTestEnv(t)
	env.seedVolunteers(t)
	dana, err := env.db.GetVolunteer(env.ctx, workerID)
	require.NoError(t, err)

	assertKind(t, env.volunteers.UpdateVolunteer(env.ctx, otherWorkerID, dana, nil), errs.ErrUnauthorized)
	assertKind(t, env.volunteers.UpdateVolunteer(env.ctx, 59, dana, nil), errs.ErrNotFound)

	promoted := dana
	promoted.Role = model.RoleAdministrator
	assertKind(t, env.volunteers.UpdateVolunteer(env.ctx, workerID, promoted, nil), errs.ErrUnauthorized)

	require.NoError(t, env.volunteers.UpdateVolunteer(env.ctx, adminID, promoted, nil))
	stored, err := env.db.GetVolunteer(env.ctx, workerID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdministrator, stored.Role)

	ghost := newVolunteer(59, "ghost", model.RoleWorker, addrJaffa)
	assertKind(t, env.volunteers.UpdateVolunteer(env.ctx, adminID, ghost, nil), errs.ErrNotFound)
}

func TestUpdateVolunteer_InvalidInputWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	env.seedVolunteers(t)
	dana, err := env.db.GetVolunteer(env.ctx, workerID)
	require.NoError(t, err)

	bad := dana
	bad.Phone = "12345"
	assertKind(t, env.volunteers.UpdateVolunteer(env.ctx, workerID, bad, nil), errs.ErrValidation)

	stored, err := env.db.GetVolunteer(env.ctx, workerID)
	require.NoError(t, err)
	assert.Equal(t, dana, stored)
}

func TestDeleteVolunteer(t *testing.T) {
	env := newTestEnv(t)
	env.seedVolunteers(t)
	callID := env.addCall(t, model.CallTypeTransport, addrJaffa, 0)
	a := env.assign(t, workerID, callID)
	require.NoError(t, env.calls.CloseCall(env.ctx, workerID, a))

	assertKind(t, env.volunteers.DeleteVolunteer(env.ctx, workerID), errs.ErrDeletionImpossible)
	require.NoError(t, env.volunteers.DeleteVolunteer(env.ctx, otherWorkerID))
	assertKind(t, env.volunteers.DeleteVolunteer(env.ctx, otherWorkerID), errs.ErrNotFound)

	_, err := env.volunteers.GetVolunteerDetails(env.ctx, otherWorkerID)
	assertKind(t, err, errs.ErrNotFound)
}

func TestCountersOf(t *testing.T) {
	end := func(e model.EndType) *model.EndType { return &e }
	assignments := []model.Assignment{
		{ID: 1, EndType: end(model.EndTypeCared)},
		{ID: 2, EndType: end(model.EndTypeCared)},
		{ID: 3, EndType: end(model.EndTypeSelfCancellation)},
		{ID: 4, EndType: end(model.EndTypeAdministratorCancellation)},
		{ID: 5, EndType: end(model.EndTypeExpiredCancellation)},
		{ID: 6},
	}

	assert.Equal(t, model.VolunteerCounters{Handled: 2, Cancelled: 1, Expired: 1}, countersOf(assignments))
}

func volunteerIDs(rows []model.VolunteerInList) []int {
	ids := make([]int, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	return ids
}

func volunteerNamesOf(rows []model.VolunteerInList) []string {
	names := make([]string, len(rows))
	for i, r := range rows {
		names[i] = r.Name
	}
	return names
}
