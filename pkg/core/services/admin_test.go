package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/volunteer-dispatch/pkg/clock"
	"github.com/jakechorley/volunteer-dispatch/pkg/core/errs"
	"github.com/jakechorley/volunteer-dispatch/pkg/core/model"
)

func TestAdvanceClock_ExpiresOverdueAssignments(t *testing.T) {
	env := newTestEnv(t)
	env.seedVolunteers(t)
	overdue := env.addCall(t, model.CallTypeTransport, addrJaffa, 45*time.Minute)
	overdueAssignment := env.assign(t, workerID, overdue)
	later := env.addCall(t, model.CallTypeTransport, addrJaffa, 3*time.Hour)
	env.assign(t, otherWorkerID, later)

	now, err := env.admin.AdvanceClock(env.ctx, clock.UnitHour)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(time.Hour), now)

	a, err := env.db.GetAssignment(env.ctx, overdueAssignment)
	require.NoError(t, err)
	require.NotNil(t, a.EndType)
	assert.Equal(t, model.EndTypeExpiredCancellation, *a.EndType)
	assert.Equal(t, t0.Add(time.Hour), *a.EndTime)

	assert.Equal(t, model.StatusExpired, env.status(t, overdue))
	assert.Equal(t, model.StatusInTreatment, env.status(t, later))
}

func TestTreatmentOverridesDeadlineWithoutSweep(t *testing.T) {
	env := newTestEnv(t)
	env.seedVolunteers(t)
	callID := env.addCall(t, model.CallTypeTransport, addrJaffa, 45*time.Minute)
	env.assign(t, workerID, callID)

	env.clock.SetClock(t0.Add(2 * time.Hour))

	assert.Equal(t, model.StatusInRiskTreatment, env.status(t, callID))
}

func TestExpireOverdueCalls_IgnoresUnassignedAndFinished(t *testing.T) {
	env := newTestEnv(t)
	env.seedVolunteers(t)
	unassigned := env.addCall(t, model.CallTypeTransport, addrJaffa, 10*time.Minute)
	closed := env.addCall(t, model.CallTypeTransport, addrJaffa, 10*time.Minute)
	a := env.assign(t, workerID, closed)
	require.NoError(t, env.calls.CloseCall(env.ctx, workerID, a))
	env.clock.SetClock(t0.Add(time.Hour))

	n, err := env.admin.ExpireOverdueCalls(env.ctx)
	require.NoError(t, err)

	assert.Zero(t, n)
	assert.Equal(t, model.StatusExpired, env.status(t, unassigned))
	assert.Equal(t, model.StatusClosed, env.status(t, closed))
}

func TestSetClock_RunsSweep(t *testing.T) {
	env := newTestEnv(t)
	env.seedVolunteers(t)
	callID := env.addCall(t, model.CallTypeTransport, addrJaffa, 10*time.Minute)
	env.assign(t, workerID, callID)

	require.NoError(t, env.admin.SetClock(env.ctx, t0.Add(time.Hour)))

	assert.Equal(t, t0.Add(time.Hour), env.admin.GetClock())
	assert.Equal(t, model.StatusExpired, env.status(t, callID))
}

func TestAdvanceClock_UnknownUnit(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.admin.AdvanceClock(env.ctx, clock.Unit("fortnight"))

	assertKind(t, err, errs.ErrValidation)
	assert.Equal(t, t0, env.admin.GetClock())
}

func TestSetRiskRange(t *testing.T) {
	env := newTestEnv(t)
	id := env.addCall(t, model.CallTypeTransport, addrJaffa, 2*time.Hour)

	require.NoError(t, env.admin.SetRiskRange(3*time.Hour))
	assert.Equal(t, 3*time.Hour, env.admin.GetRiskRange())
	assert.Equal(t, model.StatusOpenInRisk, env.status(t, id))

	assertKind(t, env.admin.SetRiskRange(-time.Minute), errs.ErrValidation)
	assert.Equal(t, 3*time.Hour, env.admin.GetRiskRange())
}

func TestResetConfig(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.admin.SetRiskRange(time.Minute))
	_, err := env.admin.AdvanceClock(env.ctx, clock.UnitYear)
	require.NoError(t, err)

	env.admin.ResetConfig()

	assert.Equal(t, t0, env.admin.GetClock())
	assert.Equal(t, 30*time.Minute, env.admin.GetRiskRange())
}

func TestResetDatabase(t *testing.T) {
	env := newTestEnv(t)
	env.seedVolunteers(t)
	callID := env.addCall(t, model.CallTypeTransport, addrJaffa, 0)
	env.assign(t, workerID, callID)

	require.NoError(t, env.admin.ResetDatabase(env.ctx))

	volunteers, err := env.db.ListVolunteers(env.ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, volunteers)
	calls, err := env.db.ListCalls(env.ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, calls)
	assignments, err := env.db.ListAssignments(env.ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, assignments)
}
