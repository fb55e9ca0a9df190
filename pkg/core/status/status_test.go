package status

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jakechorley/volunteer-dispatch/pkg/core/model"
)

var t0 = time.Date(2025, 1, 5, 8, 0, 0, 0, time.UTC)

func ptrTime(t time.Time) *time.Time { return &t }

func ptrEnd(e model.EndType) *model.EndType { return &e }

func callWithDeadline(d time.Duration) model.Call {
	return model.Call{ID: 1, OpenedAt: t0, MaxTime: ptrTime(t0.Add(d))}
}

func TestResolve_NoAssignmentsNoDeadlineIsOpen(t *testing.T) {
	call := model.Call{ID: 1, OpenedAt: t0}

	for _, now := range []time.Time{t0, t0.Add(time.Hour), t0.AddDate(1, 0, 0)} {
		assert.Equal(t, model.StatusOpen, Resolve(call, nil, now, 30*time.Minute))
	}
}

func TestResolve_OpenInRiskThenExpired(t *testing.T) {
	call := callWithDeadline(60 * time.Minute)
	risk := 30 * time.Minute

	assert.Equal(t, model.StatusOpen, Resolve(call, nil, t0.Add(10*time.Minute), risk))
	assert.Equal(t, model.StatusOpenInRisk, Resolve(call, nil, t0.Add(35*time.Minute), risk))
	assert.Equal(t, model.StatusOpenInRisk, Resolve(call, nil, t0.Add(30*time.Minute), risk), "boundary is inclusive")
	assert.Equal(t, model.StatusExpired, Resolve(call, nil, t0.Add(60*time.Minute), risk), "deadline equal to now is expired")
	assert.Equal(t, model.StatusExpired, Resolve(call, nil, t0.Add(61*time.Minute), risk))
}

func TestResolve_OpenAssignment(t *testing.T) {
	call := callWithDeadline(2 * time.Hour)
	assignments := []model.Assignment{
		{ID: 1, CallID: 1, VolunteerID: 9, EntryTime: t0.Add(5 * time.Minute)},
	}

	assert.Equal(t, model.StatusInTreatment, Resolve(call, assignments, t0.Add(10*time.Minute), 30*time.Minute))
	assert.Equal(t, model.StatusInRiskTreatment, Resolve(call, assignments, t0.Add(100*time.Minute), 30*time.Minute))
}

func TestResolve_TreatmentTakesPrecedenceOverDeadline(t *testing.T) {
	call := callWithDeadline(time.Hour)
	assignments := []model.Assignment{
		{ID: 1, CallID: 1, VolunteerID: 9, EntryTime: t0.Add(5 * time.Minute)},
	}

	got := Resolve(call, assignments, t0.Add(3*time.Hour), 30*time.Minute)

	assert.Equal(t, model.StatusInRiskTreatment, got)
}

func TestResolve_ClosedAssignments(t *testing.T) {
	call := callWithDeadline(time.Hour)
	now := t0.Add(20 * time.Minute)

	for _, end := range []model.EndType{
		model.EndTypeCared,
		model.EndTypeSelfCancellation,
		model.EndTypeAdministratorCancellation,
	} {
		assignments := []model.Assignment{
			{ID: 1, CallID: 1, EntryTime: t0, EndTime: ptrTime(t0.Add(10 * time.Minute)), EndType: ptrEnd(end)},
		}
		assert.Equal(t, model.StatusClosed, Resolve(call, assignments, now, 30*time.Minute), "end type %s", end)
	}

	expired := []model.Assignment{
		{ID: 1, CallID: 1, EntryTime: t0, EndTime: ptrTime(t0.Add(time.Hour)), EndType: ptrEnd(model.EndTypeExpiredCancellation)},
	}
	assert.Equal(t, model.StatusExpired, Resolve(call, expired, now, 30*time.Minute))
}

func TestResolve_UsesLatestAssignment(t *testing.T) {
	call := model.Call{ID: 1, OpenedAt: t0}
	assignments := []model.Assignment{
		{ID: 2, CallID: 1, EntryTime: t0.Add(20 * time.Minute)},
		{ID: 1, CallID: 1, EntryTime: t0, EndTime: ptrTime(t0.Add(10 * time.Minute)), EndType: ptrEnd(model.EndTypeSelfCancellation)},
	}

	assert.Equal(t, model.StatusInTreatment, Resolve(call, assignments, t0.Add(30*time.Minute), time.Minute))
}

func TestResolve_FutureAssignmentIsIgnored(t *testing.T) {
	call := callWithDeadline(time.Hour)
	assignments := []model.Assignment{
		{ID: 1, CallID: 1, EntryTime: t0.Add(50 * time.Minute)},
	}

	assert.Equal(t, model.StatusOpen, Resolve(call, assignments, t0.Add(10*time.Minute), 30*time.Minute))
	assert.Equal(t, model.StatusOpenInRisk, Resolve(call, assignments, t0.Add(40*time.Minute), 30*time.Minute))
}

func TestLatestStarted_TieBreaksOnID(t *testing.T) {
	assignments := []model.Assignment{
		{ID: 4, EntryTime: t0},
		{ID: 7, EntryTime: t0},
		{ID: 5, EntryTime: t0},
	}

	latest, ok := LatestStarted(assignments, t0)

	assert.True(t, ok)
	assert.Equal(t, 7, latest.ID)
}

func TestSortByEntryTime(t *testing.T) {
	assignments := []model.Assignment{
		{ID: 3, EntryTime: t0.Add(time.Hour)},
		{ID: 2, EntryTime: t0},
		{ID: 1, EntryTime: t0},
	}

	SortByEntryTime(assignments)

	assert.Equal(t, []int{1, 2, 3}, []int{assignments[0].ID, assignments[1].ID, assignments[2].ID})
}
