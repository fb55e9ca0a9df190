// Package status derives a call's lifecycle state. Status is never stored: it is
// recomputed from the call, its assignments and the clock on every query.
package status

import (
	"sort"
	"time"

	"github.com/jakechorley/volunteer-dispatch/pkg/core/model"
)

// Resolve returns the status of call at time now given its assignments and the risk window.
// Assignments whose entry time is after now have not started and are ignored.
func Resolve(call model.Call, assignments []model.Assignment, now time.Time, riskRange time.Duration) model.Status {
	latest, ok := LatestStarted(assignments, now)

	if ok && latest.EndTime == nil && latest.EndType == nil {
		if call.MaxTime != nil && call.MaxTime.Sub(now) <= riskRange {
			return model.StatusInRiskTreatment
		}
		return model.StatusInTreatment
	}

	if ok && latest.EndType != nil {
		if *latest.EndType == model.EndTypeExpiredCancellation {
			return model.StatusExpired
		}
		return model.StatusClosed
	}

	if call.MaxTime != nil {
		if !call.MaxTime.After(now) {
			return model.StatusExpired
		}
		if call.MaxTime.Sub(now) <= riskRange {
			return model.StatusOpenInRisk
		}
	}
	return model.StatusOpen
}

// LatestStarted returns the assignment with the greatest entry time not after now
func LatestStarted(assignments []model.Assignment, now time.Time) (model.Assignment, bool) {
	var latest model.Assignment
	found := false
	for _, a := range assignments {
		if a.EntryTime.After(now) {
			continue
		}
		if !found || a.EntryTime.After(latest.EntryTime) || (a.EntryTime.Equal(latest.EntryTime) && a.ID > latest.ID) {
			latest = a
			found = true
		}
	}
	return latest, found
}

// SortByEntryTime orders assignments oldest first, breaking ties by id
func SortByEntryTime(assignments []model.Assignment) {
	sort.SliceStable(assignments, func(i, j int) bool {
		if assignments[i].EntryTime.Equal(assignments[j].EntryTime) {
			return assignments[i].ID < assignments[j].ID
		}
		return assignments[i].EntryTime.Before(assignments[j].EntryTime)
	})
}
