package services

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jakechorley/volunteer-dispatch/pkg/core/errs"
	"github.com/jakechorley/volunteer-dispatch/pkg/core/model"
)

// CallFilter selects call list rows whose field equals Value
type CallFilter struct {
	Field model.CallField
	Value string
}

var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02T15:04", "2006-01-02"}

func parseTimeValue(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func badFilterValue(field model.CallField, value string) error {
	return errs.Validation("filter", "%q is not a valid value for %s", value, field)
}

// callMatcher returns the equality predicate for f
func callMatcher(f CallFilter) (func(model.CallInList) bool, error) {
	value := strings.TrimSpace(f.Value)

	switch f.Field {
	case model.CallFieldID, model.CallFieldAssignments:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, badFilterValue(f.Field, value)
		}
		if f.Field == model.CallFieldID {
			return func(c model.CallInList) bool { return c.CallID == n }, nil
		}
		return func(c model.CallInList) bool { return c.AssignmentCount == n }, nil

	case model.CallFieldType:
		return func(c model.CallInList) bool { return strings.EqualFold(string(c.Type), value) }, nil

	case model.CallFieldAddress:
		return func(c model.CallInList) bool { return strings.EqualFold(c.Address, value) }, nil

	case model.CallFieldVolunteer:
		return func(c model.CallInList) bool { return strings.EqualFold(c.LastVolunteerName, value) }, nil

	case model.CallFieldStatus:
		s, err := model.ParseStatus(value)
		if err != nil {
			return nil, badFilterValue(f.Field, value)
		}
		return func(c model.CallInList) bool { return c.Status == s }, nil

	case model.CallFieldOpenedAt:
		t, ok := parseTimeValue(value)
		if !ok {
			return nil, badFilterValue(f.Field, value)
		}
		return func(c model.CallInList) bool { return c.OpenedAt.Equal(t) }, nil

	case model.CallFieldRemaining, model.CallFieldTreatment:
		d, err := time.ParseDuration(value)
		if err != nil {
			return nil, badFilterValue(f.Field, value)
		}
		if f.Field == model.CallFieldRemaining {
			return func(c model.CallInList) bool { return c.RemainingTime != nil && *c.RemainingTime == d }, nil
		}
		return func(c model.CallInList) bool { return c.TreatmentTime != nil && *c.TreatmentTime == d }, nil
	}

	return nil, errs.Validation("filter", "unknown call field %q", f.Field)
}

// comparePtr orders nil before any value
func comparePtr[T cmp.Ordered](a, b *T) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return cmp.Compare(*a, *b)
}

func compareTimePtr(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Compare(*b)
}

func callComparator(field model.CallField) (func(a, b model.CallInList) int, error) {
	switch field {
	case model.CallFieldID:
		return func(a, b model.CallInList) int { return cmp.Compare(a.CallID, b.CallID) }, nil
	case model.CallFieldType:
		return func(a, b model.CallInList) int { return cmp.Compare(a.Type, b.Type) }, nil
	case model.CallFieldOpenedAt:
		return func(a, b model.CallInList) int { return a.OpenedAt.Compare(b.OpenedAt) }, nil
	case model.CallFieldAddress:
		return func(a, b model.CallInList) int { return cmp.Compare(a.Address, b.Address) }, nil
	case model.CallFieldStatus:
		return func(a, b model.CallInList) int { return cmp.Compare(a.Status, b.Status) }, nil
	case model.CallFieldVolunteer:
		return func(a, b model.CallInList) int { return cmp.Compare(a.LastVolunteerName, b.LastVolunteerName) }, nil
	case model.CallFieldRemaining:
		return func(a, b model.CallInList) int { return comparePtr(a.RemainingTime, b.RemainingTime) }, nil
	case model.CallFieldTreatment:
		return func(a, b model.CallInList) int { return comparePtr(a.TreatmentTime, b.TreatmentTime) }, nil
	case model.CallFieldAssignments:
		return func(a, b model.CallInList) int { return cmp.Compare(a.AssignmentCount, b.AssignmentCount) }, nil
	}
	return nil, errs.Validation("sort", "unknown call field %q", field)
}

func closedCallComparator(field model.ClosedCallField) (func(a, b model.ClosedCallInList) int, error) {
	switch field {
	case model.ClosedCallFieldID:
		return func(a, b model.ClosedCallInList) int { return cmp.Compare(a.CallID, b.CallID) }, nil
	case model.ClosedCallFieldType:
		return func(a, b model.ClosedCallInList) int { return cmp.Compare(a.Type, b.Type) }, nil
	case model.ClosedCallFieldAddress:
		return func(a, b model.ClosedCallInList) int { return cmp.Compare(a.Address, b.Address) }, nil
	case model.ClosedCallFieldOpenedAt:
		return func(a, b model.ClosedCallInList) int { return a.OpenedAt.Compare(b.OpenedAt) }, nil
	case model.ClosedCallFieldEntryTime:
		return func(a, b model.ClosedCallInList) int { return a.EntryTime.Compare(b.EntryTime) }, nil
	case model.ClosedCallFieldEndTime:
		return func(a, b model.ClosedCallInList) int { return compareTimePtr(a.EndTime, b.EndTime) }, nil
	case model.ClosedCallFieldEndType:
		return func(a, b model.ClosedCallInList) int { return cmp.Compare(a.EndType, b.EndType) }, nil
	}
	return nil, errs.Validation("sort", "unknown closed call field %q", field)
}

func openCallComparator(field model.OpenCallField) (func(a, b model.OpenCallInList) int, error) {
	switch field {
	case model.OpenCallFieldID:
		return func(a, b model.OpenCallInList) int { return cmp.Compare(a.CallID, b.CallID) }, nil
	case model.OpenCallFieldType:
		return func(a, b model.OpenCallInList) int { return cmp.Compare(a.Type, b.Type) }, nil
	case model.OpenCallFieldAddress:
		return func(a, b model.OpenCallInList) int { return cmp.Compare(a.Address, b.Address) }, nil
	case model.OpenCallFieldOpenedAt:
		return func(a, b model.OpenCallInList) int { return a.OpenedAt.Compare(b.OpenedAt) }, nil
	case model.OpenCallFieldMaxTime:
		return func(a, b model.OpenCallInList) int { return compareTimePtr(a.MaxTime, b.MaxTime) }, nil
	case model.OpenCallFieldDistance:
		return func(a, b model.OpenCallInList) int { return cmp.Compare(a.DistanceKm, b.DistanceKm) }, nil
	}
	return nil, errs.Validation("sort", "unknown open call field %q", field)
}

func volunteerComparator(field model.VolunteerField) (func(a, b model.VolunteerInList) int, error) {
	switch field {
	case model.VolunteerFieldID:
		return func(a, b model.VolunteerInList) int { return cmp.Compare(a.ID, b.ID) }, nil
	case model.VolunteerFieldName:
		return func(a, b model.VolunteerInList) int { return cmp.Compare(a.Name, b.Name) }, nil
	case model.VolunteerFieldHandled:
		return func(a, b model.VolunteerInList) int { return cmp.Compare(a.Counters.Handled, b.Counters.Handled) }, nil
	case model.VolunteerFieldCancelled:
		return func(a, b model.VolunteerInList) int { return cmp.Compare(a.Counters.Cancelled, b.Counters.Cancelled) }, nil
	case model.VolunteerFieldExpired:
		return func(a, b model.VolunteerInList) int { return cmp.Compare(a.Counters.Expired, b.Counters.Expired) }, nil
	}
	return nil, errs.Validation("sort", "unknown volunteer field %q", field)
}

// sortRows stable-sorts rows by the comparator for field. A nil field keeps
// the incoming order, which is by id.
func sortRows[T any, F any](rows []T, field *F, comparator func(F) (func(a, b T) int, error)) error {
	if field == nil {
		return nil
	}
	compare, err := comparator(*field)
	if err != nil {
		return err
	}
	slices.SortStableFunc(rows, compare)
	return nil
}
