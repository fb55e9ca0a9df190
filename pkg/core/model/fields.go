package model

import (
	"fmt"
	"strings"
)

// CallField names a column of CallInList that can be filtered or sorted on
type CallField string

const (
	CallFieldID          CallField = "id"
	CallFieldType        CallField = "type"
	CallFieldOpenedAt    CallField = "opened_at"
	CallFieldAddress     CallField = "address"
	CallFieldStatus      CallField = "status"
	CallFieldVolunteer   CallField = "volunteer"
	CallFieldRemaining   CallField = "remaining"
	CallFieldTreatment   CallField = "treatment"
	CallFieldAssignments CallField = "assignments"
)

var callFields = []CallField{
	CallFieldID, CallFieldType, CallFieldOpenedAt, CallFieldAddress, CallFieldStatus,
	CallFieldVolunteer, CallFieldRemaining, CallFieldTreatment, CallFieldAssignments,
}

// ClosedCallField names a sortable column of ClosedCallInList
type ClosedCallField string

const (
	ClosedCallFieldID        ClosedCallField = "id"
	ClosedCallFieldType      ClosedCallField = "type"
	ClosedCallFieldAddress   ClosedCallField = "address"
	ClosedCallFieldOpenedAt  ClosedCallField = "opened_at"
	ClosedCallFieldEntryTime ClosedCallField = "entry_time"
	ClosedCallFieldEndTime   ClosedCallField = "end_time"
	ClosedCallFieldEndType   ClosedCallField = "end_type"
)

var closedCallFields = []ClosedCallField{
	ClosedCallFieldID, ClosedCallFieldType, ClosedCallFieldAddress, ClosedCallFieldOpenedAt,
	ClosedCallFieldEntryTime, ClosedCallFieldEndTime, ClosedCallFieldEndType,
}

// OpenCallField names a sortable column of OpenCallInList
type OpenCallField string

const (
	OpenCallFieldID       OpenCallField = "id"
	OpenCallFieldType     OpenCallField = "type"
	OpenCallFieldAddress  OpenCallField = "address"
	OpenCallFieldOpenedAt OpenCallField = "opened_at"
	OpenCallFieldMaxTime  OpenCallField = "max_time"
	OpenCallFieldDistance OpenCallField = "distance"
)

var openCallFields = []OpenCallField{
	OpenCallFieldID, OpenCallFieldType, OpenCallFieldAddress, OpenCallFieldOpenedAt,
	OpenCallFieldMaxTime, OpenCallFieldDistance,
}

// VolunteerField names a sortable column of VolunteerInList
type VolunteerField string

const (
	VolunteerFieldID        VolunteerField = "id"
	VolunteerFieldName      VolunteerField = "name"
	VolunteerFieldHandled   VolunteerField = "handled"
	VolunteerFieldCancelled VolunteerField = "cancelled"
	VolunteerFieldExpired   VolunteerField = "expired"
)

var volunteerFields = []VolunteerField{
	VolunteerFieldID, VolunteerFieldName, VolunteerFieldHandled, VolunteerFieldCancelled, VolunteerFieldExpired,
}

func ParseCallField(s string) (CallField, error) {
	return parseField(s, callFields)
}

func ParseClosedCallField(s string) (ClosedCallField, error) {
	return parseField(s, closedCallFields)
}

func ParseOpenCallField(s string) (OpenCallField, error) {
	return parseField(s, openCallFields)
}

func ParseVolunteerField(s string) (VolunteerField, error) {
	return parseField(s, volunteerFields)
}

func parseField[F ~string](s string, known []F) (F, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	for _, f := range known {
		if string(f) == normalized {
			return f, nil
		}
	}
	var zero F
	return zero, fmt.Errorf("unknown field %q (expected one of %v)", s, known)
}
