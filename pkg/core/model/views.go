package model

import "time"

// CallInList is the summary row shown in the call list
type CallInList struct {
	CallID            int
	LastAssignmentID  *int
	Type              CallType
	Address           string
	OpenedAt          time.Time
	RemainingTime     *time.Duration // deadline minus now; nil when the call has no deadline
	LastVolunteerName string         // empty when the call was never assigned
	TreatmentTime     *time.Duration // only set for closed calls
	Status            Status
	AssignmentCount   int
}

// AssignmentInCall is one entry of a call's assignment history
type AssignmentInCall struct {
	AssignmentID  int
	VolunteerID   int
	VolunteerName string
	EntryTime     time.Time
	EndTime       *time.Time
	EndType       *EndType
}

// CallDetails is a call together with its derived status and full assignment history
type CallDetails struct {
	Call        Call
	Status      Status
	Assignments []AssignmentInCall // ordered by entry time
}

// ClosedCallInList is a call a volunteer handled in the past
type ClosedCallInList struct {
	CallID    int
	Type      CallType
	Address   string
	OpenedAt  time.Time
	EntryTime time.Time
	EndTime   *time.Time
	EndType   EndType
}

// OpenCallInList is a call a volunteer may pick, annotated with its distance from them
type OpenCallInList struct {
	CallID            int
	Type              CallType
	Description       *string
	Address           string
	OpenedAt          time.Time
	MaxTime           *time.Time
	Status            Status
	DistanceKm        float64
	WithinMaxDistance bool
}

// CallInProgress describes the call a volunteer is currently handling
type CallInProgress struct {
	AssignmentID int
	CallID       int
	Type         CallType
	Description  *string
	Address      string
	OpenedAt     time.Time
	MaxTime      *time.Time
	EntryTime    time.Time
	DistanceKm   float64
	Status       Status
}

// VolunteerCounters are derived by scanning a volunteer's assignments
type VolunteerCounters struct {
	Handled   int
	Cancelled int
	Expired   int
}

// VolunteerInList is the summary row shown in the volunteer list
type VolunteerInList struct {
	ID              int
	Name            string
	Active          bool
	Counters        VolunteerCounters
	CurrentCallID   *int
	CurrentCallType *CallType
}

// VolunteerDetails is a volunteer with derived counters and current call
type VolunteerDetails struct {
	Volunteer   Volunteer
	Counters    VolunteerCounters
	CurrentCall *CallInProgress
}

// StatusCount is one entry of the per-status call histogram
type StatusCount struct {
	Status Status
	Count  int
}
