package model

import "time"

type Role string

const (
	RoleAdministrator Role = "Administrator"
	RoleWorker        Role = "Worker"
)

func (r Role) IsValid() bool {
	return r == RoleAdministrator || r == RoleWorker
}

// DistanceType is how a volunteer wants travel distance measured
type DistanceType string

const (
	DistanceAir     DistanceType = "Air"
	DistanceWalking DistanceType = "Walking"
	DistanceDriving DistanceType = "Driving"
)

func (d DistanceType) IsValid() bool {
	return d == DistanceAir || d == DistanceWalking || d == DistanceDriving
}

type CallType string

const (
	CallTypeTransport CallType = "Transport"
	CallTypePickUp    CallType = "PickUp"
)

func (c CallType) IsValid() bool {
	return c == CallTypeTransport || c == CallTypePickUp
}

// EndType records how an assignment finished
type EndType string

const (
	EndTypeCared                     EndType = "Cared"
	EndTypeSelfCancellation          EndType = "SelfCancellation"
	EndTypeAdministratorCancellation EndType = "AdministratorCancellation"
	EndTypeExpiredCancellation       EndType = "ExpiredCancellation"
)

func (e EndType) IsValid() bool {
	switch e {
	case EndTypeCared, EndTypeSelfCancellation, EndTypeAdministratorCancellation, EndTypeExpiredCancellation:
		return true
	}
	return false
}

// Volunteer represents a registered volunteer
type Volunteer struct {
	ID           int
	Name         string
	Phone        string
	Email        string
	PasswordHash string
	Address      string
	Latitude     *float64
	Longitude    *float64
	Role         Role
	Active       bool
	MaxDistance  *float64 // km, nil means unlimited
	DistanceType DistanceType
}

// Call represents a service request. Its status is never stored.
type Call struct {
	ID          int
	Type        CallType
	Description *string
	Address     string
	Latitude    float64
	Longitude   float64
	OpenedAt    time.Time
	MaxTime     *time.Time // nil means no deadline
}

// Assignment links one volunteer to one call for a bounded period
type Assignment struct {
	ID          int
	CallID      int
	VolunteerID int
	EntryTime   time.Time
	EndTime     *time.Time // nil while the assignment is open
	EndType     *EndType
}

// IsOpen reports whether the assignment has not been finished yet
func (a Assignment) IsOpen() bool {
	return a.EndTime == nil && a.EndType == nil
}
