package db

import (
	"context"

	"github.com/jakechorley/volunteer-dispatch/pkg/core/model"
)

// VolunteerStore defines the record operations for volunteers.
// Volunteer ids are supplied by the caller.
type VolunteerStore interface {
	CreateVolunteer(ctx context.Context, v model.Volunteer) error
	GetVolunteer(ctx context.Context, id int) (model.Volunteer, error)
	FindVolunteer(ctx context.Context, match func(model.Volunteer) bool) (model.Volunteer, error)
	ListVolunteers(ctx context.Context, match func(model.Volunteer) bool) ([]model.Volunteer, error)
	UpdateVolunteer(ctx context.Context, v model.Volunteer) error
	DeleteVolunteer(ctx context.Context, id int) error
	DeleteAllVolunteers(ctx context.Context) error
}

// CallStore defines the record operations for calls.
// CreateCall ignores the supplied id and returns the store-assigned one.
type CallStore interface {
	CreateCall(ctx context.Context, c model.Call) (int, error)
	GetCall(ctx context.Context, id int) (model.Call, error)
	FindCall(ctx context.Context, match func(model.Call) bool) (model.Call, error)
	ListCalls(ctx context.Context, match func(model.Call) bool) ([]model.Call, error)
	UpdateCall(ctx context.Context, c model.Call) error
	DeleteCall(ctx context.Context, id int) error
	DeleteAllCalls(ctx context.Context) error
}

// AssignmentStore defines the record operations for assignments.
// CreateAssignment ignores the supplied id and returns the store-assigned one.
type AssignmentStore interface {
	CreateAssignment(ctx context.Context, a model.Assignment) (int, error)
	GetAssignment(ctx context.Context, id int) (model.Assignment, error)
	FindAssignment(ctx context.Context, match func(model.Assignment) bool) (model.Assignment, error)
	ListAssignments(ctx context.Context, match func(model.Assignment) bool) ([]model.Assignment, error)
	UpdateAssignment(ctx context.Context, a model.Assignment) error
	DeleteAssignment(ctx context.Context, id int) error
	DeleteAllAssignments(ctx context.Context) error
}

// Store combines the record operations for every entity kind.
// List methods return records ordered by id; a nil match selects everything.
// Get, Find, Update and Delete return ErrNotFound for unknown records.
type Store interface {
	VolunteerStore
	CallStore
	AssignmentStore
}

// Database defines the interface for all database operations.
// Both the in-memory MemoryDB and postgres.DB implement this interface.
type Database interface {
	Store

	// InTx runs fn with exclusive access to the store so that a check and the
	// write depending on it cannot interleave with other writers. fn must only
	// use the Store it is given. If fn returns an error none of its writes persist.
	InTx(ctx context.Context, fn func(tx Store) error) error

	// View runs fn against one consistent snapshot of the store. fn must only read.
	View(ctx context.Context, fn func(tx Store) error) error
}
