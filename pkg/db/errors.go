package db

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists indicates a record already exists with the provided ID.
	ErrAlreadyExists = errors.New("record already exists")
)
