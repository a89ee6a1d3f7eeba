package domain

import "errors"

var (
	// ErrConflict is returned by stores when a unique key is already taken.
	ErrConflict = errors.New("conflict")
	// ErrNotFound is returned when a record is missing or owned by someone else.
	ErrNotFound = errors.New("not found")
)
