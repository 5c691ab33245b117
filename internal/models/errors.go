package models

import "errors"

var (
	// ErrNotFound is wrapped by collaborators when a requested entity does not exist
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when a reference has already been used
	ErrAlreadyExists = errors.New("already exists")
)
