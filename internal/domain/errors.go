package domain

import "errors"

var (
	// ErrJobNotFound is returned when a job id has no record in the store
	ErrJobNotFound = errors.New("job not found")

	// ErrJobExists is returned when creating a job whose id is already taken
	ErrJobExists = errors.New("job already exists")
)
