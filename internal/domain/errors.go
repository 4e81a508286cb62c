package domain

import "errors"

var (
	// ErrInvalidEvent is returned when a download event is missing required fields
	ErrInvalidEvent = errors.New("invalid download event")

	// ErrCycleInFlight is returned when a processing cycle is requested while one is already running
	ErrCycleInFlight = errors.New("processing cycle already in flight")
)
