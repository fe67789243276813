package alarmline

import "errors"

var (
	// ErrInvalidArgument is returned for reserved ids, overlong names and
	// unknown acquisition methods. Nothing is changed.
	ErrInvalidArgument = errors.New("alarmline: invalid argument")

	// ErrNotFound is returned when a line id does not exist.
	ErrNotFound = errors.New("alarmline: not found")

	// ErrRegistryFull is returned when MaxLines is reached.
	ErrRegistryFull = errors.New("alarmline: registry full")
)
