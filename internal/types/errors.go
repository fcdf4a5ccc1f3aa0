package types

import "errors"

var (
	// ErrDuplicatePlace is returned when an add targets a bucket that already
	// holds the same place within CoordinateEpsilon.
	ErrDuplicatePlace = errors.New("place already exists in this day and category")

	// ErrInvalidCoordinate is returned when a place fails coordinate
	// validation on an explicit add.
	ErrInvalidCoordinate = errors.New("place coordinates failed validation")

	// ErrUnrecognizedPayload is returned when a raw schedule payload matches
	// none of the legacy variants.
	ErrUnrecognizedPayload = errors.New("unrecognized schedule payload")

	// ErrScheduleNotFound is returned when no stored schedule matches the
	// lookup.
	ErrScheduleNotFound = errors.New("schedule not found")

	// ErrSessionNotFound is returned when no chat session matches the lookup.
	ErrSessionNotFound = errors.New("session not found")
)
