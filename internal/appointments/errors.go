package appointments

import "errors"

var (
	ErrNotFound    = errors.New("appointment not found")
	ErrVetNotFound = errors.New("veterinarian not found")
	ErrPetNotFound = errors.New("pet not found")

	ErrForbidden = errors.New("operation not permitted for requester")

	ErrPastTime          = errors.New("scheduled time is in the past")
	ErrClosedDay         = errors.New("veterinarian is not available on that day")
	ErrOutsideHours      = errors.New("requested time is outside working hours")
	ErrInvalidDuration   = errors.New("invalid duration")
	ErrInvalidType       = errors.New("invalid appointment type")
	ErrInvalidPriority   = errors.New("invalid priority")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidTransition = errors.New("status transition not allowed")
	ErrCancelTooLate     = errors.New("cancellation requires at least 2 hours notice")

	ErrConflict = errors.New("time slot overlaps an existing appointment")
)
