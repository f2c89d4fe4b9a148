package appointments

import (
	"time"

	"vetclinic-backend/internal/auth"
)

// CancelNotice is the minimum lead time a client or veterinarian must
// leave when cancelling. Admins are exempt.
const CancelNotice = 2 * time.Hour

func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusCancelled || status == StatusMissed
}

// canActOn is the single ownership gate for every entry point: admins
// touch everything, veterinarians only their own calendar, clients only
// appointments for pets they own.
func canActOn(req auth.Requester, appt Appointment) bool {
	switch req.Role {
	case auth.RoleAdmin:
		return true
	case auth.RoleVet:
		return appt.VeterinarianID == req.ID
	case auth.RoleClient:
		return appt.OwnerID == req.ID
	}
	return false
}

func CheckView(req auth.Requester, appt Appointment) error {
	if !canActOn(req, appt) {
		return ErrForbidden
	}
	return nil
}

// CheckConfirm: SCHEDULED only, by the assigned vet or an admin.
func CheckConfirm(req auth.Requester, appt Appointment) error {
	if !canActOn(req, appt) || req.Role == auth.RoleClient {
		return ErrForbidden
	}
	if appt.Status != StatusScheduled {
		return ErrInvalidTransition
	}
	return nil
}

// CheckCancel: any non-terminal status, by any role that owns the
// appointment. Clients and veterinarians need CancelNotice lead time.
func CheckCancel(req auth.Requester, appt Appointment, now time.Time) error {
	if !canActOn(req, appt) {
		return ErrForbidden
	}
	if IsTerminal(appt.Status) {
		return ErrInvalidTransition
	}
	if req.Role != auth.RoleAdmin && now.After(appt.ScheduledAt.Add(-CancelNotice)) {
		return ErrCancelTooLate
	}
	return nil
}

// CheckComplete: any non-terminal status, never by a client.
func CheckComplete(req auth.Requester, appt Appointment) error {
	if !canActOn(req, appt) || req.Role == auth.RoleClient {
		return ErrForbidden
	}
	if IsTerminal(appt.Status) {
		return ErrInvalidTransition
	}
	return nil
}

// CheckUpdate guards general field updates, which are only legal while
// the appointment is still live on the calendar.
func CheckUpdate(req auth.Requester, appt Appointment) error {
	if !canActOn(req, appt) {
		return ErrForbidden
	}
	switch appt.Status {
	case StatusScheduled, StatusConfirmed, StatusInProgress:
		return nil
	}
	return ErrInvalidTransition
}
