package appointments

import (
	"errors"
	"testing"
	"time"

	"vetclinic-backend/internal/auth"
)

var (
	ownClient   = auth.Requester{ID: "client-1", Role: auth.RoleClient}
	otherClient = auth.Requester{ID: "client-2", Role: auth.RoleClient}
	ownVet      = auth.Requester{ID: "vet-1", Role: auth.RoleVet}
	otherVet    = auth.Requester{ID: "vet-2", Role: auth.RoleVet}
	adminUser   = auth.Requester{ID: "admin-1", Role: auth.RoleAdmin}
)

func apptWith(status string, scheduledAt time.Time) Appointment {
	return Appointment{
		ID:              "appt-1",
		PetID:           "pet-1",
		OwnerID:         "client-1",
		VeterinarianID:  "vet-1",
		Status:          status,
		ScheduledAt:     scheduledAt,
		DurationMinutes: 30,
	}
}

func TestIsTerminal(t *testing.T) {
	for _, status := range []string{StatusCompleted, StatusCancelled, StatusMissed} {
		if !IsTerminal(status) {
			t.Fatalf("expected %s terminal", status)
		}
	}
	for _, status := range []string{StatusScheduled, StatusConfirmed, StatusInProgress} {
		if IsTerminal(status) {
			t.Fatalf("expected %s not terminal", status)
		}
	}
}

func TestCheckView(t *testing.T) {
	appt := apptWith(StatusScheduled, time.Now().Add(24*time.Hour))

	for _, req := range []auth.Requester{ownClient, ownVet, adminUser} {
		if err := CheckView(req, appt); err != nil {
			t.Fatalf("expected %s %s to view, got %v", req.Role, req.ID, err)
		}
	}
	for _, req := range []auth.Requester{otherClient, otherVet} {
		if err := CheckView(req, appt); !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrForbidden for %s %s, got %v", req.Role, req.ID, err)
		}
	}
}

func TestCheckConfirm(t *testing.T) {
	scheduled := apptWith(StatusScheduled, time.Now().Add(24*time.Hour))

	if err := CheckConfirm(ownVet, scheduled); err != nil {
		t.Fatalf("expected assigned vet to confirm, got %v", err)
	}
	if err := CheckConfirm(adminUser, scheduled); err != nil {
		t.Fatalf("expected admin to confirm, got %v", err)
	}
	if err := CheckConfirm(ownClient, scheduled); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for client, got %v", err)
	}
	if err := CheckConfirm(otherVet, scheduled); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for foreign vet, got %v", err)
	}

	for _, status := range []string{StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled, StatusMissed} {
		appt := apptWith(status, time.Now().Add(24*time.Hour))
		if err := CheckConfirm(ownVet, appt); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition confirming %s, got %v", status, err)
		}
	}
}

func TestCheckCancelNotice(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	// Exactly two hours ahead is still allowed.
	boundary := apptWith(StatusScheduled, now.Add(2*time.Hour))
	if err := CheckCancel(ownClient, boundary, now); err != nil {
		t.Fatalf("expected cancel at exactly 2h notice, got %v", err)
	}

	late := apptWith(StatusScheduled, now.Add(time.Hour))
	if err := CheckCancel(ownClient, late, now); !errors.Is(err, ErrCancelTooLate) {
		t.Fatalf("expected ErrCancelTooLate for client, got %v", err)
	}
	if err := CheckCancel(ownVet, late, now); !errors.Is(err, ErrCancelTooLate) {
		t.Fatalf("expected ErrCancelTooLate for vet, got %v", err)
	}
	if err := CheckCancel(adminUser, late, now); err != nil {
		t.Fatalf("expected admin exempt from notice, got %v", err)
	}
}

func TestCheckCancelStatus(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)

	for _, status := range []string{StatusScheduled, StatusConfirmed, StatusInProgress} {
		if err := CheckCancel(ownClient, apptWith(status, future), now); err != nil {
			t.Fatalf("expected cancel from %s, got %v", status, err)
		}
	}
	for _, status := range []string{StatusCompleted, StatusCancelled, StatusMissed} {
		if err := CheckCancel(adminUser, apptWith(status, future), now); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition cancelling %s, got %v", status, err)
		}
	}

	if err := CheckCancel(otherClient, apptWith(StatusScheduled, future), now); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for foreign client, got %v", err)
	}
}

func TestCheckComplete(t *testing.T) {
	for _, status := range []string{StatusScheduled, StatusConfirmed, StatusInProgress} {
		appt := apptWith(status, time.Now().Add(-time.Hour))
		if err := CheckComplete(ownVet, appt); err != nil {
			t.Fatalf("expected vet to complete %s, got %v", status, err)
		}
		if err := CheckComplete(adminUser, appt); err != nil {
			t.Fatalf("expected admin to complete %s, got %v", status, err)
		}
		if err := CheckComplete(ownClient, appt); !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrForbidden for client completing, got %v", err)
		}
	}
	for _, status := range []string{StatusCompleted, StatusCancelled, StatusMissed} {
		if err := CheckComplete(ownVet, apptWith(status, time.Now())); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition completing %s, got %v", status, err)
		}
	}
}

func TestCheckUpdate(t *testing.T) {
	future := time.Now().Add(24 * time.Hour)

	for _, status := range []string{StatusScheduled, StatusConfirmed, StatusInProgress} {
		if err := CheckUpdate(ownClient, apptWith(status, future)); err != nil {
			t.Fatalf("expected update in %s, got %v", status, err)
		}
	}
	for _, status := range []string{StatusCompleted, StatusCancelled, StatusMissed} {
		if err := CheckUpdate(ownClient, apptWith(status, future)); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition updating %s, got %v", status, err)
		}
	}
	if err := CheckUpdate(otherVet, apptWith(StatusScheduled, future)); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for foreign vet, got %v", err)
	}
}
