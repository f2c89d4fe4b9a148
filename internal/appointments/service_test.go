package appointments

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"vetclinic-backend/internal/auth"
	"vetclinic-backend/internal/pets"
	"vetclinic-backend/internal/schedule"
	"vetclinic-backend/internal/vets"
)

// fakeRepo keeps appointments in memory and mirrors the mongo
// repository's filter semantics closely enough for the service tests.
type fakeRepo struct {
	mu    sync.Mutex
	items map[string]Appointment
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{items: make(map[string]Appointment)}
}

func (f *fakeRepo) Create(_ context.Context, appt Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[appt.ID] = appt
	return nil
}

func (f *fakeRepo) GetByID(_ context.Context, id string) (Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	appt, ok := f.items[id]
	if !ok {
		return Appointment{}, ErrNotFound
	}
	return appt, nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, id, status string, now time.Time) (Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	appt, ok := f.items[id]
	if !ok {
		return Appointment{}, ErrNotFound
	}
	appt.Status = status
	appt.UpdatedAt = now
	f.items[id] = appt
	return appt, nil
}

func (f *fakeRepo) UpdateFields(_ context.Context, id string, fields UpdateFields, now time.Time) (Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	appt, ok := f.items[id]
	if !ok {
		return Appointment{}, ErrNotFound
	}
	if fields.ScheduledAt != nil {
		appt.ScheduledAt = *fields.ScheduledAt
	}
	if fields.DurationMinutes != nil {
		appt.DurationMinutes = *fields.DurationMinutes
	}
	if fields.Type != nil {
		appt.Type = *fields.Type
	}
	if fields.Priority != nil {
		appt.Priority = *fields.Priority
	}
	if fields.Notes != nil {
		appt.Notes = *fields.Notes
	}
	appt.UpdatedAt = now
	f.items[id] = appt
	return appt, nil
}

func (f *fakeRepo) List(_ context.Context, filter ListFilter, limit, offset int64) ([]Appointment, error) {
	matched := f.match(filter)
	if offset >= int64(len(matched)) {
		return []Appointment{}, nil
	}
	matched = matched[offset:]
	if int64(len(matched)) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (f *fakeRepo) Count(_ context.Context, filter ListFilter) (int64, error) {
	return int64(len(f.match(filter))), nil
}

func (f *fakeRepo) ListActiveBetween(_ context.Context, vetID string, from, to time.Time) ([]Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	matched := make([]Appointment, 0)
	for _, appt := range f.items {
		if appt.VeterinarianID != vetID || !appt.OccupiesCalendar() {
			continue
		}
		if appt.ScheduledAt.Before(from) || !appt.ScheduledAt.Before(to) {
			continue
		}
		matched = append(matched, appt)
	}
	sortByTime(matched)
	return matched, nil
}

func (f *fakeRepo) match(filter ListFilter) []Appointment {
	f.mu.Lock()
	defer f.mu.Unlock()
	matched := make([]Appointment, 0)
	for _, appt := range f.items {
		if filter.Status != "" && appt.Status != filter.Status {
			continue
		}
		if filter.PetID != "" && appt.PetID != filter.PetID {
			continue
		}
		if filter.OwnerID != "" && appt.OwnerID != filter.OwnerID {
			continue
		}
		if filter.VeterinarianID != "" && appt.VeterinarianID != filter.VeterinarianID {
			continue
		}
		if !filter.From.IsZero() && appt.ScheduledAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !appt.ScheduledAt.Before(filter.To) {
			continue
		}
		matched = append(matched, appt)
	}
	sortByTime(matched)
	return matched
}

func sortByTime(items []Appointment) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].ScheduledAt.Equal(items[j].ScheduledAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].ScheduledAt.Before(items[j].ScheduledAt)
	})
}

type fakeVets struct {
	items []vets.Veterinarian
}

func (f *fakeVets) GetByID(_ context.Context, id string) (vets.Veterinarian, error) {
	for _, vet := range f.items {
		if vet.ID == id {
			return vet, nil
		}
	}
	return vets.Veterinarian{}, vets.ErrNotFound
}

func (f *fakeVets) List(_ context.Context) ([]vets.Veterinarian, error) {
	return f.items, nil
}

type fakePets struct {
	items []pets.Pet
}

func (f *fakePets) GetByID(_ context.Context, id string) (pets.Pet, error) {
	for _, pet := range f.items {
		if pet.ID == id {
			return pet, nil
		}
	}
	return pets.Pet{}, pets.ErrNotFound
}

// fixedNow is Monday 2026-03-02 08:00 UTC.
func fixedNow() time.Time {
	return time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testVet() vets.Veterinarian {
	return vets.Veterinarian{
		ID:    "vet-1",
		Name:  "Dr. Garcia",
		Email: "garcia@clinic.test",
		WeeklyAvailability: schedule.Week{
			"monday":  schedule.DayHours{Start: "09:00", End: "12:00", IsAvailable: true},
			"tuesday": schedule.DayHours{Start: "", End: "", IsAvailable: false},
		},
	}
}

func testPet() pets.Pet {
	return pets.Pet{ID: "pet-1", Name: "Fido", Species: "dog", OwnerID: "client-1"}
}

func newTestService(repo *fakeRepo, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = fixedNow
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	vetStore := &fakeVets{items: []vets.Veterinarian{testVet()}}
	petStore := &fakePets{items: []pets.Pet{testPet(), {ID: "pet-2", Name: "Luna", Species: "cat", OwnerID: "client-2"}}}
	return NewService(repo, vetStore, petStore, nil, testLogger(), opts)
}

func createReq(scheduledAt string) CreateRequest {
	return CreateRequest{
		PetID:          "pet-1",
		VeterinarianID: "vet-1",
		ScheduledAt:    scheduledAt,
		Type:           TypeConsultation,
	}
}

func TestCreateHappyPath(t *testing.T) {
	svc := newTestService(newFakeRepo(), Options{})

	resp, err := svc.Create(context.Background(), createReq("2026-03-02T10:00"), ownClient)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if resp.Status != StatusScheduled {
		t.Fatalf("expected SCHEDULED, got %s", resp.Status)
	}
	if resp.DurationMinutes != 30 {
		t.Fatalf("expected default duration 30, got %d", resp.DurationMinutes)
	}
	if resp.Priority != PriorityNormal {
		t.Fatalf("expected default priority normal, got %s", resp.Priority)
	}
	if resp.OwnerID != "client-1" {
		t.Fatalf("expected owner denormalized from pet, got %q", resp.OwnerID)
	}
	if !resp.IsUpcoming {
		t.Fatalf("expected upcoming flag set")
	}
	if resp.Pet == nil || resp.Pet.Name != "Fido" {
		t.Fatalf("expected pet summary, got %v", resp.Pet)
	}
	if resp.Veterinarian == nil || resp.Veterinarian.ID != "vet-1" {
		t.Fatalf("expected veterinarian summary, got %v", resp.Veterinarian)
	}
}

func TestCreateValidationFailures(t *testing.T) {
	svc := newTestService(newFakeRepo(), Options{})
	ctx := context.Background()

	// Now is 08:00, so 07:00 same day is in the past.
	if _, err := svc.Create(ctx, createReq("2026-03-02T07:00"), ownClient); !errors.Is(err, ErrPastTime) {
		t.Fatalf("expected ErrPastTime, got %v", err)
	}

	// Tuesday is explicitly marked unavailable.
	if _, err := svc.Create(ctx, createReq("2026-03-03T10:00"), ownClient); !errors.Is(err, ErrClosedDay) {
		t.Fatalf("expected ErrClosedDay for closed day, got %v", err)
	}

	// Sunday is not configured at all and the fallback is off.
	if _, err := svc.Create(ctx, createReq("2026-03-08T10:00"), ownClient); !errors.Is(err, ErrClosedDay) {
		t.Fatalf("expected ErrClosedDay for unconfigured day, got %v", err)
	}

	// 11:45 + 30m runs past the 12:00 close.
	if _, err := svc.Create(ctx, createReq("2026-03-02T11:45"), ownClient); !errors.Is(err, ErrOutsideHours) {
		t.Fatalf("expected ErrOutsideHours, got %v", err)
	}
	if _, err := svc.Create(ctx, createReq("2026-03-02T08:30"), ownClient); !errors.Is(err, ErrOutsideHours) {
		t.Fatalf("expected ErrOutsideHours before opening, got %v", err)
	}

	bad := createReq("2026-03-02T10:00")
	bad.Type = "teleportation"
	if _, err := svc.Create(ctx, bad, ownClient); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("expected ErrInvalidType, got %v", err)
	}

	bad = createReq("2026-03-02T10:00")
	bad.Priority = "asap"
	if _, err := svc.Create(ctx, bad, ownClient); !errors.Is(err, ErrInvalidPriority) {
		t.Fatalf("expected ErrInvalidPriority, got %v", err)
	}

	bad = createReq("2026-03-02T10:00")
	bad.VeterinarianID = "vet-missing"
	if _, err := svc.Create(ctx, bad, ownClient); !errors.Is(err, ErrVetNotFound) {
		t.Fatalf("expected ErrVetNotFound, got %v", err)
	}

	bad = createReq("2026-03-02T10:00")
	bad.PetID = "pet-missing"
	if _, err := svc.Create(ctx, bad, ownClient); !errors.Is(err, ErrPetNotFound) {
		t.Fatalf("expected ErrPetNotFound, got %v", err)
	}
}

func TestCreateForeignPet(t *testing.T) {
	svc := newTestService(newFakeRepo(), Options{})
	ctx := context.Background()

	req := createReq("2026-03-02T10:00")
	req.PetID = "pet-2" // owned by client-2

	if _, err := svc.Create(ctx, req, ownClient); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for foreign pet, got %v", err)
	}

	// Staff book on behalf of any owner.
	resp, err := svc.Create(ctx, req, adminUser)
	if err != nil {
		t.Fatalf("expected admin to book any pet, got %v", err)
	}
	if resp.OwnerID != "client-2" {
		t.Fatalf("expected owner client-2, got %s", resp.OwnerID)
	}
}

func TestCreateConflicts(t *testing.T) {
	svc := newTestService(newFakeRepo(), Options{})
	ctx := context.Background()

	if _, err := svc.Create(ctx, createReq("2026-03-02T10:00"), ownClient); err != nil {
		t.Fatalf("first booking failed: %v", err)
	}

	// Identical slot.
	if _, err := svc.Create(ctx, createReq("2026-03-02T10:00"), ownClient); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for identical slot, got %v", err)
	}

	// 09:45-10:15 overlaps 10:00-10:30.
	if _, err := svc.Create(ctx, createReq("2026-03-02T09:45"), ownClient); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for overlapping slot, got %v", err)
	}

	// 09:30-10:00 touches but does not overlap.
	if _, err := svc.Create(ctx, createReq("2026-03-02T09:30"), ownClient); err != nil {
		t.Fatalf("expected adjacent slot to book, got %v", err)
	}
}

func TestAvailabilityOverlay(t *testing.T) {
	svc := newTestService(newFakeRepo(), Options{})
	ctx := context.Background()

	report, err := svc.GetAvailability(ctx, "vet-1", "2026-03-02", 30)
	if err != nil {
		t.Fatalf("GetAvailability error: %v", err)
	}
	if len(report.Slots) != 6 || report.AvailableCount != 6 {
		t.Fatalf("expected 6 free slots, got %d/%d", report.AvailableCount, len(report.Slots))
	}
	if report.DefaultHours {
		t.Fatalf("expected configured hours, not fallback")
	}

	if _, err := svc.Create(ctx, createReq("2026-03-02T10:00"), ownClient); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	report, err = svc.GetAvailability(ctx, "vet-1", "2026-03-02", 30)
	if err != nil {
		t.Fatalf("GetAvailability error: %v", err)
	}
	if report.AvailableCount != 5 {
		t.Fatalf("expected 5 free slots after booking, got %d", report.AvailableCount)
	}
	for _, slot := range report.Slots {
		if slot.StartTime == "10:00" {
			if slot.Available || slot.Reason != schedule.ReasonBooked {
				t.Fatalf("expected 10:00 marked booked, got %+v", slot)
			}
		}
	}
}

func TestCancelFreesSlot(t *testing.T) {
	svc := newTestService(newFakeRepo(), Options{})
	ctx := context.Background()

	created, err := svc.Create(ctx, createReq("2026-03-02T10:00"), ownClient)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	// One hour of notice: the client is refused, the admin is not.
	if _, err := svc.Cancel(ctx, created.ID, ownClient); !errors.Is(err, ErrCancelTooLate) {
		t.Fatalf("expected ErrCancelTooLate, got %v", err)
	}
	cancelled, err := svc.Cancel(ctx, created.ID, adminUser)
	if err != nil {
		t.Fatalf("admin cancel failed: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", cancelled.Status)
	}

	// The freed slot books again.
	if _, err := svc.Create(ctx, createReq("2026-03-02T10:00"), ownClient); err != nil {
		t.Fatalf("expected freed slot to book, got %v", err)
	}
}

func TestTransitions(t *testing.T) {
	svc := newTestService(newFakeRepo(), Options{})
	ctx := context.Background()

	created, err := svc.Create(ctx, createReq("2026-03-02T11:00"), ownClient)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if _, err := svc.Confirm(ctx, created.ID, ownClient); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for client confirm, got %v", err)
	}
	confirmed, err := svc.Confirm(ctx, created.ID, ownVet)
	if err != nil {
		t.Fatalf("Confirm error: %v", err)
	}
	if confirmed.Status != StatusConfirmed {
		t.Fatalf("expected CONFIRMED, got %s", confirmed.Status)
	}
	if _, err := svc.Confirm(ctx, created.ID, ownVet); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on double confirm, got %v", err)
	}

	completed, err := svc.Complete(ctx, created.ID, ownVet)
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if completed.Status != StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", completed.Status)
	}
	if _, err := svc.Cancel(ctx, created.ID, adminUser); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition cancelling completed, got %v", err)
	}

	if _, err := svc.Confirm(ctx, "appt-missing", ownVet); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateReschedule(t *testing.T) {
	svc := newTestService(newFakeRepo(), Options{})
	ctx := context.Background()

	first, err := svc.Create(ctx, createReq("2026-03-02T10:00"), ownClient)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := svc.Create(ctx, createReq("2026-03-02T11:00"), ownClient); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	// Moving onto the second appointment conflicts.
	target := "2026-03-02T11:00"
	if _, err := svc.Update(ctx, first.ID, UpdateRequest{ScheduledAt: &target}, ownClient); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	// Re-submitting its own time is not a self conflict.
	same := "2026-03-02T10:00"
	updated, err := svc.Update(ctx, first.ID, UpdateRequest{ScheduledAt: &same}, ownClient)
	if err != nil {
		t.Fatalf("expected self-overlap to pass, got %v", err)
	}
	if !updated.ScheduledAt.Equal(first.ScheduledAt) {
		t.Fatalf("scheduled time drifted: %v", updated.ScheduledAt)
	}

	// Stretching to 60 minutes ends exactly where the next one starts.
	longer := 60
	if _, err := svc.Update(ctx, first.ID, UpdateRequest{DurationMinutes: &longer}, ownClient); err != nil {
		t.Fatalf("expected back-to-back stretch to pass, got %v", err)
	}

	// 90 minutes would run into 11:00.
	tooLong := 90
	if _, err := svc.Update(ctx, first.ID, UpdateRequest{DurationMinutes: &tooLong}, ownClient); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for stretched overlap, got %v", err)
	}

	// Notes-only updates skip scheduling validation entirely.
	notes := "bring previous vaccination card"
	noted, err := svc.Update(ctx, first.ID, UpdateRequest{Notes: &notes}, ownClient)
	if err != nil {
		t.Fatalf("notes update failed: %v", err)
	}
	if noted.Notes != notes {
		t.Fatalf("expected notes persisted, got %q", noted.Notes)
	}
}

func TestUpdateRescheduleOutsideHours(t *testing.T) {
	svc := newTestService(newFakeRepo(), Options{})
	ctx := context.Background()

	created, err := svc.Create(ctx, createReq("2026-03-02T10:00"), ownClient)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	past := "2026-03-02T07:30"
	if _, err := svc.Update(ctx, created.ID, UpdateRequest{ScheduledAt: &past}, ownClient); !errors.Is(err, ErrPastTime) {
		t.Fatalf("expected ErrPastTime, got %v", err)
	}

	closed := "2026-03-03T10:00"
	if _, err := svc.Update(ctx, created.ID, UpdateRequest{ScheduledAt: &closed}, ownClient); !errors.Is(err, ErrClosedDay) {
		t.Fatalf("expected ErrClosedDay, got %v", err)
	}

	lateDay := "2026-03-02T11:45"
	if _, err := svc.Update(ctx, created.ID, UpdateRequest{ScheduledAt: &lateDay}, ownClient); !errors.Is(err, ErrOutsideHours) {
		t.Fatalf("expected ErrOutsideHours, got %v", err)
	}
}

func TestGetByIDVisibility(t *testing.T) {
	svc := newTestService(newFakeRepo(), Options{})
	ctx := context.Background()

	created, err := svc.Create(ctx, createReq("2026-03-02T10:00"), ownClient)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if _, err := svc.GetByID(ctx, created.ID, otherClient); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for foreign client, got %v", err)
	}
	if _, err := svc.GetByID(ctx, created.ID, ownClient); err != nil {
		t.Fatalf("owner read failed: %v", err)
	}
	if _, err := svc.GetByID(ctx, created.ID, adminUser); err != nil {
		t.Fatalf("admin read failed: %v", err)
	}
}

func seedListFixtures(t *testing.T, repo *fakeRepo) {
	t.Helper()
	base := fixedNow()
	rows := []Appointment{
		{ID: "a1", PetID: "pet-1", OwnerID: "client-1", VeterinarianID: "vet-1", Status: StatusScheduled, ScheduledAt: base.Add(2 * time.Hour), DurationMinutes: 30},
		{ID: "a2", PetID: "pet-2", OwnerID: "client-2", VeterinarianID: "vet-1", Status: StatusScheduled, ScheduledAt: base.Add(3 * time.Hour), DurationMinutes: 30},
		{ID: "a3", PetID: "pet-1", OwnerID: "client-1", VeterinarianID: "vet-2", Status: StatusCompleted, ScheduledAt: base.Add(-24 * time.Hour), DurationMinutes: 30},
		{ID: "a4", PetID: "pet-2", OwnerID: "client-2", VeterinarianID: "vet-2", Status: StatusScheduled, ScheduledAt: base.Add(48 * time.Hour), DurationMinutes: 30},
		{ID: "a5", PetID: "pet-1", OwnerID: "client-1", VeterinarianID: "vet-1", Status: StatusCancelled, ScheduledAt: base.Add(26 * time.Hour), DurationMinutes: 30},
	}
	for _, appt := range rows {
		if err := repo.Create(context.Background(), appt); err != nil {
			t.Fatalf("seed error: %v", err)
		}
	}
}

func TestListRoleVisibility(t *testing.T) {
	repo := newFakeRepo()
	seedListFixtures(t, repo)
	svc := newTestService(repo, Options{})
	ctx := context.Background()

	items, page, err := svc.List(ctx, ListQuery{}, adminUser)
	if err != nil {
		t.Fatalf("admin list error: %v", err)
	}
	if page.Total != 5 || len(items) != 5 {
		t.Fatalf("expected admin to see 5, got %d/%d", len(items), page.Total)
	}

	items, _, err = svc.List(ctx, ListQuery{}, ownClient)
	if err != nil {
		t.Fatalf("client list error: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected client-1 to see 3, got %d", len(items))
	}
	for _, item := range items {
		if item.OwnerID != "client-1" {
			t.Fatalf("client saw foreign appointment %s", item.ID)
		}
	}

	items, _, err = svc.List(ctx, ListQuery{}, ownVet)
	if err != nil {
		t.Fatalf("vet list error: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected vet-1 to see 3, got %d", len(items))
	}
	for _, item := range items {
		if item.VeterinarianID != "vet-1" {
			t.Fatalf("vet saw foreign calendar entry %s", item.ID)
		}
	}

	if _, _, err := svc.List(ctx, ListQuery{}, auth.Requester{ID: "x", Role: "auditor"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for unknown role, got %v", err)
	}
}

func TestListFiltersAndPagination(t *testing.T) {
	repo := newFakeRepo()
	seedListFixtures(t, repo)
	svc := newTestService(repo, Options{})
	ctx := context.Background()

	if _, _, err := svc.List(ctx, ListQuery{Status: "PENDING"}, adminUser); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}

	items, _, err := svc.List(ctx, ListQuery{Status: StatusScheduled}, adminUser)
	if err != nil {
		t.Fatalf("status filter error: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 scheduled, got %d", len(items))
	}

	// Upcoming excludes the past completed visit and the cancelled one.
	items, _, err = svc.List(ctx, ListQuery{Upcoming: true}, adminUser)
	if err != nil {
		t.Fatalf("upcoming error: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 upcoming, got %d", len(items))
	}

	items, _, err = svc.List(ctx, ListQuery{Past: true}, adminUser)
	if err != nil {
		t.Fatalf("past error: %v", err)
	}
	if len(items) != 1 || items[0].ID != "a3" {
		t.Fatalf("expected only a3 in the past, got %v", items)
	}

	// Single-day window, half open: a5 at +26h lands on the next day.
	items, _, err = svc.List(ctx, ListQuery{Date: "2026-03-02"}, adminUser)
	if err != nil {
		t.Fatalf("date filter error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 on 2026-03-02, got %d", len(items))
	}

	items, page, err := svc.List(ctx, ListQuery{Page: 2, Limit: 2}, adminUser)
	if err != nil {
		t.Fatalf("pagination error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items on page 2, got %d", len(items))
	}
	if page.Total != 5 || page.Page != 2 || page.Limit != 2 || page.TotalPages != 3 {
		t.Fatalf("unexpected page metadata: %+v", page)
	}

	// Zero and oversized limits are clamped, not rejected.
	_, page, err = svc.List(ctx, ListQuery{Limit: 1000}, adminUser)
	if err != nil {
		t.Fatalf("clamp error: %v", err)
	}
	if page.Limit != maxPageLimit {
		t.Fatalf("expected limit clamped to %d, got %d", maxPageLimit, page.Limit)
	}
}

func TestDefaultHoursFallback(t *testing.T) {
	repo := newFakeRepo()
	bare := vets.Veterinarian{ID: "vet-3", Name: "Dr. Rojas", Email: "rojas@clinic.test"}

	off := NewService(repo, &fakeVets{items: []vets.Veterinarian{bare}}, &fakePets{}, nil, testLogger(), Options{Now: fixedNow, Location: time.UTC})
	report, err := off.GetAvailability(context.Background(), "vet-3", "2026-03-02", 60)
	if err != nil {
		t.Fatalf("GetAvailability error: %v", err)
	}
	if len(report.Slots) != 0 {
		t.Fatalf("expected no slots with fallback off, got %d", len(report.Slots))
	}

	on := NewService(repo, &fakeVets{items: []vets.Veterinarian{bare}}, &fakePets{}, nil, testLogger(), Options{
		Now:                  fixedNow,
		Location:             time.UTC,
		DefaultHoursFallback: true,
		DefaultDayStart:      "08:00",
		DefaultDayEnd:        "18:00",
	})
	report, err = on.GetAvailability(context.Background(), "vet-3", "2026-03-02", 60)
	if err != nil {
		t.Fatalf("GetAvailability error: %v", err)
	}
	if len(report.Slots) != 10 {
		t.Fatalf("expected 10 hourly fallback slots, got %d", len(report.Slots))
	}
	if !report.DefaultHours {
		t.Fatalf("expected DefaultHours flag set")
	}

	// A day the schedule explicitly closes never falls back.
	closed := vets.Veterinarian{
		ID:    "vet-4",
		Name:  "Dr. Vega",
		Email: "vega@clinic.test",
		WeeklyAvailability: schedule.Week{
			"monday": schedule.DayHours{IsAvailable: false},
		},
	}
	strict := NewService(repo, &fakeVets{items: []vets.Veterinarian{closed}}, &fakePets{}, nil, testLogger(), Options{
		Now:                  fixedNow,
		Location:             time.UTC,
		DefaultHoursFallback: true,
	})
	report, err = strict.GetAvailability(context.Background(), "vet-4", "2026-03-02", 60)
	if err != nil {
		t.Fatalf("GetAvailability error: %v", err)
	}
	if len(report.Slots) != 0 || report.DefaultHours {
		t.Fatalf("expected explicitly closed day to stay closed, got %+v", report)
	}
}

func TestGetAllAvailability(t *testing.T) {
	repo := newFakeRepo()
	second := vets.Veterinarian{
		ID:    "vet-2",
		Name:  "Dr. Moreno",
		Email: "moreno@clinic.test",
		WeeklyAvailability: schedule.Week{
			"monday": schedule.DayHours{Start: "14:00", End: "16:00", IsAvailable: true},
		},
	}
	svc := NewService(repo, &fakeVets{items: []vets.Veterinarian{testVet(), second}}, &fakePets{items: []pets.Pet{testPet()}}, nil, testLogger(), Options{Now: fixedNow, Location: time.UTC})

	reports, err := svc.GetAllAvailability(context.Background(), "2026-03-02", 30)
	if err != nil {
		t.Fatalf("GetAllAvailability error: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(reports))
	}
	if reports[0].Veterinarian.ID != "vet-1" || reports[0].AvailableCount != 6 {
		t.Fatalf("unexpected first report: %+v", reports[0])
	}
	if reports[1].Veterinarian.ID != "vet-2" || reports[1].AvailableCount != 4 {
		t.Fatalf("unexpected second report: %+v", reports[1])
	}
}

func TestNextAvailability(t *testing.T) {
	svc := newTestService(newFakeRepo(), Options{})
	ctx := context.Background()

	// From today: the vet works this Monday morning.
	report, found, err := svc.NextAvailability(ctx, "vet-1", "2026-03-02", 30, 30)
	if err != nil {
		t.Fatalf("NextAvailability error: %v", err)
	}
	if !found || report.Date != "2026-03-02" {
		t.Fatalf("expected today, got found=%v date=%s", found, report.Date)
	}
	if report.AvailableCount != 6 {
		t.Fatalf("expected 6 free slots, got %d", report.AvailableCount)
	}

	// From Tuesday the next open day is the following Monday.
	report, found, err = svc.NextAvailability(ctx, "vet-1", "2026-03-03", 30, 30)
	if err != nil {
		t.Fatalf("NextAvailability error: %v", err)
	}
	if !found || report.Date != "2026-03-09" {
		t.Fatalf("expected 2026-03-09, got found=%v date=%s", found, report.Date)
	}

	// A horizon too short to reach Monday finds nothing.
	_, found, err = svc.NextAvailability(ctx, "vet-1", "2026-03-03", 30, 3)
	if err != nil {
		t.Fatalf("NextAvailability error: %v", err)
	}
	if found {
		t.Fatalf("expected no availability within 3 days")
	}
}

func TestConcurrentCreateSingleWinner(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, Options{})

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Create(context.Background(), createReq("2026-03-02T10:00"), ownClient)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrConflict):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one booking to win, got %d", wins)
	}
	if n := len(repo.items); n != 1 {
		t.Fatalf("expected 1 stored appointment, got %d", n)
	}
}
