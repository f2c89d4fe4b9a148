package appointments

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"vetclinic-backend/internal/auth"
	"vetclinic-backend/internal/cache"
	"vetclinic-backend/internal/pets"
	"vetclinic-backend/internal/schedule"
	"vetclinic-backend/internal/vets"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// VetLookup and PetLookup are the collaborator contracts the scheduler
// consumes. The vets/pets repositories satisfy them directly.
type VetLookup interface {
	GetByID(ctx context.Context, id string) (vets.Veterinarian, error)
	List(ctx context.Context) ([]vets.Veterinarian, error)
}

type PetLookup interface {
	GetByID(ctx context.Context, id string) (pets.Pet, error)
}

type Options struct {
	Location *time.Location
	// Explicit fallback window for veterinarians whose weekly schedule
	// does not configure the requested day. Off by default.
	DefaultHoursFallback bool
	DefaultDayStart      string
	DefaultDayEnd        string
	// Now is injected so tests can fix time; defaults to time.Now.
	Now func() time.Time
}

type Service struct {
	repo        Repository
	vets        VetLookup
	pets        PetLookup
	cache       cache.Cache
	log         *slog.Logger
	loc         *time.Location
	locks       *calendarLocks
	now         func() time.Time
	fallback    bool
	defaultWeek schedule.Week
}

func NewService(repo Repository, vetLookup VetLookup, petLookup PetLookup, cacheStore cache.Cache, log *slog.Logger, opts Options) *Service {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if cacheStore == nil {
		cacheStore = cache.NewNoop()
	}
	dayStart := opts.DefaultDayStart
	if dayStart == "" {
		dayStart = "08:00"
	}
	dayEnd := opts.DefaultDayEnd
	if dayEnd == "" {
		dayEnd = "18:00"
	}

	return &Service{
		repo:        repo,
		vets:        vetLookup,
		pets:        petLookup,
		cache:       cacheStore,
		log:         log,
		loc:         loc,
		locks:       newCalendarLocks(),
		now:         now,
		fallback:    opts.DefaultHoursFallback,
		defaultWeek: schedule.DefaultWeek(dayStart, dayEnd),
	}
}

// Create validates a booking end to end and persists it as SCHEDULED.
// Checks short-circuit in order: future time, veterinarian availability,
// pet existence and ownership, conflicts. The conflict check and the
// insert run under the veterinarian's calendar lock.
func (s *Service) Create(ctx context.Context, req CreateRequest, requester auth.Requester) (Response, error) {
	duration := req.DurationMinutes
	if duration == 0 {
		duration = schedule.DefaultSlotMinutes
	}
	if duration <= 0 {
		return Response{}, ErrInvalidDuration
	}
	if !IsValidType(req.Type) {
		return Response{}, ErrInvalidType
	}
	priority := req.Priority
	if priority == "" {
		priority = PriorityNormal
	}
	if !IsValidPriority(priority) {
		return Response{}, ErrInvalidPriority
	}

	scheduledAt, err := schedule.ParseDateTime(req.ScheduledAt, s.loc)
	if err != nil {
		return Response{}, err
	}

	now := s.now().In(s.loc)
	if !scheduledAt.After(now) {
		return Response{}, ErrPastTime
	}

	vet, err := s.vets.GetByID(ctx, req.VeterinarianID)
	if err != nil {
		if errors.Is(err, vets.ErrNotFound) {
			return Response{}, ErrVetNotFound
		}
		return Response{}, err
	}
	if err := s.checkWorkingHours(vet, scheduledAt, duration); err != nil {
		return Response{}, err
	}

	pet, err := s.pets.GetByID(ctx, req.PetID)
	if err != nil {
		if errors.Is(err, pets.ErrNotFound) {
			return Response{}, ErrPetNotFound
		}
		return Response{}, err
	}
	if requester.Role == auth.RoleClient && pet.OwnerID != requester.ID {
		return Response{}, ErrForbidden
	}

	appt := Appointment{
		ID:              primitive.NewObjectID().Hex(),
		PetID:           pet.ID,
		OwnerID:         pet.OwnerID,
		VeterinarianID:  vet.ID,
		ScheduledAt:     scheduledAt,
		DurationMinutes: duration,
		Type:            req.Type,
		Priority:        priority,
		Status:          StatusScheduled,
		Notes:           req.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	lock := s.locks.forVeterinarian(vet.ID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.checkConflicts(ctx, vet.ID, scheduledAt, appt.EndsAt(), ""); err != nil {
		return Response{}, err
	}
	if err := s.repo.Create(ctx, appt); err != nil {
		return Response{}, err
	}

	s.invalidateAvailability(ctx, vet.ID, scheduledAt)

	s.log.Info("appointment booked",
		slog.String("appointment_id", appt.ID),
		slog.String("veterinarian_id", vet.ID),
		slog.String("pet_id", pet.ID),
		slog.Time("scheduled_at", scheduledAt),
	)

	return s.toResponse(appt, &pet, &vet), nil
}

func (s *Service) Confirm(ctx context.Context, id string, requester auth.Requester) (Response, error) {
	return s.transition(ctx, id, requester, StatusConfirmed, func(appt Appointment) error {
		return CheckConfirm(requester, appt)
	})
}

func (s *Service) Cancel(ctx context.Context, id string, requester auth.Requester) (Response, error) {
	return s.transition(ctx, id, requester, StatusCancelled, func(appt Appointment) error {
		return CheckCancel(requester, appt, s.now().In(s.loc))
	})
}

func (s *Service) Complete(ctx context.Context, id string, requester auth.Requester) (Response, error) {
	return s.transition(ctx, id, requester, StatusCompleted, func(appt Appointment) error {
		return CheckComplete(requester, appt)
	})
}

func (s *Service) transition(ctx context.Context, id string, requester auth.Requester, target string, check func(Appointment) error) (Response, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Response{}, err
	}
	if err := check(appt); err != nil {
		return Response{}, err
	}

	updated, err := s.repo.UpdateStatus(ctx, id, target, s.now().In(s.loc))
	if err != nil {
		return Response{}, err
	}

	s.invalidateAvailability(ctx, updated.VeterinarianID, updated.ScheduledAt)

	s.log.Info("appointment status changed",
		slog.String("appointment_id", updated.ID),
		slog.String("status", updated.Status),
		slog.String("requester_role", requester.Role),
	)

	return s.withRelations(ctx, updated), nil
}

// Update mutates time, duration, type, priority or notes. Any change to
// the interval re-runs the full booking validation against the new time
// with the appointment itself excluded from the conflict set.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest, requester auth.Requester) (Response, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Response{}, err
	}
	if err := CheckUpdate(requester, appt); err != nil {
		return Response{}, err
	}

	fields := UpdateFields{Type: req.Type, Priority: req.Priority, Notes: req.Notes}
	if req.Type != nil && !IsValidType(*req.Type) {
		return Response{}, ErrInvalidType
	}
	if req.Priority != nil && !IsValidPriority(*req.Priority) {
		return Response{}, ErrInvalidPriority
	}

	newStart := appt.ScheduledAt
	newDuration := appt.DurationMinutes
	if req.DurationMinutes != nil {
		if *req.DurationMinutes <= 0 {
			return Response{}, ErrInvalidDuration
		}
		newDuration = *req.DurationMinutes
		fields.DurationMinutes = req.DurationMinutes
	}
	if req.ScheduledAt != nil {
		newStart, err = schedule.ParseDateTime(*req.ScheduledAt, s.loc)
		if err != nil {
			return Response{}, err
		}
		fields.ScheduledAt = &newStart
	}

	rescheduled := req.ScheduledAt != nil || req.DurationMinutes != nil
	if rescheduled {
		now := s.now().In(s.loc)
		if !newStart.After(now) {
			return Response{}, ErrPastTime
		}
		vet, err := s.vets.GetByID(ctx, appt.VeterinarianID)
		if err != nil {
			if errors.Is(err, vets.ErrNotFound) {
				return Response{}, ErrVetNotFound
			}
			return Response{}, err
		}
		if err := s.checkWorkingHours(vet, newStart, newDuration); err != nil {
			return Response{}, err
		}

		newEnd := newStart.Add(time.Duration(newDuration) * time.Minute)

		lock := s.locks.forVeterinarian(appt.VeterinarianID)
		lock.Lock()
		defer lock.Unlock()

		if err := s.checkConflicts(ctx, appt.VeterinarianID, newStart, newEnd, appt.ID); err != nil {
			return Response{}, err
		}
	}

	updated, err := s.repo.UpdateFields(ctx, id, fields, s.now().In(s.loc))
	if err != nil {
		return Response{}, err
	}

	s.invalidateAvailability(ctx, updated.VeterinarianID, appt.ScheduledAt)
	if rescheduled {
		s.invalidateAvailability(ctx, updated.VeterinarianID, updated.ScheduledAt)
	}

	s.log.Info("appointment updated",
		slog.String("appointment_id", updated.ID),
		slog.Bool("rescheduled", rescheduled),
	)

	return s.withRelations(ctx, updated), nil
}

func (s *Service) GetByID(ctx context.Context, id string, requester auth.Requester) (Response, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Response{}, err
	}
	if err := CheckView(requester, appt); err != nil {
		return Response{}, err
	}
	return s.withRelations(ctx, appt), nil
}

type ListQuery struct {
	Status         string
	PetID          string
	VeterinarianID string
	Date           string
	From           string
	To             string
	Upcoming       bool
	Past           bool
	SortBy         string
	SortDesc       bool
	Page           int
	Limit          int
}

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// List applies role visibility on top of the requested filters: clients
// see their pets' appointments, veterinarians their own calendar,
// admins everything.
func (s *Service) List(ctx context.Context, q ListQuery, requester auth.Requester) ([]Response, Page, error) {
	filter := ListFilter{
		Status:         q.Status,
		PetID:          q.PetID,
		VeterinarianID: q.VeterinarianID,
		SortBy:         q.SortBy,
		SortDesc:       q.SortDesc,
	}
	if filter.Status != "" && !IsValidStatus(filter.Status) {
		return nil, Page{}, ErrInvalidStatus
	}

	if q.Date != "" {
		day, err := schedule.ParseDate(q.Date, s.loc)
		if err != nil {
			return nil, Page{}, err
		}
		filter.From = day
		filter.To = day.AddDate(0, 0, 1)
	}
	if q.From != "" {
		from, err := schedule.ParseDate(q.From, s.loc)
		if err != nil {
			return nil, Page{}, err
		}
		filter.From = from
	}
	if q.To != "" {
		to, err := schedule.ParseDate(q.To, s.loc)
		if err != nil {
			return nil, Page{}, err
		}
		filter.To = to.AddDate(0, 0, 1)
	}

	now := s.now().In(s.loc)
	if q.Upcoming {
		filter.Status = StatusScheduled
		if filter.From.IsZero() || filter.From.Before(now) {
			filter.From = now
		}
	}
	if q.Past {
		if filter.To.IsZero() || filter.To.After(now) {
			filter.To = now
		}
	}

	switch requester.Role {
	case auth.RoleClient:
		filter.OwnerID = requester.ID
	case auth.RoleVet:
		filter.VeterinarianID = requester.ID
	case auth.RoleAdmin:
	default:
		return nil, Page{}, ErrForbidden
	}

	page := q.Page
	if page < 1 {
		page = 1
	}
	limit := q.Limit
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	offset := int64(page-1) * int64(limit)

	items, err := s.repo.List(ctx, filter, int64(limit), offset)
	if err != nil {
		return nil, Page{}, err
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, Page{}, err
	}

	responses := make([]Response, 0, len(items))
	for _, appt := range items {
		responses = append(responses, s.toResponse(appt, nil, nil))
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return responses, Page{Total: total, Page: page, Limit: limit, TotalPages: totalPages}, nil
}

// GetAvailability builds one veterinarian's slot report for a date:
// calendar slots from the weekly schedule overlaid with conflicts.
func (s *Service) GetAvailability(ctx context.Context, vetID, dateStr string, duration int) (AvailabilityReport, error) {
	if duration == 0 {
		duration = schedule.DefaultSlotMinutes
	}
	date, err := schedule.ParseDate(dateStr, s.loc)
	if err != nil {
		return AvailabilityReport{}, err
	}
	vet, err := s.vets.GetByID(ctx, vetID)
	if err != nil {
		if errors.Is(err, vets.ErrNotFound) {
			return AvailabilityReport{}, ErrVetNotFound
		}
		return AvailabilityReport{}, err
	}
	return s.availabilityFor(ctx, vet, date, dateStr, duration)
}

// GetAllAvailability fans the report out over every veterinarian, in
// store iteration order.
func (s *Service) GetAllAvailability(ctx context.Context, dateStr string, duration int) ([]AvailabilityReport, error) {
	if duration == 0 {
		duration = schedule.DefaultSlotMinutes
	}
	date, err := schedule.ParseDate(dateStr, s.loc)
	if err != nil {
		return nil, err
	}
	allVets, err := s.vets.List(ctx)
	if err != nil {
		return nil, err
	}

	reports := make([]AvailabilityReport, 0, len(allVets))
	for _, vet := range allVets {
		report, err := s.availabilityFor(ctx, vet, date, dateStr, duration)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// NextAvailability scans forward up to horizon days for the first date
// with at least one free future slot.
func (s *Service) NextAvailability(ctx context.Context, vetID, fromStr string, duration, horizonDays int) (AvailabilityReport, bool, error) {
	if duration == 0 {
		duration = schedule.DefaultSlotMinutes
	}
	if horizonDays <= 0 {
		horizonDays = 30
	}
	from, err := schedule.ParseDate(fromStr, s.loc)
	if err != nil {
		return AvailabilityReport{}, false, err
	}
	vet, err := s.vets.GetByID(ctx, vetID)
	if err != nil {
		if errors.Is(err, vets.ErrNotFound) {
			return AvailabilityReport{}, false, ErrVetNotFound
		}
		return AvailabilityReport{}, false, err
	}

	now := s.now().In(s.loc)
	for i := 0; i < horizonDays; i++ {
		day := from.AddDate(0, 0, i)
		report, err := s.availabilityFor(ctx, vet, day, day.Format("2006-01-02"), duration)
		if err != nil {
			return AvailabilityReport{}, false, err
		}
		free := make([]schedule.Slot, 0)
		for _, slot := range report.Slots {
			if slot.Available && slot.DateTime.After(now) {
				free = append(free, slot)
			}
		}
		if len(free) > 0 {
			report.Slots = free
			report.AvailableCount = len(free)
			return report, true, nil
		}
	}
	return AvailabilityReport{}, false, nil
}

func (s *Service) availabilityFor(ctx context.Context, vet vets.Veterinarian, date time.Time, dateStr string, duration int) (AvailabilityReport, error) {
	week, usedDefault := s.resolveWeek(vet, date)

	slots, err := schedule.GenerateSlots(week, date, duration)
	if err != nil {
		return AvailabilityReport{}, err
	}

	active, err := s.repo.ListActiveBetween(ctx, vet.ID, date, date.AddDate(0, 0, 1))
	if err != nil {
		return AvailabilityReport{}, err
	}
	available := schedule.AnnotateSlots(slots, duration, toBookings(active, ""))

	return AvailabilityReport{
		Veterinarian:   vet.Summary(),
		Date:           dateStr,
		Duration:       duration,
		Slots:          slots,
		AvailableCount: available,
		DefaultHours:   usedDefault,
	}, nil
}

// resolveWeek applies the default-hours policy: a day the veterinarian
// never configured falls back to the clinic default window when the
// policy is enabled, and the fallback is logged, never silent. A day
// explicitly marked unavailable stays closed.
func (s *Service) resolveWeek(vet vets.Veterinarian, date time.Time) (schedule.Week, bool) {
	if _, ok := vet.WeeklyAvailability[schedule.WeekdayName(date.Weekday())]; ok {
		return vet.WeeklyAvailability, false
	}
	if !s.fallback {
		return vet.WeeklyAvailability, false
	}
	s.log.Info("using default working hours",
		slog.String("veterinarian_id", vet.ID),
		slog.String("weekday", schedule.WeekdayName(date.Weekday())),
	)
	return s.defaultWeek, true
}

func (s *Service) checkWorkingHours(vet vets.Veterinarian, start time.Time, duration int) error {
	week, _ := s.resolveWeek(vet, start)
	hours, ok := week[schedule.WeekdayName(start.Weekday())]
	if !ok || !hours.IsAvailable {
		return ErrClosedDay
	}
	within, err := schedule.WithinWindow(hours, start, duration)
	if err != nil {
		return err
	}
	if !within {
		return ErrOutsideHours
	}
	return nil
}

// checkConflicts must run under the veterinarian's calendar lock.
func (s *Service) checkConflicts(ctx context.Context, vetID string, start, end time.Time, excludeID string) error {
	dayStart := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	active, err := s.repo.ListActiveBetween(ctx, vetID, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return err
	}
	if conflicting, found := schedule.FindConflict(start, end, toBookings(active, excludeID)); found {
		s.log.Warn("booking conflict",
			slog.String("veterinarian_id", vetID),
			slog.String("conflicting_id", conflicting.ID),
			slog.Time("requested_start", start),
		)
		return ErrConflict
	}
	return nil
}

func (s *Service) invalidateAvailability(ctx context.Context, vetID string, day time.Time) {
	date := day.In(s.loc).Format("2006-01-02")
	_ = s.cache.DeletePrefix(ctx, "availability:"+vetID+":"+date+":")
	_ = s.cache.DeletePrefix(ctx, "availability:all:"+date+":")
}

func (s *Service) withRelations(ctx context.Context, appt Appointment) Response {
	var petSummary *pets.Summary
	var vetSummary *vets.Summary

	if pet, err := s.pets.GetByID(ctx, appt.PetID); err == nil {
		summary := pet.Summary()
		petSummary = &summary
	}
	if vet, err := s.vets.GetByID(ctx, appt.VeterinarianID); err == nil {
		summary := vet.Summary()
		vetSummary = &summary
	}

	resp := s.toResponse(appt, nil, nil)
	resp.Pet = petSummary
	resp.Veterinarian = vetSummary
	return resp
}

func (s *Service) toResponse(appt Appointment, pet *pets.Pet, vet *vets.Veterinarian) Response {
	now := s.now().In(s.loc)
	resp := Response{
		Appointment: appt,
		IsUpcoming:  appt.IsUpcoming(now),
		IsPast:      appt.IsPast(now),
	}
	if pet != nil {
		summary := pet.Summary()
		resp.Pet = &summary
	}
	if vet != nil {
		summary := vet.Summary()
		resp.Veterinarian = &summary
	}
	return resp
}

func toBookings(items []Appointment, excludeID string) []schedule.Booking {
	bookings := make([]schedule.Booking, 0, len(items))
	for _, appt := range items {
		if appt.ID == excludeID {
			continue
		}
		bookings = append(bookings, appt.booking())
	}
	return bookings
}
