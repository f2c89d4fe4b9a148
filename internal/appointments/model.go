package appointments

import (
	"time"

	"vetclinic-backend/internal/pets"
	"vetclinic-backend/internal/schedule"
	"vetclinic-backend/internal/vets"
)

const (
	StatusScheduled  = "SCHEDULED"
	StatusConfirmed  = "CONFIRMED"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusCancelled  = "CANCELLED"
	StatusMissed     = "MISSED"

	TypeConsultation = "consultation"
	TypeVaccination  = "vaccination"
	TypeSurgery      = "surgery"
	TypeEmergency    = "emergency"
	TypeCheckup      = "checkup"
	TypeGrooming     = "grooming"
	TypeDental       = "dental"
	TypeOther        = "other"

	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

var validStatuses = map[string]struct{}{
	StatusScheduled:  {},
	StatusConfirmed:  {},
	StatusInProgress: {},
	StatusCompleted:  {},
	StatusCancelled:  {},
	StatusMissed:     {},
}

var validTypes = map[string]struct{}{
	TypeConsultation: {},
	TypeVaccination:  {},
	TypeSurgery:      {},
	TypeEmergency:    {},
	TypeCheckup:      {},
	TypeGrooming:     {},
	TypeDental:       {},
	TypeOther:        {},
}

var validPriorities = map[string]struct{}{
	PriorityLow:    {},
	PriorityNormal: {},
	PriorityHigh:   {},
	PriorityUrgent: {},
}

func IsValidStatus(value string) bool {
	_, ok := validStatuses[value]
	return ok
}

func IsValidType(value string) bool {
	_, ok := validTypes[value]
	return ok
}

func IsValidPriority(value string) bool {
	_, ok := validPriorities[value]
	return ok
}

type Appointment struct {
	ID              string    `bson:"_id,omitempty" json:"id"`
	PetID           string    `bson:"petId" json:"petId"`
	OwnerID         string    `bson:"ownerId" json:"ownerId"`
	VeterinarianID  string    `bson:"veterinarianId" json:"veterinarianId"`
	ScheduledAt     time.Time `bson:"scheduledAt" json:"scheduledAt"`
	DurationMinutes int       `bson:"durationMinutes" json:"durationMinutes"`
	Type            string    `bson:"type" json:"type"`
	Priority        string    `bson:"priority" json:"priority"`
	Status          string    `bson:"status" json:"status"`
	Notes           string    `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt       time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time `bson:"updatedAt" json:"updatedAt"`
}

func (a Appointment) EndsAt() time.Time {
	return a.ScheduledAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// OccupiesCalendar reports whether the appointment blocks its interval.
// Cancelled and missed appointments free their slot.
func (a Appointment) OccupiesCalendar() bool {
	return a.Status != StatusCancelled && a.Status != StatusMissed
}

func (a Appointment) IsUpcoming(now time.Time) bool {
	return a.Status == StatusScheduled && a.ScheduledAt.After(now)
}

func (a Appointment) IsPast(now time.Time) bool {
	return a.ScheduledAt.Before(now)
}

func (a Appointment) booking() schedule.Booking {
	return schedule.Booking{ID: a.ID, Start: a.ScheduledAt, End: a.EndsAt()}
}

// Response is the read shape: the stored fields plus computed flags and,
// where fetched, related summaries.
type Response struct {
	Appointment
	IsUpcoming   bool          `json:"isUpcoming"`
	IsPast       bool          `json:"isPast"`
	Pet          *pets.Summary `json:"pet,omitempty"`
	Veterinarian *vets.Summary `json:"veterinarian,omitempty"`
}

type CreateRequest struct {
	PetID           string `json:"petId" validate:"required"`
	VeterinarianID  string `json:"veterinarianId" validate:"required"`
	ScheduledAt     string `json:"scheduledAt" validate:"required,datetimelocal"`
	Type            string `json:"type" validate:"required,oneof=consultation vaccination surgery emergency checkup grooming dental other"`
	DurationMinutes int    `json:"durationMinutes" validate:"omitempty,gte=5,lte=240"`
	Priority        string `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	Notes           string `json:"notes" validate:"omitempty,max=2000"`
}

type UpdateRequest struct {
	ScheduledAt     *string `json:"scheduledAt" validate:"omitempty,datetimelocal"`
	DurationMinutes *int    `json:"durationMinutes" validate:"omitempty,gte=5,lte=240"`
	Type            *string `json:"type" validate:"omitempty,oneof=consultation vaccination surgery emergency checkup grooming dental other"`
	Priority        *string `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	Notes           *string `json:"notes" validate:"omitempty,max=2000"`
}

// ListFilter narrows the query before role visibility is applied on top.
type ListFilter struct {
	Status         string
	PetID          string
	OwnerID        string
	VeterinarianID string
	From           time.Time
	To             time.Time
	SortBy         string
	SortDesc       bool
}

// Page is offset pagination metadata, 1-indexed.
type Page struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"totalPages"`
}

// AvailabilityReport is one veterinarian's slot listing for a date.
type AvailabilityReport struct {
	Veterinarian   vets.Summary    `json:"veterinarian"`
	Date           string          `json:"date"`
	Duration       int             `json:"duration"`
	Slots          []schedule.Slot `json:"slots"`
	AvailableCount int             `json:"availableCount"`
	DefaultHours   bool            `json:"defaultHours,omitempty"`
}
