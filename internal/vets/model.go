package vets

import (
	"time"

	"vetclinic-backend/internal/schedule"
)

type Veterinarian struct {
	ID                 string        `bson:"_id,omitempty" json:"id"`
	Name               string        `bson:"name" json:"name"`
	Specialty          string        `bson:"specialty,omitempty" json:"specialty,omitempty"`
	Email              string        `bson:"email" json:"email"`
	LicenseNumber      string        `bson:"licenseNumber,omitempty" json:"licenseNumber,omitempty"`
	WeeklyAvailability schedule.Week `bson:"weeklyAvailability,omitempty" json:"weeklyAvailability,omitempty"`
	CreatedAt          time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time     `bson:"updatedAt" json:"updatedAt"`
}

// Summary is the shape embedded in appointment and availability responses.
type Summary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Specialty string `json:"specialty,omitempty"`
}

func (v Veterinarian) Summary() Summary {
	return Summary{ID: v.ID, Name: v.Name, Specialty: v.Specialty}
}
