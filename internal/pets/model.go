package pets

import "time"

type Pet struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	Name      string    `bson:"name" json:"name"`
	Species   string    `bson:"species" json:"species"`
	Breed     string    `bson:"breed,omitempty" json:"breed,omitempty"`
	BirthDate string    `bson:"birthDate,omitempty" json:"birthDate,omitempty"`
	OwnerID   string    `bson:"ownerId" json:"ownerId"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Summary is the shape embedded in appointment responses.
type Summary struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Species string `json:"species"`
	OwnerID string `json:"ownerId"`
}

func (p Pet) Summary() Summary {
	return Summary{ID: p.ID, Name: p.Name, Species: p.Species, OwnerID: p.OwnerID}
}
