package main

import (
	"context"
	"log"
	"time"

	"vetclinic-backend/internal/auth"
	"vetclinic-backend/internal/config"
	"vetclinic-backend/internal/db"
	"vetclinic-backend/internal/pets"
	"vetclinic-backend/internal/schedule"
	"vetclinic-backend/internal/vets"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func weekdays(days []string, start, end string) schedule.Week {
	week := make(schedule.Week, len(days))
	for _, day := range days {
		week[day] = schedule.DayHours{Start: start, End: end, IsAvailable: true}
	}
	return week
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client, cols, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Disconnect(context.Background())

	if err := db.EnsureIndexes(ctx, cols); err != nil {
		log.Fatal(err)
	}

	now := time.Now().In(cfg.Timezone)
	workweek := []string{"monday", "tuesday", "wednesday", "thursday", "friday"}

	seedVets := []vets.Veterinarian{
		{
			ID:                 "vet-garcia",
			Name:               "Dr. Elena Garcia",
			Specialty:          "general",
			Email:              "elena.garcia@vetclinic.test",
			LicenseNumber:      "VET-1001",
			WeeklyAvailability: weekdays(workweek, "09:00", "17:00"),
			CreatedAt:          now,
			UpdatedAt:          now,
		},
		{
			ID:                 "vet-moreno",
			Name:               "Dr. Luis Moreno",
			Specialty:          "surgery",
			Email:              "luis.moreno@vetclinic.test",
			LicenseNumber:      "VET-1002",
			WeeklyAvailability: weekdays(append(workweek, "saturday"), "08:00", "14:00"),
			CreatedAt:          now,
			UpdatedAt:          now,
		},
		{
			// No weekly schedule: exercises the default-hours fallback.
			ID:            "vet-rojas",
			Name:          "Dr. Ana Rojas",
			Specialty:     "dermatology",
			Email:         "ana.rojas@vetclinic.test",
			LicenseNumber: "VET-1003",
			CreatedAt:     now,
			UpdatedAt:     now,
		},
	}

	seedPets := []pets.Pet{
		{ID: "pet-rocky", Name: "Rocky", Species: "dog", Breed: "labrador", OwnerID: "client-diaz", CreatedAt: now, UpdatedAt: now},
		{ID: "pet-luna", Name: "Luna", Species: "cat", Breed: "siamese", OwnerID: "client-diaz", CreatedAt: now, UpdatedAt: now},
		{ID: "pet-max", Name: "Max", Species: "dog", Breed: "beagle", OwnerID: "client-perez", CreatedAt: now, UpdatedAt: now},
		{ID: "pet-coco", Name: "Coco", Species: "bird", OwnerID: "client-perez", CreatedAt: now, UpdatedAt: now},
	}

	upsert := options.Replace().SetUpsert(true)
	for _, vet := range seedVets {
		if err := schedule.ValidateWeek(vet.WeeklyAvailability); err != nil {
			log.Fatal(err)
		}
		if _, err := cols.Veterinarians.ReplaceOne(ctx, bson.M{"_id": vet.ID}, vet, upsert); err != nil {
			log.Fatal(err)
		}
		log.Printf("seeded veterinarian %s", vet.ID)
	}
	for _, pet := range seedPets {
		if _, err := cols.Pets.ReplaceOne(ctx, bson.M{"_id": pet.ID}, pet, upsert); err != nil {
			log.Fatal(err)
		}
		log.Printf("seeded pet %s", pet.ID)
	}

	if cfg.JWTSecret == "" {
		log.Println("JWT_SECRET not set, skipping dev tokens")
		return
	}

	manager := &auth.Manager{
		Secret:    []byte(cfg.JWTSecret),
		AccessTTL: 24 * time.Hour,
		Issuer:    "vetclinic-backend",
	}
	devUsers := []struct {
		id   string
		role string
	}{
		{"client-diaz", auth.RoleClient},
		{"client-perez", auth.RoleClient},
		{"vet-garcia", auth.RoleVet},
		{"vet-rojas", auth.RoleVet},
		{"admin-root", auth.RoleAdmin},
	}
	for _, user := range devUsers {
		token, err := manager.NewAccessToken(user.id, user.role)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("dev token (%s %s): %s", user.role, user.id, token)
	}
}
