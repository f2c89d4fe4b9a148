package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Collections struct {
	Appointments  *mongo.Collection
	Veterinarians *mongo.Collection
	Pets          *mongo.Collection
}

func Connect(ctx context.Context, uri, dbName string) (*mongo.Client, *Collections, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, nil, err
	}

	db := client.Database(dbName)

	cols := &Collections{
		Appointments:  db.Collection("appointments"),
		Veterinarians: db.Collection("veterinarians"),
		Pets:          db.Collection("pets"),
	}

	return client, cols, nil
}

func EnsureIndexes(ctx context.Context, cols *Collections) error {
	indexTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// The partial unique (veterinarianId, scheduledAt) index backs up
	// the per-veterinarian calendar lock: a concurrent booking that
	// slips past the in-process lock on an identical start still loses
	// here. Scoped to SCHEDULED so a cancelled slot can be rebooked.
	_, err := cols.Appointments.Indexes().CreateMany(indexTimeout, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "veterinarianId", Value: 1}, {Key: "scheduledAt", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": "SCHEDULED"}),
		},
		{
			Keys: bson.D{{Key: "veterinarianId", Value: 1}, {Key: "status", Value: 1}, {Key: "scheduledAt", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "petId", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "ownerId", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "scheduledAt", Value: 1}},
		},
	})
	if err != nil {
		return err
	}

	_, err = cols.Pets.Indexes().CreateMany(indexTimeout, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "ownerId", Value: 1}},
		},
	})
	if err != nil {
		return err
	}

	_, err = cols.Veterinarians.Indexes().CreateMany(indexTimeout, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
	if err != nil {
		return err
	}

	return nil
}
