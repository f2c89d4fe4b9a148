package vets

import (
	"context"
	"errors"
	"fmt"

	"vetclinic-backend/internal/schedule"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrNotFound = errors.New("veterinarian not found")

type Repository interface {
	GetByID(ctx context.Context, id string) (Veterinarian, error)
	List(ctx context.Context) ([]Veterinarian, error)
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (Veterinarian, error) {
	var vet Veterinarian
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&vet); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Veterinarian{}, ErrNotFound
		}
		return Veterinarian{}, err
	}
	if err := schedule.ValidateWeek(vet.WeeklyAvailability); err != nil {
		return Veterinarian{}, fmt.Errorf("veterinarian %s: %w", id, err)
	}
	return vet, nil
}

func (r *MongoRepository) List(ctx context.Context) ([]Veterinarian, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := r.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]Veterinarian, 0)
	for cursor.Next(ctx) {
		var vet Veterinarian
		if err := cursor.Decode(&vet); err != nil {
			return nil, err
		}
		if err := schedule.ValidateWeek(vet.WeeklyAvailability); err != nil {
			return nil, fmt.Errorf("veterinarian %s: %w", vet.ID, err)
		}
		items = append(items, vet)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return items, nil
}
