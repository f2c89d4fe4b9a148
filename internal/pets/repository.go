package pets

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrNotFound = errors.New("pet not found")

type Repository interface {
	GetByID(ctx context.Context, id string) (Pet, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Pet, error)
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (Pet, error) {
	var pet Pet
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&pet); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Pet{}, ErrNotFound
		}
		return Pet{}, err
	}
	return pet, nil
}

func (r *MongoRepository) ListByOwner(ctx context.Context, ownerID string) ([]Pet, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := r.col.Find(ctx, bson.M{"ownerId": ownerID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]Pet, 0)
	for cursor.Next(ctx) {
		var pet Pet
		if err := cursor.Decode(&pet); err != nil {
			return nil, err
		}
		items = append(items, pet)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return items, nil
}
