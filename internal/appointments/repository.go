package appointments

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UpdateFields carries the optional general-update mutations. Nil means
// leave the stored value untouched.
type UpdateFields struct {
	ScheduledAt     *time.Time
	DurationMinutes *int
	Type            *string
	Priority        *string
	Notes           *string
}

type Repository interface {
	Create(ctx context.Context, appt Appointment) error
	GetByID(ctx context.Context, id string) (Appointment, error)
	UpdateStatus(ctx context.Context, id, status string, now time.Time) (Appointment, error)
	UpdateFields(ctx context.Context, id string, fields UpdateFields, now time.Time) (Appointment, error)
	List(ctx context.Context, filter ListFilter, limit, offset int64) ([]Appointment, error)
	Count(ctx context.Context, filter ListFilter) (int64, error)
	ListActiveBetween(ctx context.Context, vetID string, from, to time.Time) ([]Appointment, error)
}

var sortFields = map[string]string{
	"scheduledAt": "scheduledAt",
	"status":      "status",
	"createdAt":   "createdAt",
	"updatedAt":   "updatedAt",
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, appt Appointment) error {
	_, err := r.col.InsertOne(ctx, appt)
	if mongo.IsDuplicateKeyError(err) {
		return ErrConflict
	}
	return err
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (Appointment, error) {
	var appt Appointment
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&appt); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Appointment{}, ErrNotFound
		}
		return Appointment{}, err
	}
	return appt, nil
}

func (r *MongoRepository) UpdateStatus(ctx context.Context, id, status string, now time.Time) (Appointment, error) {
	return r.findOneAndUpdate(ctx, id, bson.M{
		"status":    status,
		"updatedAt": now,
	})
}

func (r *MongoRepository) UpdateFields(ctx context.Context, id string, fields UpdateFields, now time.Time) (Appointment, error) {
	set := bson.M{"updatedAt": now}
	if fields.ScheduledAt != nil {
		set["scheduledAt"] = *fields.ScheduledAt
	}
	if fields.DurationMinutes != nil {
		set["durationMinutes"] = *fields.DurationMinutes
	}
	if fields.Type != nil {
		set["type"] = *fields.Type
	}
	if fields.Priority != nil {
		set["priority"] = *fields.Priority
	}
	if fields.Notes != nil {
		set["notes"] = *fields.Notes
	}
	return r.findOneAndUpdate(ctx, id, set)
}

func (r *MongoRepository) findOneAndUpdate(ctx context.Context, id string, set bson.M) (Appointment, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated Appointment
	err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Appointment{}, ErrNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return Appointment{}, ErrConflict
		}
		return Appointment{}, err
	}
	return updated, nil
}

func (r *MongoRepository) List(ctx context.Context, filter ListFilter, limit, offset int64) ([]Appointment, error) {
	field, ok := sortFields[filter.SortBy]
	if !ok {
		// Unknown sort keys fall back instead of erroring.
		field = "scheduledAt"
		filter.SortDesc = false
	}
	direction := 1
	if filter.SortDesc {
		direction = -1
	}

	opts := options.Find().
		SetSort(bson.D{{Key: field, Value: direction}}).
		SetLimit(limit).
		SetSkip(offset)

	cursor, err := r.col.Find(ctx, r.filterToBSON(filter), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	return decodeAll(ctx, cursor)
}

func (r *MongoRepository) Count(ctx context.Context, filter ListFilter) (int64, error) {
	return r.col.CountDocuments(ctx, r.filterToBSON(filter))
}

// ListActiveBetween returns one veterinarian's appointments that occupy
// calendar time within [from, to). Cancelled and missed are excluded
// here so the conflict detector never sees them.
func (r *MongoRepository) ListActiveBetween(ctx context.Context, vetID string, from, to time.Time) ([]Appointment, error) {
	query := bson.M{
		"veterinarianId": vetID,
		"status":         bson.M{"$nin": bson.A{StatusCancelled, StatusMissed}},
		"scheduledAt":    bson.M{"$gte": from, "$lt": to},
	}
	opts := options.Find().SetSort(bson.D{{Key: "scheduledAt", Value: 1}})

	cursor, err := r.col.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	return decodeAll(ctx, cursor)
}

func (r *MongoRepository) filterToBSON(filter ListFilter) bson.M {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.PetID != "" {
		query["petId"] = filter.PetID
	}
	if filter.OwnerID != "" {
		query["ownerId"] = filter.OwnerID
	}
	if filter.VeterinarianID != "" {
		query["veterinarianId"] = filter.VeterinarianID
	}
	scheduled := bson.M{}
	if !filter.From.IsZero() {
		scheduled["$gte"] = filter.From
	}
	if !filter.To.IsZero() {
		scheduled["$lt"] = filter.To
	}
	if len(scheduled) > 0 {
		query["scheduledAt"] = scheduled
	}
	return query
}

func decodeAll(ctx context.Context, cursor *mongo.Cursor) ([]Appointment, error) {
	items := make([]Appointment, 0)
	for cursor.Next(ctx) {
		var appt Appointment
		if err := cursor.Decode(&appt); err != nil {
			return nil, err
		}
		items = append(items, appt)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
