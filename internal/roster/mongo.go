package roster

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"backend-booking/internal/booking"
	"backend-booking/internal/helper"
	"backend-booking/internal/models"
)

// MongoRoster reads service advisors from the shared user directory. Advisor
// documents carry role "service_advisor", a string _id and an isAvailable
// flag flipped by the directory's owners.
type MongoRoster struct {
	collection *mongo.Collection
}

func NewMongoRoster(db *mongo.Database, collection string) *MongoRoster {
	coll := db.Collection(collection)

	// Index errors are not fatal; queries still work without it.
	ctx := context.Background()
	_, _ = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "role", Value: 1},
			{Key: "isAvailable", Value: 1},
			{Key: "createdAt", Value: 1},
		},
	})

	return &MongoRoster{collection: coll}
}

// rosterOrder keeps results in insertion order.
var rosterOrder = bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}

func (r *MongoRoster) ListAvailableAdvisors(ctx context.Context, st models.ServiceType) ([]models.Advisor, error) {
	filter := bson.M{
		"role":        helper.RoleAdvisor,
		"isAvailable": true,
	}
	if st != "" {
		filter["specializations"] = string(st)
	}

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(rosterOrder))
	if err != nil {
		return nil, fmt.Errorf("find advisors: %w", err)
	}
	defer cursor.Close(ctx)

	var advisors []models.Advisor
	if err := cursor.All(ctx, &advisors); err != nil {
		return nil, fmt.Errorf("decode advisors: %w", err)
	}
	return advisors, nil
}

func (r *MongoRoster) CountAdvisors(ctx context.Context) (int, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"role": helper.RoleAdvisor})
	if err != nil {
		return 0, fmt.Errorf("count advisors: %w", err)
	}
	return int(n), nil
}

func (r *MongoRoster) GetAdvisor(ctx context.Context, id string) (models.Advisor, error) {
	var a models.Advisor
	err := r.collection.FindOne(ctx, bson.M{"_id": id, "role": helper.RoleAdvisor}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Advisor{}, fmt.Errorf("advisor %s: %w", id, booking.ErrNotFound)
	}
	if err != nil {
		return models.Advisor{}, fmt.Errorf("get advisor: %w", err)
	}
	return a, nil
}
