package database

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionProperties      = "properties"
	CollectionUsers           = "users"
	CollectionSavedProperties = "saved_properties"
	CollectionChats           = "chats"
	CollectionReminders       = "reminders"
	CollectionNotifications   = "notifications"
	CollectionServiceRequests = "service_requests"
)

type Database struct {
	*mongo.Database
}

var (
	ErrNotFound            = errors.New("document not found")
	ErrDuplicate           = errors.New("duplicate document")
	ErrNoDocumentsModified = errors.New("no documents modified")
)

var indexes = map[string][]mongo.IndexModel{
	CollectionProperties: {
		{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "purpose", Value: 1}, {Key: "is_sold", Value: 1}}},
		{Keys: bson.D{
			{Key: "property_type", Value: 1},
			{Key: "residential_type", Value: 1},
			{Key: "commercial_type", Value: 1},
		}},
	},
	CollectionUsers: {
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "fcm_token", Value: 1}}},
	},
	CollectionSavedProperties: {
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "property_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	},
	CollectionChats: {
		{Keys: bson.D{{Key: "pair_key", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "participants", Value: 1}, {Key: "updated_at", Value: -1}}},
	},
	CollectionReminders: {
		{Keys: bson.D{{Key: "fired", Value: 1}, {Key: "due_at", Value: 1}}},
	},
	CollectionNotifications: {
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
	},
	CollectionServiceRequests: {
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
	},
}

func ConnectDB(ctx context.Context, dbURI string, name string) (*mongo.Client, error) {
	c, err := mongo.Connect(ctx, options.Client().ApplyURI(dbURI))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to %s", dbURI)
	}
	if err = c.Ping(ctx, nil); err != nil {
		return nil, errors.Wrapf(err, "failed to ping %s", dbURI)
	}

	for collection, models := range indexes {
		if _, err = c.Database(name).Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return nil, errors.Wrapf(err, "failed to create indexes on %s", collection)
		}
	}

	return c, nil
}

// classify maps driver errors onto the package sentinels so callers never
// have to inspect driver types.
func classify(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return errors.Wrap(ErrNotFound, msg)
	case mongo.IsDuplicateKeyError(err):
		return errors.Wrap(ErrDuplicate, msg)
	}
	return errors.Wrap(err, msg)
}
